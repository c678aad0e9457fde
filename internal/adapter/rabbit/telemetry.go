package rabbit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nomadride/surge-engine/internal/domain/models"
	"github.com/nomadride/surge-engine/internal/engine/scheduler"
	"github.com/nomadride/surge-engine/pkg/logger"
	wrap "github.com/nomadride/surge-engine/pkg/logger/wrapper"
	"github.com/nomadride/surge-engine/pkg/metrics"
	"github.com/nomadride/surge-engine/pkg/rabbit"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	metricsExchange = "zone_metrics_topic"
	metricsQueue    = "surge_zone_metrics"
	metricsBindKey  = "zone.metrics.*"
)

// TelemetryConsumer feeds zone metrics snapshots from the telemetry exchange
// into the snapshot store the scheduler reads.
type TelemetryConsumer struct {
	client    *rabbit.RabbitMQ
	snapshots *scheduler.SnapshotStore
	l         logger.Logger
}

func NewTelemetryConsumer(client *rabbit.RabbitMQ, snapshots *scheduler.SnapshotStore, l logger.Logger) *TelemetryConsumer {
	return &TelemetryConsumer{client: client, snapshots: snapshots, l: l}
}

func (c *TelemetryConsumer) declareAndBindQueue(ctx context.Context) (amqp.Queue, error) {
	const op = "TelemetryConsumer.declareAndBindQueue"

	q, err := c.client.Channel.QueueDeclare(metricsQueue, true, false, false, false, nil)
	if err != nil {
		return q, wrap.Error(ctx, fmt.Errorf("%s: declare queue failed: %w", op, err))
	}

	if err := c.client.Channel.QueueBind(q.Name, metricsBindKey, metricsExchange, false, nil); err != nil {
		return q, wrap.Error(ctx, fmt.Errorf("%s: bind queue failed: %w", op, err))
	}

	return q, nil
}

func (c *TelemetryConsumer) handleMessage(ctx context.Context, msg amqp.Delivery) {
	const op = "TelemetryConsumer.handleMessage"

	var snap models.ZoneMetricsSnapshot
	if err := json.Unmarshal(msg.Body, &snap); err != nil {
		c.l.Error(ctx, "decode snapshot failed", err, "op", op)
		_ = msg.Nack(false, false)
		return
	}

	if snap.CapturedAt.IsZero() {
		snap.CapturedAt = time.Now()
	}

	c.snapshots.Put(snap)
	metrics.RecordRabbitMQConsume("surge-engine", metricsQueue, nil)

	if err := msg.Ack(false); err != nil {
		c.l.Warn(ctx, "ack failed", "err", err.Error(), "op", op)
	}
}

// Consume runs until ctx is cancelled, re-establishing the connection,
// exchange and queue whenever the broker drops them.
func (c *TelemetryConsumer) Consume(ctx context.Context) error {
	const op = "TelemetryConsumer.Consume"

	for {
		if ctx.Err() != nil {
			c.l.Debug(ctx, "telemetry consumer stopped by context")
			return nil
		}

		if err := c.client.EnsureConnection(ctx); err != nil {
			c.l.Error(ctx, "ensure connection failed", err, "op", op)
			time.Sleep(2 * time.Second)
			continue
		}

		if err := c.client.Channel.ExchangeDeclare(metricsExchange, "topic", true, false, false, false, nil); err != nil {
			c.l.Error(ctx, "declare exchange failed", err, "op", op)
			time.Sleep(3 * time.Second)
			continue
		}

		q, err := c.declareAndBindQueue(ctx)
		if err != nil {
			c.l.Error(ctx, "declare queue failed", err, "op", op)
			time.Sleep(2 * time.Second)
			continue
		}

		msgs, err := c.client.Channel.Consume(q.Name, "", false, false, false, false, nil)
		if err != nil {
			c.l.Error(ctx, "consume failed", err, "op", op)
			time.Sleep(2 * time.Second)
			continue
		}

		c.l.Info(ctx, "start consuming zone metrics", "queue", q.Name)

		open := true
		for open {
			select {
			case <-ctx.Done():
				c.l.Info(ctx, "telemetry consumer shutting down", "op", op)
				return nil

			case msg, ok := <-msgs:
				if !ok {
					c.l.Warn(ctx, "message channel closed, reconnecting...", "op", op)
					time.Sleep(2 * time.Second)
					open = false
					continue
				}

				c.handleMessage(ctx, msg)
			}
		}
	}
}
