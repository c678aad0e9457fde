package rabbit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nomadride/surge-engine/internal/domain/models"
	"github.com/nomadride/surge-engine/internal/engine/scheduler"
	"github.com/nomadride/surge-engine/pkg/logger"
	"github.com/nomadride/surge-engine/pkg/metrics"
	"github.com/nomadride/surge-engine/pkg/rabbit"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	surgeExchange = "surge_topic"

	publishTimeout = 5 * time.Second
)

// SurgePublisher pushes surge event lifecycle transitions and high-multiplier
// alerts to the surge topic exchange. Downstream consumers are the fare
// calculator, passenger notification and ops tooling.
type SurgePublisher struct {
	client         *rabbit.RabbitMQ
	alertThreshold func() float64
	l              logger.Logger
}

func NewSurgePublisher(client *rabbit.RabbitMQ, alertThreshold func() float64, l logger.Logger) *SurgePublisher {
	return &SurgePublisher{client: client, alertThreshold: alertThreshold, l: l}
}

// SurgeEventMessage is the wire form of a lifecycle transition.
type SurgeEventMessage struct {
	EventID    string     `json:"event_id"`
	ZoneID     string     `json:"zone_id"`
	RuleID     string     `json:"rule_id"`
	Source     string     `json:"source"`
	Transition string     `json:"transition"`
	Multiplier float64    `json:"multiplier"`
	Reason     string     `json:"reason"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// PublishTick is a no-op: per-tick state goes to redis and websockets, not
// the broker.
func (p *SurgePublisher) PublishTick(ctx context.Context, view scheduler.ZoneView) {}

func (p *SurgePublisher) PublishLifecycle(ctx context.Context, event *models.SurgeEvent, transition string) {
	msg := SurgeEventMessage{
		EventID:    event.ID.String(),
		ZoneID:     event.ZoneID.String(),
		RuleID:     event.RuleID,
		Source:     string(event.Source),
		Transition: transition,
		Multiplier: event.CurrentMultiplier,
		Reason:     event.TriggerReason,
		StartedAt:  event.StartedAt,
		EndedAt:    event.EndedAt,
		OccurredAt: time.Now(),
	}

	key := fmt.Sprintf("surge.event.%s", event.ZoneID)
	if err := p.publish(ctx, key, msg); err != nil {
		p.l.Error(ctx, "failed to publish surge event", err, "transition", transition)
	}

	if transition != scheduler.TransitionClosed && event.CurrentMultiplier >= p.alertThreshold() {
		alertKey := fmt.Sprintf("surge.alert.%s", event.ZoneID)
		if err := p.publish(ctx, alertKey, msg); err != nil {
			p.l.Error(ctx, "failed to publish surge alert", err)
		}
	}
}

func (p *SurgePublisher) publish(ctx context.Context, key string, msg SurgeEventMessage) error {
	const op = "SurgePublisher.publish"

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("%s: marshal failed: %w", op, err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = p.client.Channel.PublishWithContext(ctx,
		surgeExchange,
		key,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Timestamp:   time.Now(),
			Body:        body,
		},
	)
	metrics.RecordRabbitMQPublish("surge-engine", surgeExchange, err)
	if err != nil {
		return fmt.Errorf("%s: publish failed: %w", op, err)
	}
	return nil
}

// DeclareExchange makes sure the surge topic exchange exists before the
// first publish.
func (p *SurgePublisher) DeclareExchange(ctx context.Context) error {
	if err := p.client.EnsureConnection(ctx); err != nil {
		return err
	}
	return p.client.Channel.ExchangeDeclare(surgeExchange, "topic", true, false, false, false, nil)
}
