package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nomadride/surge-engine/internal/domain/models"
	"github.com/nomadride/surge-engine/internal/domain/types"
	"github.com/nomadride/surge-engine/pkg/logger"
	wrap "github.com/nomadride/surge-engine/pkg/logger/wrapper"
)

const (
	writeAttempts = 3
	retryBaseWait = 100 * time.Millisecond
)

type EventRepo interface {
	Create(ctx context.Context, event *models.SurgeEvent) (*models.SurgeEvent, error)
	Update(ctx context.Context, event *models.SurgeEvent) error
}

// Ledger is the append-only record of surge events. Open events are mutated
// in place every tick; closed events are immutable. Durability lag is
// tolerated: if writes exhaust their retries the in-memory event remains
// authoritative and the next tick writes the full state again.
type Ledger struct {
	repo EventRepo
	log  logger.Logger
}

func New(repo EventRepo, log logger.Logger) *Ledger {
	return &Ledger{repo: repo, log: log}
}

// Open creates a new surge event for the zone, seeded with the snapshot the
// trigger was decided on. Open never fails: when the create write exhausts
// its retries the in-memory event is returned anyway and stays authoritative
// until the next RecordTick persists it.
func (l *Ledger) Open(ctx context.Context, zoneID uuid.UUID, ruleID string, source types.TriggerSource, reason string, multiplier float64, snap models.ZoneMetricsSnapshot, now time.Time) *models.SurgeEvent {
	event := &models.SurgeEvent{
		ID:                   uuid.New(),
		ZoneID:               zoneID,
		RuleID:               ruleID,
		Source:               source,
		StartedAt:            now,
		CurrentMultiplier:    multiplier,
		MaxMultiplierReached: multiplier,
		IsActive:             true,
		TriggerReason:        reason,
		Tally: models.EventTally{
			DemandCount:       int64(snap.PendingDemand),
			SupplyCount:       int64(snap.ActiveSupply),
			DemandSupplyRatio: snap.Ratio(),
			TotalBookings:     int64(snap.CompletedRides),
			TotalRevenue:      snap.EstimatedRevenue,
			AvgWaitTimeMin:    snap.AvgWaitTimeMin,
			Ticks:             1,
		},
	}

	ctx = wrap.WithEventID(ctx, event.ID.String())

	created, err := l.withRetry(ctx, "create_surge_event", func(ctx context.Context) (*models.SurgeEvent, error) {
		return l.repo.Create(ctx, event)
	})
	if err != nil {
		// Keep the in-memory event; the decision is made even if the write
		// lagged. The next RecordTick persists the full state.
		l.log.Warn(ctx, "surge event create not yet durable", "err", err.Error())
		return event
	}

	return created
}

// RecordTick folds a snapshot into the running tallies of an open event.
// Calling it on a closed event is a no-op.
func (l *Ledger) RecordTick(ctx context.Context, event *models.SurgeEvent, snap models.ZoneMetricsSnapshot, multiplier float64, now time.Time) error {
	if event == nil || !event.IsActive {
		return nil
	}

	t := &event.Tally
	t.DemandCount += int64(snap.PendingDemand)
	t.SupplyCount += int64(snap.ActiveSupply)
	t.DemandSupplyRatio = snap.Ratio()
	t.TotalBookings += int64(snap.CompletedRides)
	t.TotalRevenue += snap.EstimatedRevenue
	t.AvgWaitTimeMin = runningAverage(t.AvgWaitTimeMin, t.Ticks, snap.AvgWaitTimeMin)
	t.Ticks++

	event.CurrentMultiplier = multiplier
	if multiplier > event.MaxMultiplierReached {
		event.MaxMultiplierReached = multiplier
	}
	event.UpdatedAt = now

	return l.persist(ctx, event, "record_tick")
}

// Close ends an open event. Closing an already-closed event is a no-op, not
// an error.
func (l *Ledger) Close(ctx context.Context, event *models.SurgeEvent, endTime time.Time) error {
	if event == nil || !event.IsActive {
		return nil
	}

	event.IsActive = false
	event.EndedAt = &endTime
	event.UpdatedAt = endTime

	return l.persist(ctx, event, "close_surge_event")
}

func (l *Ledger) persist(ctx context.Context, event *models.SurgeEvent, op string) error {
	ctx = wrap.WithEventID(ctx, event.ID.String())

	_, err := l.withRetry(ctx, op, func(ctx context.Context) (*models.SurgeEvent, error) {
		return nil, l.repo.Update(ctx, event)
	})
	if err != nil {
		l.log.Warn(ctx, "surge event write not yet durable", "op", op, "err", err.Error())
		return fmt.Errorf("ledger: %s: %w", op, err)
	}
	return nil
}

// withRetry runs fn with a short capped backoff. The backoff stays well
// under any sane evaluation interval so a flaky store never blocks the tick
// loop past its cadence.
func (l *Ledger) withRetry(ctx context.Context, op string, fn func(ctx context.Context) (*models.SurgeEvent, error)) (*models.SurgeEvent, error) {
	var lastErr error
	for attempt := 1; attempt <= writeAttempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == writeAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * retryBaseWait):
		}
	}
	return nil, fmt.Errorf("%s failed after %d attempts: %w", op, writeAttempts, lastErr)
}

func runningAverage(avg float64, count int64, next float64) float64 {
	if count <= 0 {
		return next
	}
	return (avg*float64(count) + next) / float64(count+1)
}
