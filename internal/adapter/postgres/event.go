package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nomadride/surge-engine/internal/domain/models"
	"github.com/nomadride/surge-engine/internal/domain/types"
)

type EventRepo struct {
	db *pgxpool.Pool
}

func NewEventRepo(db *pgxpool.Pool) *EventRepo {
	return &EventRepo{db: db}
}

// Create inserts an event with the ID the engine already assigned, so the
// in-memory event and the row stay the same identity across write retries.
func (r *EventRepo) Create(ctx context.Context, event *models.SurgeEvent) (*models.SurgeEvent, error) {
	q := TxorDB(ctx, r.db)

	tally, err := json.Marshal(event.Tally)
	if err != nil {
		return nil, fmt.Errorf("event repo: Create (tally): %w", err)
	}

	query := `INSERT INTO surge_events
                  (id, zone_id, rule_id, source, started_at, current_multiplier,
                   max_multiplier_reached, is_active, trigger_reason, tally)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
              ON CONFLICT (id) DO NOTHING
              RETURNING created_at, updated_at;`

	err = q.QueryRow(ctx, query,
		event.ID, event.ZoneID, event.RuleID, event.Source, event.StartedAt,
		event.CurrentMultiplier, event.MaxMultiplierReached, event.IsActive,
		event.TriggerReason, tally,
	).Scan(&event.CreatedAt, &event.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Retried insert after a lost ack. The row exists already.
			return event, nil
		}
		return nil, fmt.Errorf("event repo: Create: %w", err)
	}

	return event, nil
}

func (r *EventRepo) Update(ctx context.Context, event *models.SurgeEvent) error {
	q := TxorDB(ctx, r.db)

	tally, err := json.Marshal(event.Tally)
	if err != nil {
		return fmt.Errorf("event repo: Update (tally): %w", err)
	}

	query := `UPDATE surge_events
              SET current_multiplier = $2, max_multiplier_reached = $3,
                  is_active = $4, ended_at = $5, tally = $6, updated_at = NOW()
              WHERE id = $1
              RETURNING updated_at;`

	err = q.QueryRow(ctx, query,
		event.ID, event.CurrentMultiplier, event.MaxMultiplierReached,
		event.IsActive, event.EndedAt, tally,
	).Scan(&event.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.ErrEventNotFound
		}
		return fmt.Errorf("event repo: Update: %w", err)
	}
	return nil
}

func (r *EventRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.SurgeEvent, error) {
	q := TxorDB(ctx, r.db)

	query := `SELECT id, zone_id, rule_id, source, started_at, ended_at,
                     current_multiplier, max_multiplier_reached, is_active,
                     trigger_reason, tally, created_at, updated_at
              FROM surge_events WHERE id = $1;`

	event, err := scanEvent(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrEventNotFound
		}
		return nil, fmt.Errorf("event repo: FindByID: %w", err)
	}
	return event, nil
}

func (r *EventRepo) List(ctx context.Context, zoneID *uuid.UUID, filters models.Filters) ([]*models.SurgeEvent, models.Metadata, error) {
	q := TxorDB(ctx, r.db)

	query := fmt.Sprintf(`
        SELECT count(*) OVER(), id, zone_id, rule_id, source, started_at, ended_at,
               current_multiplier, max_multiplier_reached, is_active,
               trigger_reason, tally, created_at, updated_at
        FROM surge_events
        WHERE ($1::uuid IS NULL OR zone_id = $1)
        ORDER BY %s %s, id ASC
        LIMIT $2 OFFSET $3;`, filters.SortColumn(), filters.SortDirection())

	rows, err := q.Query(ctx, query, zoneID, filters.Limit(), filters.Offset())
	if err != nil {
		return nil, models.Metadata{}, fmt.Errorf("event repo: List: %w", err)
	}
	defer rows.Close()

	var (
		events       []*models.SurgeEvent
		totalRecords int
	)

	for rows.Next() {
		var (
			event models.SurgeEvent
			tally []byte
		)
		err := rows.Scan(&totalRecords, &event.ID, &event.ZoneID, &event.RuleID, &event.Source,
			&event.StartedAt, &event.EndedAt, &event.CurrentMultiplier, &event.MaxMultiplierReached,
			&event.IsActive, &event.TriggerReason, &tally, &event.CreatedAt, &event.UpdatedAt)
		if err != nil {
			return nil, models.Metadata{}, fmt.Errorf("event repo: List (scan): %w", err)
		}
		if err := json.Unmarshal(tally, &event.Tally); err != nil {
			return nil, models.Metadata{}, fmt.Errorf("event repo: List (tally): %w", err)
		}
		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, models.Metadata{}, fmt.Errorf("event repo: List (rows): %w", err)
	}

	metadata := models.CalculateMetadata(totalRecords, filters.Page, filters.PageSize)
	return events, metadata, nil
}

// CloseDangling closes events left active by a previous run. Their
// controller state is gone, so they cannot be resumed.
func (r *EventRepo) CloseDangling(ctx context.Context, now time.Time) (int64, error) {
	q := TxorDB(ctx, r.db)

	query := `UPDATE surge_events
              SET is_active = FALSE, ended_at = $1, updated_at = NOW()
              WHERE is_active = TRUE;`

	tag, err := q.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("event repo: CloseDangling: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Analytics aggregates events that started within [from, to).
func (r *EventRepo) Analytics(ctx context.Context, from, to time.Time, zoneID *uuid.UUID) (*models.PricingAnalytics, error) {
	q := TxorDB(ctx, r.db)

	report := &models.PricingAnalytics{From: from, To: to}

	totalsQuery := `
        SELECT COUNT(*),
               COALESCE(AVG(max_multiplier_reached), 0),
               COALESCE(MAX(max_multiplier_reached), 0),
               COALESCE(SUM((tally->>'total_revenue')::numeric * (max_multiplier_reached - 1)), 0),
               COALESCE(SUM((tally->>'total_revenue')::numeric), 0)
        FROM surge_events
        WHERE started_at >= $1 AND started_at < $2
          AND ($3::uuid IS NULL OR zone_id = $3);`

	var totalRevenue float64
	err := q.QueryRow(ctx, totalsQuery, from, to, zoneID).Scan(
		&report.TotalEvents, &report.AvgMultiplier, &report.MaxMultiplier,
		&report.TotalSurgeRevenue, &totalRevenue,
	)
	if err != nil {
		return nil, fmt.Errorf("event repo: Analytics (totals): %w", err)
	}
	if totalRevenue > 0 {
		report.SurgeRevenueShare = report.TotalSurgeRevenue / totalRevenue
	}

	zonesQuery := `
        SELECT e.zone_id, COALESCE(z.name, ''), COUNT(*),
               COALESCE(AVG(e.max_multiplier_reached), 0),
               COALESCE(MAX(e.max_multiplier_reached), 0),
               COALESCE(SUM((e.tally->>'total_revenue')::numeric * (e.max_multiplier_reached - 1)), 0)
        FROM surge_events e
        LEFT JOIN zones z ON z.id = e.zone_id
        WHERE e.started_at >= $1 AND e.started_at < $2
          AND ($3::uuid IS NULL OR e.zone_id = $3)
        GROUP BY e.zone_id, z.name
        ORDER BY COUNT(*) DESC;`

	rows, err := q.Query(ctx, zonesQuery, from, to, zoneID)
	if err != nil {
		return nil, fmt.Errorf("event repo: Analytics (zones): %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var za models.ZoneAnalytics
		err := rows.Scan(&za.ZoneID, &za.ZoneName, &za.TotalEvents,
			&za.AvgMultiplier, &za.MaxMultiplier, &za.SurgeRevenue)
		if err != nil {
			return nil, fmt.Errorf("event repo: Analytics (zones scan): %w", err)
		}
		report.ByZone = append(report.ByZone, za)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("event repo: Analytics (zones rows): %w", err)
	}

	hoursQuery := `
        SELECT EXTRACT(HOUR FROM started_at)::int, COUNT(*),
               COALESCE(AVG(max_multiplier_reached), 0)
        FROM surge_events
        WHERE started_at >= $1 AND started_at < $2
          AND ($3::uuid IS NULL OR zone_id = $3)
        GROUP BY 1
        ORDER BY 1;`

	hourRows, err := q.Query(ctx, hoursQuery, from, to, zoneID)
	if err != nil {
		return nil, fmt.Errorf("event repo: Analytics (hours): %w", err)
	}
	defer hourRows.Close()

	for hourRows.Next() {
		var ha models.HourAnalytics
		if err := hourRows.Scan(&ha.Hour, &ha.TotalEvents, &ha.AvgMultiplier); err != nil {
			return nil, fmt.Errorf("event repo: Analytics (hours scan): %w", err)
		}
		report.ByHour = append(report.ByHour, ha)
	}
	if err := hourRows.Err(); err != nil {
		return nil, fmt.Errorf("event repo: Analytics (hours rows): %w", err)
	}

	return report, nil
}

func scanEvent(row pgx.Row) (*models.SurgeEvent, error) {
	var (
		event models.SurgeEvent
		tally []byte
	)
	err := row.Scan(&event.ID, &event.ZoneID, &event.RuleID, &event.Source,
		&event.StartedAt, &event.EndedAt, &event.CurrentMultiplier, &event.MaxMultiplierReached,
		&event.IsActive, &event.TriggerReason, &tally, &event.CreatedAt, &event.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(tally, &event.Tally); err != nil {
		return nil, err
	}
	return &event, nil
}
