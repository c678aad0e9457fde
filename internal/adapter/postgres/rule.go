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

type RuleRepo struct {
	db *pgxpool.Pool
}

func NewRuleRepo(db *pgxpool.Pool) *RuleRepo {
	return &RuleRepo{db: db}
}

// ruleDoc is the JSONB payload of a rule row. Conditions, stepping and time
// windows evolve together, so they live in one document instead of a wide
// column set.
type ruleDoc struct {
	Conditions       models.TriggerConditions `json:"conditions"`
	Multiplier       models.PricingMultiplier `json:"multiplier"`
	TimeRestrictions []models.TimeRestriction `json:"time_restrictions,omitempty"`
	MaxDurationNs    *int64                   `json:"max_duration_ns,omitempty"`
	CooldownNs       *int64                   `json:"cooldown_ns,omitempty"`
}

func ruleToDoc(rule *models.SurgeRule) ([]byte, error) {
	doc := ruleDoc{
		Conditions:       rule.Conditions,
		Multiplier:       rule.Multiplier,
		TimeRestrictions: rule.TimeRestrictions,
	}
	if rule.MaxDuration != nil {
		ns := int64(*rule.MaxDuration)
		doc.MaxDurationNs = &ns
	}
	if rule.CooldownPeriod != nil {
		ns := int64(*rule.CooldownPeriod)
		doc.CooldownNs = &ns
	}
	return json.Marshal(doc)
}

func (r *RuleRepo) Create(ctx context.Context, rule *models.SurgeRule) (*models.SurgeRule, error) {
	q := TxorDB(ctx, r.db)

	doc, err := ruleToDoc(rule)
	if err != nil {
		return nil, fmt.Errorf("rule repo: Create (doc): %w", err)
	}

	query := `INSERT INTO surge_rules (zone_id, name, is_active, priority, definition)
              VALUES ($1, $2, $3, $4, $5)
              RETURNING id, created_at, updated_at;`

	err = q.QueryRow(ctx, query, rule.ZoneID, rule.Name, rule.IsActive, rule.Priority, doc).
		Scan(&rule.ID, &rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("rule repo: Create: %w", err)
	}

	return rule, nil
}

func (r *RuleRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.SurgeRule, error) {
	q := TxorDB(ctx, r.db)

	query := `SELECT id, zone_id, name, is_active, priority, definition, created_at, updated_at
              FROM surge_rules WHERE id = $1;`

	rule, err := scanRule(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrRuleNotFound
		}
		return nil, fmt.Errorf("rule repo: FindByID: %w", err)
	}
	return rule, nil
}

func (r *RuleRepo) ListByZone(ctx context.Context, zoneID uuid.UUID) ([]*models.SurgeRule, error) {
	q := TxorDB(ctx, r.db)

	query := `SELECT id, zone_id, name, is_active, priority, definition, created_at, updated_at
              FROM surge_rules WHERE zone_id = $1
              ORDER BY priority DESC, created_at ASC;`

	rows, err := q.Query(ctx, query, zoneID)
	if err != nil {
		return nil, fmt.Errorf("rule repo: ListByZone: %w", err)
	}
	defer rows.Close()

	return collectRules(rows)
}

func (r *RuleRepo) List(ctx context.Context, zoneID *uuid.UUID, filters models.Filters) ([]*models.SurgeRule, models.Metadata, error) {
	q := TxorDB(ctx, r.db)

	query := fmt.Sprintf(`
        SELECT count(*) OVER(), id, zone_id, name, is_active, priority, definition, created_at, updated_at
        FROM surge_rules
        WHERE ($1::uuid IS NULL OR zone_id = $1)
        ORDER BY %s %s, id ASC
        LIMIT $2 OFFSET $3;`, filters.SortColumn(), filters.SortDirection())

	rows, err := q.Query(ctx, query, zoneID, filters.Limit(), filters.Offset())
	if err != nil {
		return nil, models.Metadata{}, fmt.Errorf("rule repo: List: %w", err)
	}
	defer rows.Close()

	var (
		rules        []*models.SurgeRule
		totalRecords int
	)

	for rows.Next() {
		var (
			rule models.SurgeRule
			doc  []byte
		)
		err := rows.Scan(&totalRecords, &rule.ID, &rule.ZoneID, &rule.Name, &rule.IsActive,
			&rule.Priority, &doc, &rule.CreatedAt, &rule.UpdatedAt)
		if err != nil {
			return nil, models.Metadata{}, fmt.Errorf("rule repo: List (scan): %w", err)
		}
		if err := ruleFromDoc(&rule, doc); err != nil {
			return nil, models.Metadata{}, fmt.Errorf("rule repo: List (doc): %w", err)
		}
		rules = append(rules, &rule)
	}
	if err := rows.Err(); err != nil {
		return nil, models.Metadata{}, fmt.Errorf("rule repo: List (rows): %w", err)
	}

	metadata := models.CalculateMetadata(totalRecords, filters.Page, filters.PageSize)
	return rules, metadata, nil
}

func (r *RuleRepo) Update(ctx context.Context, rule *models.SurgeRule) error {
	q := TxorDB(ctx, r.db)

	doc, err := ruleToDoc(rule)
	if err != nil {
		return fmt.Errorf("rule repo: Update (doc): %w", err)
	}

	query := `UPDATE surge_rules
              SET name = $2, is_active = $3, priority = $4, definition = $5, updated_at = NOW()
              WHERE id = $1
              RETURNING updated_at;`

	err = q.QueryRow(ctx, query, rule.ID, rule.Name, rule.IsActive, rule.Priority, doc).Scan(&rule.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.ErrRuleNotFound
		}
		return fmt.Errorf("rule repo: Update: %w", err)
	}
	return nil
}

func (r *RuleRepo) Delete(ctx context.Context, id uuid.UUID) error {
	q := TxorDB(ctx, r.db)

	tag, err := q.Exec(ctx, `DELETE FROM surge_rules WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("rule repo: Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrRuleNotFound
	}
	return nil
}

func scanRule(row pgx.Row) (*models.SurgeRule, error) {
	var (
		rule models.SurgeRule
		doc  []byte
	)
	err := row.Scan(&rule.ID, &rule.ZoneID, &rule.Name, &rule.IsActive,
		&rule.Priority, &doc, &rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := ruleFromDoc(&rule, doc); err != nil {
		return nil, err
	}
	return &rule, nil
}

func collectRules(rows pgx.Rows) ([]*models.SurgeRule, error) {
	var rules []*models.SurgeRule
	for rows.Next() {
		var (
			rule models.SurgeRule
			doc  []byte
		)
		err := rows.Scan(&rule.ID, &rule.ZoneID, &rule.Name, &rule.IsActive,
			&rule.Priority, &doc, &rule.CreatedAt, &rule.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("rule repo: scan: %w", err)
		}
		if err := ruleFromDoc(&rule, doc); err != nil {
			return nil, fmt.Errorf("rule repo: doc: %w", err)
		}
		rules = append(rules, &rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rule repo: rows: %w", err)
	}
	return rules, nil
}

func ruleFromDoc(rule *models.SurgeRule, raw []byte) error {
	var doc ruleDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	rule.Conditions = doc.Conditions
	rule.Multiplier = doc.Multiplier
	rule.TimeRestrictions = doc.TimeRestrictions
	if doc.MaxDurationNs != nil {
		d := time.Duration(*doc.MaxDurationNs)
		rule.MaxDuration = &d
	}
	if doc.CooldownNs != nil {
		d := time.Duration(*doc.CooldownNs)
		rule.CooldownPeriod = &d
	}
	return nil
}
