package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nomadride/surge-engine/internal/domain/models"
	"github.com/nomadride/surge-engine/internal/domain/types"
)

// SettingsRepo keeps pricing settings as versioned snapshots; Get returns
// the newest one.
type SettingsRepo struct {
	db *pgxpool.Pool
}

func NewSettingsRepo(db *pgxpool.Pool) *SettingsRepo {
	return &SettingsRepo{db: db}
}

func (r *SettingsRepo) Get(ctx context.Context) (*models.PricingSettings, error) {
	q := TxorDB(ctx, r.db)

	query := `SELECT snapshot FROM pricing_settings ORDER BY version DESC LIMIT 1;`

	var raw []byte
	if err := q.QueryRow(ctx, query).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("settings repo: Get: %w", err)
	}

	var settings models.PricingSettings
	if err := json.Unmarshal(raw, &settings); err != nil {
		return nil, fmt.Errorf("settings repo: Get (snapshot): %w", err)
	}
	return &settings, nil
}

func (r *SettingsRepo) Save(ctx context.Context, settings *models.PricingSettings) error {
	q := TxorDB(ctx, r.db)

	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("settings repo: Save (snapshot): %w", err)
	}

	query := `INSERT INTO pricing_settings (version, snapshot) VALUES ($1, $2);`

	if _, err := q.Exec(ctx, query, settings.Version, raw); err != nil {
		return fmt.Errorf("settings repo: Save: %w", err)
	}
	return nil
}
