package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nomadride/surge-engine/internal/domain/models"
	"github.com/nomadride/surge-engine/internal/domain/types"
)

type ZoneRepo struct {
	db *pgxpool.Pool
}

func NewZoneRepo(db *pgxpool.Pool) *ZoneRepo {
	return &ZoneRepo{db: db}
}

func (r *ZoneRepo) Create(ctx context.Context, zone *models.Zone) (*models.Zone, error) {
	q := TxorDB(ctx, r.db)

	boundary, err := json.Marshal(zone.Boundary)
	if err != nil {
		return nil, fmt.Errorf("zone repo: Create (boundary): %w", err)
	}

	query := `INSERT INTO zones (name, boundary, is_active)
              VALUES ($1, $2, $3)
              RETURNING id, created_at, updated_at;`

	err = q.QueryRow(ctx, query, zone.Name, boundary, zone.IsActive).
		Scan(&zone.ID, &zone.CreatedAt, &zone.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, types.ErrZoneAlreadyExists
		}
		return nil, fmt.Errorf("zone repo: Create: %w", err)
	}

	return zone, nil
}

func (r *ZoneRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Zone, error) {
	q := TxorDB(ctx, r.db)

	query := `SELECT id, name, boundary, is_active, created_at, updated_at
              FROM zones WHERE id = $1;`

	zone, err := scanZone(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrZoneNotFound
		}
		return nil, fmt.Errorf("zone repo: FindByID: %w", err)
	}
	return zone, nil
}

func (r *ZoneRepo) List(ctx context.Context, filters models.Filters) ([]*models.Zone, models.Metadata, error) {
	q := TxorDB(ctx, r.db)

	query := fmt.Sprintf(`
        SELECT count(*) OVER(), id, name, boundary, is_active, created_at, updated_at
        FROM zones
        ORDER BY %s %s, id ASC
        LIMIT $1 OFFSET $2;`, filters.SortColumn(), filters.SortDirection())

	rows, err := q.Query(ctx, query, filters.Limit(), filters.Offset())
	if err != nil {
		return nil, models.Metadata{}, fmt.Errorf("zone repo: List: %w", err)
	}
	defer rows.Close()

	var (
		zones        []*models.Zone
		totalRecords int
	)

	for rows.Next() {
		var (
			zone     models.Zone
			boundary []byte
		)
		err := rows.Scan(&totalRecords, &zone.ID, &zone.Name, &boundary, &zone.IsActive, &zone.CreatedAt, &zone.UpdatedAt)
		if err != nil {
			return nil, models.Metadata{}, fmt.Errorf("zone repo: List (scan): %w", err)
		}
		if err := json.Unmarshal(boundary, &zone.Boundary); err != nil {
			return nil, models.Metadata{}, fmt.Errorf("zone repo: List (boundary): %w", err)
		}
		zones = append(zones, &zone)
	}
	if err := rows.Err(); err != nil {
		return nil, models.Metadata{}, fmt.Errorf("zone repo: List (rows): %w", err)
	}

	metadata := models.CalculateMetadata(totalRecords, filters.Page, filters.PageSize)
	return zones, metadata, nil
}

func (r *ZoneRepo) ListAll(ctx context.Context) ([]*models.Zone, error) {
	q := TxorDB(ctx, r.db)

	query := `SELECT id, name, boundary, is_active, created_at, updated_at
              FROM zones ORDER BY created_at ASC;`

	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("zone repo: ListAll: %w", err)
	}
	defer rows.Close()

	var zones []*models.Zone
	for rows.Next() {
		var (
			zone     models.Zone
			boundary []byte
		)
		err := rows.Scan(&zone.ID, &zone.Name, &boundary, &zone.IsActive, &zone.CreatedAt, &zone.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("zone repo: ListAll (scan): %w", err)
		}
		if err := json.Unmarshal(boundary, &zone.Boundary); err != nil {
			return nil, fmt.Errorf("zone repo: ListAll (boundary): %w", err)
		}
		zones = append(zones, &zone)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("zone repo: ListAll (rows): %w", err)
	}

	return zones, nil
}

func (r *ZoneRepo) Update(ctx context.Context, zone *models.Zone) error {
	q := TxorDB(ctx, r.db)

	boundary, err := json.Marshal(zone.Boundary)
	if err != nil {
		return fmt.Errorf("zone repo: Update (boundary): %w", err)
	}

	query := `UPDATE zones
              SET name = $2, boundary = $3, is_active = $4, updated_at = NOW()
              WHERE id = $1
              RETURNING updated_at;`

	err = q.QueryRow(ctx, query, zone.ID, zone.Name, boundary, zone.IsActive).Scan(&zone.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.ErrZoneNotFound
		}
		return fmt.Errorf("zone repo: Update: %w", err)
	}
	return nil
}

func (r *ZoneRepo) Delete(ctx context.Context, id uuid.UUID) error {
	q := TxorDB(ctx, r.db)

	tag, err := q.Exec(ctx, `DELETE FROM zones WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("zone repo: Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrZoneNotFound
	}
	return nil
}

func scanZone(row pgx.Row) (*models.Zone, error) {
	var (
		zone     models.Zone
		boundary []byte
	)
	err := row.Scan(&zone.ID, &zone.Name, &boundary, &zone.IsActive, &zone.CreatedAt, &zone.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(boundary, &zone.Boundary); err != nil {
		return nil, err
	}
	return &zone, nil
}
