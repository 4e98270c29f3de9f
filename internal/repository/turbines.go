package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"windfleet-triage/internal/models"

	"go.uber.org/zap"
)

// TurbineRepository persists turbine records and their cached state.
type TurbineRepository struct {
	db     DBTX
	logger *zap.Logger
}

// NewTurbineRepository creates a turbine repository.
func NewTurbineRepository(db *sql.DB, logger *zap.Logger) *TurbineRepository {
	return &TurbineRepository{
		db:     db,
		logger: logger,
	}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *TurbineRepository) WithTx(tx *sql.Tx) *TurbineRepository {
	return &TurbineRepository{
		db:     tx,
		logger: r.logger,
	}
}

const turbineColumns = `
		turbine_id,
		name,
		location,
		model,
		capacity_kw,
		is_active,
		state,
		last_state_change,
		created_at,
		updated_at`

func scanTurbine(row rowScanner) (*models.Turbine, error) {
	var turbine models.Turbine
	var lastStateChange sql.NullTime

	err := row.Scan(
		&turbine.TurbineID,
		&turbine.Name,
		&turbine.Location,
		&turbine.Model,
		&turbine.CapacityKW,
		&turbine.IsActive,
		&turbine.State,
		&lastStateChange,
		&turbine.CreatedAt,
		&turbine.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastStateChange.Valid {
		turbine.LastStateChange = &lastStateChange.Time
	}

	return &turbine, nil
}

// GetTurbine fetches a single turbine by id.
func (r *TurbineRepository) GetTurbine(ctx context.Context, turbineID string) (*models.Turbine, error) {
	if turbineID == "" {
		return nil, fmt.Errorf("turbine_id is required")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM turbines
		WHERE turbine_id = $1
	`, turbineColumns)

	turbine, err := scanTurbine(r.db.QueryRowContext(ctx, query, turbineID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("turbine not found: turbine_id=%s", turbineID)
		}
		return nil, fmt.Errorf("failed to get turbine: %w", err)
	}

	return turbine, nil
}

// CreateTurbine inserts a new turbine row.
func (r *TurbineRepository) CreateTurbine(ctx context.Context, turbine *models.Turbine) error {
	if turbine == nil {
		return fmt.Errorf("turbine is required")
	}
	if turbine.TurbineID == "" {
		return fmt.Errorf("turbine_id is required")
	}
	if turbine.Name == "" {
		return fmt.Errorf("name is required")
	}

	query := `
		INSERT INTO turbines (
			turbine_id,
			name,
			location,
			model,
			capacity_kw,
			is_active,
			state,
			last_state_change,
			created_at,
			updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
	`

	_, err := r.db.ExecContext(ctx,
		query,
		turbine.TurbineID,
		turbine.Name,
		turbine.Location,
		turbine.Model,
		turbine.CapacityKW,
		turbine.IsActive,
		turbine.State,
		turbine.LastStateChange,
		turbine.CreatedAt,
		turbine.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create turbine: %w", err)
	}

	return nil
}

// UpdateTurbineState writes the cached operational state, stamping the
// change time. Callers are expected to elide no-op transitions.
func (r *TurbineRepository) UpdateTurbineState(ctx context.Context, turbineID string, state models.TurbineState, at time.Time) error {
	if turbineID == "" {
		return fmt.Errorf("turbine_id is required")
	}

	query := `
		UPDATE turbines
		SET state = $1,
		    last_state_change = $2,
		    updated_at = CURRENT_TIMESTAMP
		WHERE turbine_id = $3
	`

	result, err := r.db.ExecContext(ctx, query, state, at, turbineID)
	if err != nil {
		return fmt.Errorf("failed to update turbine state: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("turbine not found: turbine_id=%s", turbineID)
	}

	return nil
}

// ListTurbines returns all turbines, active first, then by name.
func (r *TurbineRepository) ListTurbines(ctx context.Context) ([]*models.Turbine, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM turbines
		ORDER BY is_active DESC, name ASC
	`, turbineColumns)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query turbines: %w", err)
	}
	defer rows.Close()

	turbines := []*models.Turbine{}
	for rows.Next() {
		turbine, err := scanTurbine(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan turbine: %w", err)
		}
		turbines = append(turbines, turbine)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate turbines: %w", err)
	}

	return turbines, nil
}
