package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"windfleet-triage/internal/models"

	"go.uber.org/zap"
)

// AlarmRepository persists fault events (alarms table).
type AlarmRepository struct {
	db     DBTX
	logger *zap.Logger
}

// NewAlarmRepository creates an alarm repository.
func NewAlarmRepository(db *sql.DB, logger *zap.Logger) *AlarmRepository {
	return &AlarmRepository{
		db:     db,
		logger: logger,
	}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *AlarmRepository) WithTx(tx *sql.Tx) *AlarmRepository {
	return &AlarmRepository{
		db:     tx,
		logger: r.logger,
	}
}

// AlarmFilters are the equality/range predicates for alarm queries.
type AlarmFilters struct {
	TurbineID *string
	AlarmCode *string
	Severity  *models.AlarmSeverity
	Status    *models.AlarmStatus

	// occurred_at range
	StartTime *time.Time
	EndTime   *time.Time
}

const alarmColumns = `
		alarm_id,
		turbine_id,
		alarm_code,
		description,
		severity,
		status,
		occurred_at,
		acknowledged_at,
		resolved_at,
		resettable,
		temperature_c,
		note,
		metadata,
		created_at,
		updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAlarm(row rowScanner) (*models.Alarm, error) {
	var alarm models.Alarm
	var acknowledgedAt, resolvedAt sql.NullTime
	var temperatureC sql.NullFloat64
	var note sql.NullString
	var metadata []byte

	err := row.Scan(
		&alarm.AlarmID,
		&alarm.TurbineID,
		&alarm.AlarmCode,
		&alarm.Description,
		&alarm.Severity,
		&alarm.Status,
		&alarm.OccurredAt,
		&acknowledgedAt,
		&resolvedAt,
		&alarm.Resettable,
		&temperatureC,
		&note,
		&metadata,
		&alarm.CreatedAt,
		&alarm.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if acknowledgedAt.Valid {
		alarm.AcknowledgedAt = &acknowledgedAt.Time
	}
	if resolvedAt.Valid {
		alarm.ResolvedAt = &resolvedAt.Time
	}
	if temperatureC.Valid {
		alarm.TemperatureC = &temperatureC.Float64
	}
	if note.Valid {
		alarm.Note = &note.String
	}
	if len(metadata) > 0 {
		alarm.Metadata = string(metadata)
	} else {
		alarm.Metadata = "{}"
	}

	return &alarm, nil
}

// ============================================
// CRUD operations
// ============================================

// GetAlarm fetches a single alarm by id.
func (r *AlarmRepository) GetAlarm(ctx context.Context, alarmID string) (*models.Alarm, error) {
	if alarmID == "" {
		return nil, fmt.Errorf("alarm_id is required")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM alarms
		WHERE alarm_id = $1
	`, alarmColumns)

	alarm, err := scanAlarm(r.db.QueryRowContext(ctx, query, alarmID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("alarm not found: alarm_id=%s", alarmID)
		}
		return nil, fmt.Errorf("failed to get alarm: %w", err)
	}

	return alarm, nil
}

// CreateAlarm inserts a new alarm row.
func (r *AlarmRepository) CreateAlarm(ctx context.Context, alarm *models.Alarm) error {
	if alarm == nil {
		return fmt.Errorf("alarm is required")
	}
	if alarm.AlarmID == "" {
		return fmt.Errorf("alarm_id is required")
	}
	if alarm.TurbineID == "" {
		return fmt.Errorf("turbine_id is required")
	}

	query := `
		INSERT INTO alarms (
			alarm_id,
			turbine_id,
			alarm_code,
			description,
			severity,
			status,
			occurred_at,
			acknowledged_at,
			resolved_at,
			resettable,
			temperature_c,
			note,
			metadata,
			created_at,
			updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		)
	`

	_, err := r.db.ExecContext(ctx,
		query,
		alarm.AlarmID,
		alarm.TurbineID,
		alarm.AlarmCode,
		alarm.Description,
		alarm.Severity,
		alarm.Status,
		alarm.OccurredAt,
		alarm.AcknowledgedAt,
		alarm.ResolvedAt,
		alarm.Resettable,
		alarm.TemperatureC,
		alarm.Note,
		alarm.Metadata,
		alarm.CreatedAt,
		alarm.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create alarm: %w", err)
	}

	return nil
}

// ============================================
// Lifecycle transitions (one-directional)
// ============================================

// AcknowledgeAlarm moves an active alarm to acknowledged.
func (r *AlarmRepository) AcknowledgeAlarm(ctx context.Context, alarmID string, at time.Time) error {
	if alarmID == "" {
		return fmt.Errorf("alarm_id is required")
	}

	query := `
		UPDATE alarms
		SET status = $1,
		    acknowledged_at = $2,
		    updated_at = CURRENT_TIMESTAMP
		WHERE alarm_id = $3
		  AND status = $4
	`

	result, err := r.db.ExecContext(ctx, query,
		models.AlarmStatusAcknowledged, at, alarmID, models.AlarmStatusActive)
	if err != nil {
		return fmt.Errorf("failed to acknowledge alarm: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("alarm not found or not active: alarm_id=%s", alarmID)
	}

	return nil
}

// ResolveAlarm moves an active or acknowledged alarm to resolved.
func (r *AlarmRepository) ResolveAlarm(ctx context.Context, alarmID string, at time.Time) error {
	if alarmID == "" {
		return fmt.Errorf("alarm_id is required")
	}

	query := `
		UPDATE alarms
		SET status = $1,
		    resolved_at = $2,
		    updated_at = CURRENT_TIMESTAMP
		WHERE alarm_id = $3
		  AND status IN ($4, $5)
	`

	result, err := r.db.ExecContext(ctx, query,
		models.AlarmStatusResolved, at, alarmID,
		models.AlarmStatusActive, models.AlarmStatusAcknowledged)
	if err != nil {
		return fmt.Errorf("failed to resolve alarm: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("alarm not found or already resolved: alarm_id=%s", alarmID)
	}

	return nil
}

// ============================================
// Temporal correlation queries
// ============================================

// HasPriorOccurrence reports whether the same fault code occurred on the same
// turbine within [from, until), excluding the alarm itself. Anchored at the
// event's own occurred_at, never wall clock.
func (r *AlarmRepository) HasPriorOccurrence(ctx context.Context, turbineID, alarmCode, excludeAlarmID string, from, until time.Time) (bool, error) {
	if turbineID == "" {
		return false, fmt.Errorf("turbine_id is required")
	}
	if alarmCode == "" {
		return false, fmt.Errorf("alarm_code is required")
	}

	query := `
		SELECT COUNT(*)
		FROM alarms
		WHERE turbine_id = $1
		  AND alarm_code = $2
		  AND occurred_at >= $3
		  AND occurred_at < $4
		  AND alarm_id <> $5
	`

	var count int
	err := r.db.QueryRowContext(ctx, query, turbineID, alarmCode, from, until, excludeAlarmID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to count prior occurrences: %w", err)
	}

	return count > 0, nil
}

// CountOccurrences counts occurrences of the same fault code on the same
// turbine with occurred_at >= since, inclusive of the anchoring event.
func (r *AlarmRepository) CountOccurrences(ctx context.Context, turbineID, alarmCode string, since time.Time) (int, error) {
	if turbineID == "" {
		return 0, fmt.Errorf("turbine_id is required")
	}
	if alarmCode == "" {
		return 0, fmt.Errorf("alarm_code is required")
	}

	query := `
		SELECT COUNT(*)
		FROM alarms
		WHERE turbine_id = $1
		  AND alarm_code = $2
		  AND occurred_at >= $3
	`

	var count int
	err := r.db.QueryRowContext(ctx, query, turbineID, alarmCode, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count occurrences: %w", err)
	}

	return count, nil
}

// ============================================
// List queries
// ============================================

func (r *AlarmRepository) buildWhereClause(filters AlarmFilters, args *[]interface{}, argN *int) []string {
	where := []string{}

	if filters.TurbineID != nil {
		where = append(where, fmt.Sprintf("turbine_id = $%d", *argN))
		*args = append(*args, *filters.TurbineID)
		*argN++
	}
	if filters.AlarmCode != nil {
		where = append(where, fmt.Sprintf("alarm_code = $%d", *argN))
		*args = append(*args, *filters.AlarmCode)
		*argN++
	}
	if filters.Severity != nil {
		where = append(where, fmt.Sprintf("severity = $%d", *argN))
		*args = append(*args, *filters.Severity)
		*argN++
	}
	if filters.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", *argN))
		*args = append(*args, *filters.Status)
		*argN++
	}
	if filters.StartTime != nil {
		where = append(where, fmt.Sprintf("occurred_at >= $%d", *argN))
		*args = append(*args, *filters.StartTime)
		*argN++
	}
	if filters.EndTime != nil {
		where = append(where, fmt.Sprintf("occurred_at <= $%d", *argN))
		*args = append(*args, *filters.EndTime)
		*argN++
	}

	return where
}

// ListAlarms queries alarms with filters and pagination, newest first.
func (r *AlarmRepository) ListAlarms(ctx context.Context, filters AlarmFilters, limit, offset int) ([]*models.Alarm, int, error) {
	args := []interface{}{}
	argN := 1
	where := r.buildWhereClause(filters, &args, &argN)

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	queryCount := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM alarms
		%s
	`, whereClause)

	var total int
	if err := r.db.QueryRowContext(ctx, queryCount, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count alarms: %w", err)
	}

	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM alarms
		%s
		ORDER BY occurred_at DESC
		LIMIT $%d OFFSET $%d
	`, alarmColumns, whereClause, len(args)+1, len(args)+2)

	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query alarms: %w", err)
	}
	defer rows.Close()

	alarms := []*models.Alarm{}
	for rows.Next() {
		alarm, err := scanAlarm(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan alarm: %w", err)
		}
		alarms = append(alarms, alarm)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate alarms: %w", err)
	}

	return alarms, total, nil
}
