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

// RecommendationRepository persists triage recommendations.
type RecommendationRepository struct {
	db     DBTX
	logger *zap.Logger
}

// NewRecommendationRepository creates a recommendation repository.
func NewRecommendationRepository(db *sql.DB, logger *zap.Logger) *RecommendationRepository {
	return &RecommendationRepository{
		db:     db,
		logger: logger,
	}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *RecommendationRepository) WithTx(tx *sql.Tx) *RecommendationRepository {
	return &RecommendationRepository{
		db:     tx,
		logger: r.logger,
	}
}

// RecommendationFilters are the predicates for recommendation queries.
type RecommendationFilters struct {
	AlarmID     *string
	Priority    *models.RecommendationPriority
	Action      *models.RecommendationAction
	IsAutomated *bool
}

const recommendationColumns = `
		recommendation_id,
		alarm_id,
		title,
		description,
		priority,
		action,
		rationale,
		snooze_until,
		action_items,
		estimated_downtime_hours,
		is_automated,
		created_at`

func scanRecommendation(row rowScanner) (*models.Recommendation, error) {
	var rec models.Recommendation
	var action, rationale sql.NullString
	var snoozeUntil sql.NullTime
	var downtime sql.NullFloat64
	var actionItems []byte

	err := row.Scan(
		&rec.RecommendationID,
		&rec.AlarmID,
		&rec.Title,
		&rec.Description,
		&rec.Priority,
		&action,
		&rationale,
		&snoozeUntil,
		&actionItems,
		&downtime,
		&rec.IsAutomated,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if action.Valid {
		a := models.RecommendationAction(action.String)
		rec.Action = &a
	}
	if rationale.Valid {
		rec.Rationale = &rationale.String
	}
	if snoozeUntil.Valid {
		rec.SnoozeUntil = &snoozeUntil.Time
	}
	if downtime.Valid {
		rec.EstimatedDowntimeHours = &downtime.Float64
	}
	if len(actionItems) > 0 {
		rec.ActionItems = string(actionItems)
	} else {
		rec.ActionItems = "[]"
	}

	return &rec, nil
}

// ============================================
// CRUD operations
// ============================================

// GetRecommendation fetches a single recommendation by id.
func (r *RecommendationRepository) GetRecommendation(ctx context.Context, recommendationID string) (*models.Recommendation, error) {
	if recommendationID == "" {
		return nil, fmt.Errorf("recommendation_id is required")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM recommendations
		WHERE recommendation_id = $1
	`, recommendationColumns)

	rec, err := scanRecommendation(r.db.QueryRowContext(ctx, query, recommendationID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("recommendation not found: recommendation_id=%s", recommendationID)
		}
		return nil, fmt.Errorf("failed to get recommendation: %w", err)
	}

	return rec, nil
}

// CreateRecommendation inserts a new recommendation row.
func (r *RecommendationRepository) CreateRecommendation(ctx context.Context, rec *models.Recommendation) error {
	if rec == nil {
		return fmt.Errorf("recommendation is required")
	}
	if rec.RecommendationID == "" {
		return fmt.Errorf("recommendation_id is required")
	}
	if rec.AlarmID == "" {
		return fmt.Errorf("alarm_id is required")
	}

	query := `
		INSERT INTO recommendations (
			recommendation_id,
			alarm_id,
			title,
			description,
			priority,
			action,
			rationale,
			snooze_until,
			action_items,
			estimated_downtime_hours,
			is_automated,
			created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)
	`

	_, err := r.db.ExecContext(ctx,
		query,
		rec.RecommendationID,
		rec.AlarmID,
		rec.Title,
		rec.Description,
		rec.Priority,
		rec.Action,
		rec.Rationale,
		rec.SnoozeUntil,
		rec.ActionItems,
		rec.EstimatedDowntimeHours,
		rec.IsAutomated,
		rec.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create recommendation: %w", err)
	}

	return nil
}

// ============================================
// Snooze reconciliation
// ============================================

// ListExpiredSnoozed finds recommendations whose deferral window has elapsed:
// action = snooze, snooze_until non-null and snooze_until <= now.
func (r *RecommendationRepository) ListExpiredSnoozed(ctx context.Context, now time.Time) ([]*models.Recommendation, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM recommendations
		WHERE action = $1
		  AND snooze_until IS NOT NULL
		  AND snooze_until <= $2
		ORDER BY snooze_until ASC
	`, recommendationColumns)

	rows, err := r.db.QueryContext(ctx, query, models.ActionSnooze, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query expired snoozed recommendations: %w", err)
	}
	defer rows.Close()

	recs := []*models.Recommendation{}
	for rows.Next() {
		rec, err := scanRecommendation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recommendation: %w", err)
		}
		recs = append(recs, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate recommendations: %w", err)
	}

	return recs, nil
}

// ClearSnooze nulls out snooze_until, marking the recommendation as
// superseded by a newer one. The row itself is kept.
func (r *RecommendationRepository) ClearSnooze(ctx context.Context, recommendationID string) error {
	if recommendationID == "" {
		return fmt.Errorf("recommendation_id is required")
	}

	query := `
		UPDATE recommendations
		SET snooze_until = NULL
		WHERE recommendation_id = $1
	`

	result, err := r.db.ExecContext(ctx, query, recommendationID)
	if err != nil {
		return fmt.Errorf("failed to clear snooze: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("recommendation not found: recommendation_id=%s", recommendationID)
	}

	return nil
}

// ============================================
// List queries
// ============================================

// ListByAlarm returns all recommendations for one alarm, newest first.
func (r *RecommendationRepository) ListByAlarm(ctx context.Context, alarmID string) ([]*models.Recommendation, error) {
	if alarmID == "" {
		return nil, fmt.Errorf("alarm_id is required")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM recommendations
		WHERE alarm_id = $1
		ORDER BY created_at DESC
	`, recommendationColumns)

	rows, err := r.db.QueryContext(ctx, query, alarmID)
	if err != nil {
		return nil, fmt.Errorf("failed to query recommendations: %w", err)
	}
	defer rows.Close()

	recs := []*models.Recommendation{}
	for rows.Next() {
		rec, err := scanRecommendation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recommendation: %w", err)
		}
		recs = append(recs, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate recommendations: %w", err)
	}

	return recs, nil
}

// ListRecommendations queries recommendations with filters and pagination,
// urgent first, then newest.
func (r *RecommendationRepository) ListRecommendations(ctx context.Context, filters RecommendationFilters, limit, offset int) ([]*models.Recommendation, int, error) {
	args := []interface{}{}
	argN := 1
	where := []string{}

	if filters.AlarmID != nil {
		where = append(where, fmt.Sprintf("alarm_id = $%d", argN))
		args = append(args, *filters.AlarmID)
		argN++
	}
	if filters.Priority != nil {
		where = append(where, fmt.Sprintf("priority = $%d", argN))
		args = append(args, *filters.Priority)
		argN++
	}
	if filters.Action != nil {
		where = append(where, fmt.Sprintf("action = $%d", argN))
		args = append(args, *filters.Action)
		argN++
	}
	if filters.IsAutomated != nil {
		where = append(where, fmt.Sprintf("is_automated = $%d", argN))
		args = append(args, *filters.IsAutomated)
		argN++
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	queryCount := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM recommendations
		%s
	`, whereClause)

	var total int
	if err := r.db.QueryRowContext(ctx, queryCount, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count recommendations: %w", err)
	}

	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM recommendations
		%s
		ORDER BY CASE priority
			WHEN 'urgent' THEN 0
			WHEN 'high' THEN 1
			WHEN 'medium' THEN 2
			ELSE 3
		END, created_at DESC
		LIMIT $%d OFFSET $%d
	`, recommendationColumns, whereClause, len(args)+1, len(args)+2)

	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query recommendations: %w", err)
	}
	defer rows.Close()

	recs := []*models.Recommendation{}
	for rows.Next() {
		rec, err := scanRecommendation(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan recommendation: %w", err)
		}
		recs = append(recs, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate recommendations: %w", err)
	}

	return recs, total, nil
}
