package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"windfleet-triage/internal/cache"
	"windfleet-triage/internal/config"
	"windfleet-triage/internal/engine"
	"windfleet-triage/internal/models"
	"windfleet-triage/internal/repository"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxPageSize = 500

// TriageService is the core triage pipeline: persist the fault event,
// decide an action, build a recommendation and project the turbine state,
// all in one transaction per inbound event.
type TriageService struct {
	db              *sql.DB
	alarms          *repository.AlarmRepository
	recommendations *repository.RecommendationRepository
	turbines        *repository.TurbineRepository
	recCache        *cache.RecommendationCache
	factory         *engine.RecommendationFactory
	logger          *zap.Logger
	now             func() time.Time
}

// NewTriageService wires the pipeline from its infrastructure pieces.
func NewTriageService(db *sql.DB, redisClient *redis.Client, cfg *config.Config, logger *zap.Logger) *TriageService {
	recCache := cache.NewRecommendationCache(
		redisClient,
		cfg.Triage.Cache.KeyPrefix,
		cfg.Triage.Cache.KeySuffix,
		time.Duration(cfg.Triage.Cache.TTL)*time.Second,
		logger,
	)
	snooze := time.Duration(cfg.Triage.SnoozeMinutes) * time.Minute
	return newTriageService(db, recCache, snooze, logger, time.Now)
}

func newTriageService(db *sql.DB, recCache *cache.RecommendationCache, snoozeDuration time.Duration, logger *zap.Logger, now func() time.Time) *TriageService {
	return &TriageService{
		db:              db,
		alarms:          repository.NewAlarmRepository(db, logger),
		recommendations: repository.NewRecommendationRepository(db, logger),
		turbines:        repository.NewTurbineRepository(db, logger),
		recCache:        recCache,
		factory:         engine.NewRecommendationFactory(snoozeDuration),
		logger:          logger,
		now:             now,
	}
}

// ============================================
// Ingestion
// ============================================

// IngestAlarm persists an inbound fault report, runs the decision chain
// and writes the recommendation and turbine state in one transaction. On
// any failure nothing is committed and the report can be retried.
func (s *TriageService) IngestAlarm(ctx context.Context, report *models.AlarmReport) (*models.Recommendation, error) {
	if report == nil {
		return nil, fmt.Errorf("report is required")
	}
	if report.TurbineID == "" {
		return nil, fmt.Errorf("turbine_id is required")
	}
	if report.AlarmCode == "" {
		return nil, fmt.Errorf("alarm_code is required")
	}

	now := s.now().UTC()
	alarm := s.alarmFromReport(report, now)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	alarmsTx := s.alarms.WithTx(tx)
	recsTx := s.recommendations.WithTx(tx)
	turbinesTx := s.turbines.WithTx(tx)

	if _, err := turbinesTx.GetTurbine(ctx, alarm.TurbineID); err != nil {
		return nil, err
	}

	if err := alarmsTx.CreateAlarm(ctx, alarm); err != nil {
		return nil, err
	}

	// The correlator runs on the transaction so the alarm just inserted
	// counts toward its own frequency windows.
	rec, err := s.decideAndPersist(ctx, alarmsTx, recsTx, turbinesTx, alarm, now)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit triage transaction: %w", err)
	}

	s.cacheLatest(ctx, alarm.TurbineID, rec)

	s.logger.Info("alarm triaged",
		zap.String("alarm_id", alarm.AlarmID),
		zap.String("turbine_id", alarm.TurbineID),
		zap.String("alarm_code", alarm.AlarmCode),
		zap.String("action", string(*rec.Action)),
		zap.String("priority", string(rec.Priority)))

	return rec, nil
}

func (s *TriageService) alarmFromReport(report *models.AlarmReport, now time.Time) *models.Alarm {
	alarm := &models.Alarm{
		AlarmID:     uuid.New().String(),
		TurbineID:   report.TurbineID,
		AlarmCode:   report.AlarmCode,
		Description: report.Description,
		Severity:    models.SeverityMedium,
		Status:      models.AlarmStatusActive,
		OccurredAt:  now,
		Resettable:  true,
		Metadata:    "{}",
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if report.Severity != nil {
		alarm.Severity = models.AlarmSeverity(*report.Severity)
	}
	if report.OccurredAt != nil {
		alarm.OccurredAt = report.OccurredAt.UTC()
	}
	if report.Resettable != nil {
		alarm.Resettable = *report.Resettable
	}
	if report.TemperatureC != nil {
		alarm.TemperatureC = report.TemperatureC
	}
	if report.Note != nil {
		alarm.Note = report.Note
	}
	if report.Metadata != nil {
		alarm.Metadata = *report.Metadata
	}

	return alarm
}

// decideAndPersist runs Decision Engine, Factory and State Machine for an
// alarm against the given (usually tx-bound) repositories.
func (s *TriageService) decideAndPersist(
	ctx context.Context,
	alarms *repository.AlarmRepository,
	recs *repository.RecommendationRepository,
	turbines *repository.TurbineRepository,
	alarm *models.Alarm,
	now time.Time,
) (*models.Recommendation, error) {
	decider := engine.NewDecisionEngine(engine.NewCorrelator(alarms), s.logger)
	action, rationale, err := decider.DecideAction(ctx, alarm)
	if err != nil {
		return nil, err
	}

	rec := s.factory.Build(alarm, action, rationale, now)
	if err := recs.CreateRecommendation(ctx, rec); err != nil {
		return nil, err
	}

	sm := engine.NewStateMachine(turbines, s.logger)
	if err := sm.Apply(ctx, alarm.TurbineID, action, now); err != nil {
		return nil, err
	}

	return rec, nil
}

// ReDecide re-runs the decision chain for an already-persisted alarm
// inside the given transaction. Used by the snooze reconciler.
func (s *TriageService) ReDecide(ctx context.Context, tx *sql.Tx, alarm *models.Alarm, now time.Time) (*models.Recommendation, error) {
	return s.decideAndPersist(ctx,
		s.alarms.WithTx(tx),
		s.recommendations.WithTx(tx),
		s.turbines.WithTx(tx),
		alarm, now)
}

func (s *TriageService) cacheLatest(ctx context.Context, turbineID string, rec *models.Recommendation) {
	if s.recCache == nil {
		return
	}
	if err := s.recCache.SetLatest(ctx, turbineID, rec); err != nil {
		// Cache is a read-side convenience; the database already has the row.
		s.logger.Warn("failed to cache recommendation",
			zap.String("turbine_id", turbineID),
			zap.Error(err))
	}
}

// ============================================
// Alarm lifecycle
// ============================================

// AcknowledgeAlarm moves an active alarm to acknowledged.
func (s *TriageService) AcknowledgeAlarm(ctx context.Context, alarmID string) (*models.Alarm, error) {
	if err := s.alarms.AcknowledgeAlarm(ctx, alarmID, s.now().UTC()); err != nil {
		return nil, err
	}
	return s.alarms.GetAlarm(ctx, alarmID)
}

// ResolveAlarm moves an active or acknowledged alarm to resolved.
func (s *TriageService) ResolveAlarm(ctx context.Context, alarmID string) (*models.Alarm, error) {
	if err := s.alarms.ResolveAlarm(ctx, alarmID, s.now().UTC()); err != nil {
		return nil, err
	}
	return s.alarms.GetAlarm(ctx, alarmID)
}

// ============================================
// Manual recommendations
// ============================================

// ManualRecommendationInput is a recommendation authored by an operator
// rather than the decision chain.
type ManualRecommendationInput struct {
	AlarmID                string
	Title                  string
	Description            string
	Priority               models.RecommendationPriority
	Action                 *models.RecommendationAction
	Rationale              *string
	SnoozeMinutes          *int
	ActionItems            string
	EstimatedDowntimeHours *float64
}

// CreateManualRecommendation persists an operator-authored recommendation
// and applies its action to the turbine state. A deferral timestamp is set
// exactly when the action is snooze.
func (s *TriageService) CreateManualRecommendation(ctx context.Context, input *ManualRecommendationInput) (*models.Recommendation, error) {
	if input == nil {
		return nil, fmt.Errorf("input is required")
	}
	if input.AlarmID == "" {
		return nil, fmt.Errorf("alarm_id is required")
	}
	if input.Title == "" {
		return nil, fmt.Errorf("title is required")
	}
	if input.SnoozeMinutes != nil && (input.Action == nil || *input.Action != models.ActionSnooze) {
		return nil, fmt.Errorf("snooze_minutes requires action snooze")
	}

	alarm, err := s.alarms.GetAlarm(ctx, input.AlarmID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()

	priority := input.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	if input.Action != nil {
		priority = engine.PriorityForAction(*input.Action, priority)
	}

	actionItems := input.ActionItems
	if actionItems == "" {
		actionItems = "[]"
	}

	rec := &models.Recommendation{
		RecommendationID:       uuid.New().String(),
		AlarmID:                input.AlarmID,
		Title:                  input.Title,
		Description:            input.Description,
		Priority:               priority,
		Action:                 input.Action,
		Rationale:              input.Rationale,
		ActionItems:            actionItems,
		EstimatedDowntimeHours: input.EstimatedDowntimeHours,
		IsAutomated:            false,
		CreatedAt:              now,
	}

	if input.Action != nil && *input.Action == models.ActionSnooze {
		dur := engine.DefaultSnoozeDuration
		if input.SnoozeMinutes != nil {
			dur = time.Duration(*input.SnoozeMinutes) * time.Minute
		}
		until := now.Add(dur)
		rec.SnoozeUntil = &until
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.recommendations.WithTx(tx).CreateRecommendation(ctx, rec); err != nil {
		return nil, err
	}

	if input.Action != nil {
		sm := engine.NewStateMachine(s.turbines.WithTx(tx), s.logger)
		if err := sm.Apply(ctx, alarm.TurbineID, *input.Action, now); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit recommendation: %w", err)
	}

	s.cacheLatest(ctx, alarm.TurbineID, rec)

	return rec, nil
}

// ============================================
// Queries
// ============================================

// GetAlarm fetches one alarm.
func (s *TriageService) GetAlarm(ctx context.Context, alarmID string) (*models.Alarm, error) {
	return s.alarms.GetAlarm(ctx, alarmID)
}

// GetRecommendation fetches one recommendation.
func (s *TriageService) GetRecommendation(ctx context.Context, recommendationID string) (*models.Recommendation, error) {
	return s.recommendations.GetRecommendation(ctx, recommendationID)
}

// ListAlarms queries alarms with filters, newest first.
func (s *TriageService) ListAlarms(ctx context.Context, filters repository.AlarmFilters, limit, offset int) ([]*models.Alarm, int, error) {
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return s.alarms.ListAlarms(ctx, filters, limit, offset)
}

// ListRecommendations queries recommendations, urgent first.
func (s *TriageService) ListRecommendations(ctx context.Context, filters repository.RecommendationFilters, limit, offset int) ([]*models.Recommendation, int, error) {
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return s.recommendations.ListRecommendations(ctx, filters, limit, offset)
}

// ListRecommendationsForAlarm returns an alarm's recommendations, newest first.
func (s *TriageService) ListRecommendationsForAlarm(ctx context.Context, alarmID string) ([]*models.Recommendation, error) {
	return s.recommendations.ListByAlarm(ctx, alarmID)
}

// LatestRecommendation reads the cached latest recommendation for a
// turbine, falling back to nil on a miss.
func (s *TriageService) LatestRecommendation(ctx context.Context, turbineID string) (*models.Recommendation, error) {
	if s.recCache == nil {
		return nil, nil
	}
	return s.recCache.GetLatest(ctx, turbineID)
}
