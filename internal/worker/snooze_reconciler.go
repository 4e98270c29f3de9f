package worker

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"windfleet-triage/internal/cache"
	"windfleet-triage/internal/config"
	"windfleet-triage/internal/models"
	"windfleet-triage/internal/repository"

	"go.uber.org/zap"
)

// ReDecider re-runs the triage pipeline for an already-persisted alarm
// inside the given transaction. Implemented by service.TriageService.
type ReDecider interface {
	ReDecide(ctx context.Context, tx *sql.Tx, alarm *models.Alarm, now time.Time) (*models.Recommendation, error)
}

// SnoozeReconciler periodically wakes deferred recommendations: when a
// snooze window has elapsed it re-decides the originating alarm, persists
// a fresh recommendation and supersedes the stale one. Each item commits
// on its own, so one bad item never blocks the rest of the cycle.
type SnoozeReconciler struct {
	db              *sql.DB
	alarms          *repository.AlarmRepository
	recommendations *repository.RecommendationRepository
	triage          ReDecider
	recCache        *cache.RecommendationCache
	logger          *zap.Logger
	interval        time.Duration
	now             func() time.Time
}

// NewSnoozeReconciler creates the reconciler. recCache may be nil. A
// non-positive configured interval falls back to 60s.
func NewSnoozeReconciler(db *sql.DB, triage ReDecider, recCache *cache.RecommendationCache, cfg *config.Config, logger *zap.Logger) *SnoozeReconciler {
	interval := time.Duration(cfg.Triage.ReconcileInterval) * time.Second
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &SnoozeReconciler{
		db:              db,
		alarms:          repository.NewAlarmRepository(db, logger),
		recommendations: repository.NewRecommendationRepository(db, logger),
		triage:          triage,
		recCache:        recCache,
		logger:          logger,
		interval:        interval,
		now:             time.Now,
	}
}

// Start runs reconciliation cycles until the context is cancelled. The
// first cycle runs immediately, then on the configured period.
func (r *SnoozeReconciler) Start(ctx context.Context) {
	r.logger.Info("snooze reconciler started",
		zap.Duration("interval", r.interval))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.runCycleLogged(ctx)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("snooze reconciler stopping")
			return
		case <-ticker.C:
			r.runCycleLogged(ctx)
		}
	}
}

func (r *SnoozeReconciler) runCycleLogged(ctx context.Context) {
	if err := r.RunCycle(ctx); err != nil {
		r.logger.Error("reconciliation cycle failed", zap.Error(err))
	}
}

// RunCycle processes every expired snoozed recommendation once. Item
// failures are logged and skipped; the item stays eligible for the next
// cycle because its deferral timestamp is only cleared on success.
func (r *SnoozeReconciler) RunCycle(ctx context.Context) error {
	now := r.now().UTC()

	expired, err := r.recommendations.ListExpiredSnoozed(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to list expired snoozed recommendations: %w", err)
	}

	if len(expired) == 0 {
		return nil
	}

	r.logger.Info("reconciling expired snoozes",
		zap.Int("count", len(expired)))

	for _, rec := range expired {
		if err := r.reconcileItem(ctx, rec, now); err != nil {
			r.logger.Error("failed to reconcile recommendation",
				zap.String("recommendation_id", rec.RecommendationID),
				zap.String("alarm_id", rec.AlarmID),
				zap.Error(err))
		}
	}

	return nil
}

func (r *SnoozeReconciler) reconcileItem(ctx context.Context, stale *models.Recommendation, now time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	alarm, err := r.alarms.WithTx(tx).GetAlarm(ctx, stale.AlarmID)
	if err != nil {
		return err
	}

	// Terminal statuses win over deferred re-evaluation. The deferral
	// timestamp is left in place; only supersession clears it. A resolve
	// that lands between this read and the commit can still be superseded;
	// accepted.
	if alarm.Status.Terminal() {
		r.logger.Debug("skipping reconciliation for closed alarm",
			zap.String("alarm_id", alarm.AlarmID),
			zap.String("status", string(alarm.Status)))
		return nil
	}

	fresh, err := r.triage.ReDecide(ctx, tx, alarm, now)
	if err != nil {
		return err
	}

	if err := r.recommendations.WithTx(tx).ClearSnooze(ctx, stale.RecommendationID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reconciliation: %w", err)
	}

	if r.recCache != nil {
		if err := r.recCache.SetLatest(ctx, alarm.TurbineID, fresh); err != nil {
			r.logger.Warn("failed to cache reconciled recommendation",
				zap.String("turbine_id", alarm.TurbineID),
				zap.Error(err))
		}
	}

	r.logger.Info("snoozed recommendation superseded",
		zap.String("stale_recommendation_id", stale.RecommendationID),
		zap.String("new_recommendation_id", fresh.RecommendationID),
		zap.String("alarm_id", alarm.AlarmID),
		zap.String("action", string(*fresh.Action)))

	return nil
}
