package engine

import (
	"context"
	"time"

	"windfleet-triage/internal/models"
)

// AlarmHistory is the slice of alarm storage the correlator queries.
// Implemented by repository.AlarmRepository.
type AlarmHistory interface {
	HasPriorOccurrence(ctx context.Context, turbineID, alarmCode, excludeAlarmID string, from, until time.Time) (bool, error)
	CountOccurrences(ctx context.Context, turbineID, alarmCode string, since time.Time) (int, error)
}

// Correlator answers temporal questions about an alarm relative to the
// history of the same fault code on the same turbine. All windows are
// anchored at the alarm's own occurred_at, never at wall clock, so a
// replayed or re-evaluated event always gets the same answers.
type Correlator struct {
	history AlarmHistory
}

// NewCorrelator creates a correlator over the given alarm history.
func NewCorrelator(history AlarmHistory) *Correlator {
	return &Correlator{history: history}
}

// HasRecurred reports whether the same fault code occurred on the same
// turbine strictly before this alarm, within the given window ending at
// the alarm's occurred_at. The alarm itself is excluded.
func (c *Correlator) HasRecurred(ctx context.Context, alarm *models.Alarm, window time.Duration) (bool, error) {
	from := alarm.OccurredAt.Add(-window)
	return c.history.HasPriorOccurrence(ctx, alarm.TurbineID, alarm.AlarmCode, alarm.AlarmID, from, alarm.OccurredAt)
}

// CountInWindow counts occurrences of the same fault code on the same
// turbine within the window ending at the alarm's occurred_at, inclusive
// of the alarm itself.
func (c *Correlator) CountInWindow(ctx context.Context, alarm *models.Alarm, window time.Duration) (int, error) {
	since := alarm.OccurredAt.Add(-window)
	return c.history.CountOccurrences(ctx, alarm.TurbineID, alarm.AlarmCode, since)
}
