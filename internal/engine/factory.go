package engine

import (
	"encoding/json"
	"fmt"
	"time"

	"windfleet-triage/internal/models"

	"github.com/google/uuid"
)

// RecommendationFactory assembles recommendation rows from an alarm and a
// decided (action, rationale) pair.
type RecommendationFactory struct {
	snoozeDuration time.Duration
}

// NewRecommendationFactory creates a factory with the given snooze duration.
func NewRecommendationFactory(snoozeDuration time.Duration) *RecommendationFactory {
	if snoozeDuration <= 0 {
		snoozeDuration = DefaultSnoozeDuration
	}
	return &RecommendationFactory{snoozeDuration: snoozeDuration}
}

// PriorityForAction overrides the template priority for strong actions.
// Total over all actions: anything not listed keeps the template default.
func PriorityForAction(action models.RecommendationAction, defaultPriority models.RecommendationPriority) models.RecommendationPriority {
	switch action {
	case models.ActionEscalate:
		return models.PriorityUrgent
	case models.ActionWaitCoolDown:
		return models.PriorityHigh
	case models.ActionSnooze:
		return models.PriorityMedium
	default:
		return defaultPriority
	}
}

// Build produces a new recommendation for the alarm. Curated fault codes
// use their template; anything else falls back to the severity tier with a
// generic title. The deferral timestamp is set only for snooze actions.
func (f *RecommendationFactory) Build(alarm *models.Alarm, action models.RecommendationAction, rationale string, now time.Time) *models.Recommendation {
	tpl, curated := TemplateForCode(alarm.AlarmCode)
	if !curated {
		tpl = TemplateForSeverity(alarm.Severity)
		tpl.Title = fmt.Sprintf("Generic Recommendation for %s", alarm.AlarmCode)
		tpl.Description = fmt.Sprintf("Standard response for %s severity alarm: %s",
			alarm.Severity, alarm.Description)
	}

	actionItems, err := json.Marshal(tpl.ActionItems)
	if err != nil {
		actionItems = []byte("[]")
	}

	downtime := tpl.EstimatedDowntimeHours
	actionCopy := action
	rationaleCopy := rationale

	rec := &models.Recommendation{
		RecommendationID:       uuid.New().String(),
		AlarmID:                alarm.AlarmID,
		Title:                  tpl.Title,
		Description:            tpl.Description,
		Priority:               PriorityForAction(action, tpl.Priority),
		Action:                 &actionCopy,
		Rationale:              &rationaleCopy,
		ActionItems:            string(actionItems),
		EstimatedDowntimeHours: &downtime,
		IsAutomated:            true,
		CreatedAt:              now,
	}

	if action == models.ActionSnooze {
		until := now.Add(f.snoozeDuration)
		rec.SnoozeUntil = &until
	}

	return rec
}
