package engine

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"windfleet-triage/internal/models"
)

func factoryAlarm(code string, severity models.AlarmSeverity) *models.Alarm {
	return &models.Alarm{
		AlarmID:     uuid.New().String(),
		TurbineID:   uuid.New().String(),
		AlarmCode:   code,
		Description: "test alarm",
		Severity:    severity,
		Status:      models.AlarmStatusActive,
		OccurredAt:  time.Now(),
		Resettable:  true,
	}
}

func TestBuild_CuratedTemplate(t *testing.T) {
	f := NewRecommendationFactory(DefaultSnoozeDuration)
	alarm := factoryAlarm("GEARBOX_TEMP_HIGH", models.SeverityHigh)
	now := time.Now()

	rec := f.Build(alarm, models.ActionReset, "Conditions allow for automatic reset. No escalation required.", now)

	assert.NotEmpty(t, rec.RecommendationID)
	assert.Equal(t, alarm.AlarmID, rec.AlarmID)
	assert.Equal(t, "Gearbox Temperature Critical", rec.Title)
	assert.Equal(t, models.PriorityUrgent, rec.Priority)
	require.NotNil(t, rec.Action)
	assert.Equal(t, models.ActionReset, *rec.Action)
	assert.True(t, rec.IsAutomated)
	assert.Nil(t, rec.SnoozeUntil)
	require.NotNil(t, rec.EstimatedDowntimeHours)
	assert.Equal(t, 4.0, *rec.EstimatedDowntimeHours)
	assert.Equal(t, now, rec.CreatedAt)

	var items []string
	require.NoError(t, json.Unmarshal([]byte(rec.ActionItems), &items))
	assert.Contains(t, items, "Check lubrication system")
}

func TestBuild_GenericTemplateBySeverity(t *testing.T) {
	f := NewRecommendationFactory(DefaultSnoozeDuration)
	alarm := factoryAlarm("UNKNOWN_CODE_42", models.SeverityCritical)

	rec := f.Build(alarm, models.ActionReset, "Conditions allow for automatic reset. No escalation required.", time.Now())

	assert.Equal(t, "Generic Recommendation for UNKNOWN_CODE_42", rec.Title)
	assert.Contains(t, rec.Description, "critical severity alarm")
	assert.Equal(t, models.PriorityUrgent, rec.Priority)
	require.NotNil(t, rec.EstimatedDowntimeHours)
	assert.Equal(t, 24.0, *rec.EstimatedDowntimeHours)
}

func TestBuild_UnknownSeverityFallsBackToMedium(t *testing.T) {
	f := NewRecommendationFactory(DefaultSnoozeDuration)
	alarm := factoryAlarm("UNKNOWN_CODE_42", models.AlarmSeverity("bogus"))

	rec := f.Build(alarm, models.ActionManualInspection, "Manual inspection required.", time.Now())

	assert.Equal(t, models.PriorityMedium, rec.Priority)
	require.NotNil(t, rec.EstimatedDowntimeHours)
	assert.Equal(t, 4.0, *rec.EstimatedDowntimeHours)
}

func TestBuild_PriorityOverriddenByAction(t *testing.T) {
	f := NewRecommendationFactory(DefaultSnoozeDuration)
	// LOW_WIND_SPEED's template default is low priority.
	alarm := factoryAlarm("LOW_WIND_SPEED", models.SeverityLow)

	cases := []struct {
		action   models.RecommendationAction
		expected models.RecommendationPriority
	}{
		{models.ActionEscalate, models.PriorityUrgent},
		{models.ActionWaitCoolDown, models.PriorityHigh},
		{models.ActionSnooze, models.PriorityMedium},
		{models.ActionReset, models.PriorityLow},
		{models.ActionManualInspection, models.PriorityLow},
	}

	for _, tc := range cases {
		rec := f.Build(alarm, tc.action, "rationale", time.Now())
		assert.Equal(t, tc.expected, rec.Priority, "action %s", tc.action)
	}
}

func TestBuild_SnoozeSetsDeferralTimestamp(t *testing.T) {
	f := NewRecommendationFactory(20 * time.Minute)
	alarm := factoryAlarm("YAW_ERROR", models.SeverityMedium)
	now := time.Now()

	rec := f.Build(alarm, models.ActionSnooze, "Deferred by operator request.", now)

	require.NotNil(t, rec.SnoozeUntil)
	assert.Equal(t, now.Add(20*time.Minute), *rec.SnoozeUntil)
}

func TestBuild_NonSnoozeHasNoDeferralTimestamp(t *testing.T) {
	f := NewRecommendationFactory(DefaultSnoozeDuration)
	alarm := factoryAlarm("YAW_ERROR", models.SeverityMedium)

	for _, action := range []models.RecommendationAction{
		models.ActionReset,
		models.ActionEscalate,
		models.ActionWaitCoolDown,
		models.ActionManualInspection,
	} {
		rec := f.Build(alarm, action, "rationale", time.Now())
		assert.Nil(t, rec.SnoozeUntil, "action %s", action)
	}
}

func TestNewRecommendationFactory_DefaultsSnoozeDuration(t *testing.T) {
	f := NewRecommendationFactory(0)
	alarm := factoryAlarm("YAW_ERROR", models.SeverityMedium)
	now := time.Now()

	rec := f.Build(alarm, models.ActionSnooze, "rationale", now)

	require.NotNil(t, rec.SnoozeUntil)
	assert.Equal(t, now.Add(DefaultSnoozeDuration), *rec.SnoozeUntil)
}

func TestPriorityForAction_Total(t *testing.T) {
	// Unknown actions keep the default.
	got := PriorityForAction(models.RecommendationAction("future_action"), models.PriorityHigh)
	assert.Equal(t, models.PriorityHigh, got)
}
