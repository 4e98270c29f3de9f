package engine

import (
	"context"
	"fmt"
	"time"

	"windfleet-triage/internal/models"

	"go.uber.org/zap"
)

// Decision thresholds.
const (
	// TempThreshold is the cool-down temperature limit in °C.
	TempThreshold = 75.0

	// Freq24hThreshold escalates when the same code fires this often in 24h.
	Freq24hThreshold = 4

	// Freq7dThreshold escalates when the same code fires this often in 7 days.
	Freq7dThreshold = 8

	// OscillationWindow is the repeat-detection window.
	OscillationWindow = 10 * time.Minute

	// DefaultSnoozeDuration is how long a deferred recommendation sleeps.
	DefaultSnoozeDuration = 20 * time.Minute
)

// tempCriticalCodes are the fault codes whose temperature reading gates
// the cool-down rule.
var tempCriticalCodes = map[string]struct{}{
	"EM_83":             {},
	"TEMP_HIGH":         {},
	"GEARBOX_OVERHEAT":  {},
	"GEARBOX_TEMP_HIGH": {},
}

// EventCorrelator is the correlation surface the decision engine needs.
type EventCorrelator interface {
	HasRecurred(ctx context.Context, alarm *models.Alarm, window time.Duration) (bool, error)
	CountInWindow(ctx context.Context, alarm *models.Alarm, window time.Duration) (int, error)
}

// DecisionEngine converts one alarm plus correlator answers into an
// (action, rationale) pair via a strict precedence chain.
type DecisionEngine struct {
	correlator EventCorrelator
	logger     *zap.Logger
}

// NewDecisionEngine creates a decision engine over the given correlator.
func NewDecisionEngine(correlator EventCorrelator, logger *zap.Logger) *DecisionEngine {
	return &DecisionEngine{
		correlator: correlator,
		logger:     logger,
	}
}

// DecideAction evaluates the rule chain in order. The first matching rule
// wins and later rules are not evaluated:
//
//  1. not resettable        -> escalate
//  2. oscillation           -> escalate
//  3. >= 4 in 24h           -> escalate
//  4. >= 8 in 7d            -> escalate
//  5. temp-critical > 75°C  -> wait_cool_down
//  6. default               -> reset
//
// The chain never emits snooze. Snooze exists for manually authored
// recommendations and the reconciler keeps it working end to end.
func (e *DecisionEngine) DecideAction(ctx context.Context, alarm *models.Alarm) (models.RecommendationAction, string, error) {
	if !alarm.Resettable {
		return models.ActionEscalate,
			"Alarm is not resettable and requires manual intervention.",
			nil
	}

	recurred, err := e.correlator.HasRecurred(ctx, alarm, OscillationWindow)
	if err != nil {
		return "", "", fmt.Errorf("failed to check oscillation: %w", err)
	}
	if recurred {
		return models.ActionEscalate,
			fmt.Sprintf("Oscillation detected: Same fault code appeared twice within %d minutes.",
				int(OscillationWindow.Minutes())),
			nil
	}

	freq24h, err := e.correlator.CountInWindow(ctx, alarm, 24*time.Hour)
	if err != nil {
		return "", "", fmt.Errorf("failed to count 24h occurrences: %w", err)
	}
	if freq24h >= Freq24hThreshold {
		return models.ActionEscalate,
			fmt.Sprintf("High frequency: %d occurrences in last 24 hours (threshold: %d).",
				freq24h, Freq24hThreshold),
			nil
	}

	freq7d, err := e.correlator.CountInWindow(ctx, alarm, 7*24*time.Hour)
	if err != nil {
		return "", "", fmt.Errorf("failed to count 7d occurrences: %w", err)
	}
	if freq7d >= Freq7dThreshold {
		return models.ActionEscalate,
			fmt.Sprintf("High frequency: %d occurrences in last 7 days (threshold: %d).",
				freq7d, Freq7dThreshold),
			nil
	}

	if _, critical := tempCriticalCodes[alarm.AlarmCode]; critical &&
		alarm.TemperatureC != nil && *alarm.TemperatureC > TempThreshold {
		return models.ActionWaitCoolDown,
			fmt.Sprintf("Temperature %.1f°C exceeds threshold %.1f°C. Wait for cool-down.",
				*alarm.TemperatureC, TempThreshold),
			nil
	}

	return models.ActionReset,
		"Conditions allow for automatic reset. No escalation required.",
		nil
}
