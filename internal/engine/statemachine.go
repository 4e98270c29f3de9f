package engine

import (
	"context"
	"fmt"
	"time"

	"windfleet-triage/internal/models"

	"go.uber.org/zap"
)

// TurbineStore is the slice of turbine storage the state machine needs.
// Implemented by repository.TurbineRepository.
type TurbineStore interface {
	GetTurbine(ctx context.Context, turbineID string) (*models.Turbine, error)
	UpdateTurbineState(ctx context.Context, turbineID string, state models.TurbineState, at time.Time) error
}

// stateForAction maps actions to the turbine state they imply.
// manual_inspection implies no transition and is absent on purpose.
var stateForAction = map[models.RecommendationAction]models.TurbineState{
	models.ActionEscalate:     models.TurbineFaulted,
	models.ActionWaitCoolDown: models.TurbineCooling,
	models.ActionReset:        models.TurbineOnline,
	models.ActionSnooze:       models.TurbineStopped,
}

// StateForAction returns the turbine state implied by an action. ok is
// false for actions that leave the state untouched.
func StateForAction(action models.RecommendationAction) (models.TurbineState, bool) {
	state, ok := stateForAction[action]
	return state, ok
}

// StateMachine keeps the cached turbine state in sync with the most
// recently applied recommendation action.
type StateMachine struct {
	turbines TurbineStore
	logger   *zap.Logger
}

// NewStateMachine creates a state machine over the given turbine store.
func NewStateMachine(turbines TurbineStore, logger *zap.Logger) *StateMachine {
	return &StateMachine{
		turbines: turbines,
		logger:   logger,
	}
}

// Apply transitions the turbine to the state implied by the action.
// No-op transitions are elided so last_state_change keeps the time of the
// last real change.
func (m *StateMachine) Apply(ctx context.Context, turbineID string, action models.RecommendationAction, at time.Time) error {
	state, ok := StateForAction(action)
	if !ok {
		return nil
	}

	turbine, err := m.turbines.GetTurbine(ctx, turbineID)
	if err != nil {
		return fmt.Errorf("failed to load turbine: %w", err)
	}

	if turbine.State == state {
		return nil
	}

	if err := m.turbines.UpdateTurbineState(ctx, turbineID, state, at); err != nil {
		return fmt.Errorf("failed to apply state transition: %w", err)
	}

	m.logger.Info("turbine state changed",
		zap.String("turbine_id", turbineID),
		zap.String("from", string(turbine.State)),
		zap.String("to", string(state)),
		zap.String("action", string(action)))

	return nil
}
