package models

import (
	"time"
)

// RecommendationAction is the decided remediation action.
type RecommendationAction string

const (
	ActionReset            RecommendationAction = "reset"
	ActionEscalate         RecommendationAction = "escalate"
	ActionWaitCoolDown     RecommendationAction = "wait_cool_down"
	ActionSnooze           RecommendationAction = "snooze"
	ActionManualInspection RecommendationAction = "manual_inspection"
)

// RecommendationPriority levels, ordered low < medium < high < urgent.
type RecommendationPriority string

const (
	PriorityLow    RecommendationPriority = "low"
	PriorityMedium RecommendationPriority = "medium"
	PriorityHigh   RecommendationPriority = "high"
	PriorityUrgent RecommendationPriority = "urgent"
)

// Recommendation corresponds to the recommendations table.
// Rows are immutable once written, with one exception: snooze_until is
// cleared when a newer recommendation supersedes this one. Corrections
// always create a new row.
type Recommendation struct {
	RecommendationID       string                 `json:"recommendation_id" db:"recommendation_id"`
	AlarmID                string                 `json:"alarm_id" db:"alarm_id"`
	Title                  string                 `json:"title" db:"title"`
	Description            string                 `json:"description" db:"description"`
	Priority               RecommendationPriority `json:"priority" db:"priority"`
	Action                 *RecommendationAction  `json:"action,omitempty" db:"action"`
	Rationale              *string                `json:"rationale,omitempty" db:"rationale"`
	SnoozeUntil            *time.Time             `json:"snooze_until,omitempty" db:"snooze_until"`
	ActionItems            string                 `json:"action_items" db:"action_items"` // JSONB array of strings
	EstimatedDowntimeHours *float64               `json:"estimated_downtime_hours,omitempty" db:"estimated_downtime_hours"`
	IsAutomated            bool                   `json:"is_automated" db:"is_automated"`
	CreatedAt              time.Time              `json:"created_at" db:"created_at"`
}
