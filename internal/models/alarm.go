package models

import (
	"time"
)

// AlarmSeverity levels, ordered low < medium < high < critical.
type AlarmSeverity string

const (
	SeverityLow      AlarmSeverity = "low"
	SeverityMedium   AlarmSeverity = "medium"
	SeverityHigh     AlarmSeverity = "high"
	SeverityCritical AlarmSeverity = "critical"
)

// AlarmStatus lifecycle: active → acknowledged → resolved, one-directional.
type AlarmStatus string

const (
	AlarmStatusActive       AlarmStatus = "active"
	AlarmStatusAcknowledged AlarmStatus = "acknowledged"
	AlarmStatusResolved     AlarmStatus = "resolved"
)

// Terminal reports whether the status blocks snooze re-evaluation.
func (s AlarmStatus) Terminal() bool {
	return s == AlarmStatusAcknowledged || s == AlarmStatusResolved
}

// Alarm is one fault event reported by a turbine (alarms table).
// Rows are never deleted; only status and its timestamps mutate.
type Alarm struct {
	AlarmID        string        `json:"alarm_id" db:"alarm_id"`
	TurbineID      string        `json:"turbine_id" db:"turbine_id"`
	AlarmCode      string        `json:"alarm_code" db:"alarm_code"`
	Description    string        `json:"description" db:"description"`
	Severity       AlarmSeverity `json:"severity" db:"severity"`
	Status         AlarmStatus   `json:"status" db:"status"`
	OccurredAt     time.Time     `json:"occurred_at" db:"occurred_at"`
	AcknowledgedAt *time.Time    `json:"acknowledged_at,omitempty" db:"acknowledged_at"`
	ResolvedAt     *time.Time    `json:"resolved_at,omitempty" db:"resolved_at"`
	Resettable     bool          `json:"resettable" db:"resettable"`
	TemperatureC   *float64      `json:"temperature_c,omitempty" db:"temperature_c"`
	Note           *string       `json:"note,omitempty" db:"note"`
	Metadata       string        `json:"metadata" db:"metadata"` // JSONB
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at" db:"updated_at"`
}

// AlarmReport is the inbound representation of a fault event, as published
// by collaborators on the alarm intake stream.
type AlarmReport struct {
	TurbineID    string     `json:"turbine_id"`
	AlarmCode    string     `json:"alarm_code"`
	Description  string     `json:"description"`
	Severity     *string    `json:"severity,omitempty"`
	OccurredAt   *time.Time `json:"occurred_at,omitempty"`
	Resettable   *bool      `json:"resettable,omitempty"`
	TemperatureC *float64   `json:"temperature_c,omitempty"`
	Note         *string    `json:"note,omitempty"`
	Metadata     *string    `json:"metadata,omitempty"`
}
