package models

import (
	"time"
)

// TurbineState is the operational state of a turbine. It is a cached
// projection of the most recently applied recommendation action.
type TurbineState string

const (
	TurbineOnline  TurbineState = "Online"
	TurbineStopped TurbineState = "Stopped"
	TurbineFaulted TurbineState = "Faulted"
	TurbineCooling TurbineState = "Cooling"
)

// Turbine corresponds to the turbines table.
type Turbine struct {
	TurbineID       string       `json:"turbine_id" db:"turbine_id"`
	Name            string       `json:"name" db:"name"`
	Location        string       `json:"location" db:"location"`
	Model           string       `json:"model" db:"model"`
	CapacityKW      float64      `json:"capacity_kw" db:"capacity_kw"`
	IsActive        bool         `json:"is_active" db:"is_active"`
	State           TurbineState `json:"state" db:"state"`
	LastStateChange *time.Time   `json:"last_state_change,omitempty" db:"last_state_change"`
	CreatedAt       time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at" db:"updated_at"`
}
