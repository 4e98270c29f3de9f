package engine

import (
	"windfleet-triage/internal/models"
)

// Template holds the static content of a recommendation before the
// decision-dependent fields (action, rationale, priority override) are
// applied.
type Template struct {
	Title                  string
	Description            string
	Priority               models.RecommendationPriority
	ActionItems            []string
	EstimatedDowntimeHours float64
}

// codeTemplates maps known fault codes to curated recommendations.
var codeTemplates = map[string]Template{
	"GEARBOX_TEMP_HIGH": {
		Title:       "Gearbox Temperature Critical",
		Description: "Gearbox temperature exceeds safe operating limits. Immediate inspection required.",
		Priority:    models.PriorityUrgent,
		ActionItems: []string{
			"Reduce turbine load immediately",
			"Schedule emergency maintenance inspection",
			"Check lubrication system",
			"Monitor temperature every 15 minutes",
		},
		EstimatedDowntimeHours: 4.0,
	},
	"GENERATOR_VIBRATION": {
		Title:       "Generator Vibration Detected",
		Description: "Abnormal vibration patterns detected in generator. May indicate bearing issues.",
		Priority:    models.PriorityHigh,
		ActionItems: []string{
			"Schedule vibration analysis",
			"Inspect generator bearings",
			"Check alignment",
			"Review maintenance logs",
		},
		EstimatedDowntimeHours: 8.0,
	},
	"PITCH_SYSTEM_FAULT": {
		Title:       "Pitch System Malfunction",
		Description: "Blade pitch control system is not responding correctly.",
		Priority:    models.PriorityHigh,
		ActionItems: []string{
			"Stop turbine operation",
			"Inspect pitch motors and drives",
			"Check hydraulic system pressure",
			"Test backup pitch system",
		},
		EstimatedDowntimeHours: 12.0,
	},
	"YAW_ERROR": {
		Title:       "Yaw System Error",
		Description: "Yaw system unable to align turbine with wind direction.",
		Priority:    models.PriorityMedium,
		ActionItems: []string{
			"Inspect yaw motors",
			"Check yaw brake system",
			"Calibrate wind direction sensors",
			"Verify control system signals",
		},
		EstimatedDowntimeHours: 6.0,
	},
	"GRID_DISCONNECT": {
		Title:       "Grid Connection Lost",
		Description: "Turbine disconnected from power grid.",
		Priority:    models.PriorityUrgent,
		ActionItems: []string{
			"Check grid voltage and frequency",
			"Inspect circuit breakers",
			"Verify protection relay settings",
			"Contact grid operator",
		},
		EstimatedDowntimeHours: 2.0,
	},
	"LOW_WIND_SPEED": {
		Title:       "Low Wind Speed",
		Description: "Wind speed below cut-in threshold.",
		Priority:    models.PriorityLow,
		ActionItems: []string{
			"Monitor wind conditions",
			"Verify anemometer readings",
			"Check for ice buildup on blades",
		},
		EstimatedDowntimeHours: 0.0,
	},
	"EM_83": {
		Title:       "EM-83 Fault Code",
		Description: "Critical system fault detected.",
		Priority:    models.PriorityUrgent,
		ActionItems: []string{
			"Immediate system inspection required",
			"Check system diagnostics",
			"Review fault logs",
		},
		EstimatedDowntimeHours: 4.0,
	},
}

// severityTemplates is the generic fallback for codes without a curated
// template. Title and description are filled in by the factory.
var severityTemplates = map[models.AlarmSeverity]Template{
	models.SeverityCritical: {
		Priority: models.PriorityUrgent,
		ActionItems: []string{
			"Stop turbine operation immediately",
			"Dispatch emergency maintenance team",
			"Perform safety inspection",
			"Contact manufacturer support",
		},
		EstimatedDowntimeHours: 24.0,
	},
	models.SeverityHigh: {
		Priority: models.PriorityHigh,
		ActionItems: []string{
			"Schedule urgent maintenance inspection",
			"Review recent operational data",
			"Check related system components",
			"Reduce turbine load if safe",
		},
		EstimatedDowntimeHours: 12.0,
	},
	models.SeverityMedium: {
		Priority: models.PriorityMedium,
		ActionItems: []string{
			"Schedule routine maintenance inspection",
			"Monitor alarm frequency",
			"Review maintenance history",
			"Check sensor calibration",
		},
		EstimatedDowntimeHours: 4.0,
	},
	models.SeverityLow: {
		Priority: models.PriorityLow,
		ActionItems: []string{
			"Log alarm for trending analysis",
			"Monitor during next scheduled maintenance",
			"Verify sensor readings",
		},
		EstimatedDowntimeHours: 0.0,
	},
}

// TemplateForCode looks up the curated template for a fault code.
func TemplateForCode(alarmCode string) (Template, bool) {
	tpl, ok := codeTemplates[alarmCode]
	return tpl, ok
}

// TemplateForSeverity returns the generic template for a severity level,
// falling back to medium for unknown values.
func TemplateForSeverity(severity models.AlarmSeverity) Template {
	if tpl, ok := severityTemplates[severity]; ok {
		return tpl
	}
	return severityTemplates[models.SeverityMedium]
}
