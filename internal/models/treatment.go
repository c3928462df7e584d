// Package models contains data structures used throughout the application
package models

import "time"

// Treatment represents a treatment entry from Nightscout (insulin, carbs, etc.)
type Treatment struct {
	ID          string  `json:"_id"`
	EventType   string  `json:"eventType"`
	Date        int64   `json:"date"` // Unix timestamp in milliseconds
	DateStr     string  `json:"dateString"`
	CreatedAt   string  `json:"created_at"`
	Insulin     float64 `json:"insulin"`     // Units of insulin
	Carbs       float64 `json:"carbs"`       // Grams of carbohydrates
	Protein     float64 `json:"protein"`     // Grams of protein
	Fat         float64 `json:"fat"`         // Grams of fat
	Fiber       float64 `json:"fiber"`       // Grams of fiber
	Duration    float64 `json:"duration"`    // Duration in minutes (extended boluses, basal action)
	Glucose     float64 `json:"glucose"`     // Blood glucose value if recorded
	GlucoseType string  `json:"glucoseType"` // "Sensor", "Finger", "Manual"
	Units       string  `json:"units"`       // "mg/dl" or "mmol/l"
	Notes       string  `json:"notes"`
	EnteredBy   string  `json:"enteredBy"`
	Device      string  `json:"device"`

	// For basal injections and temp basals
	InsulinType string  `json:"insulinType"` // e.g. "Tresiba", "Lantus", "NPH"
	Percent     float64 `json:"percent"`
	Absolute    float64 `json:"absolute"`

	// For profile switches
	Profile string `json:"profile"`
	Reason  string `json:"reason"`
}

// Time returns the time of the treatment
func (t *Treatment) Time() time.Time {
	if t.Date > 0 {
		return time.UnixMilli(t.Date)
	}
	// Fallback to created_at
	parsed, err := time.Parse(time.RFC3339, t.CreatedAt)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

// HasInsulin returns true if this treatment includes insulin
func (t *Treatment) HasInsulin() bool {
	return t.Insulin > 0
}

// HasCarbs returns true if this treatment includes carbohydrates
func (t *Treatment) HasCarbs() bool {
	return t.Carbs > 0
}

// IsBolus returns true if this is a bolus treatment
func (t *Treatment) IsBolus() bool {
	bolusTypes := map[string]bool{
		"Bolus":            true,
		"Snack Bolus":      true,
		"Meal Bolus":       true,
		"Correction Bolus": true,
		"Combo Bolus":      true,
		"Bolus Wizard":     true,
	}
	return bolusTypes[t.EventType] ||
		(t.HasInsulin() && t.EventType != "Temp Basal" && !t.IsBasalInjection())
}

// IsMealBolus returns true if this appears to be a meal-related bolus
func (t *Treatment) IsMealBolus() bool {
	mealTypes := map[string]bool{
		"Meal Bolus":  true,
		"Snack Bolus": true,
	}
	return mealTypes[t.EventType] || (t.HasInsulin() && t.HasCarbs())
}

// IsBasalInjection returns true if this is a long-acting basal dose
// entered through the careportal (MDI therapy).
func (t *Treatment) IsBasalInjection() bool {
	basalTypes := map[string]bool{
		"Basal Insulin":   true,
		"Basal Injection": true,
	}
	return basalTypes[t.EventType]
}

// BasalClass maps the recorded insulin preparation onto a release-curve class.
func (t *Treatment) BasalClass() BasalType {
	switch t.InsulinType {
	case "Tresiba", "Degludec", "Toujeo":
		return BasalUltraLong
	case "Lantus", "Glargine", "Levemir", "Detemir", "Abasaglar":
		return BasalLongActing
	case "NPH", "Insulatard", "Humulin N":
		return BasalIntermediate
	default:
		return BasalUnknown
	}
}

// TreatmentEventTypes contains common Nightscout event types
var TreatmentEventTypes = struct {
	BGCheck         string
	SnackBolus      string
	MealBolus       string
	CorrectionBolus string
	CarbCorrection  string
	ComboBolus      string
	BasalInsulin    string
	TempBasal       string
	ProfileSwitch   string
	BolusWizard     string
	Exercise        string
	Note            string
}{
	BGCheck:         "BG Check",
	SnackBolus:      "Snack Bolus",
	MealBolus:       "Meal Bolus",
	CorrectionBolus: "Correction Bolus",
	CarbCorrection:  "Carb Correction",
	ComboBolus:      "Combo Bolus",
	BasalInsulin:    "Basal Insulin",
	TempBasal:       "Temp Basal",
	ProfileSwitch:   "Profile Switch",
	BolusWizard:     "Bolus Wizard",
	Exercise:        "Exercise",
	Note:            "Note",
}
