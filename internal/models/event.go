// Package models contains data structures used throughout the application
package models

// EventKind discriminates the closed set of simulation event variants.
type EventKind string

const (
	EventBolus          EventKind = "bolus"
	EventCarbohydrate   EventKind = "carbohydrate"
	EventBasalInjection EventKind = "basal_injection"
)

// BasalType classifies long-acting insulin by its release curve.
type BasalType string

const (
	BasalUltraLong    BasalType = "ultra_long"   // e.g. degludec: essentially flat
	BasalLongActing   BasalType = "long_acting"  // e.g. glargine: soft trapezoid
	BasalIntermediate BasalType = "intermediate" // e.g. NPH: peaks around 40% of duration
	BasalUnknown      BasalType = ""
)

// Event is one entry on the simulation timeline. The offset is the defining
// lifecycle field: negative offsets are history and are read-only, offset 0 is
// the proposed action under evaluation, positive offsets are hypothetical
// future events.
//
// The variant is resolved once at ingestion; per-kind attributes that do not
// apply are left zero.
type Event struct {
	Kind      EventKind `json:"kind"`
	OffsetMin float64   `json:"offsetMin"`
	Amount    float64   `json:"amount"` // units for insulin events, grams for carbs

	// Bolus: spread duration for extended ("square wave") boluses.
	// BasalInjection: action duration of the preparation.
	DurationMin float64 `json:"durationMin,omitempty"`

	// Carbohydrate attributes
	AbsorptionMin float64 `json:"absorptionMin,omitempty"` // per-event absorption override
	Protein       float64 `json:"protein,omitempty"`       // grams
	Fat           float64 `json:"fat,omitempty"`           // grams
	Fiber         float64 `json:"fiber,omitempty"`         // grams
	LinkedMeal    bool    `json:"linkedMeal,omitempty"`    // carbs tied to the proposed dose

	// BasalInjection attributes
	Basal BasalType `json:"basalType,omitempty"`
}

// IsHistory reports whether the event happened before "now".
func (e *Event) IsHistory() bool {
	return e.OffsetMin < 0
}

// IsProposed reports whether the event is the action under evaluation.
func (e *Event) IsProposed() bool {
	return e.OffsetMin == 0
}
