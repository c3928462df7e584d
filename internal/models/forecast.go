// Package models contains data structures used throughout the application
package models

import "time"

// InsulinModel selects the activity curve family for bolus insulin.
type InsulinModel string

const (
	InsulinModelExponential InsulinModel = "exponential"
	InsulinModelLinear      InsulinModel = "linear"
)

// SimulationParameters is the immutable per-call parameter set for a forecast.
type SimulationParameters struct {
	ISF               float64      `json:"isf"`               // mg/dL drop per unit
	ICR               float64      `json:"icr"`               // grams per unit
	InsulinActionMin  float64      `json:"insulinActionMin"`  // DIA in minutes
	CarbAbsorptionMin float64      `json:"carbAbsorptionMin"` // default absorption duration
	InsulinPeakMin    float64      `json:"insulinPeakMin"`    // peak activity time
	OnsetDelayMin     float64      `json:"onsetDelayMin"`     // injection-to-action lag for new doses
	InsulinModel      InsulinModel `json:"insulinModel"`
	BasalDailyUnits   float64      `json:"basalDailyUnits"` // reference daily basal dose
	FiberFactor       float64      `json:"fiberFactor"`     // effective-carb grams deducted per gram fiber
	FiberMinGrams     float64      `json:"fiberMinGrams"`   // fiber below this is ignored
	TargetGlucose     float64      `json:"targetGlucose"`   // mg/dL
}

// MomentumConfig controls the CGM trend extrapolator.
type MomentumConfig struct {
	Enabled   bool `json:"enabled"`
	MinPoints int  `json:"minPoints"` // minimum lookback samples for a slope
}

// ForecastPoint is one step of the predicted glucose trajectory.
type ForecastPoint struct {
	TMin   float64 `json:"tMin"`
	BG     float64 `json:"bg"` // mg/dL
	BGMmol float64 `json:"bgMmol"`
}

// ComponentImpact attributes the cumulative glucose delta at one step to its
// sources. Diagnostic only; the series is never re-derived from it.
type ComponentImpact struct {
	TMin       float64 `json:"tMin"`
	Insulin    float64 `json:"insulin"`    // cumulative mg/dL after damping, negative
	RawInsulin float64 `json:"rawInsulin"` // cumulative mg/dL before damping
	Carb       float64 `json:"carb"`
	Basal      float64 `json:"basal"`
	Momentum   float64 `json:"momentum"`
}

// ForecastSummary holds aggregates derived once from the final series.
type ForecastSummary struct {
	Now          float64 `json:"now"`
	At30Min      float64 `json:"at30Min"`
	At2H         float64 `json:"at2h"`
	At4H         float64 `json:"at4h"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	TimeToMinMin float64 `json:"timeToMinMin"`
	End          float64 `json:"end"`
}

// QualityTier signals how much the forecast degraded.
type QualityTier string

const (
	QualityHigh   QualityTier = "high"
	QualityMedium QualityTier = "medium"
	QualityLow    QualityTier = "low"
)

// Forecast warning codes. Every detected anomaly surfaces as one of these;
// none are dropped silently.
const (
	WarnMomentumCapped       = "momentum_slope_capped"
	WarnMomentumInsufficient = "momentum_insufficient_samples"
	WarnCGMStale             = "cgm_samples_stale"
	WarnClampHit             = "safety_clamp_hit"
	WarnNightProfileMissing  = "night_profile_missing"
	WarnNightShiftCapped     = "night_shift_capped"
)

// NightContext carries the confounder signals the night-pattern overlay gates on.
// IOB and COB must be known (non-nil) for the overlay to apply at all.
type NightContext struct {
	IOB               *float64 `json:"iob"`
	COB               *float64 `json:"cob"`
	ActiveDraft       bool     `json:"activeDraft"`       // a dose draft is being composed
	RecentMealOrBolus bool     `json:"recentMealOrBolus"` // treatment within the lookback window
	RisingTrend       bool     `json:"risingTrend"`
	SlowDigestion     bool     `json:"slowDigestion"` // high fat/protein meal still absorbing
}

// NightPatternBucket aggregates historical nocturnal drift for one
// time-of-day bucket.
type NightPatternBucket struct {
	MedianDelta float64 `json:"medianDelta"` // mg/dL over the bucket interval
	Dispersion  float64 `json:"dispersion"`  // median absolute deviation
	Samples     int     `json:"samples"`
}

// NightPatternProfile is an immutable snapshot produced by the offline
// aggregation job. The forecast path only ever reads it.
type NightPatternProfile struct {
	Version       int64                      `json:"version"`
	BuiltAt       time.Time                  `json:"builtAt"`
	Days          int                        `json:"days"`          // history span that backed the snapshot
	BucketMinutes int                        `json:"bucketMinutes"` // width of each time-of-day bucket
	Buckets       map[int]NightPatternBucket `json:"buckets"`       // keyed by minutes-since-midnight / BucketMinutes
	Source        string                     `json:"source"`
}

// NightPatternMeta reports what the overlay did and why.
type NightPatternMeta struct {
	Applied      bool    `json:"applied"`
	Window       string  `json:"window,omitempty"` // "A" or "B"
	SkipReason   string  `json:"skipReason,omitempty"`
	Bucket       int     `json:"bucket"`
	MedianDelta  float64 `json:"medianDelta"`
	AppliedDelta float64 `json:"appliedDelta"` // after the magnitude cap
	Capped       bool    `json:"capped"`
	Samples      int     `json:"samples"`
	Dispersion   float64 `json:"dispersion"`
}

// ForecastRequest is the full input to one forecast simulation call.
// All fields are owned by the caller; the engine takes private copies of
// anything it mutates.
type ForecastRequest struct {
	StartGlucose float64 `json:"startGlucose"`
	Unit         string  `json:"unit"` // "mg/dL" (default) or "mmol/L"
	HorizonMin   int     `json:"horizonMin"`
	StepMin      int     `json:"stepMin"`

	Parameters SimulationParameters `json:"parameters"`
	Momentum   MomentumConfig       `json:"momentum"`
	Events     []Event              `json:"events"`
	CGM        []CGMSample          `json:"cgm,omitempty"`

	IncludeBaseline bool `json:"includeBaseline"`

	// Night-pattern overlay inputs; nil profile disables the overlay.
	NightProfile *NightPatternProfile `json:"nightProfile,omitempty"`
	NightContext *NightContext        `json:"nightContext,omitempty"`
	NowLocal     time.Time            `json:"nowLocal,omitempty"`
}

// ForecastResult is the structured output of one simulation call.
type ForecastResult struct {
	Series   []ForecastPoint   `json:"series"`
	Baseline []ForecastPoint   `json:"baseline,omitempty"` // without the proposed dose
	Impacts  []ComponentImpact `json:"impacts"`
	Summary  ForecastSummary   `json:"summary"`
	Quality  QualityTier       `json:"quality"`
	Warnings []string          `json:"warnings"`
	Night    *NightPatternMeta `json:"night,omitempty"`
	IOB      float64           `json:"iob"`
	COB      float64           `json:"cob"`
}
