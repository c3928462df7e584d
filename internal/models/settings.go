// Package models contains data structures used throughout the application
package models

// Settings contains all user-facing configuration that the settings store
// persists. Runtime wiring (ports, tokens, paths) lives in the config package;
// everything here is therapy- and display-related and editable over the API.
type Settings struct {
	// Connection settings
	NightscoutURL string `json:"nightscoutUrl"`
	APISecret     string `json:"apiSecret"` // Plain API secret (hashed before sending)
	APIToken      string `json:"apiToken"`  // Token-based auth
	UseToken      bool   `json:"useToken"`  // Use token instead of secret

	// Display settings
	Unit            string `json:"unit"`            // "mg/dL" or "mmol/L"
	RefreshInterval int    `json:"refreshInterval"` // Seconds (30-600)

	// Glucose thresholds (in mg/dL, converted for display)
	TargetLow  int `json:"targetLow"`
	TargetHigh int `json:"targetHigh"`
	UrgentLow  int `json:"urgentLow"`
	UrgentHigh int `json:"urgentHigh"`

	// Alert settings
	EnableHighAlert       bool `json:"enableHighAlert"`
	EnableLowAlert        bool `json:"enableLowAlert"`
	EnableUrgentHighAlert bool `json:"enableUrgentHighAlert"`
	EnableUrgentLowAlert  bool `json:"enableUrgentLowAlert"`
	RepeatAlertMinutes    int  `json:"repeatAlertMinutes"` // 0 = no repeat

	// Default simulation parameters used when a forecast request leaves them unset
	ISF               float64 `json:"isf"`
	ICR               float64 `json:"icr"`
	InsulinActionMin  float64 `json:"insulinActionMin"`
	CarbAbsorptionMin float64 `json:"carbAbsorptionMin"`
	InsulinPeakMin    float64 `json:"insulinPeakMin"`
	OnsetDelayMin     float64 `json:"onsetDelayMin"`
	BasalDailyUnits   float64 `json:"basalDailyUnits"`
	FiberFactor       float64 `json:"fiberFactor"`
	FiberMinGrams     float64 `json:"fiberMinGrams"`
	TargetGlucose     float64 `json:"targetGlucose"`

	// Forecast settings
	HorizonMin int `json:"horizonMin"`
	StepMin    int `json:"stepMin"`
}

// DefaultSettings returns settings with default values
func DefaultSettings() *Settings {
	return &Settings{
		Unit:            "mg/dL",
		RefreshInterval: 60,

		TargetLow:  70,
		TargetHigh: 180,
		UrgentLow:  55,
		UrgentHigh: 250,

		EnableHighAlert:       true,
		EnableLowAlert:        true,
		EnableUrgentHighAlert: true,
		EnableUrgentLowAlert:  true,
		RepeatAlertMinutes:    15,

		ISF:               50,
		ICR:               10,
		InsulinActionMin:  300,
		CarbAbsorptionMin: 180,
		InsulinPeakMin:    75,
		OnsetDelayMin:     10,
		BasalDailyUnits:   24,
		FiberFactor:       0.5,
		FiberMinGrams:     3,
		TargetGlucose:     110,

		HorizonMin: 240,
		StepMin:    5,
	}
}

// Clone creates a copy of the settings
func (s *Settings) Clone() *Settings {
	clone := *s
	return &clone
}

// IsConfigured returns true if minimum required settings are set
func (s *Settings) IsConfigured() bool {
	return s.NightscoutURL != ""
}

// SimulationParameters builds the immutable per-call parameter set from the
// stored defaults.
func (s *Settings) SimulationParameters() SimulationParameters {
	return SimulationParameters{
		ISF:               s.ISF,
		ICR:               s.ICR,
		InsulinActionMin:  s.InsulinActionMin,
		CarbAbsorptionMin: s.CarbAbsorptionMin,
		InsulinPeakMin:    s.InsulinPeakMin,
		OnsetDelayMin:     s.OnsetDelayMin,
		InsulinModel:      InsulinModelExponential,
		BasalDailyUnits:   s.BasalDailyUnits,
		FiberFactor:       s.FiberFactor,
		FiberMinGrams:     s.FiberMinGrams,
		TargetGlucose:     s.TargetGlucose,
	}
}

// GetGlucoseStatus returns the status string for a glucose value
func (s *Settings) GetGlucoseStatus(mgdl int) string {
	switch {
	case mgdl <= s.UrgentLow:
		return "urgent_low"
	case mgdl <= s.TargetLow:
		return "low"
	case mgdl >= s.UrgentHigh:
		return "urgent_high"
	case mgdl >= s.TargetHigh:
		return "high"
	default:
		return "normal"
	}
}
