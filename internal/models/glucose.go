// Package models contains data structures used throughout the application
package models

import "time"

// GlucoseEntry represents a single glucose reading from Nightscout
type GlucoseEntry struct {
	ID        string `json:"_id"`
	SGV       int    `json:"sgv"`  // Sensor glucose value in mg/dL
	Date      int64  `json:"date"` // Unix timestamp in milliseconds
	DateStr   string `json:"dateString"`
	Trend     int    `json:"trend"`     // Trend direction (1-7)
	Direction string `json:"direction"` // Trend direction as string
	Device    string `json:"device"`
	Type      string `json:"type"`
	Mills     int64  `json:"mills"`
}

// Time returns the time of the glucose entry
func (g *GlucoseEntry) Time() time.Time {
	return time.UnixMilli(g.Date)
}

// ValueMgDL returns the glucose value in mg/dL
func (g *GlucoseEntry) ValueMgDL() int {
	return g.SGV
}

// ValueMmolL returns the glucose value in mmol/L
func (g *GlucoseEntry) ValueMmolL() float64 {
	return float64(g.SGV) / 18.0182
}

// TrendArrow returns the Unicode arrow character for the trend
func (g *GlucoseEntry) TrendArrow() string {
	arrows := map[string]string{
		"DoubleUp":          "⇈",
		"SingleUp":          "↑",
		"FortyFiveUp":       "↗",
		"Flat":              "→",
		"FortyFiveDown":     "↘",
		"SingleDown":        "↓",
		"DoubleDown":        "⇊",
		"NOT COMPUTABLE":    "?",
		"RATE OUT OF RANGE": "⚠",
	}

	if g.Direction != "" {
		if arrow, ok := arrows[g.Direction]; ok {
			return arrow
		}
	}

	// Fallback to numeric trend
	numericArrows := map[int]string{
		1: "⇈",
		2: "↑",
		3: "↗",
		4: "→",
		5: "↘",
		6: "↓",
		7: "⇊",
	}

	if arrow, ok := numericArrows[g.Trend]; ok {
		return arrow
	}

	return "-"
}

// CGMSample is a single CGM reading positioned relative to "now",
// the form the momentum extrapolator consumes.
type CGMSample struct {
	MinutesAgo float64 `json:"minutesAgo"`
	Glucose    float64 `json:"glucose"` // mg/dL
}

// GlucoseStatus represents the current glucose status for the API and the bot
type GlucoseStatus struct {
	Value        int       `json:"value"`        // mg/dL
	ValueMmol    float64   `json:"valueMmol"`    // mmol/L
	Trend        string    `json:"trend"`        // Arrow character
	Direction    string    `json:"direction"`    // Direction string
	Time         time.Time `json:"time"`         // Reading time
	Delta        int       `json:"delta"`        // Change from previous reading
	Status       string    `json:"status"`       // "normal", "high", "low", "urgent_high", "urgent_low"
	StaleMinutes int       `json:"staleMinutes"` // Minutes since last reading
	IsStale      bool      `json:"isStale"`      // True if data is stale (>15 min)
	IOB          float64   `json:"iob"`          // Insulin on Board (units)
	COB          float64   `json:"cob"`          // Carbs on Board (grams)
}

// ServerStatus represents the Nightscout server status
type ServerStatus struct {
	Status            string         `json:"status"`
	Name              string         `json:"name"`
	Version           string         `json:"version"`
	ServerTime        string         `json:"serverTime"`
	APIEnabled        bool           `json:"apiEnabled"`
	CareportalEnabled bool           `json:"careportalEnabled"`
	Head              string         `json:"head"`
	Settings          ServerSettings `json:"settings,omitempty"`
}

// ServerSettings contains Nightscout server settings
type ServerSettings struct {
	Units      string     `json:"units"`
	TimeFormat int        `json:"timeFormat"`
	Theme      string     `json:"theme"`
	Language   string     `json:"language"`
	Thresholds Thresholds `json:"thresholds,omitempty"`
}

// Thresholds contains glucose threshold settings
type Thresholds struct {
	BGHigh         int `json:"bgHigh"`
	BGLow          int `json:"bgLow"`
	BGTargetTop    int `json:"bgTargetTop"`
	BGTargetBottom int `json:"bgTargetBottom"`
}

// ToMmol converts a mg/dL value to mmol/L
func ToMmol(mgdl float64) float64 {
	return mgdl / 18.0182
}

// ToMgdl converts a mmol/L value to mg/dL
func ToMgdl(mmol float64) float64 {
	return mmol * 18.0182
}
