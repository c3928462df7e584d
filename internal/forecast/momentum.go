package forecast

import (
	"math"

	"github.com/mrcode/glucopilot/internal/models"
)

// MomentumResult is the fitted short-term glucose trend and what was done
// to it before use.
type MomentumResult struct {
	Active         bool    `json:"active"`
	SlopePerMin    float64 `json:"slope_per_min"`     // after capping
	RawSlopePerMin float64 `json:"raw_slope_per_min"` // as fitted
	Capped         bool    `json:"capped"`
	SampleCount    int     `json:"sample_count"`
	Warning        string  `json:"warning,omitempty"`
}

// ComputeMomentum fits a least-squares line through the recent CGM samples
// and returns the per-minute slope, capped to the physiological limit. An
// inactive result carries a warning explaining why the trend was not used.
func ComputeMomentum(samples []models.CGMSample, cfg models.MomentumConfig, tn Tuning) MomentumResult {
	if !cfg.Enabled {
		return MomentumResult{}
	}

	minPoints := cfg.MinPoints
	if minPoints < 2 {
		minPoints = 3
	}
	if len(samples) < minPoints {
		return MomentumResult{
			SampleCount: len(samples),
			Warning:     models.WarnMomentumInsufficient,
		}
	}

	newest := math.Inf(1)
	for i := range samples {
		if samples[i].MinutesAgo < newest {
			newest = samples[i].MinutesAgo
		}
	}
	if newest > tn.StaleCGMMin {
		return MomentumResult{
			SampleCount: len(samples),
			Warning:     models.WarnCGMStale,
		}
	}

	// Least squares over (t, glucose) with t = -MinutesAgo so the slope
	// comes out in forward time.
	var sumT, sumG, sumTT, sumTG float64
	n := float64(len(samples))
	for i := range samples {
		t := -samples[i].MinutesAgo
		g := samples[i].Glucose
		sumT += t
		sumG += g
		sumTT += t * t
		sumTG += t * g
	}
	den := n*sumTT - sumT*sumT
	if den == 0 {
		return MomentumResult{
			SampleCount: len(samples),
			Warning:     models.WarnMomentumInsufficient,
		}
	}
	raw := (n*sumTG - sumT*sumG) / den

	res := MomentumResult{
		Active:         true,
		SlopePerMin:    raw,
		RawSlopePerMin: raw,
		SampleCount:    len(samples),
	}
	if math.Abs(raw) > tn.MaxMomentumSlope {
		res.SlopePerMin = math.Copysign(tn.MaxMomentumSlope, raw)
		res.Capped = true
		res.Warning = models.WarnMomentumCapped
	}
	return res
}

// Rate returns the momentum contribution in mg/dL per minute at tMin into
// the forecast. The fitted slope decays linearly to zero across the leading
// window so the trend levels off instead of extrapolating forever.
func (m MomentumResult) Rate(tMin float64, tn Tuning) float64 {
	if !m.Active || tMin >= tn.MomentumWindowMin {
		return 0
	}
	if tMin < 0 {
		tMin = 0
	}
	return m.SlopePerMin * (1 - tMin/tn.MomentumWindowMin)
}
