package forecast

import (
	"time"

	"github.com/mrcode/glucopilot/internal/models"
)

// NightPatternConfig controls when the historical nocturnal drift overlay
// is allowed to shift a forecast.
type NightPatternConfig struct {
	Enabled bool

	// Window A applies unconditionally once asleep-hours are underway.
	WindowAStartHour int
	WindowAEndHour   int

	// Window B covers the pre-midnight evening and only applies when no
	// confounder is active.
	WindowBStartHour int
	WindowBEndHour   int

	// From this hour until the evening window opens the overlay is off
	// entirely, dawn and daytime being too irregular for a median to mean
	// anything.
	DisableHour int

	MinSamples   int     // buckets with fewer observations are ignored
	MaxShiftMgdl float64 // cap on the per-forecast shift magnitude
}

// DefaultNightPatternConfig returns the stock overlay gating.
func DefaultNightPatternConfig() NightPatternConfig {
	return NightPatternConfig{
		Enabled:          true,
		WindowAStartHour: 0,
		WindowAEndHour:   3,
		WindowBStartHour: 21,
		WindowBEndHour:   24,
		DisableHour:      5,
		MinSamples:       5,
		MaxShiftMgdl:     25,
	}
}

// Overlay skip reasons, surfaced in NightPatternMeta.
const (
	nightSkipDisabled      = "disabled"
	nightSkipNoProfile     = "no_profile"
	nightSkipUnknownIOBCOB = "unknown_iob_cob"
	nightSkipPastDisable   = "past_disable_hour"
	nightSkipOutsideWindow = "outside_window"
	nightSkipNoBucketData  = "no_bucket_data"
	nightSkipConfounder    = "confounder_active"
)

// ApplyNightPattern shifts a forecast series by the historical nocturnal
// drift for the current time of day, when the gating allows it. The shift
// is a single constant added to every point. It returns the adjusted
// series, metadata on what was applied or why nothing was, and the raw
// per-point deltas before the magnitude cap.
func ApplyNightPattern(series []models.ForecastPoint, profile *models.NightPatternProfile, cfg NightPatternConfig, nowLocal time.Time, nctx *models.NightContext) ([]models.ForecastPoint, models.NightPatternMeta, []float64) {
	meta := models.NightPatternMeta{}

	if !cfg.Enabled {
		meta.SkipReason = nightSkipDisabled
		return series, meta, nil
	}
	if profile == nil || len(profile.Buckets) == 0 {
		meta.SkipReason = nightSkipNoProfile
		return series, meta, nil
	}
	if nctx == nil || nctx.IOB == nil || nctx.COB == nil {
		meta.SkipReason = nightSkipUnknownIOBCOB
		return series, meta, nil
	}

	hour := nowLocal.Hour()
	window := ""
	switch {
	case hour >= cfg.WindowAStartHour && hour < cfg.WindowAEndHour:
		window = "A"
	case hour >= cfg.WindowBStartHour && hour < cfg.WindowBEndHour:
		window = "B"
	case hour >= cfg.DisableHour && hour < cfg.WindowBStartHour:
		meta.SkipReason = nightSkipPastDisable
		return series, meta, nil
	default:
		meta.SkipReason = nightSkipOutsideWindow
		return series, meta, nil
	}

	if window == "B" {
		if reason := confounder(nctx); reason != "" {
			meta.SkipReason = nightSkipConfounder + ":" + reason
			return series, meta, nil
		}
	}

	bucketMin := profile.BucketMinutes
	if bucketMin <= 0 {
		bucketMin = 30
	}
	bucket := (hour*60 + nowLocal.Minute()) / bucketMin
	data, ok := profile.Buckets[bucket]
	if !ok || data.Samples < cfg.MinSamples {
		meta.Bucket = bucket
		meta.SkipReason = nightSkipNoBucketData
		return series, meta, nil
	}

	shift := data.MedianDelta
	capped := false
	if cfg.MaxShiftMgdl > 0 {
		if shift > cfg.MaxShiftMgdl {
			shift = cfg.MaxShiftMgdl
			capped = true
		} else if shift < -cfg.MaxShiftMgdl {
			shift = -cfg.MaxShiftMgdl
			capped = true
		}
	}

	out := make([]models.ForecastPoint, len(series))
	raw := make([]float64, len(series))
	copy(out, series)
	for i := range out {
		out[i].BG += shift
		out[i].BGMmol = models.ToMmol(out[i].BG)
		raw[i] = data.MedianDelta
	}

	meta = models.NightPatternMeta{
		Applied:      true,
		Window:       window,
		Bucket:       bucket,
		MedianDelta:  data.MedianDelta,
		AppliedDelta: shift,
		Capped:       capped,
		Samples:      data.Samples,
		Dispersion:   data.Dispersion,
	}
	return out, meta, raw
}

// confounder returns the first active confounder signal, or "" when the
// evening window is clean.
func confounder(nctx *models.NightContext) string {
	switch {
	case nctx.ActiveDraft:
		return "active_draft"
	case nctx.RecentMealOrBolus:
		return "recent_meal_or_bolus"
	case nctx.RisingTrend:
		return "rising_trend"
	case nctx.SlowDigestion:
		return "slow_digestion"
	}
	return ""
}
