package forecast

import (
	"math"
	"sort"
	"time"

	"github.com/mrcode/glucopilot/internal/models"
)

// AnalyzerConfig controls the offline night-pattern aggregation.
type AnalyzerConfig struct {
	BucketMinutes     int           // time-of-day bucket width
	DeltaSpan         time.Duration // interval each delta is measured over
	MaxGap            time.Duration // pairs further apart than this are skipped
	ConfounderWindow  time.Duration // deltas this close after a treatment are excluded
	NightStartHour    int           // buckets outside [start, end) are not built
	NightEndHour      int
	EveningStartHour  int
	MinSamples        int
}

// DefaultAnalyzerConfig returns the stock aggregation settings: half-hour
// buckets over the two overlay windows, roughly 30 minute deltas, and a
// four hour treatment exclusion.
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		BucketMinutes:    30,
		DeltaSpan:        30 * time.Minute,
		MaxGap:           40 * time.Minute,
		ConfounderWindow: 4 * time.Hour,
		NightStartHour:   0,
		NightEndHour:     5,
		EveningStartHour: 21,
		MinSamples:       5,
	}
}

// BuildNightPatternProfile aggregates historical nocturnal glucose drift
// into per-bucket median deltas. It pairs each nocturnal entry with the
// first entry about DeltaSpan later, discards deltas confounded by a recent
// treatment, and summarizes each time-of-day bucket with the median and the
// median absolute deviation. Runs offline; the forecast path only reads the
// snapshot it returns.
func BuildNightPatternProfile(entries []models.GlucoseEntry, treatments []models.Treatment, loc *time.Location, cfg AnalyzerConfig) *models.NightPatternProfile {
	if loc == nil {
		loc = time.Local
	}
	if cfg.BucketMinutes <= 0 {
		cfg = DefaultAnalyzerConfig()
	}

	sorted := make([]models.GlucoseEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Time().Before(sorted[j].Time())
	})

	treatmentTimes := make([]time.Time, 0, len(treatments))
	for i := range treatments {
		if treatments[i].HasInsulin() || treatments[i].HasCarbs() {
			treatmentTimes = append(treatmentTimes, treatments[i].Time())
		}
	}

	deltas := make(map[int][]float64)
	var firstAt, lastAt time.Time

	for i := range sorted {
		at := sorted[i].Time().In(loc)
		if !nocturnalHour(at.Hour(), cfg) {
			continue
		}
		if confoundedByTreatment(sorted[i].Time(), treatmentTimes, cfg.ConfounderWindow) {
			continue
		}

		j, ok := pairIndex(sorted, i, cfg)
		if !ok {
			continue
		}

		bucket := (at.Hour()*60 + at.Minute()) / cfg.BucketMinutes
		deltas[bucket] = append(deltas[bucket], float64(sorted[j].ValueMgDL()-sorted[i].ValueMgDL()))

		if firstAt.IsZero() || at.Before(firstAt) {
			firstAt = at
		}
		if at.After(lastAt) {
			lastAt = at
		}
	}

	buckets := make(map[int]models.NightPatternBucket, len(deltas))
	for bucket, vals := range deltas {
		if len(vals) < cfg.MinSamples {
			continue
		}
		med := median(vals)
		buckets[bucket] = models.NightPatternBucket{
			MedianDelta: med,
			Dispersion:  medianAbsDeviation(vals, med),
			Samples:     len(vals),
		}
	}

	now := time.Now()
	days := 0
	if !firstAt.IsZero() {
		days = int(lastAt.Sub(firstAt).Hours()/24) + 1
	}
	return &models.NightPatternProfile{
		Version:       now.Unix(),
		BuiltAt:       now,
		Days:          days,
		BucketMinutes: cfg.BucketMinutes,
		Buckets:       buckets,
		Source:        "cgm_history",
	}
}

// pairIndex finds the first entry at least DeltaSpan after entry i, within
// the gap tolerance.
func pairIndex(sorted []models.GlucoseEntry, i int, cfg AnalyzerConfig) (int, bool) {
	target := sorted[i].Time().Add(cfg.DeltaSpan)
	limit := sorted[i].Time().Add(cfg.MaxGap)
	for j := i + 1; j < len(sorted); j++ {
		at := sorted[j].Time()
		if at.Before(target) {
			continue
		}
		if at.After(limit) {
			return 0, false
		}
		return j, true
	}
	return 0, false
}

func nocturnalHour(hour int, cfg AnalyzerConfig) bool {
	if hour >= cfg.NightStartHour && hour < cfg.NightEndHour {
		return true
	}
	return hour >= cfg.EveningStartHour
}

func confoundedByTreatment(at time.Time, treatments []time.Time, window time.Duration) bool {
	for _, tt := range treatments {
		if !at.Before(tt) && at.Sub(tt) < window {
			return true
		}
	}
	return false
}

func median(vals []float64) float64 {
	s := make([]float64, len(vals))
	copy(s, vals)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

func medianAbsDeviation(vals []float64, med float64) float64 {
	dev := make([]float64, len(vals))
	for i, v := range vals {
		dev[i] = math.Abs(v - med)
	}
	return median(dev)
}
