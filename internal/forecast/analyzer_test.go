package forecast

import (
	"testing"
	"time"

	"github.com/mrcode/glucopilot/internal/models"
)

func entryAt(at time.Time, mgdl int) models.GlucoseEntry {
	return models.GlucoseEntry{Date: at.UnixMilli(), SGV: mgdl}
}

// nights generates CGM entries for several consecutive nights, each drifting
// by driftPerHalfHour every 30 minutes between 00:00 and 03:00.
func nights(start time.Time, count int, startBG, driftPerHalfHour int) []models.GlucoseEntry {
	var entries []models.GlucoseEntry
	for d := 0; d < count; d++ {
		night := start.AddDate(0, 0, d)
		bg := startBG
		for m := 0; m <= 180; m += 30 {
			entries = append(entries, entryAt(night.Add(time.Duration(m)*time.Minute), bg))
			bg += driftPerHalfHour
		}
	}
	return entries
}

func TestBuildNightPatternProfile_MedianDrift(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	entries := nights(start, 8, 140, -6)

	profile := BuildNightPatternProfile(entries, nil, time.UTC, DefaultAnalyzerConfig())
	if profile == nil {
		t.Fatal("profile = nil")
	}
	if profile.BucketMinutes != 30 {
		t.Errorf("BucketMinutes = %d, want 30", profile.BucketMinutes)
	}
	if len(profile.Buckets) == 0 {
		t.Fatal("no buckets built")
	}

	// Midnight bucket: every night drops 6 mg/dL over the half hour.
	b, ok := profile.Buckets[0]
	if !ok {
		t.Fatal("bucket 0 missing")
	}
	if b.MedianDelta != -6 {
		t.Errorf("MedianDelta = %v, want -6", b.MedianDelta)
	}
	if b.Dispersion != 0 {
		t.Errorf("Dispersion = %v, want 0 for identical nights", b.Dispersion)
	}
	if b.Samples != 8 {
		t.Errorf("Samples = %d, want 8", b.Samples)
	}
	if profile.Days < 8 {
		t.Errorf("Days = %d, want at least 8", profile.Days)
	}
}

func TestBuildNightPatternProfile_ThinBucketsDropped(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	entries := nights(start, 3, 140, -6) // below MinSamples

	profile := BuildNightPatternProfile(entries, nil, time.UTC, DefaultAnalyzerConfig())
	if len(profile.Buckets) != 0 {
		t.Errorf("Buckets = %v, want none below the sample floor", profile.Buckets)
	}
}

func TestBuildNightPatternProfile_TreatmentExcludesDeltas(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	entries := nights(start, 8, 140, -6)

	// A bolus shortly before midnight on every night confounds window A.
	var treatments []models.Treatment
	for d := 0; d < 8; d++ {
		treatments = append(treatments, models.Treatment{
			EventType: "Correction Bolus",
			Insulin:   2,
			Date:      start.AddDate(0, 0, d).Add(-time.Hour).UnixMilli(),
		})
	}

	profile := BuildNightPatternProfile(entries, treatments, time.UTC, DefaultAnalyzerConfig())
	if len(profile.Buckets) != 0 {
		t.Errorf("Buckets = %v, want none with nightly confounders", profile.Buckets)
	}
}

func TestBuildNightPatternProfile_DaytimeIgnored(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	entries := nights(start, 8, 140, -6) // noon, outside both windows

	profile := BuildNightPatternProfile(entries, nil, time.UTC, DefaultAnalyzerConfig())
	if len(profile.Buckets) != 0 {
		t.Errorf("Buckets = %v, want none from daytime data", profile.Buckets)
	}
}

func TestMedianHelpers(t *testing.T) {
	if got := median([]float64{3, 1, 2}); got != 2 {
		t.Errorf("median odd = %v, want 2", got)
	}
	if got := median([]float64{4, 1, 2, 3}); got != 2.5 {
		t.Errorf("median even = %v, want 2.5", got)
	}
	if got := medianAbsDeviation([]float64{1, 2, 3, 4, 100}, 3); got != 1 {
		t.Errorf("MAD = %v, want 1", got)
	}
}
