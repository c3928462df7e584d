package forecast

// ScaleDetail records how the early-action damping was applied at one step.
type ScaleDetail struct {
	Active       bool
	BaseScale    float64
	SlopeRelease float64
	HypoRelease  float64
	Release      float64
	Scale        float64
}

// AntiPanicScale damps a meal bolus's early insulin effect. A dose taken
// with food acts on the model before the carbs do, so the raw curve draws
// an alarming plunge in the first half of its action that the meal will in
// fact cover. The damping is released when the data says the drop is real:
// a genuinely falling CGM trend, or the damped prediction itself heading
// toward hypo range.
//
// slopePer5Min is the observed CGM slope in mg/dL per 5 minutes.
// dampedPrev is the previous step's damped prediction; feeding the raw
// prediction back here would defeat the gate, since the raw curve reaches
// the release range sooner than the damped one.
func AntiPanicScale(tMin float64, linkedMeal bool, slopePer5Min float64, dampedPrev float64, tn Tuning) ScaleDetail {
	if !linkedMeal || tMin >= tn.AntiPanicWindowMin {
		return ScaleDetail{Scale: 1}
	}

	base := tn.AntiPanicFloor + (1-tn.AntiPanicFloor)*(tMin/tn.AntiPanicWindowMin)

	// Falling-trend release: ramps from 0 at a mild drop to 1 at a real one.
	slopeRelease := clamp01((tn.SlopeMildPer5Min - slopePer5Min) /
		(tn.SlopeMildPer5Min - tn.SlopeRealPer5Min))

	// Hypo release: ramps in as the damped prediction approaches the
	// hypo band.
	hypoRelease := clamp01((tn.HypoReleaseHigh - dampedPrev) /
		(tn.HypoReleaseHigh - tn.HypoReleaseLow))

	release := slopeRelease
	if hypoRelease > release {
		release = hypoRelease
	}

	return ScaleDetail{
		Active:       true,
		BaseScale:    base,
		SlopeRelease: slopeRelease,
		HypoRelease:  hypoRelease,
		Release:      release,
		Scale:        base + (1-base)*release,
	}
}
