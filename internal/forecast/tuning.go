// Package forecast implements the glucose forecast simulation engine:
// pharmacokinetic curve models, event normalization, momentum extrapolation,
// anti-panic damping, the night-pattern overlay and the per-step orchestrator.
//
// Everything in this package is pure computation over the caller's inputs.
// There is no I/O, no module-level mutable state and no internal concurrency;
// calls are safe to run concurrently because each call owns its copies.
package forecast

// Tuning carries the empirically tuned numeric constants of the engine.
// The values are configuration defaults validated against fixtures, not
// physiologically derived; callers can override any of them per call.
type Tuning struct {
	// Global safety band: every emitted glucose value stays inside, even
	// transiently.
	ClampMinMgdl float64
	ClampMaxMgdl float64

	// Momentum extrapolator
	MaxMomentumSlope  float64 // mg/dL per minute, cap on the raw slope
	MomentumWindowMin float64 // leading window in which momentum contributes
	StaleCGMMin       float64 // newest sample older than this disables momentum

	// Anti-panic gate
	AntiPanicWindowMin float64 // early window in which damping applies
	AntiPanicFloor     float64 // base scale at t=0
	SlopeMildPer5Min   float64 // slope release starts here (mg/dL per 5 min)
	SlopeRealPer5Min   float64 // full slope release at this drop rate
	HypoReleaseHigh    float64 // hypo release starts as damped value crosses this
	HypoReleaseLow     float64 // full hypo release at this value

	// Linked-meal detection around the proposed dose
	LinkedMealBeforeMin float64
	LinkedMealAfterMin  float64
}

// DefaultTuning returns the recommended defaults.
func DefaultTuning() Tuning {
	return Tuning{
		ClampMinMgdl: 20,
		ClampMaxMgdl: 600,

		MaxMomentumSlope:  3.0,
		MomentumWindowMin: 45,
		StaleCGMMin:       15,

		AntiPanicWindowMin: 105,
		AntiPanicFloor:     0.6,
		SlopeMildPer5Min:   -1.0,
		SlopeRealPer5Min:   -2.5,
		HypoReleaseHigh:    90,
		HypoReleaseLow:     80,

		LinkedMealBeforeMin: 15,
		LinkedMealAfterMin:  30,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clamp01(v float64) float64 {
	return clamp(v, 0, 1)
}
