package forecast

import (
	"math"

	"github.com/mrcode/glucopilot/internal/models"
)

// CarbCurve selects the absorption-rate shape for carbohydrate events.
type CarbCurve string

const (
	CarbCurveTriangular CarbCurve = "triangular"
	CarbCurveFlat       CarbCurve = "flat"
)

// exponentialTimeConstant solves the bi-exponential time constant from the
// peak time and action duration. Returns ok=false when the algebra
// degenerates (peak too close to half the duration), in which case callers
// fall back to the bilinear curve.
func exponentialTimeConstant(peak, duration float64) (tau float64, ok bool) {
	den := 1 - 2*peak/duration
	if den < 0.02 {
		// peak within ~1% of duration/2: tau blows up
		return 0, false
	}
	tau = peak * (1 - peak/duration) / den
	if tau <= 0 {
		return 0, false
	}
	return tau, true
}

// InsulinActivity returns the per-minute glucose-drop density of one unit of
// bolus insulin, t minutes after the dose. The curve's total area over
// [0, duration] is normalized to 1.0, so multiplying by dose units and ISF
// yields mg/dL per minute.
func InsulinActivity(t, peak, duration float64, model models.InsulinModel) float64 {
	if t <= 0 || t >= duration {
		return 0
	}

	if model != models.InsulinModelLinear {
		if tau, ok := exponentialTimeConstant(peak, duration); ok {
			a := 2 * tau / duration
			s := 1 / (1 - a + (1+a)*math.Exp(-duration/tau))
			return (s / (tau * tau)) * t * (1 - t/duration) * math.Exp(-t/tau)
		}
	}

	return triangleRate(t, peak, duration)
}

// InsulinRemaining returns the fraction of one unit still unused t minutes
// after the dose: 1 at t<=0, 0 at t>=duration, the complement of the
// integrated activity in between.
func InsulinRemaining(t, peak, duration float64, model models.InsulinModel) float64 {
	if t <= 0 {
		return 1
	}
	if t >= duration {
		return 0
	}

	if model != models.InsulinModelLinear {
		if tau, ok := exponentialTimeConstant(peak, duration); ok {
			a := 2 * tau / duration
			s := 1 / (1 - a + (1+a)*math.Exp(-duration/tau))
			rem := 1 - s*(1-a)*((t*t/(tau*duration*(1-a))-t/tau-1)*math.Exp(-t/tau)+1)
			return clamp01(rem)
		}
	}

	return 1 - triangleFraction(t, peak, duration)
}

// CarbAbsorptionRate returns the per-minute absorbed fraction of a meal,
// t minutes after eating. Area over [0, duration] is 1.0; multiplying by
// grams and CSF (ISF/ICR) yields mg/dL per minute. The triangular variant
// peaks at duration/3.
func CarbAbsorptionRate(t, duration float64, curve CarbCurve) float64 {
	if t <= 0 || t >= duration {
		return 0
	}
	if curve == CarbCurveFlat {
		return 1 / duration
	}
	return triangleRate(t, duration/3, duration)
}

// CarbAbsorbedFraction returns the fraction of a meal absorbed by t minutes,
// the integral of CarbAbsorptionRate.
func CarbAbsorbedFraction(t, duration float64, curve CarbCurve) float64 {
	if t <= 0 {
		return 0
	}
	if t >= duration {
		return 1
	}
	if curve == CarbCurveFlat {
		return t / duration
	}
	return triangleFraction(t, duration/3, duration)
}

// minTrapezoidDuration is the shortest basal action duration that still gets
// the ramp/plateau/ramp shape; anything shorter falls back to flat release.
const minTrapezoidDuration = 360

// BasalReleaseRate returns units released per minute for a long-acting dose
// of totalUnits, t minutes after injection. Outside [0, duration) the rate
// is zero. The shape depends on the pharmacokinetic class; the area under
// every shape equals totalUnits.
func BasalReleaseRate(t, duration float64, class models.BasalType, totalUnits float64) float64 {
	if t < 0 || t >= duration || duration <= 0 || totalUnits <= 0 {
		return 0
	}

	switch class {
	case models.BasalUltraLong:
		return totalUnits / duration

	case models.BasalLongActing:
		if duration < minTrapezoidDuration {
			return totalUnits / duration
		}
		ramp := 0.15 * duration
		// trapezoid with two ramps of width ramp: area = h*(duration-ramp)
		h := totalUnits / (duration - ramp)
		switch {
		case t < ramp:
			return h * t / ramp
		case t > duration-ramp:
			return h * (duration - t) / ramp
		default:
			return h
		}

	case models.BasalIntermediate:
		return totalUnits * triangleRate(t, 0.4*duration, duration)

	default:
		return totalUnits / duration
	}
}

// triangleRate is the area-normalized triangular density peaking at peak,
// zero at 0 and duration.
func triangleRate(t, peak, duration float64) float64 {
	if t <= 0 || t >= duration {
		return 0
	}
	height := 2 / duration
	if t < peak {
		return height * t / peak
	}
	return height * (duration - t) / (duration - peak)
}

// triangleFraction integrates triangleRate over [0, t].
func triangleFraction(t, peak, duration float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= duration {
		return 1
	}
	if t < peak {
		return t * t / (peak * duration)
	}
	rem := duration - t
	return 1 - rem*rem/((duration-peak)*duration)
}
