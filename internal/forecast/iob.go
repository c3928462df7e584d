package forecast

import "github.com/mrcode/glucopilot/internal/models"

// InsulinOnBoard sums the units still unabsorbed from past bolus events at
// forecast time zero. Basal injections are excluded: their background
// release is modeled separately and would dwarf the bolus signal here.
func InsulinOnBoard(events []models.Event, params models.SimulationParameters) float64 {
	total := 0.0
	for i := range events {
		e := &events[i]
		if e.Kind != models.EventBolus || e.OffsetMin >= 0 {
			continue
		}
		elapsed := -e.OffsetMin
		total += e.Amount * bolusRemaining(elapsed, e, params)
	}
	return total
}

// CarbsOnBoard sums the effective grams not yet absorbed from past carb
// events at forecast time zero.
func CarbsOnBoard(events []models.Event, params models.SimulationParameters) float64 {
	total := 0.0
	for i := range events {
		e := &events[i]
		if e.Kind != models.EventCarbohydrate || e.OffsetMin >= 0 {
			continue
		}
		duration := e.AbsorptionMin
		if duration <= 0 {
			duration = params.CarbAbsorptionMin
		}
		elapsed := -e.OffsetMin
		remaining := 1 - CarbAbsorbedFraction(elapsed, duration, CarbCurveTriangular)
		total += EffectiveCarbs(e, params) * remaining
	}
	return total
}

// bolusRemaining is the unabsorbed fraction of one bolus after elapsed
// minutes, spreading extended boluses across their delivery window.
func bolusRemaining(elapsed float64, e *models.Event, params models.SimulationParameters) float64 {
	peak := params.InsulinPeakMin
	duration := params.InsulinActionMin
	if e.DurationMin <= 0 {
		return InsulinRemaining(elapsed, peak, duration, params.InsulinModel)
	}
	// Extended bolus: average the remaining fraction over the delivery
	// window at a 5 minute grain.
	const grain = 5.0
	steps := int(e.DurationMin/grain + 0.5)
	if steps < 1 {
		steps = 1
	}
	sub := e.DurationMin / float64(steps)
	sum := 0.0
	for i := 0; i < steps; i++ {
		mid := (float64(i) + 0.5) * sub
		sum += InsulinRemaining(elapsed-mid, peak, duration, params.InsulinModel)
	}
	return sum / float64(steps)
}
