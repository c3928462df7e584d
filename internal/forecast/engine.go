// Package forecast implements the glucose trajectory simulation: insulin,
// carb and basal activity curves, CGM momentum, early-action damping, and
// the historical night-pattern overlay, driven by a stateless per-step
// engine.
package forecast

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mrcode/glucopilot/internal/models"
)

// Validation errors. The engine rejects degenerate parameters before any
// simulation work; wrap checks with errors.Is.
var (
	ErrInvalidParameters = errors.New("invalid simulation parameters")
	ErrInvalidHorizon    = errors.New("invalid horizon or step")
	ErrInvalidGlucose    = errors.New("invalid start glucose")
)

// ResidualAdjuster is an optional purely additive post-processor applied to
// the finished series. The engine is fully correct without one.
type ResidualAdjuster interface {
	Adjust(series, baseline []models.ForecastPoint) []models.ForecastPoint
}

// Engine runs forecast simulations. It holds tuning only; every call is
// stateless and safe to run concurrently.
type Engine struct {
	Tuning   Tuning
	Night    NightPatternConfig
	Residual ResidualAdjuster
}

// NewEngine returns an engine with stock tuning and night-pattern gating.
func NewEngine() *Engine {
	return &Engine{
		Tuning: DefaultTuning(),
		Night:  DefaultNightPatternConfig(),
	}
}

// Simulate runs one forecast. It validates inputs, normalizes the event
// timeline, steps the glucose trajectory across the horizon, clamps every
// point to the safety band, optionally applies the night-pattern overlay
// and residual adjuster, and derives the summary, quality tier and
// warnings.
func (e *Engine) Simulate(req models.ForecastRequest) (*models.ForecastResult, error) {
	params := req.Parameters
	if params.InsulinPeakMin <= 0 {
		params.InsulinPeakMin = 75
	}
	if params.InsulinModel == "" {
		params.InsulinModel = models.InsulinModelExponential
	}

	start := req.StartGlucose
	if isMmolUnit(req.Unit) {
		start = models.ToMgdl(start)
	}

	if err := validate(params, req, start); err != nil {
		return nil, err
	}

	tn := e.Tuning
	warnings := []string{}

	// Linked-meal detection reads the raw offsets, so it runs before the
	// onset-delay shift moves the proposed dose.
	linkedMeal := HasLinkedMeal(req.Events, tn)
	proposed := make([]bool, len(req.Events))
	for i := range req.Events {
		proposed[i] = req.Events[i].IsProposed()
	}

	tl := NewTimeline(req.Events)
	tl.Normalize(params.OnsetDelayMin)
	events := tl.Events()

	momentum := ComputeMomentum(req.CGM, req.Momentum, tn)
	if momentum.Warning != "" {
		warnings = append(warnings, momentum.Warning)
	}

	iob := InsulinOnBoard(events, params)
	cob := CarbsOnBoard(events, params)

	main := e.runSeries(start, req.HorizonMin, req.StepMin, events, proposed, true, linkedMeal, momentum, params)
	clampWarned := main.clampHit
	if main.clampHit {
		warnings = append(warnings, models.WarnClampHit)
	}

	result := &models.ForecastResult{
		Series:  main.series,
		Impacts: main.impacts,
		IOB:     iob,
		COB:     cob,
	}

	if req.IncludeBaseline {
		base := e.runSeries(start, req.HorizonMin, req.StepMin, events, proposed, false, false, momentum, params)
		result.Baseline = base.series
	}

	if e.Night.Enabled {
		adjusted, meta, _ := ApplyNightPattern(result.Series, req.NightProfile, e.Night, req.NowLocal, req.NightContext)
		result.Series = adjusted
		result.Night = &meta
		if meta.SkipReason == nightSkipNoProfile && !req.NowLocal.IsZero() {
			warnings = append(warnings, models.WarnNightProfileMissing)
		}
		if meta.Capped {
			warnings = append(warnings, models.WarnNightShiftCapped)
		}
		if meta.Applied {
			var hit bool
			result.Series, hit = reclamp(result.Series, tn)
			if hit && !clampWarned {
				warnings = append(warnings, models.WarnClampHit)
				clampWarned = true
			}
		}
	}

	if e.Residual != nil && result.Baseline != nil {
		adjusted, hit := reclamp(e.Residual.Adjust(result.Series, result.Baseline), tn)
		result.Series = adjusted
		if hit && !clampWarned {
			warnings = append(warnings, models.WarnClampHit)
		}
	}

	result.Summary = summarize(result.Series)
	result.Warnings = warnings
	result.Quality = qualityTier(warnings)
	return result, nil
}

type seriesRun struct {
	series   []models.ForecastPoint
	impacts  []models.ComponentImpact
	clampHit bool
}

// runSeries steps one trajectory. The raw and damped insulin deltas are
// kept as separate named accumulators: the anti-panic gate must be fed the
// damped running value; feeding it the raw one would spuriously release
// the damping every time the undamped projection dips early.
func (e *Engine) runSeries(start float64, horizon, step int, events []models.Event, proposed []bool, includeProposed, linkedMeal bool, momentum MomentumResult, params models.SimulationParameters) seriesRun {
	tn := e.Tuning

	run := seriesRun{
		series:  make([]models.ForecastPoint, 0, horizon/step+1),
		impacts: make([]models.ComponentImpact, 0, horizon/step+1),
	}

	slopePer5 := 0.0
	if momentum.Active {
		slopePer5 = momentum.SlopePerMin * 5
	}

	var rawInsulinCum, dampedInsulinCum float64
	var carbCum, basalCum, momentumCum float64
	dampedPrev := start

	appendPoint := func(tMin float64) {
		bg := start + dampedInsulinCum + carbCum + basalCum + momentumCum
		clamped := clamp(bg, tn.ClampMinMgdl, tn.ClampMaxMgdl)
		if clamped != bg {
			run.clampHit = true
		}
		run.series = append(run.series, models.ForecastPoint{
			TMin:   tMin,
			BG:     clamped,
			BGMmol: models.ToMmol(clamped),
		})
		run.impacts = append(run.impacts, models.ComponentImpact{
			TMin:       tMin,
			Insulin:    dampedInsulinCum,
			RawInsulin: rawInsulinCum,
			Carb:       carbCum,
			Basal:      basalCum,
			Momentum:   momentumCum,
		})
		dampedPrev = clamped
	}

	appendPoint(0)

	for tCur := step; tCur <= horizon; tCur += step {
		tPrev := float64(tCur - step)
		t := float64(tCur)

		var insulinDelta, carbDelta, basalDelta float64
		for i := range events {
			ev := &events[i]
			if !includeProposed && proposed[i] {
				continue
			}
			switch ev.Kind {
			case models.EventBolus:
				used := bolusUsedFraction(tPrev, t, ev, params)
				insulinDelta -= ev.Amount * params.ISF * used
			case models.EventCarbohydrate:
				duration := ev.AbsorptionMin
				if duration <= 0 {
					duration = params.CarbAbsorptionMin
				}
				absorbed := CarbAbsorbedFraction(t-ev.OffsetMin, duration, CarbCurveTriangular) -
					CarbAbsorbedFraction(tPrev-ev.OffsetMin, duration, CarbCurveTriangular)
				carbDelta += EffectiveCarbs(ev, params) / params.ICR * params.ISF * absorbed
			case models.EventBasalInjection:
				mid := (tPrev + t) / 2
				rate := BasalReleaseRate(mid-ev.OffsetMin, ev.DurationMin, ev.Basal, ev.Amount)
				basalDelta -= rate * float64(step) * params.ISF
			}
		}

		rawInsulinCum += insulinDelta
		detail := AntiPanicScale(tPrev, linkedMeal, slopePer5, dampedPrev, tn)
		dampedInsulinCum += insulinDelta * detail.Scale

		momentumCum += (momentum.Rate(tPrev, tn) + momentum.Rate(t, tn)) / 2 * float64(step)
		carbCum += carbDelta
		basalCum += basalDelta
		appendPoint(t)
	}

	return run
}

// bolusUsedFraction is the fraction of a bolus absorbed during (tPrev, t],
// spreading extended boluses across their delivery window.
func bolusUsedFraction(tPrev, t float64, ev *models.Event, params models.SimulationParameters) float64 {
	peak := params.InsulinPeakMin
	duration := params.InsulinActionMin
	off := ev.OffsetMin

	if ev.DurationMin <= 0 {
		return InsulinRemaining(tPrev-off, peak, duration, params.InsulinModel) -
			InsulinRemaining(t-off, peak, duration, params.InsulinModel)
	}

	const grain = 5.0
	steps := int(ev.DurationMin/grain + 0.5)
	if steps < 1 {
		steps = 1
	}
	sub := ev.DurationMin / float64(steps)
	sum := 0.0
	for i := 0; i < steps; i++ {
		subOff := off + (float64(i)+0.5)*sub
		sum += InsulinRemaining(tPrev-subOff, peak, duration, params.InsulinModel) -
			InsulinRemaining(t-subOff, peak, duration, params.InsulinModel)
	}
	return sum / float64(steps)
}

func reclamp(series []models.ForecastPoint, tn Tuning) ([]models.ForecastPoint, bool) {
	hit := false
	for i := range series {
		clamped := clamp(series[i].BG, tn.ClampMinMgdl, tn.ClampMaxMgdl)
		if clamped != series[i].BG {
			hit = true
			series[i].BG = clamped
			series[i].BGMmol = models.ToMmol(clamped)
		}
	}
	return series, hit
}

func summarize(series []models.ForecastPoint) models.ForecastSummary {
	if len(series) == 0 {
		return models.ForecastSummary{}
	}
	s := models.ForecastSummary{
		Now: series[0].BG,
		Min: series[0].BG,
		Max: series[0].BG,
		End: series[len(series)-1].BG,
	}
	s.At30Min = valueAt(series, 30)
	s.At2H = valueAt(series, 120)
	s.At4H = valueAt(series, 240)
	for _, p := range series {
		if p.BG < s.Min {
			s.Min = p.BG
			s.TimeToMinMin = p.TMin
		}
		if p.BG > s.Max {
			s.Max = p.BG
		}
	}
	return s
}

// valueAt returns the series value at tMin, or the last point when the
// horizon ends earlier.
func valueAt(series []models.ForecastPoint, tMin float64) float64 {
	for _, p := range series {
		if p.TMin >= tMin {
			return p.BG
		}
	}
	return series[len(series)-1].BG
}

func qualityTier(warnings []string) models.QualityTier {
	if len(warnings) == 0 {
		return models.QualityHigh
	}
	if len(warnings) >= 3 {
		return models.QualityLow
	}
	for _, w := range warnings {
		if w == models.WarnClampHit {
			return models.QualityLow
		}
	}
	return models.QualityMedium
}

func isMmolUnit(unit string) bool {
	u := strings.ToLower(strings.TrimSpace(unit))
	return u == "mmol/l" || u == "mmol"
}

func validate(params models.SimulationParameters, req models.ForecastRequest, start float64) error {
	switch {
	case params.ISF <= 0:
		return fmt.Errorf("%w: ISF %v", ErrInvalidParameters, params.ISF)
	case params.ICR <= 0:
		return fmt.Errorf("%w: ICR %v", ErrInvalidParameters, params.ICR)
	case params.InsulinActionMin <= 0:
		return fmt.Errorf("%w: insulin action %v min", ErrInvalidParameters, params.InsulinActionMin)
	case params.CarbAbsorptionMin <= 0:
		return fmt.Errorf("%w: carb absorption %v min", ErrInvalidParameters, params.CarbAbsorptionMin)
	}
	if req.HorizonMin <= 0 || req.StepMin <= 0 {
		return fmt.Errorf("%w: horizon %d min, step %d min", ErrInvalidHorizon, req.HorizonMin, req.StepMin)
	}
	if start <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidGlucose, start)
	}
	return nil
}
