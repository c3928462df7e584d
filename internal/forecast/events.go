package forecast

import (
	"time"

	"github.com/mrcode/glucopilot/internal/models"
)

// Timeline is the merged, ordered set of events a simulation runs over.
// It owns private copies of the caller's events and tracks whether the
// onset-delay normalization has run, so re-normalizing is a no-op instead of
// a double shift.
type Timeline struct {
	events     []models.Event
	normalized bool
}

// NewTimeline copies events into a fresh timeline.
func NewTimeline(events []models.Event) *Timeline {
	copied := make([]models.Event, len(events))
	copy(copied, events)
	return &Timeline{events: copied}
}

// Normalize shifts every non-historical event (offset >= 0) forward by the
// onset delay, modeling injection-to-action lag for new and future doses.
// Historical events keep their already-elapsed clock. Runs at most once per
// timeline.
func (tl *Timeline) Normalize(onsetDelayMin float64) {
	if tl.normalized {
		return
	}
	tl.normalized = true

	if onsetDelayMin <= 0 {
		return
	}
	for i := range tl.events {
		if tl.events[i].OffsetMin >= 0 {
			tl.events[i].OffsetMin += onsetDelayMin
		}
	}
}

// Normalized reports whether the onset-delay pass has run.
func (tl *Timeline) Normalized() bool {
	return tl.normalized
}

// Events returns the timeline's events. Callers must not mutate the slice.
func (tl *Timeline) Events() []models.Event {
	return tl.events
}

// HasLinkedMeal reports whether a proposed bolus (offset 0 before
// normalization) has carbs tied to it, either flagged explicitly or timed
// within the linked-meal window around the dose. Must be called on the
// un-normalized offsets, so the engine evaluates it before Normalize.
func HasLinkedMeal(events []models.Event, tn Tuning) bool {
	proposed := false
	for i := range events {
		if events[i].Kind == models.EventBolus && events[i].IsProposed() {
			proposed = true
			break
		}
	}
	if !proposed {
		return false
	}
	for i := range events {
		e := &events[i]
		if e.Kind != models.EventCarbohydrate {
			continue
		}
		if e.LinkedMeal {
			return true
		}
		if e.OffsetMin >= -tn.LinkedMealBeforeMin && e.OffsetMin <= tn.LinkedMealAfterMin {
			return true
		}
	}
	return false
}

// EffectiveCarbs returns the glucose-active grams of a carb event after the
// fiber deduction: fiber at or above the minimum is subtracted at the
// configured factor.
func EffectiveCarbs(e *models.Event, params models.SimulationParameters) float64 {
	grams := e.Amount
	if e.Fiber >= params.FiberMinGrams && params.FiberFactor > 0 {
		grams -= e.Fiber * params.FiberFactor
	}
	if grams < 0 {
		return 0
	}
	return grams
}

// EventsFromTreatments converts Nightscout treatment history into simulation
// events with minute offsets relative to now. Treatments that carry neither
// insulin nor carbs are skipped.
func EventsFromTreatments(treatments []models.Treatment, now time.Time) []models.Event {
	events := make([]models.Event, 0, len(treatments))
	for i := range treatments {
		t := &treatments[i]
		offset := t.Time().Sub(now).Minutes()

		if t.IsBasalInjection() && t.HasInsulin() {
			duration := t.Duration
			if duration <= 0 {
				duration = 24 * 60
			}
			events = append(events, models.Event{
				Kind:        models.EventBasalInjection,
				OffsetMin:   offset,
				Amount:      t.Insulin,
				DurationMin: duration,
				Basal:       t.BasalClass(),
			})
			continue
		}

		if t.HasInsulin() && t.IsBolus() {
			ev := models.Event{
				Kind:      models.EventBolus,
				OffsetMin: offset,
				Amount:    t.Insulin,
			}
			if t.EventType == models.TreatmentEventTypes.ComboBolus && t.Duration > 0 {
				ev.DurationMin = t.Duration
			}
			events = append(events, ev)
		}

		if t.HasCarbs() {
			events = append(events, models.Event{
				Kind:      models.EventCarbohydrate,
				OffsetMin: offset,
				Amount:    t.Carbs,
				Protein:   t.Protein,
				Fat:       t.Fat,
				Fiber:     t.Fiber,
			})
		}
	}
	return events
}
