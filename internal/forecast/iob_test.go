package forecast

import (
	"math"
	"testing"

	"github.com/mrcode/glucopilot/internal/models"
)

func testParams() models.SimulationParameters {
	return models.SimulationParameters{
		ISF:               50,
		ICR:               10,
		InsulinActionMin:  300,
		CarbAbsorptionMin: 180,
		InsulinPeakMin:    75,
		InsulinModel:      models.InsulinModelExponential,
		FiberFactor:       0.5,
		FiberMinGrams:     3,
	}
}

func TestInsulinOnBoard(t *testing.T) {
	params := testParams()

	t.Run("fresh bolus is fully on board", func(t *testing.T) {
		events := []models.Event{{Kind: models.EventBolus, OffsetMin: -1, Amount: 4}}
		got := InsulinOnBoard(events, params)
		if got < 3.9 || got > 4.0 {
			t.Errorf("InsulinOnBoard() = %v, want near 4", got)
		}
	})

	t.Run("expired bolus contributes nothing", func(t *testing.T) {
		events := []models.Event{{Kind: models.EventBolus, OffsetMin: -400, Amount: 4}}
		if got := InsulinOnBoard(events, params); got != 0 {
			t.Errorf("InsulinOnBoard() = %v, want 0", got)
		}
	})

	t.Run("proposed bolus excluded", func(t *testing.T) {
		events := []models.Event{{Kind: models.EventBolus, OffsetMin: 0, Amount: 4}}
		if got := InsulinOnBoard(events, params); got != 0 {
			t.Errorf("InsulinOnBoard() = %v, want 0", got)
		}
	})

	t.Run("basal injection excluded", func(t *testing.T) {
		events := []models.Event{{
			Kind: models.EventBasalInjection, OffsetMin: -60, Amount: 22,
			DurationMin: 1440, Basal: models.BasalUltraLong,
		}}
		if got := InsulinOnBoard(events, params); got != 0 {
			t.Errorf("InsulinOnBoard() = %v, want 0", got)
		}
	})

	t.Run("decays monotonically", func(t *testing.T) {
		prev := math.Inf(1)
		for _, ago := range []float64{10, 60, 120, 200, 290} {
			events := []models.Event{{Kind: models.EventBolus, OffsetMin: -ago, Amount: 4}}
			got := InsulinOnBoard(events, params)
			if got > prev {
				t.Errorf("IOB at %v min ago = %v, rose above %v", ago, got, prev)
			}
			prev = got
		}
	})

	t.Run("extended bolus lags an instant one", func(t *testing.T) {
		instant := InsulinOnBoard([]models.Event{
			{Kind: models.EventBolus, OffsetMin: -90, Amount: 4},
		}, params)
		extended := InsulinOnBoard([]models.Event{
			{Kind: models.EventBolus, OffsetMin: -90, Amount: 4, DurationMin: 60},
		}, params)
		if extended <= instant {
			t.Errorf("extended IOB = %v, want above instant %v", extended, instant)
		}
	})
}

func TestCarbsOnBoard(t *testing.T) {
	params := testParams()

	t.Run("fresh carbs fully on board", func(t *testing.T) {
		events := []models.Event{{Kind: models.EventCarbohydrate, OffsetMin: -1, Amount: 60}}
		got := CarbsOnBoard(events, params)
		if got < 59 || got > 60 {
			t.Errorf("CarbsOnBoard() = %v, want near 60", got)
		}
	})

	t.Run("absorbed carbs gone", func(t *testing.T) {
		events := []models.Event{{Kind: models.EventCarbohydrate, OffsetMin: -200, Amount: 60}}
		if got := CarbsOnBoard(events, params); got != 0 {
			t.Errorf("CarbsOnBoard() = %v, want 0", got)
		}
	})

	t.Run("fiber reduces effective grams", func(t *testing.T) {
		plain := CarbsOnBoard([]models.Event{
			{Kind: models.EventCarbohydrate, OffsetMin: -1, Amount: 60},
		}, params)
		fibrous := CarbsOnBoard([]models.Event{
			{Kind: models.EventCarbohydrate, OffsetMin: -1, Amount: 60, Fiber: 10},
		}, params)
		if fibrous >= plain {
			t.Errorf("fibrous COB = %v, want below plain %v", fibrous, plain)
		}
	})

	t.Run("per-event absorption override honored", func(t *testing.T) {
		slow := CarbsOnBoard([]models.Event{
			{Kind: models.EventCarbohydrate, OffsetMin: -90, Amount: 60, AbsorptionMin: 360},
		}, params)
		fast := CarbsOnBoard([]models.Event{
			{Kind: models.EventCarbohydrate, OffsetMin: -90, Amount: 60},
		}, params)
		if slow <= fast {
			t.Errorf("slow COB = %v, want above fast %v", slow, fast)
		}
	})
}
