package forecast

import "testing"

func TestResidualModel_Adjust(t *testing.T) {
	series := flatSeries(120, 4)   // t = 0, 5, 10, 15
	baseline := flatSeries(130, 4)

	m := &ResidualModel{
		BucketMinutes: 10,
		Coefficients: []ResidualCoeff{
			{Intercept: 5},           // t in [0, 10)
			{Intercept: 0, Slope: 0.1}, // t in [10, 20): +13 from baseline 130
		},
	}

	out := m.Adjust(series, baseline)
	if out[0].BG != 125 || out[1].BG != 125 {
		t.Errorf("bucket 0 BG = %v, %v, want 125", out[0].BG, out[1].BG)
	}
	if out[2].BG != 133 || out[3].BG != 133 {
		t.Errorf("bucket 1 BG = %v, %v, want 133", out[2].BG, out[3].BG)
	}
	if series[0].BG != 120 {
		t.Errorf("input mutated: BG = %v", series[0].BG)
	}
}

func TestResidualModel_NoCoefficientsIsIdentity(t *testing.T) {
	series := flatSeries(120, 3)

	var m *ResidualModel
	if got := m.Adjust(series, nil); &got[0] != &series[0] {
		t.Error("nil model should return the input unchanged")
	}

	empty := &ResidualModel{BucketMinutes: 10}
	if got := empty.Adjust(series, nil); &got[0] != &series[0] {
		t.Error("empty model should return the input unchanged")
	}
}

func TestResidualModel_PointsPastFitUntouched(t *testing.T) {
	series := flatSeries(120, 10) // t up to 45
	m := &ResidualModel{
		BucketMinutes: 10,
		Coefficients:  []ResidualCoeff{{Intercept: 5}},
	}

	out := m.Adjust(series, series)
	if out[0].BG != 125 {
		t.Errorf("fitted bucket BG = %v, want 125", out[0].BG)
	}
	last := out[len(out)-1]
	if last.BG != 120 {
		t.Errorf("unfitted bucket BG = %v, want 120", last.BG)
	}
}
