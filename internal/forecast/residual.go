package forecast

import "github.com/mrcode/glucopilot/internal/models"

// ResidualModel is a small learned correction added on top of the physics
// series: per horizon bucket, a linear function of the baseline value. It
// is strictly additive; a zero model is the identity.
type ResidualModel struct {
	Version       int64           `json:"version"`
	BucketMinutes int             `json:"bucketMinutes"`
	Coefficients  []ResidualCoeff `json:"coefficients"` // indexed by tMin / BucketMinutes
}

// ResidualCoeff is one bucket's correction: adjust = Intercept + Slope*baseline.
type ResidualCoeff struct {
	Intercept float64 `json:"intercept"`
	Slope     float64 `json:"slope"`
}

// Adjust applies the per-bucket correction to the series. Points past the
// last fitted bucket are left untouched, as is everything when the model
// has no coefficients.
func (m *ResidualModel) Adjust(series, baseline []models.ForecastPoint) []models.ForecastPoint {
	if m == nil || len(m.Coefficients) == 0 || m.BucketMinutes <= 0 {
		return series
	}
	out := make([]models.ForecastPoint, len(series))
	copy(out, series)
	for i := range out {
		bucket := int(out[i].TMin) / m.BucketMinutes
		if bucket >= len(m.Coefficients) {
			continue
		}
		ref := out[i].BG
		if i < len(baseline) {
			ref = baseline[i].BG
		}
		c := m.Coefficients[bucket]
		out[i].BG += c.Intercept + c.Slope*ref
		out[i].BGMmol = models.ToMmol(out[i].BG)
	}
	return out
}
