// Package chart renders glucose history and forecast series to PNG.
package chart

import (
	"bytes"
	"fmt"
	"image/color"
	"image/png"
	"time"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/mrcode/glucopilot/internal/models"
)

const (
	defaultWidth  = 900
	defaultHeight = 420
	marginLeft    = 56
	marginRight   = 20
	marginTop     = 36
	marginBottom  = 44
)

// Input bundles everything one chart draws: recent CGM history (minutes
// before zero), the forecast and optional baseline (minutes after zero),
// and the target band.
type Input struct {
	History    []models.CGMSample
	Series     []models.ForecastPoint
	Baseline   []models.ForecastPoint
	TargetLow  float64
	TargetHigh float64
	Title      string
	Now        time.Time
}

// Render draws the chart and returns it PNG-encoded.
func Render(in Input) ([]byte, error) {
	dc := gg.NewContext(defaultWidth, defaultHeight)

	dc.SetRGB255(24, 26, 32)
	dc.Clear()

	minT, maxT := timeBounds(in)
	minBG, maxBG := glucoseBounds(in)

	plot := plotArea{
		x0: marginLeft, y0: marginTop,
		x1: defaultWidth - marginRight, y1: defaultHeight - marginBottom,
		minT: minT, maxT: maxT,
		minBG: minBG, maxBG: maxBG,
	}

	drawTargetBand(dc, plot, in.TargetLow, in.TargetHigh)
	drawGrid(dc, plot)
	drawNowLine(dc, plot)

	// History: dots left of zero.
	dc.SetColor(color.RGBA{R: 120, G: 180, B: 255, A: 255})
	for _, s := range in.History {
		x, y := plot.point(-s.MinutesAgo, s.Glucose)
		dc.DrawCircle(x, y, 2.5)
		dc.Fill()
	}

	// Baseline: dashed, drawn under the main series.
	if len(in.Baseline) > 1 {
		dc.SetColor(color.RGBA{R: 150, G: 150, B: 150, A: 255})
		dc.SetDash(6, 4)
		dc.SetLineWidth(1.5)
		strokeSeries(dc, plot, in.Baseline)
		dc.SetDash()
	}

	if len(in.Series) > 1 {
		dc.SetColor(color.RGBA{R: 255, G: 200, B: 80, A: 255})
		dc.SetLineWidth(2.5)
		strokeSeries(dc, plot, in.Series)
	}

	if err := loadFont(dc, 14); err == nil {
		drawLabels(dc, plot, in)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		return nil, fmt.Errorf("encoding chart: %w", err)
	}
	return buf.Bytes(), nil
}

type plotArea struct {
	x0, y0, x1, y1 float64
	minT, maxT     float64
	minBG, maxBG   float64
}

func (p plotArea) point(tMin, bg float64) (x, y float64) {
	x = p.x0 + (tMin-p.minT)/(p.maxT-p.minT)*(p.x1-p.x0)
	y = p.y1 - (bg-p.minBG)/(p.maxBG-p.minBG)*(p.y1-p.y0)
	return x, y
}

func strokeSeries(dc *gg.Context, plot plotArea, series []models.ForecastPoint) {
	for i, pt := range series {
		x, y := plot.point(pt.TMin, pt.BG)
		if i == 0 {
			dc.MoveTo(x, y)
		} else {
			dc.LineTo(x, y)
		}
	}
	dc.Stroke()
}

func drawTargetBand(dc *gg.Context, plot plotArea, low, high float64) {
	if high <= low {
		return
	}
	_, yHigh := plot.point(plot.minT, high)
	_, yLow := plot.point(plot.minT, low)
	dc.SetRGBA255(70, 140, 90, 60)
	dc.DrawRectangle(plot.x0, yHigh, plot.x1-plot.x0, yLow-yHigh)
	dc.Fill()
}

func drawGrid(dc *gg.Context, plot plotArea) {
	dc.SetRGBA255(255, 255, 255, 25)
	dc.SetLineWidth(1)
	for bg := 50.0; bg <= plot.maxBG; bg += 50 {
		if bg < plot.minBG {
			continue
		}
		_, y := plot.point(plot.minT, bg)
		dc.DrawLine(plot.x0, y, plot.x1, y)
		dc.Stroke()
	}
	for t := hourAlign(plot.minT); t <= plot.maxT; t += 60 {
		x, _ := plot.point(t, plot.minBG)
		dc.DrawLine(x, plot.y0, x, plot.y1)
		dc.Stroke()
	}
}

func drawNowLine(dc *gg.Context, plot plotArea) {
	if plot.minT >= 0 {
		return
	}
	x, _ := plot.point(0, plot.minBG)
	dc.SetRGBA255(255, 255, 255, 90)
	dc.SetLineWidth(1)
	dc.SetDash(3, 3)
	dc.DrawLine(x, plot.y0, x, plot.y1)
	dc.Stroke()
	dc.SetDash()
}

func drawLabels(dc *gg.Context, plot plotArea, in Input) {
	dc.SetColor(color.RGBA{R: 220, G: 220, B: 220, A: 255})
	if in.Title != "" {
		dc.DrawStringAnchored(in.Title, (plot.x0+plot.x1)/2, marginTop/2, 0.5, 0.5)
	}
	for bg := 50.0; bg <= plot.maxBG; bg += 50 {
		if bg < plot.minBG {
			continue
		}
		_, y := plot.point(plot.minT, bg)
		dc.DrawStringAnchored(fmt.Sprintf("%.0f", bg), plot.x0-8, y, 1, 0.5)
	}
	for t := hourAlign(plot.minT); t <= plot.maxT; t += 60 {
		x, _ := plot.point(t, plot.minBG)
		label := fmt.Sprintf("%+dh", int(t)/60)
		if t == 0 {
			label = "now"
		}
		dc.DrawStringAnchored(label, x, plot.y1+14, 0.5, 0.5)
	}
}

func hourAlign(tMin float64) float64 {
	h := int(tMin) / 60
	if float64(h*60) < tMin {
		h++
	}
	return float64(h * 60)
}

func timeBounds(in Input) (minT, maxT float64) {
	minT, maxT = 0, 60
	for _, s := range in.History {
		if -s.MinutesAgo < minT {
			minT = -s.MinutesAgo
		}
	}
	for _, p := range in.Series {
		if p.TMin > maxT {
			maxT = p.TMin
		}
	}
	return minT, maxT
}

func glucoseBounds(in Input) (minBG, maxBG float64) {
	minBG, maxBG = 60, 220
	consider := func(v float64) {
		if v < minBG {
			minBG = v
		}
		if v > maxBG {
			maxBG = v
		}
	}
	for _, s := range in.History {
		consider(s.Glucose)
	}
	for _, p := range in.Series {
		consider(p.BG)
	}
	for _, p := range in.Baseline {
		consider(p.BG)
	}
	// Breathing room above and below.
	minBG -= 10
	maxBG += 10
	if minBG < 0 {
		minBG = 0
	}
	return minBG, maxBG
}

// loadFont helper to load font safely.
func loadFont(dc *gg.Context, size float64) error {
	font, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return err
	}
	face := truetype.NewFace(font, &truetype.Options{Size: size})
	dc.SetFontFace(face)
	return nil
}
