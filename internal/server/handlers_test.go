package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mrcode/glucopilot/internal/forecast"
	"github.com/mrcode/glucopilot/internal/models"
)

type fakeService struct {
	status    *models.GlucoseStatus
	settings  *models.Settings
	profile   *models.NightPatternProfile
	statusErr error

	forecastCalls int
	simulateCalls int
	lastBolus     float64
	lastCarbs     float64
	lastDays      int
}

func newFakeService() *fakeService {
	return &fakeService{
		status: &models.GlucoseStatus{
			Value:     142,
			Direction: "Flat",
			Status:    "normal",
		},
		settings: models.DefaultSettings(),
	}
}

func (f *fakeService) Status(context.Context) (*models.GlucoseStatus, error) {
	return f.status, f.statusErr
}

func (f *fakeService) Forecast(_ context.Context, bolus, carbs float64) (*models.ForecastResult, error) {
	f.forecastCalls++
	f.lastBolus, f.lastCarbs = bolus, carbs
	return &models.ForecastResult{
		Series:  []models.ForecastPoint{{TMin: 0, BG: 142}},
		Quality: models.QualityHigh,
	}, nil
}

func (f *fakeService) ForecastChart(context.Context, float64, float64) ([]byte, error) {
	return []byte{0x89, 'P', 'N', 'G'}, nil
}

func (f *fakeService) Simulate(req models.ForecastRequest) (*models.ForecastResult, error) {
	f.simulateCalls++
	if req.StartGlucose <= 0 {
		return nil, fmt.Errorf("start glucose %v: %w", req.StartGlucose, forecast.ErrInvalidGlucose)
	}
	return &models.ForecastResult{
		Series:  []models.ForecastPoint{{TMin: 0, BG: req.StartGlucose}},
		Quality: models.QualityHigh,
	}, nil
}

func (f *fakeService) Settings() *models.Settings { return f.settings }

func (f *fakeService) UpdateSettings(_ context.Context, settings *models.Settings) error {
	f.settings = settings
	return nil
}

func (f *fakeService) NightProfile() *models.NightPatternProfile { return f.profile }

func (f *fakeService) BuildNightProfile(_ context.Context, days int) (*models.NightPatternProfile, error) {
	f.lastDays = days
	f.profile = &models.NightPatternProfile{Version: 7, Days: days}
	return f.profile, nil
}

func newTestServer(t *testing.T) (*Server, *fakeService) {
	t.Helper()
	svc := newFakeService()
	return New(":0", svc, nil), svc
}

func doRequest(t *testing.T, srv *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)
	return rec
}

func TestHandleStatus(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}

	var status models.GlucoseStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatal(err)
	}
	if status.Value != 142 {
		t.Errorf("Value = %d, want 142", status.Value)
	}
}

func TestHandleForecast_WhatIf(t *testing.T) {
	srv, svc := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/forecast",
		[]byte(`{"bolus": 2.5, "carbs": 30}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if svc.forecastCalls != 1 || svc.simulateCalls != 0 {
		t.Errorf("forecast/simulate calls = %d/%d, want 1/0", svc.forecastCalls, svc.simulateCalls)
	}
	if svc.lastBolus != 2.5 || svc.lastCarbs != 30 {
		t.Errorf("bolus/carbs = %v/%v, want 2.5/30", svc.lastBolus, svc.lastCarbs)
	}
}

func TestHandleForecast_EmptyBodyIsWhatIf(t *testing.T) {
	srv, svc := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/forecast", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if svc.forecastCalls != 1 {
		t.Errorf("forecast calls = %d, want 1", svc.forecastCalls)
	}
}

func TestHandleForecast_FullRequest(t *testing.T) {
	srv, svc := newTestServer(t)

	body := []byte(`{"startGlucose": 180, "horizonMin": 240, "stepMin": 5,
		"parameters": {"isf": 50, "icr": 10, "insulinActionMin": 300, "carbAbsorptionMin": 180}}`)
	rec := doRequest(t, srv, http.MethodPost, "/api/v1/forecast", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if svc.simulateCalls != 1 || svc.forecastCalls != 0 {
		t.Errorf("simulate/forecast calls = %d/%d, want 1/0", svc.simulateCalls, svc.forecastCalls)
	}
}

func TestHandleForecast_ValidationErrorIs400(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/forecast",
		[]byte(`{"startGlucose": -5}`))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleForecast_MalformedBody(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/forecast", []byte(`{not json`))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleForecastChart(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/forecast/chart.png?bolus=1&carbs=15", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", ct)
	}
	if rec.Body.Len() == 0 {
		t.Error("empty body")
	}
}

func TestHandleSettings_RoundTrip(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/settings", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET status = %d", rec.Code)
	}

	var settings models.Settings
	if err := json.Unmarshal(rec.Body.Bytes(), &settings); err != nil {
		t.Fatal(err)
	}
	settings.ISF = 42
	body, _ := json.Marshal(&settings)

	rec = doRequest(t, srv, http.MethodPut, "/api/v1/settings", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"isf":42`) {
		t.Errorf("updated settings not echoed: %s", rec.Body.String())
	}
}

func TestHandleNightPattern(t *testing.T) {
	srv, svc := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/nightpattern", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 before a profile exists", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodPost, "/api/v1/nightpattern/rebuild?days=14", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("rebuild status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if svc.lastDays != 14 {
		t.Errorf("days = %d, want 14", svc.lastDays)
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/nightpattern", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d after rebuild", rec.Code)
	}
}

func TestHandleNightPatternRebuild_BadDays(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/nightpattern/rebuild?days=zero", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
