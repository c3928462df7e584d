// Package app wires the forecast engine to its collaborators: the
// Nightscout client, the settings store, the alert manager and the chart
// renderer.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/maypok86/otter/v2"

	"github.com/mrcode/glucopilot/internal/chart"
	"github.com/mrcode/glucopilot/internal/forecast"
	"github.com/mrcode/glucopilot/internal/models"
	"github.com/mrcode/glucopilot/internal/notify"
	"github.com/mrcode/glucopilot/internal/store"
)

const (
	cacheKeyHistory = "history"
	staleAfter      = 15 * time.Minute
	maxPollFailures = 5
)

// NightscoutClient is the slice of the Nightscout API the service uses.
type NightscoutClient interface {
	GetCurrentEntry(ctx context.Context) (*models.GlucoseEntry, error)
	GetEntriesHours(ctx context.Context, hours int) ([]models.GlucoseEntry, error)
	GetEntriesDays(ctx context.Context, days int) ([]models.GlucoseEntry, error)
	GetRecentTreatments(ctx context.Context, hours int) ([]models.Treatment, error)
	GetTreatments(ctx context.Context, from, to time.Time, count int) ([]models.Treatment, error)
}

// Service is the application core behind the HTTP API and the bot.
type Service struct {
	mu       sync.RWMutex
	settings *models.Settings

	ns      NightscoutClient
	store   *store.Store
	engine  *forecast.Engine
	alerts  *notify.Manager
	logger  *slog.Logger
	history otter.Cache[string, cached]

	nightProfile *models.NightPatternProfile
	historyHours int

	consecutiveErrors int
	lastSuccess       time.Time
}

type cached struct {
	entries    []models.GlucoseEntry
	treatments []models.Treatment
	fetchedAt  time.Time
}

// New creates the service. The night profile and residual model are loaded
// from the store if present.
func New(ns NightscoutClient, st *store.Store, settings *models.Settings, alerts *notify.Manager, historyHours int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if historyHours <= 0 {
		historyHours = 8
	}

	cache := otter.Must(&otter.Options[string, cached]{
		MaximumSize:      16,
		ExpiryCalculator: otter.ExpiryWriting[string, cached](2 * time.Minute),
	})

	s := &Service{
		settings:     settings,
		ns:           ns,
		store:        st,
		engine:       forecast.NewEngine(),
		alerts:       alerts,
		logger:       logger,
		history:      *cache,
		historyHours: historyHours,
	}
	s.loadArtifacts(context.Background())
	return s
}

// loadArtifacts pulls the latest night profile and residual model from the
// store. Missing rows are fine; those mechanisms stay disabled.
func (s *Service) loadArtifacts(ctx context.Context) {
	if s.store == nil {
		return
	}
	profile, err := s.store.LatestNightProfile(ctx)
	switch {
	case err == nil:
		s.nightProfile = profile
		s.logger.Info("night profile loaded", "version", profile.Version, "buckets", len(profile.Buckets))
	case !errors.Is(err, store.ErrNotFound):
		s.logger.Warn("loading night profile failed", "error", err)
	}

	residual, err := s.store.LatestResidualModel(ctx)
	switch {
	case err == nil:
		s.engine.Residual = residual
		s.logger.Info("residual model loaded", "version", residual.Version)
	case !errors.Is(err, store.ErrNotFound):
		s.logger.Warn("loading residual model failed", "error", err)
	}
}

// Settings returns a copy of the current settings.
func (s *Service) Settings() *models.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.Clone()
}

// UpdateSettings persists and applies new settings.
func (s *Service) UpdateSettings(ctx context.Context, settings *models.Settings) error {
	if s.store != nil {
		if err := s.store.SaveSettings(ctx, settings); err != nil {
			return err
		}
	}
	s.mu.Lock()
	s.settings = settings.Clone()
	s.mu.Unlock()
	if s.alerts != nil {
		s.alerts.UpdateSettings(settings)
	}
	return nil
}

// SetAlerts attaches the alert manager. Called once during startup after the
// notifier exists; the poll loop picks it up on the next tick.
func (s *Service) SetAlerts(alerts *notify.Manager) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = alerts
}

// NightProfile returns the active night-pattern snapshot, or nil.
func (s *Service) NightProfile() *models.NightPatternProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nightProfile
}

// Run polls Nightscout on the configured interval until the context is
// cancelled, updating status and firing threshold alerts.
func (s *Service) Run(ctx context.Context) {
	interval := time.Duration(s.Settings().RefreshInterval) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

func (s *Service) poll(ctx context.Context) {
	status, err := s.Status(ctx)
	if err != nil {
		s.consecutiveErrors++
		s.logger.Error("poll failed", "error", err, "consecutive", s.consecutiveErrors)
		if s.consecutiveErrors == maxPollFailures {
			s.logger.Error("nightscout unreachable", "since", s.lastSuccess)
		}
		return
	}
	s.consecutiveErrors = 0
	s.lastSuccess = time.Now()

	s.mu.RLock()
	alerts := s.alerts
	s.mu.RUnlock()

	if alerts != nil {
		alerts.Reset(status.Status)
		if err := alerts.CheckAndNotify(ctx, status); err != nil {
			s.logger.Error("alert delivery failed", "error", err)
		}
	}
}

// Status assembles the current glucose status with IOB and COB.
func (s *Service) Status(ctx context.Context) (*models.GlucoseStatus, error) {
	entry, err := s.ns.GetCurrentEntry(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching current entry: %w", err)
	}

	settings := s.Settings()
	params := settings.SimulationParameters()

	events, _, err := s.historyEvents(ctx)
	if err != nil {
		s.logger.Warn("treatment history unavailable", "error", err)
		events = nil
	}

	at := entry.Time()
	status := &models.GlucoseStatus{
		Value:        entry.ValueMgDL(),
		ValueMmol:    entry.ValueMmolL(),
		Trend:        entry.TrendArrow(),
		Direction:    entry.Direction,
		Time:         at,
		Status:       settings.GetGlucoseStatus(entry.ValueMgDL()),
		StaleMinutes: int(time.Since(at).Minutes()),
		IsStale:      time.Since(at) > staleAfter,
		IOB:          forecast.InsulinOnBoard(events, params),
		COB:          forecast.CarbsOnBoard(events, params),
	}
	return status, nil
}

// Forecast simulates a proposed bolus and carb intake on top of current
// state. Zero bolus and carbs gives the no-action trajectory.
func (s *Service) Forecast(ctx context.Context, bolus, carbs float64) (*models.ForecastResult, error) {
	req, err := s.buildRequest(ctx, bolus, carbs)
	if err != nil {
		return nil, err
	}
	return s.engine.Simulate(*req)
}

// ForecastChart renders the forecast as a PNG.
func (s *Service) ForecastChart(ctx context.Context, bolus, carbs float64) ([]byte, error) {
	req, err := s.buildRequest(ctx, bolus, carbs)
	if err != nil {
		return nil, err
	}
	res, err := s.engine.Simulate(*req)
	if err != nil {
		return nil, err
	}

	settings := s.Settings()
	title := "Glucose forecast"
	if bolus > 0 || carbs > 0 {
		title = fmt.Sprintf("Forecast: %.1f U, %.0f g", bolus, carbs)
	}
	return chart.Render(chart.Input{
		History:    req.CGM,
		Series:     res.Series,
		Baseline:   res.Baseline,
		TargetLow:  float64(settings.TargetLow),
		TargetHigh: float64(settings.TargetHigh),
		Title:      title,
		Now:        time.Now(),
	})
}

// Simulate runs a caller-supplied request directly, for the what-if API.
func (s *Service) Simulate(req models.ForecastRequest) (*models.ForecastResult, error) {
	return s.engine.Simulate(req)
}

// buildRequest assembles a full forecast request from live data.
func (s *Service) buildRequest(ctx context.Context, bolus, carbs float64) (*models.ForecastRequest, error) {
	entry, err := s.ns.GetCurrentEntry(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching current entry: %w", err)
	}

	settings := s.Settings()
	params := settings.SimulationParameters()

	events, cgm, err := s.historyEvents(ctx)
	if err != nil {
		s.logger.Warn("history unavailable, forecasting from current state only", "error", err)
	}

	if bolus > 0 {
		events = append(events, models.Event{
			Kind: models.EventBolus, OffsetMin: 0, Amount: bolus,
		})
	}
	if carbs > 0 {
		events = append(events, models.Event{
			Kind: models.EventCarbohydrate, OffsetMin: 0, Amount: carbs, LinkedMeal: bolus > 0,
		})
	}

	iob := forecast.InsulinOnBoard(events, params)
	cob := forecast.CarbsOnBoard(events, params)
	nctx := &models.NightContext{
		IOB:               &iob,
		COB:               &cob,
		ActiveDraft:       bolus > 0 || carbs > 0,
		RecentMealOrBolus: recentMealOrBolus(events),
		RisingTrend:       risingTrend(cgm),
	}

	req := &models.ForecastRequest{
		StartGlucose:    float64(entry.ValueMgDL()),
		Unit:            "mg/dL",
		HorizonMin:      settings.HorizonMin,
		StepMin:         settings.StepMin,
		Parameters:      params,
		Momentum:        models.MomentumConfig{Enabled: true, MinPoints: 3},
		Events:          events,
		CGM:             cgm,
		IncludeBaseline: true,
		NightProfile:    s.NightProfile(),
		NightContext:    nctx,
		NowLocal:        time.Now(),
	}
	return req, nil
}

// historyEvents fetches recent treatments and CGM samples, serving repeat
// calls within the poll interval from the cache.
func (s *Service) historyEvents(ctx context.Context) ([]models.Event, []models.CGMSample, error) {
	now := time.Now()

	if c, ok := s.history.GetIfPresent(cacheKeyHistory); ok {
		return forecast.EventsFromTreatments(c.treatments, now), toSamples(c.entries, now), nil
	}

	entries, err := s.ns.GetEntriesHours(ctx, s.historyHours)
	if err != nil {
		return nil, nil, err
	}
	treatments, err := s.ns.GetRecentTreatments(ctx, s.historyHours)
	if err != nil {
		return nil, nil, err
	}

	s.history.Set(cacheKeyHistory, cached{
		entries:    entries,
		treatments: treatments,
		fetchedAt:  now,
	})
	return forecast.EventsFromTreatments(treatments, now), toSamples(entries, now), nil
}

// BuildNightProfile runs the offline aggregation over the given number of
// history days and stores the snapshot.
func (s *Service) BuildNightProfile(ctx context.Context, days int) (*models.NightPatternProfile, error) {
	if days <= 0 {
		days = 30
	}
	entries, err := s.ns.GetEntriesDays(ctx, days)
	if err != nil {
		return nil, fmt.Errorf("fetching history: %w", err)
	}
	from := time.Now().AddDate(0, 0, -days)
	treatments, err := s.ns.GetTreatments(ctx, from, time.Time{}, 0)
	if err != nil {
		return nil, fmt.Errorf("fetching treatments: %w", err)
	}

	profile := forecast.BuildNightPatternProfile(entries, treatments, time.Local, forecast.DefaultAnalyzerConfig())
	if s.store != nil {
		if err := s.store.SaveNightProfile(ctx, profile); err != nil {
			return nil, fmt.Errorf("saving night profile: %w", err)
		}
	}

	s.mu.Lock()
	s.nightProfile = profile
	s.mu.Unlock()

	s.logger.Info("night profile built", "days", days, "buckets", len(profile.Buckets))
	return profile, nil
}

// toSamples converts glucose entries to momentum samples, newest first.
func toSamples(entries []models.GlucoseEntry, now time.Time) []models.CGMSample {
	samples := make([]models.CGMSample, 0, len(entries))
	for i := range entries {
		ago := now.Sub(entries[i].Time()).Minutes()
		if ago < 0 || ago > 60 {
			continue
		}
		samples = append(samples, models.CGMSample{
			MinutesAgo: ago,
			Glucose:    float64(entries[i].ValueMgDL()),
		})
	}
	return samples
}

// recentMealOrBolus reports whether any insulin or carb event landed in the
// last four hours.
func recentMealOrBolus(events []models.Event) bool {
	for i := range events {
		e := &events[i]
		if e.OffsetMin < 0 && e.OffsetMin > -240 &&
			(e.Kind == models.EventBolus || e.Kind == models.EventCarbohydrate) {
			return true
		}
	}
	return false
}

// risingTrend reports a clearly rising CGM over the last samples.
func risingTrend(samples []models.CGMSample) bool {
	res := forecast.ComputeMomentum(samples,
		models.MomentumConfig{Enabled: true, MinPoints: 3}, forecast.DefaultTuning())
	return res.Active && res.SlopePerMin > 0.5
}
