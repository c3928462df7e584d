// Package server exposes the application over HTTP.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mrcode/glucopilot/internal/models"
)

// Service is the application surface the HTTP layer needs.
type Service interface {
	Status(ctx context.Context) (*models.GlucoseStatus, error)
	Forecast(ctx context.Context, bolus, carbs float64) (*models.ForecastResult, error)
	ForecastChart(ctx context.Context, bolus, carbs float64) ([]byte, error)
	Simulate(req models.ForecastRequest) (*models.ForecastResult, error)
	Settings() *models.Settings
	UpdateSettings(ctx context.Context, settings *models.Settings) error
	NightProfile() *models.NightPatternProfile
	BuildNightProfile(ctx context.Context, days int) (*models.NightPatternProfile, error)
}

type Server struct {
	Router  *chi.Mux
	addr    string
	service Service
	logger  *slog.Logger
	httpSrv *http.Server
}

func New(addr string, service Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(TimeoutMiddleware(30 * time.Second))
	r.Use(middleware.Recoverer)

	s := &Server{
		Router:  r,
		addr:    addr,
		service: service,
		logger:  logger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.Get("/healthz", s.handleHealth)
	s.Router.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/forecast", s.handleForecast)
		r.Get("/forecast/chart.png", s.handleForecastChart)
		r.Get("/settings", s.handleGetSettings)
		r.Put("/settings", s.handlePutSettings)
		r.Get("/nightpattern", s.handleNightPattern)
		r.Post("/nightpattern/rebuild", s.handleNightPatternRebuild)
	})
}

func (s *Server) Start() error {
	s.logger.Info("starting http server", slog.String("addr", s.addr))
	s.httpSrv = &http.Server{
		Addr:              s.addr,
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.httpSrv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}
