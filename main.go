// Package main is the entry point for the glucopilot service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mrcode/glucopilot/internal/app"
	"github.com/mrcode/glucopilot/internal/config"
	"github.com/mrcode/glucopilot/internal/models"
	"github.com/mrcode/glucopilot/internal/nightscout"
	"github.com/mrcode/glucopilot/internal/notify"
	"github.com/mrcode/glucopilot/internal/server"
	"github.com/mrcode/glucopilot/internal/store"
	"github.com/mrcode/glucopilot/internal/telegram"
)

func main() {
	configPath := flag.String("config", "glucopilot.yaml", "path to the config file")
	buildDays := flag.Int("build-night-profile", 0, "rebuild the night pattern profile from N days of history and exit")
	flag.Parse()

	if err := run(*configPath, *buildDays); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(configPath string, buildDays int) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	if cfg.Nightscout.URL == "" {
		return errors.New("nightscout.url is not configured")
	}

	st, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	settings, err := st.LoadSettings(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
		settings = models.DefaultSettings()
	case err != nil:
		return fmt.Errorf("loading settings: %w", err)
	}
	if cfg.Poller.IntervalSeconds > 0 {
		settings.RefreshInterval = cfg.Poller.IntervalSeconds
	}

	ns := nightscout.NewClient(cfg.Nightscout.URL, cfg.Nightscout.APISecret,
		cfg.Nightscout.APIToken, cfg.Nightscout.UseToken, logger)

	svc := app.New(ns, st, settings, nil, cfg.Poller.HistoryHours, logger)

	if buildDays > 0 {
		profile, err := svc.BuildNightProfile(ctx, buildDays)
		if err != nil {
			return fmt.Errorf("building night profile: %w", err)
		}
		logger.Info("night profile built",
			"version", profile.Version, "days", profile.Days, "buckets", len(profile.Buckets))
		return nil
	}

	var bot *telegram.Bot
	if cfg.Telegram.Token != "" {
		bot, err = telegram.New(cfg.Telegram.Token, cfg.Telegram.AllowedChats, svc, logger)
		if err != nil {
			return fmt.Errorf("starting telegram bot: %w", err)
		}
		svc.SetAlerts(notify.NewManager(settings, bot))
	}

	go svc.Run(ctx)
	if bot != nil {
		go bot.Run(ctx)
	}

	srv := server.New(cfg.Server.Addr, svc, logger)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
