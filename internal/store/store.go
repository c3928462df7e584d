// Package store persists settings, night-pattern snapshots and residual
// models in a local SQLite database.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mrcode/glucopilot/internal/forecast"
	"github.com/mrcode/glucopilot/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store is a SQLite-backed persistence layer.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS settings (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			data TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS night_profiles (
			version INTEGER PRIMARY KEY,
			data TEXT NOT NULL,
			built_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS residual_models (
			version INTEGER PRIMARY KEY,
			data TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveSettings stores the settings as the single settings row.
func (s *Store) SaveSettings(ctx context.Context, settings *models.Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO settings (id, data, updated_at) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		string(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}
	return nil
}

// LoadSettings returns the stored settings, or ErrNotFound when none were
// ever saved.
func (s *Store) LoadSettings(ctx context.Context) (*models.Settings, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM settings WHERE id = 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	var settings models.Settings
	if err := json.Unmarshal([]byte(data), &settings); err != nil {
		return nil, fmt.Errorf("decoding settings: %w", err)
	}
	return &settings, nil
}

// SaveNightProfile stores a night-pattern snapshot under its version.
func (s *Store) SaveNightProfile(ctx context.Context, profile *models.NightPatternProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encoding night profile: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO night_profiles (version, data, built_at) VALUES (?, ?, ?)
		 ON CONFLICT(version) DO UPDATE SET data = excluded.data, built_at = excluded.built_at`,
		profile.Version, string(data), profile.BuiltAt.UTC())
	if err != nil {
		return fmt.Errorf("saving night profile: %w", err)
	}
	return nil
}

// LatestNightProfile returns the newest stored snapshot, or ErrNotFound.
func (s *Store) LatestNightProfile(ctx context.Context) (*models.NightPatternProfile, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM night_profiles ORDER BY version DESC LIMIT 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading night profile: %w", err)
	}

	var profile models.NightPatternProfile
	if err := json.Unmarshal([]byte(data), &profile); err != nil {
		return nil, fmt.Errorf("decoding night profile: %w", err)
	}
	return &profile, nil
}

// SaveResidualModel stores a residual correction model under its version.
func (s *Store) SaveResidualModel(ctx context.Context, model *forecast.ResidualModel) error {
	data, err := json.Marshal(model)
	if err != nil {
		return fmt.Errorf("encoding residual model: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO residual_models (version, data, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(version) DO UPDATE SET data = excluded.data, created_at = excluded.created_at`,
		model.Version, string(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("saving residual model: %w", err)
	}
	return nil
}

// LatestResidualModel returns the newest stored residual model, or
// ErrNotFound.
func (s *Store) LatestResidualModel(ctx context.Context) (*forecast.ResidualModel, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM residual_models ORDER BY version DESC LIMIT 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading residual model: %w", err)
	}

	var model forecast.ResidualModel
	if err := json.Unmarshal([]byte(data), &model); err != nil {
		return nil, fmt.Errorf("decoding residual model: %w", err)
	}
	return &model, nil
}
