// Package config loads runtime wiring from defaults, an optional YAML file
// and GLUCOPILOT_-prefixed environment variables, in that order.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Database   DatabaseConfig   `koanf:"database"`
	Nightscout NightscoutConfig `koanf:"nightscout"`
	Telegram   TelegramConfig   `koanf:"telegram"`
	Poller     PollerConfig     `koanf:"poller"`
	Log        LogConfig        `koanf:"log"`
}

type ServerConfig struct {
	Addr string `koanf:"addr"`
}

type DatabaseConfig struct {
	Path string `koanf:"path"`
}

type NightscoutConfig struct {
	URL       string `koanf:"url"`
	APISecret string `koanf:"api_secret"`
	APIToken  string `koanf:"api_token"`
	UseToken  bool   `koanf:"use_token"`
}

type TelegramConfig struct {
	Token        string  `koanf:"token"`
	AllowedChats []int64 `koanf:"allowed_chats"`
}

type PollerConfig struct {
	IntervalSeconds int `koanf:"interval_seconds"`
	HistoryHours    int `koanf:"history_hours"`
}

type LogConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // text or json
}

// Load reads configuration. path may be empty; a missing file at the
// default location is not an error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]any{
		"server.addr":             ":8080",
		"database.path":           "glucopilot.db",
		"poller.interval_seconds": 60,
		"poller.history_hours":    8,
		"log.level":               "info",
		"log.format":              "text",
	}
	for key, val := range defaults {
		if err := k.Set(key, val); err != nil {
			return nil, err
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("loading config file %s: %w", path, err)
			}
		}
	}

	// Double underscore separates nesting levels, so multi-word keys
	// survive: GLUCOPILOT_NIGHTSCOUT__API_SECRET -> nightscout.api_secret.
	if err := k.Load(env.Provider("GLUCOPILOT_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "GLUCOPILOT_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
