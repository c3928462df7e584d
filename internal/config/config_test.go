package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("Server.Addr = %q, want :8080", cfg.Server.Addr)
	}
	if cfg.Poller.IntervalSeconds != 60 {
		t.Errorf("Poller.IntervalSeconds = %d, want 60", cfg.Poller.IntervalSeconds)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  addr: ":9090"
nightscout:
  url: "https://cgm.example.com"
  api_secret: "s3cret"
telegram:
  allowed_chats: [123, 456]
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("Server.Addr = %q, want :9090", cfg.Server.Addr)
	}
	if cfg.Nightscout.URL != "https://cgm.example.com" {
		t.Errorf("Nightscout.URL = %q", cfg.Nightscout.URL)
	}
	if cfg.Nightscout.APISecret != "s3cret" {
		t.Errorf("Nightscout.APISecret = %q", cfg.Nightscout.APISecret)
	}
	if len(cfg.Telegram.AllowedChats) != 2 || cfg.Telegram.AllowedChats[0] != 123 {
		t.Errorf("Telegram.AllowedChats = %v", cfg.Telegram.AllowedChats)
	}
	// Untouched keys keep their defaults.
	if cfg.Database.Path != "glucopilot.db" {
		t.Errorf("Database.Path = %q, want default", cfg.Database.Path)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  addr: \":9090\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("GLUCOPILOT_SERVER__ADDR", ":7070")
	t.Setenv("GLUCOPILOT_NIGHTSCOUT__API_SECRET", "env-secret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Addr != ":7070" {
		t.Errorf("Server.Addr = %q, want env override :7070", cfg.Server.Addr)
	}
	if cfg.Nightscout.APISecret != "env-secret" {
		t.Errorf("Nightscout.APISecret = %q, want env-secret", cfg.Nightscout.APISecret)
	}
}

func TestLoad_MissingFileIgnored(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("Server.Addr = %q, want default", cfg.Server.Addr)
	}
}
