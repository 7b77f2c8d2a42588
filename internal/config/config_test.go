package config

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/royals-league/rally/pkg/optimistic"
)

func TestNew(t *testing.T) {
	cfg := New()

	if cfg.Server.Listen != DefaultListen {
		t.Errorf("Server.Listen = %q, want %q", cfg.Server.Listen, DefaultListen)
	}
	if cfg.Commit.Policy != "drop" {
		t.Errorf("Commit.Policy = %q, want %q", cfg.Commit.Policy, "drop")
	}
	if cfg.Metrics.Namespace != DefaultNamespace {
		t.Errorf("Metrics.Namespace = %q, want %q", cfg.Metrics.Namespace, DefaultNamespace)
	}
	if cfg.Commit.Timeout != "" {
		t.Errorf("Commit.Timeout = %q, want no timeout", cfg.Commit.Timeout)
	}
}

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()

	if _, err := Load(tmpDir); err == nil || !strings.Contains(err.Error(), "R001") {
		t.Errorf("Load() on empty dir = %v, want R001", err)
	}

	configJSON := `{
  "pageUrl": "https://league.example.com/schedule/",
  "endpoints": {"availability": "https://league.example.com/api/availability/"},
  "csrf": {"cookie": "csrftoken", "field": "csrfmiddlewaretoken"},
  "commit": {"timeout": "5s", "policy": "supersede"},
  "server": {"listen": ":9000", "allowedOrigins": ["https://league.example.com"]},
  "log": {"format": "json"}
}
`
	if err := os.WriteFile(filepath.Join(tmpDir, ConfigFileName), []byte(configJSON), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}

	if cfg.Endpoints.Availability != "https://league.example.com/api/availability/" {
		t.Errorf("Endpoints.Availability = %q", cfg.Endpoints.Availability)
	}
	if cfg.CSRF.Cookie != "csrftoken" || cfg.CSRF.Field != "csrfmiddlewaretoken" {
		t.Errorf("CSRF = %+v", cfg.CSRF)
	}
	// Unset fields keep their defaults.
	if cfg.Server.Heartbeat != "30s" {
		t.Errorf("Server.Heartbeat = %q, want 30s", cfg.Server.Heartbeat)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if cfg.Path() != filepath.Join(tmpDir, ConfigFileName) {
		t.Errorf("Path() = %q", cfg.Path())
	}

	lc := cfg.Live()
	if lc.Address != ":9000" || lc.PageURL != cfg.PageURL {
		t.Errorf("Live() = %+v", lc)
	}
	if lc.Policy != optimistic.SupersedeLatest {
		t.Errorf("Live().Policy = %v, want supersede", lc.Policy)
	}
	if lc.CommitTimeout != 5*time.Second || lc.HeartbeatInterval != 30*time.Second {
		t.Errorf("Live() timeouts = %v, %v", lc.CommitTimeout, lc.HeartbeatInterval)
	}
	if lc.CookieName != "csrftoken" || lc.FormField != "csrfmiddlewaretoken" {
		t.Errorf("Live() csrf = %q, %q", lc.CookieName, lc.FormField)
	}
}

func TestLoadFile_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)
	if err := os.WriteFile(path, []byte("not valid json"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadFile(path)
	if err == nil {
		t.Fatal("Expected error for invalid JSON")
	}
	if !strings.Contains(err.Error(), "R002") {
		t.Errorf("Expected R002 error, got: %v", err)
	}
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)

	cfg := New()
	cfg.PageURL = "https://league.example.com/schedule/"

	if err := cfg.Save(); err == nil {
		t.Error("Expected error when saving without path")
	}
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo error: %v", err)
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if loaded.PageURL != cfg.PageURL {
		t.Errorf("PageURL = %q, want %q", loaded.PageURL, cfg.PageURL)
	}

	loaded.Commit.Policy = "supersede"
	if err := loaded.Save(); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	reloaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if reloaded.Commit.Policy != "supersede" {
		t.Errorf("Commit.Policy = %q, want supersede", reloaded.Commit.Policy)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		code   string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing page", func(c *Config) { c.PageURL = "" }, "R004"},
		{"relative page", func(c *Config) { c.PageURL = "/schedule/" }, "R003"},
		{"bad endpoint", func(c *Config) { c.Endpoints.SubPlanCreate = "http://[::1" }, "R003"},
		{"unknown policy", func(c *Config) { c.Commit.Policy = "queue" }, "R005"},
		{"bad timeout", func(c *Config) { c.Commit.Timeout = "soon" }, "R003"},
		{"bad heartbeat", func(c *Config) { c.Server.Heartbeat = "30" }, "R003"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "R003"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "R003"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			cfg.PageURL = "https://league.example.com/schedule/"
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.code == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.code) {
				t.Errorf("Validate() = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvPageURL, "https://env.example.com/")
	t.Setenv(EnvListen, ":7000")
	t.Setenv(EnvPolicy, "supersede")
	t.Setenv(EnvSubPlan, "https://env.example.com/subs/plan/")
	t.Setenv(EnvAllowedOrigins, "https://a.example.com, https://b.example.com,")
	t.Setenv(EnvLogLevel, "debug")

	cfg := New()
	cfg.ApplyEnv()

	if cfg.PageURL != "https://env.example.com/" {
		t.Errorf("PageURL = %q", cfg.PageURL)
	}
	if cfg.Server.Listen != ":7000" || cfg.Commit.Policy != "supersede" || cfg.Log.Level != "debug" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Endpoints.SubPlanCreate != "https://env.example.com/subs/plan/" {
		t.Errorf("Endpoints.SubPlanCreate = %q", cfg.Endpoints.SubPlanCreate)
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "https://b.example.com" {
		t.Errorf("AllowedOrigins = %v", cfg.Server.AllowedOrigins)
	}
}

func TestFindProjectRoot(t *testing.T) {
	tmpDir := t.TempDir()
	nested := filepath.Join(tmpDir, "deploy", "staging")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	if _, err := FindProjectRoot(nested); err == nil {
		t.Error("Expected error when no rally.json exists")
	}

	if err := os.WriteFile(filepath.Join(tmpDir, ConfigFileName), []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}

	root, err := FindProjectRoot(nested)
	if err != nil {
		t.Fatalf("FindProjectRoot error: %v", err)
	}
	want, _ := filepath.Abs(tmpDir)
	if root != want {
		t.Errorf("FindProjectRoot = %q, want %q", root, want)
	}
}

func TestLogHandler(t *testing.T) {
	var buf bytes.Buffer
	h := LogConfig{Level: "warn", Format: "json"}.Handler(&buf)

	if h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug should be disabled at warn level")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Error("error should be enabled at warn level")
	}
}
