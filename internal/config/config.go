package config

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/royals-league/rally/internal/errors"
	"github.com/royals-league/rally/pkg/league"
	"github.com/royals-league/rally/pkg/live"
	"github.com/royals-league/rally/pkg/optimistic"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "rally.json"

	// DefaultListen is the default live server address.
	DefaultListen = ":8080"

	// DefaultNamespace is the default Prometheus namespace.
	DefaultNamespace = "rally"

	// DefaultTracerName is the default OpenTelemetry tracer name.
	DefaultTracerName = "rally"
)

// Environment variables that override the file.
const (
	EnvPageURL         = "RALLY_PAGE_URL"
	EnvListen          = "RALLY_LISTEN"
	EnvPolicy          = "RALLY_POLICY"
	EnvTimeout         = "RALLY_TIMEOUT"
	EnvAvailability    = "RALLY_AVAILABILITY_URL"
	EnvSubAvailability = "RALLY_SUB_AVAILABILITY_URL"
	EnvSubPlan         = "RALLY_SUB_PLAN_URL"
	EnvAllowedOrigins  = "RALLY_ALLOWED_ORIGINS"
	EnvLogLevel        = "RALLY_LOG_LEVEL"
	EnvLogFormat       = "RALLY_LOG_FORMAT"
)

// Config represents the complete rally.json configuration.
type Config struct {
	// PageURL is the league page that carries the endpoint configuration,
	// the CSRF field and the initial control states.
	PageURL string `json:"pageUrl,omitempty"`

	// Endpoints override the ones advertised by the page.
	Endpoints league.Endpoints `json:"endpoints"`

	// CSRF contains the token naming used by the backend.
	CSRF CSRFConfig `json:"csrf"`

	// Commit contains settings for backend requests.
	Commit CommitConfig `json:"commit"`

	// Server contains live server settings.
	Server ServerConfig `json:"server"`

	// Metrics contains Prometheus settings.
	Metrics MetricsConfig `json:"metrics"`

	// Tracing contains OpenTelemetry settings.
	Tracing TracingConfig `json:"tracing"`

	// Log contains logging settings.
	Log LogConfig `json:"log"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// CSRFConfig names the CSRF cookie, header and form field. Empty values use
// the backend defaults.
type CSRFConfig struct {
	Cookie string `json:"cookie,omitempty"`
	Header string `json:"header,omitempty"`
	Field  string `json:"field,omitempty"`
}

// CommitConfig contains backend request settings.
type CommitConfig struct {
	// Timeout bounds each request (e.g., "10s"). Empty means no timeout.
	Timeout string `json:"timeout,omitempty"`

	// Policy is "drop" or "supersede".
	Policy string `json:"policy,omitempty"`
}

// ServerConfig contains live server settings.
type ServerConfig struct {
	Listen          string   `json:"listen,omitempty"`
	ReadTimeout     string   `json:"readTimeout,omitempty"`
	WriteTimeout    string   `json:"writeTimeout,omitempty"`
	Heartbeat       string   `json:"heartbeat,omitempty"`
	ShutdownTimeout string   `json:"shutdownTimeout,omitempty"`
	AllowedOrigins  []string `json:"allowedOrigins,omitempty"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	Enabled   bool   `json:"enabled"`
	Namespace string `json:"namespace,omitempty"`
}

// TracingConfig contains OpenTelemetry settings.
type TracingConfig struct {
	Enabled    bool   `json:"enabled"`
	TracerName string `json:"tracerName,omitempty"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `json:"level,omitempty"`

	// Format is text or json.
	Format string `json:"format,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Commit: CommitConfig{
			Policy: optimistic.DropWhilePending.String(),
		},
		Server: ServerConfig{
			Listen:          DefaultListen,
			ReadTimeout:     "60s",
			WriteTimeout:    "10s",
			Heartbeat:       "30s",
			ShutdownTimeout: "30s",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: DefaultNamespace,
		},
		Tracing: TracingConfig{
			TracerName: DefaultTracerName,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from the specified directory.
// It looks for rally.json in the directory.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("R001").
				WithDetail("No rally.json found in " + filepath.Dir(path)).
				WithSuggestion("Run 'rally config --init' to write one")
		}
		return nil, errors.New("R002").Wrap(err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("R002").
			WithDetail("Failed to parse rally.json: " + err.Error()).
			WithSuggestion("Check that rally.json is valid JSON")
	}

	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New("R002").Wrap(err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("R002").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	d := New()
	if c.Commit.Policy == "" {
		c.Commit.Policy = d.Commit.Policy
	}
	if c.Server.Listen == "" {
		c.Server.Listen = d.Server.Listen
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = d.Server.ReadTimeout
	}
	if c.Server.WriteTimeout == "" {
		c.Server.WriteTimeout = d.Server.WriteTimeout
	}
	if c.Server.Heartbeat == "" {
		c.Server.Heartbeat = d.Server.Heartbeat
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = d.Server.ShutdownTimeout
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = d.Metrics.Namespace
	}
	if c.Tracing.TracerName == "" {
		c.Tracing.TracerName = d.Tracing.TracerName
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
}

// ApplyEnv overrides fields from RALLY_* environment variables.
func (c *Config) ApplyEnv() {
	set := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	set(EnvPageURL, &c.PageURL)
	set(EnvListen, &c.Server.Listen)
	set(EnvPolicy, &c.Commit.Policy)
	set(EnvTimeout, &c.Commit.Timeout)
	set(EnvAvailability, &c.Endpoints.Availability)
	set(EnvSubAvailability, &c.Endpoints.SubAvailability)
	set(EnvSubPlan, &c.Endpoints.SubPlanCreate)
	set(EnvLogLevel, &c.Log.Level)
	set(EnvLogFormat, &c.Log.Format)

	if v := os.Getenv(EnvAllowedOrigins); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.Server.AllowedOrigins = origins
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.PageURL == "" {
		return errors.New("R004").
			WithSuggestion("Set pageUrl in rally.json or " + EnvPageURL)
	}
	if err := checkURL("pageUrl", c.PageURL, true); err != nil {
		return err
	}
	for name, value := range map[string]string{
		"endpoints.availability":    c.Endpoints.Availability,
		"endpoints.subAvailability": c.Endpoints.SubAvailability,
		"endpoints.subPlanCreate":   c.Endpoints.SubPlanCreate,
	} {
		if err := checkURL(name, value, false); err != nil {
			return err
		}
	}

	if _, ok := optimistic.ParsePolicy(c.Commit.Policy); !ok {
		return errors.New("R005").
			WithDetail("Policy " + quote(c.Commit.Policy) + " is not one of drop, supersede")
	}

	for name, value := range map[string]string{
		"commit.timeout":         c.Commit.Timeout,
		"server.readTimeout":     c.Server.ReadTimeout,
		"server.writeTimeout":    c.Server.WriteTimeout,
		"server.heartbeat":       c.Server.Heartbeat,
		"server.shutdownTimeout": c.Server.ShutdownTimeout,
	} {
		if _, err := duration(value); err != nil {
			return errors.New("R003").
				WithDetail(name + " must be a duration such as \"10s\": " + err.Error())
		}
	}

	if _, ok := parseLevel(c.Log.Level); !ok {
		return errors.New("R003").
			WithDetail("log.level must be one of debug, info, warn, error")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return errors.New("R003").
			WithDetail("log.format must be text or json")
	}
	return nil
}

// Live converts the configuration into live server settings. Call Validate
// first; invalid durations are treated as unset.
func (c *Config) Live() live.Config {
	policy, _ := optimistic.ParsePolicy(c.Commit.Policy)
	cfg := live.Config{
		Address:        c.Server.Listen,
		PageURL:        c.PageURL,
		Endpoints:      c.Endpoints,
		CookieName:     c.CSRF.Cookie,
		HeaderName:     c.CSRF.Header,
		FormField:      c.CSRF.Field,
		Policy:         policy,
		AllowedOrigins: c.Server.AllowedOrigins,
	}
	cfg.CommitTimeout, _ = duration(c.Commit.Timeout)
	cfg.ReadTimeout, _ = duration(c.Server.ReadTimeout)
	cfg.WriteTimeout, _ = duration(c.Server.WriteTimeout)
	cfg.HeartbeatInterval, _ = duration(c.Server.Heartbeat)
	cfg.ShutdownTimeout, _ = duration(c.Server.ShutdownTimeout)
	return cfg
}

// Handler returns a slog handler writing to w at the configured level and
// format.
func (l LogConfig) Handler(w io.Writer) slog.Handler {
	level, _ := parseLevel(l.Level)
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "", "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

func duration(s string) (time.Duration, error) {
	if s == "" || s == "0" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

func checkURL(name, value string, absolute bool) error {
	if value == "" {
		return nil
	}
	u, err := url.Parse(value)
	if err == nil && absolute && (u.Scheme == "" || u.Host == "") {
		err = errors.Newf(errors.CategoryConfig, "not an absolute URL")
	}
	if err != nil {
		return errors.New("R003").
			WithDetail(name + " is not a valid URL: " + quote(value)).
			Wrap(err)
	}
	return nil
}

func quote(s string) string {
	return "\"" + s + "\""
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}

// FindProjectRoot walks up directories to find the project root.
// Returns the directory containing rally.json, or an error if not found.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("R001").
				WithDetail("No rally.json found in " + startDir + " or any parent directory").
				WithSuggestion("Run 'rally config --init' or set " + EnvPageURL)
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads configuration from the current working directory
// and applies environment overrides. Without a rally.json the defaults are
// used, so a deployment can be configured from the environment alone.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	cfg := New()
	if root, err := FindProjectRoot(wd); err == nil {
		if cfg, err = Load(root); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv()
	return cfg, nil
}
