// Package config loads server settings.
//
// Sources, later ones winning:
//  1. built-in defaults
//  2. a YAML file named by VELRIC_CONFIG, if set
//  3. environment variables (a .env file in the working directory is loaded
//     into the environment first, if present)
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/velric/velric-server/internal/auth"
)

const minSecretLength = 16

type Config struct {
	Port        int    `yaml:"port"`
	DBPath      string `yaml:"db_path"`
	DatabaseURL string `yaml:"database_url"` // Postgres DSN; overrides DBPath when set

	JWTSecret  string `yaml:"jwt_secret"`
	JWTIssuer  string `yaml:"jwt_issuer"`
	SessionTTL string `yaml:"session_ttl"`

	Google   GoogleConfig   `yaml:"google"`
	Supabase SupabaseConfig `yaml:"supabase"`

	ExecutorEnabled bool   `yaml:"executor_enabled"`
	LogLevel        string `yaml:"log_level"`
}

type GoogleConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	CallbackURL  string `yaml:"callback_url"`
	UserInfoURL  string `yaml:"userinfo_url"`
}

type SupabaseConfig struct {
	URL     string `yaml:"url"`
	AnonKey string `yaml:"anon_key"`
}

func Default() *Config {
	return &Config{
		Port:       8080,
		DBPath:     "data/velric.db",
		JWTIssuer:  "velric",
		SessionTTL: "1h",
		Google: GoogleConfig{
			UserInfoURL: auth.DefaultGoogleUserInfoURL,
		},
		LogLevel: "info",
	}
}

// Load reads .env (optional), then the YAML overlay, then the environment.
// It does not validate; call Validate before using the result.
func Load() (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()
	return load(os.LookupEnv)
}

func load(lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	if path, ok := lookup("VELRIC_CONFIG"); ok && path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}

	if cfg.Google.CallbackURL == "" {
		cfg.Google.CallbackURL = fmt.Sprintf("http://localhost:%d/auth/google/callback", cfg.Port)
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: invalid PORT %q", v)
		}
		c.Port = port
	}
	if v, ok := lookup("EXECUTOR_ENABLED"); ok && v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: invalid EXECUTOR_ENABLED %q", v)
		}
		c.ExecutorEnabled = enabled
	}

	str("DB_PATH", &c.DBPath)
	str("DATABASE_URL", &c.DatabaseURL)
	str("JWT_SECRET", &c.JWTSecret)
	str("JWT_ISSUER", &c.JWTIssuer)
	str("SESSION_TTL", &c.SessionTTL)
	str("GOOGLE_CLIENT_ID", &c.Google.ClientID)
	str("GOOGLE_CLIENT_SECRET", &c.Google.ClientSecret)
	str("GOOGLE_CALLBACK_URL", &c.Google.CallbackURL)
	str("GOOGLE_USERINFO_URL", &c.Google.UserInfoURL)
	str("SUPABASE_URL", &c.Supabase.URL)
	str("SUPABASE_ANON_KEY", &c.Supabase.AnonKey)
	str("LOG_LEVEL", &c.LogLevel)
	return nil
}

// Validate reports every problem at once. Any error here is fatal at
// startup.
func (c *Config) Validate() error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.DBPath == "" && c.DatabaseURL == "" {
		errs = append(errs, errors.New("no storage backend: set DB_PATH or DATABASE_URL"))
	}

	if c.JWTSecret == "" && !c.SupabaseEnabled() {
		errs = append(errs, errors.New("no session verifier: set JWT_SECRET or SUPABASE_URL and SUPABASE_ANON_KEY"))
	}
	if c.JWTSecret != "" && len(c.JWTSecret) < minSecretLength {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d characters", minSecretLength))
	}
	if (c.Supabase.URL == "") != (c.Supabase.AnonKey == "") {
		errs = append(errs, errors.New("SUPABASE_URL and SUPABASE_ANON_KEY must be set together"))
	}
	if (c.Google.ClientID == "") != (c.Google.ClientSecret == "") {
		errs = append(errs, errors.New("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET must be set together"))
	}

	if d, err := time.ParseDuration(c.SessionTTL); err != nil || d <= 0 {
		errs = append(errs, fmt.Errorf("invalid SESSION_TTL %q", c.SessionTTL))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// SessionDuration returns the session TTL. Validate guarantees it parses.
func (c *Config) SessionDuration() time.Duration {
	d, err := time.ParseDuration(c.SessionTTL)
	if err != nil {
		return time.Hour
	}
	return d
}

// SlogLevel returns the configured level, info when unparseable.
func (c *Config) SlogLevel() slog.Level {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

func (c *Config) GoogleEnabled() bool {
	return c.Google.ClientID != "" && c.Google.ClientSecret != ""
}

func (c *Config) SupabaseEnabled() bool {
	return c.Supabase.URL != "" && c.Supabase.AnonKey != ""
}

func (c *Config) UsePostgres() bool {
	return c.DatabaseURL != ""
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q", s)
}
