package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

const testSecret = "0123456789abcdef0123"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(envOf(map[string]string{"JWT_SECRET": testSecret}))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "data/velric.db", cfg.DBPath)
	assert.False(t, cfg.UsePostgres())
	assert.Equal(t, "velric", cfg.JWTIssuer)
	assert.Equal(t, time.Hour, cfg.SessionDuration())
	assert.Equal(t, "http://localhost:8080/auth/google/callback", cfg.Google.CallbackURL)
	assert.Equal(t, "https://www.googleapis.com/oauth2/v2/userinfo", cfg.Google.UserInfoURL)
	assert.False(t, cfg.GoogleEnabled())
	assert.False(t, cfg.SupabaseEnabled())
	assert.False(t, cfg.ExecutorEnabled)
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
}

func TestLoad_EnvOverrides(t *testing.T) {
	cfg, err := load(envOf(map[string]string{
		"PORT":                 "9090",
		"DATABASE_URL":         "postgres://velric@localhost/velric",
		"JWT_SECRET":           testSecret,
		"SESSION_TTL":          "30m",
		"GOOGLE_CLIENT_ID":     "client",
		"GOOGLE_CLIENT_SECRET": "secret",
		"SUPABASE_URL":         "https://abc.supabase.co",
		"SUPABASE_ANON_KEY":    "anon",
		"EXECUTOR_ENABLED":     "true",
		"LOG_LEVEL":            "debug",
	}))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 9090, cfg.Port)
	assert.True(t, cfg.UsePostgres())
	assert.Equal(t, 30*time.Minute, cfg.SessionDuration())
	assert.Equal(t, "http://localhost:9090/auth/google/callback", cfg.Google.CallbackURL)
	assert.True(t, cfg.GoogleEnabled())
	assert.True(t, cfg.SupabaseEnabled())
	assert.True(t, cfg.ExecutorEnabled)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestLoad_YAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "velric.yaml")
	yaml := `
port: 7000
db_path: /var/lib/velric/velric.db
jwt_secret: from-yaml-secret-value
google:
  client_id: yaml-client
  client_secret: yaml-secret
  callback_url: https://velric.example.com/auth/google/callback
log_level: warn
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := load(envOf(map[string]string{
		"VELRIC_CONFIG": path,
		"PORT":          "7001", // env beats the file
	}))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 7001, cfg.Port)
	assert.Equal(t, "/var/lib/velric/velric.db", cfg.DBPath)
	assert.Equal(t, "from-yaml-secret-value", cfg.JWTSecret)
	assert.Equal(t, "https://velric.example.com/auth/google/callback", cfg.Google.CallbackURL)
	assert.Equal(t, "velric", cfg.JWTIssuer, "unset keys keep their defaults")
	assert.Equal(t, slog.LevelWarn, cfg.SlogLevel())
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "bad port", env: map[string]string{"PORT": "eighty"}},
		{name: "bad executor flag", env: map[string]string{"EXECUTOR_ENABLED": "maybe"}},
		{name: "missing overlay file", env: map[string]string{"VELRIC_CONFIG": "/does/not/exist.yaml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(envOf(tt.env))
			assert.Error(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:   "supabase alone is a session verifier",
			mutate: func(c *Config) { c.JWTSecret = ""; c.Supabase = SupabaseConfig{URL: "https://x", AnonKey: "k"} },
		},
		{
			name:    "no session verifier",
			mutate:  func(c *Config) { c.JWTSecret = "" },
			wantErr: "no session verifier",
		},
		{
			name:    "short secret",
			mutate:  func(c *Config) { c.JWTSecret = "short" },
			wantErr: "at least 16 characters",
		},
		{
			name:    "no storage",
			mutate:  func(c *Config) { c.DBPath = "" },
			wantErr: "no storage backend",
		},
		{
			name:    "half of supabase",
			mutate:  func(c *Config) { c.Supabase.URL = "https://x" },
			wantErr: "must be set together",
		},
		{
			name:    "half of google",
			mutate:  func(c *Config) { c.Google.ClientID = "id" },
			wantErr: "GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET",
		},
		{
			name:    "bad ttl",
			mutate:  func(c *Config) { c.SessionTTL = "forever" },
			wantErr: "invalid SESSION_TTL",
		},
		{
			name:    "negative ttl",
			mutate:  func(c *Config) { c.SessionTTL = "-1h" },
			wantErr: "invalid SESSION_TTL",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.LogLevel = "loud" },
			wantErr: "invalid LOG_LEVEL",
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Port = 70000 },
			wantErr: "out of range",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.JWTSecret = testSecret
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
