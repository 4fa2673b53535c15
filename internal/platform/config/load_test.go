package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen11/stage-tracker/internal/platform/config"
)

// repoConfigs is the checked-in configs directory.
const repoConfigs = "../../../configs"

// writeProfile lays out a config dir holding the shared base.yaml and one
// profile file.
func writeProfile(t *testing.T, profile, body string) string {
	t.Helper()
	dir := t.TempDir()
	base, err := os.ReadFile(filepath.Join(repoConfigs, "base.yaml"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base.yaml"), base, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, profile+".yaml"), []byte(body), 0o600))
	return dir
}

func TestLoad_Profiles(t *testing.T) {
	tests := []struct {
		profile     string
		level       string
		format      string
		backend     string
		telemetry   bool
		seed        bool
		concurrency int
	}{
		{profile: "local", level: "debug", format: "text", backend: config.BackendMemory, seed: true, concurrency: 8},
		{profile: "dev", level: "debug", format: "json", backend: config.BackendSQLite, telemetry: true, seed: true, concurrency: 8},
		{profile: "test", level: "warn", format: "json", backend: config.BackendMemory, concurrency: 8},
		{profile: "prod", level: "info", format: "json", backend: config.BackendPostgres, telemetry: true, concurrency: 16},
	}

	for _, tt := range tests {
		t.Run(tt.profile, func(t *testing.T) {
			cfg, err := config.Load(tt.profile, config.WithConfigDir(repoConfigs))
			require.NoError(t, err)

			assert.Equal(t, tt.profile, cfg.App.Env)
			assert.Equal(t, tt.level, cfg.Log.Level)
			assert.Equal(t, tt.format, cfg.Log.Format)
			assert.Equal(t, tt.backend, cfg.Store.Backend)
			assert.Equal(t, tt.telemetry, cfg.Telemetry.Enabled)
			assert.Equal(t, tt.seed, cfg.Store.SeedDefaults)
			assert.Equal(t, tt.concurrency, cfg.Tracker.MaxConcurrency)

			// Shared settings come from base.yaml.
			assert.Equal(t, 8080, cfg.Server.Port)
			assert.Equal(t, 3, cfg.Client.Retry.MaxAttempts)
		})
	}
}

func TestLoad_ProdUsesOTLP(t *testing.T) {
	cfg, err := config.Load("prod", config.WithConfigDir(repoConfigs))
	require.NoError(t, err)

	assert.Equal(t, "otlp", cfg.Telemetry.Exporter)
	assert.NotEmpty(t, cfg.Telemetry.Endpoint)
	assert.Equal(t, 1024, cfg.Store.FeedBuffer)
}

func TestLoad_DefaultsFillMissingKeys(t *testing.T) {
	cfg, err := config.Load("local", config.WithConfigDir(repoConfigs))
	require.NoError(t, err)

	// Not present in any YAML file.
	assert.Equal(t, 64, cfg.Tracker.WatchBuffer)
}

func TestLoad_EnvOverrides(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		check func(t *testing.T, cfg *config.Config)
	}{
		{
			name: "store backend and dsn",
			env:  map[string]string{"APP_STORE_BACKEND": "sqlite", "APP_STORE_DSN": "file:tracker.db"},
			check: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, config.BackendSQLite, cfg.Store.Backend)
				assert.Equal(t, "file:tracker.db", cfg.Store.DSN)
			},
		},
		{
			name: "underscore inside a key",
			env:  map[string]string{"APP_STORE_FEED_BUFFER": "32", "APP_SERVER_READ_TIMEOUT": "15s"},
			check: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, 32, cfg.Store.FeedBuffer)
				assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
			},
		},
		{
			name: "three levels deep",
			env:  map[string]string{"APP_CLIENT_RETRY_MAX_ATTEMPTS": "7"},
			check: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, 7, cfg.Client.Retry.MaxAttempts)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := config.Load("local", config.WithConfigDir(repoConfigs))
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoad_OverridesWinOverEnvironment(t *testing.T) {
	t.Setenv("APP_STORE_BACKEND", "postgres")

	cfg, err := config.Load("local",
		config.WithConfigDir(repoConfigs),
		config.WithOverrides(map[string]any{"store.backend": "sqlite", "store.dsn": "file:cli.db"}),
	)
	require.NoError(t, err)
	assert.Equal(t, config.BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, "file:cli.db", cfg.Store.DSN)
}

func TestLoad_OverridesAreValidated(t *testing.T) {
	_, err := config.Load("local",
		config.WithConfigDir(repoConfigs),
		config.WithOverrides(map[string]any{"store.backend": "postgres"}),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.dsn must not be empty")
}

func TestLoad_EnvDefaultsToProfile(t *testing.T) {
	dir := writeProfile(t, "staging", "log:\n  level: info\n")

	cfg, err := config.Load("staging", config.WithConfigDir(dir))
	require.NoError(t, err)
	assert.Equal(t, "staging", cfg.App.Env)
	assert.Equal(t, "stage-tracker", cfg.App.Name)
}

func TestLoad_RejectsBadProfiles(t *testing.T) {
	for _, profile := range []string{"", " ", "../prod", `a\b`, "Prod", "-x"} {
		_, err := config.Load(profile, config.WithConfigDir(repoConfigs))
		assert.Error(t, err, "profile %q", profile)
	}

	_, err := config.Load("nonexistent", config.WithConfigDir(repoConfigs))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "profile config")
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(c *config.Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*config.Config) {}},
		{name: "port zero", mutate: func(c *config.Config) { c.Server.Port = 0 }, wantErr: "server.port"},
		{name: "unknown log level", mutate: func(c *config.Config) { c.Log.Level = "verbose" }, wantErr: "log.level"},
		{
			name:    "otlp without endpoint",
			mutate:  func(c *config.Config) { c.Telemetry.Enabled, c.Telemetry.Exporter = true, "otlp" },
			wantErr: "telemetry.endpoint",
		},
		{
			name:    "postgres without dsn",
			mutate:  func(c *config.Config) { c.Store.Backend = config.BackendPostgres },
			wantErr: "store.dsn",
		},
		{
			name:    "unknown backend",
			mutate:  func(c *config.Config) { c.Store.Backend = "redis" },
			wantErr: "store.backend",
		},
		{
			name:   "client ignored for memory backend",
			mutate: func(c *config.Config) { c.Client.BaseURL = "" },
		},
		{
			name:    "rest needs a base url",
			mutate:  func(c *config.Config) { c.Store.Backend, c.Client.BaseURL = config.BackendREST, "" },
			wantErr: "client.base_url",
		},
		{
			name: "realtime url must be a websocket",
			mutate: func(c *config.Config) {
				c.Store.Backend = config.BackendREST
				c.Client.RealtimeURL = "https://rows.example/realtime/v1"
			},
			wantErr: "client.realtime_url",
		},
		{
			name:    "zero watch buffer",
			mutate:  func(c *config.Config) { c.Tracker.WatchBuffer = 0 },
			wantErr: "tracker.watch_buffer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
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

func validConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Log:     config.LogConfig{Level: "info", Format: "json"},
		Store:   config.StoreConfig{Backend: config.BackendMemory, FeedBuffer: 256},
		Tracker: config.TrackerConfig{MaxConcurrency: 8, WatchBuffer: 64},
		Client: config.ClientConfig{
			BaseURL: "http://localhost:54321/rest/v1",
			Timeout: 30 * time.Second,
			Retry: config.RetryConfig{
				MaxAttempts:     3,
				InitialInterval: 100 * time.Millisecond,
				MaxInterval:     10 * time.Second,
				Multiplier:      2.0,
			},
			CircuitBreaker: config.CircuitBreakerConfig{MaxFailures: 5, Timeout: 30 * time.Second, HalfOpenLimit: 1},
		},
		Telemetry: config.TelemetryConfig{Exporter: "stdout"},
	}
}
