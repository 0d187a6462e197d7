package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearCredentials(t *testing.T) {
	t.Setenv("NEXT_PUBLIC_SUPABASE_URL", "")
	t.Setenv("NEXT_PUBLIC_SUPABASE_PUBLISHABLE_KEY", "")
	t.Setenv("DATABASE_URL", "")
}

func TestLoadConfigDefaults(t *testing.T) {
	clearCredentials(t)

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, ModeAuto, cfg.Backend.Mode)
	assert.Equal(t, 5*time.Second, cfg.Backend.RequestTimeout)
	assert.Equal(t, 36, cfg.Existence.MaxIDLength)
	assert.Equal(t, "missing", cfg.Existence.MissingSentinel)
	assert.Equal(t, 30*time.Minute, cfg.Existence.SyntheticTTL)
	assert.Equal(t, 20, cfg.Paging.DefaultPageSize)
	assert.Equal(t, DriverNone, cfg.Driver())
	assert.True(t, cfg.Mock(), "auto mode without credentials is mock")
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	clearCredentials(t)
	dir := t.TempDir()
	yaml := []byte("server:\n  port: 9090\npaging:\n  max_page_size: 50\nlookup:\n  cache_ttl: 1m\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))

	t.Setenv("HARNESS_PAGING_MAX_PAGE_SIZE", "25")
	t.Setenv("NEXT_PUBLIC_SUPABASE_URL", "https://example.supabase.co")
	t.Setenv("NEXT_PUBLIC_SUPABASE_PUBLISHABLE_KEY", "anon")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 25, cfg.Paging.MaxPageSize)
	assert.Equal(t, time.Minute, cfg.Lookup.CacheTTL)
	assert.Equal(t, "https://example.supabase.co", cfg.SupabaseURL)
	assert.Equal(t, DriverPostgREST, cfg.Driver())
	assert.False(t, cfg.Mock())
}

func TestModeSelection(t *testing.T) {
	tests := []struct {
		name     string
		mode     string
		creds    Credentials
		mock     bool
		driver   string
		validErr bool
	}{
		{name: "auto with dsn", mode: ModeAuto, creds: Credentials{DatabaseURL: "postgres://x"}, driver: DriverPostgres},
		{name: "auto with half supabase", mode: ModeAuto, creds: Credentials{SupabaseURL: "https://x"}, mock: true},
		{name: "forced mock", mode: ModeMock, creds: Credentials{DatabaseURL: "postgres://x"}, mock: true, driver: DriverPostgres},
		{name: "remote", mode: ModeRemote, creds: Credentials{SupabaseURL: "https://x", SupabaseKey: "k"}, driver: DriverPostgREST},
		{name: "remote without credentials", mode: ModeRemote, validErr: true},
		{name: "unknown mode", mode: "sometimes", validErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Backend:     BackendConfig{Mode: tt.mode},
				Paging:      PagingConfig{DefaultPageSize: 20},
				Credentials: tt.creds,
			}
			if tt.validErr {
				assert.Error(t, cfg.Validate())
				return
			}
			require.NoError(t, cfg.Validate())
			assert.Equal(t, tt.mock, cfg.Mock())
			assert.Equal(t, tt.driver, cfg.Driver())
		})
	}
}

func TestLoadConfigRejectsUnknownMode(t *testing.T) {
	clearCredentials(t)
	t.Setenv("HARNESS_BACKEND_MODE", "sometimes")

	_, err := LoadConfig(t.TempDir())
	assert.Error(t, err)
}
