package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	cfg := Load()

	assert.Equal(t, BackendMemory, cfg.Backend)
	assert.Equal(t, "principal", cfg.AdminUsername)
	assert.Equal(t, "principal@mmps", cfg.AdminEmail)
	assert.Equal(t, "mmps-app-user", cfg.IdentityKey)
	assert.Equal(t, time.UTC, cfg.EventTimezone)
	assert.Equal(t, 15*time.Minute, cfg.AccessTTL)
	assert.Zero(t, cfg.SupabaseTimeout)
}

func TestLoadReadsEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portal.env")
	require.NoError(t, os.WriteFile(path, []byte("SUPABASE_URL=https://demo.supabase.co\nLOGIN_RATE_LIMIT_PER_MIN=3\n"), 0o600))
	t.Setenv("ENV_FILE", path)
	t.Setenv("BACKEND", "Supabase")
	t.Setenv("SUPABASE_TIMEOUT", "20s")
	// godotenv sets variables for the process; clear them afterwards.
	t.Cleanup(func() {
		os.Unsetenv("SUPABASE_URL")
		os.Unsetenv("LOGIN_RATE_LIMIT_PER_MIN")
	})

	cfg := Load()
	assert.Equal(t, BackendSupabase, cfg.Backend)
	assert.Equal(t, "https://demo.supabase.co", cfg.SupabaseURL)
	assert.Equal(t, 3, cfg.LoginRateLimitPerMin)
	assert.Equal(t, 20*time.Second, cfg.SupabaseTimeout)
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("SESSION_TTL", "soon")
	t.Setenv("RATE_LIMIT_PER_MIN", "many")
	t.Setenv("EVENT_TIMEZONE", "Mars/Olympus")

	cfg := Load()
	assert.Equal(t, time.Hour, cfg.SessionTTL)
	assert.Equal(t, 120, cfg.RateLimitPerMin)
	assert.Equal(t, time.UTC, cfg.EventTimezone)
}
