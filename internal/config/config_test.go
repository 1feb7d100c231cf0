package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every variable Load reads for the duration of the test
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "ENV", "LOG_LEVEL", "HTTP_TIMEOUT_SECONDS",
		"DATABASE_URL", "DATABASE_NAME",
		"FEED_URL", "FEED_AGENCY", "FEED_INTERVAL_SECONDS", "CACHE_TTL_SECONDS",
	} {
		t.Setenv(key, "")
	}
	t.Chdir(t.TempDir())
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Port)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, 15*time.Second, cfg.HTTPTimeout)
	assert.Empty(t, cfg.Database.URL)
	assert.Empty(t, cfg.Database.Name)
	assert.Empty(t, cfg.Feed.URL)
	assert.Equal(t, time.Minute, cfg.Feed.Interval)
}

func TestLoadYAMLThenEnv(t *testing.T) {
	clearEnv(t)

	path := writeFile(t, "config.yaml", `
port: "9000"
env: production
http_timeout: 5s
database:
  url: sqlite:///var/lib/traffic/traffic.db
  name: traffic
feed:
  url: https://example.com/gtfs-rt
  agency: MTA
  interval: 30s
`)
	t.Setenv("DATABASE_NAME", "override")
	t.Setenv("CACHE_TTL_SECONDS", "90")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "sqlite:///var/lib/traffic/traffic.db", cfg.Database.URL)
	assert.Equal(t, "override", cfg.Database.Name)
	assert.Equal(t, "MTA", cfg.Feed.Agency)
	assert.Equal(t, 30*time.Second, cfg.Feed.Interval)
	assert.Equal(t, 90*time.Second, cfg.Feed.CacheTTL)
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	require.NoError(t, os.Unsetenv("DATABASE_URL"))
	require.NoError(t, os.WriteFile(".env", []byte("DATABASE_URL=memory://\n"), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "memory://", cfg.Database.URL)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		yaml string
	}{
		{"non-numeric port", map[string]string{"PORT": "http"}, ""},
		{"bad feed url", map[string]string{"FEED_URL": "not a url"}, ""},
		{"bad log level", map[string]string{"LOG_LEVEL": "verbose"}, ""},
		{"zero feed interval", map[string]string{"FEED_INTERVAL_SECONDS": "0"}, ""},
		{"negative feed interval", nil, "feed:\n  interval: -5s\n"},
		{"malformed yaml", nil, "port: [1, 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.yaml != "" {
				path = writeFile(t, "config.yaml", tt.yaml)
			}

			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "reading config file")
}
