package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORAGE_TYPE", "")
	t.Setenv("FEED_URL", "")
	t.Setenv("IMPORT_INTERVAL", "")
	t.Setenv("API_TIMEOUT", "")
	t.Setenv("SERVER_PORT", "")
	t.Setenv("DEBUG", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoragePostgreSQL, cfg.Storage.Type)
	assert.Equal(t, "https://riad-news-api.vercel.app/api/news", cfg.Import.FeedURL)
	assert.Equal(t, time.Hour, cfg.Import.Interval)
	assert.Equal(t, 30*time.Second, cfg.Import.Timeout)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "newsarticle_import", cfg.Metrics.Job)
	assert.False(t, cfg.Debug)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("STORAGE_TYPE", "MongoDB")
	t.Setenv("FEED_URL", "http://localhost:9999/news")
	t.Setenv("IMPORT_INTERVAL", "15m")
	t.Setenv("API_TIMEOUT", "5s")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DEBUG", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StorageMongoDB, cfg.Storage.Type)
	assert.Equal(t, "http://localhost:9999/news", cfg.Import.FeedURL)
	assert.Equal(t, 15*time.Minute, cfg.Import.Interval)
	assert.Equal(t, 5*time.Second, cfg.Import.Timeout)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.Debug)
}

func TestLoad_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("STORAGE_TYPE", "memory")
	t.Setenv("IMPORT_INTERVAL", "soon")
	t.Setenv("SERVER_PORT", "eighty")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, time.Hour, cfg.Import.Interval)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoad_UnsupportedStorage(t *testing.T) {
	t.Setenv("STORAGE_TYPE", "cassandra")

	cfg, err := Load()
	assert.Nil(t, cfg)
	assert.ErrorIs(t, err, ErrUnsupportedStorage)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Storage: StorageConfig{Type: StorageMemory},
			Import:  ImportConfig{FeedURL: "http://example.com", Interval: time.Minute, Timeout: time.Second},
			Server:  ServerConfig{Port: 8080},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"valid", func(*Config) {}, nil},
		{"blank feed url", func(c *Config) { c.Import.FeedURL = "  " }, ErrMissingFeedURL},
		{"zero interval", func(c *Config) { c.Import.Interval = 0 }, ErrInvalidInterval},
		{"negative timeout", func(c *Config) { c.Import.Timeout = -time.Second }, ErrInvalidTimeout},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }, ErrInvalidPort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
