package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", cfg.APIURL)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 10, cfg.PageSize)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("HMS_API_URL", "https://hms.example.com/")
	t.Setenv("HMS_TIMEOUT", "5s")
	t.Setenv("HMS_PAGE_SIZE", "20")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://hms.example.com", cfg.APIURL)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, 20, cfg.PageSize)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"relative url", "HMS_API_URL", "localhost"},
		{"zero page size", "HMS_PAGE_SIZE", "0"},
		{"unparsable timeout", "HMS_TIMEOUT", "soon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
