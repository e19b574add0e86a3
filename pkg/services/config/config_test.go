package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
region: eu-west-1
endpoint: http://localhost:4566
exclusion_window_days: 7
families:
  - log_group
  - queue
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", cfg.Region)
	assert.Equal(t, 7, cfg.ExclusionWindowDays)
	assert.Equal(t, []string{"log_group", "queue"}, cfg.Families)
	// Fields the file omits keep their defaults.
	assert.Equal(t, ":8080", cfg.Addr)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLocalEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		want     bool
	}{
		{"", false},
		{"http://localhost:4566", true},
		{"http://127.0.0.1:4566", true},
		{"https://sqs.us-east-1.amazonaws.com", false},
	}
	for _, tt := range tests {
		cfg := Config{Endpoint: tt.endpoint}
		assert.Equal(t, tt.want, cfg.LocalEndpoint(), tt.endpoint)
	}
}
