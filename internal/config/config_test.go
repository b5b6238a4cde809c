package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ".blogcast", cfg.StorageDir)
	assert.Equal(t, 5*time.Second, cfg.PollInterval())
	assert.Equal(t, 60, cfg.MaxPollAttempts)
	assert.Equal(t, 0.9, cfg.SimilarityThreshold)
	assert.Equal(t, 2.5, cfg.WordsPerSecond)
	assert.Equal(t, "16:9", cfg.AspectRatio)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"avatar_base_url": "https://avatars.example.com",
		"poll_interval_seconds": 2,
		"similarity_threshold": 0.8
	}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://avatars.example.com", cfg.AvatarBaseURL)
	assert.Equal(t, 2*time.Second, cfg.PollInterval())
	assert.Equal(t, 0.8, cfg.SimilarityThreshold)
	// Unspecified values still fall to defaults.
	assert.Equal(t, 60, cfg.MaxPollAttempts)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"storage_dir": "/from-file"}`), 0o644))

	t.Setenv("BLOGCAST_STORAGE_DIR", "/from-env")
	t.Setenv("BLOGCAST_MAX_POLL_ATTEMPTS", "7")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/from-env", cfg.StorageDir)
	assert.Equal(t, 7, cfg.MaxPollAttempts)
}

func TestLoad_MissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestLoad_InvalidValuesRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"similarity_threshold": 1.5}`), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "config error")
}

func TestLoad_InvalidURLRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"avatar_base_url": "not a url"}`), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "config error")
}
