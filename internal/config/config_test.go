package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig(t *testing.T) *Config {
	t.Helper()
	return &Config{
		DataDir: t.TempDir(),
		Owner:   "alice",
		Repo:    "notes",
		Branch:  "main",
		Token:   "ghp_test",
	}
}

func TestConfig_Validate_Defaults(t *testing.T) {
	cfg := validConfig(t)

	require.NoError(t, cfg.Validate())
	assert.True(t, filepath.IsAbs(cfg.DataDir))
	assert.Equal(t, DefaultAPIBaseURL, cfg.APIBaseURL)
	assert.Equal(t, DefaultSyncInterval, cfg.SyncInterval)
	assert.Equal(t, "alice/notes", cfg.RepoSlug())
}

func TestConfig_Validate_ErrorsOnMissingFields(t *testing.T) {
	t.Run("owner", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.Owner = ""
		assert.ErrorIs(t, cfg.Validate(), ErrNoOwner)
	})

	t.Run("repo", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.Repo = ""
		assert.ErrorIs(t, cfg.Validate(), ErrNoRepo)
	})

	t.Run("branch", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.Branch = ""
		assert.ErrorIs(t, cfg.Validate(), ErrNoBranch)
	})

	t.Run("token", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.Token = ""
		assert.ErrorIs(t, cfg.Validate(), ErrNoToken)
	})
}

func TestConfig_SaveLoadRoundTrip(t *testing.T) {
	cfg := validConfig(t)
	require.NoError(t, cfg.Validate())

	path := filepath.Join(t.TempDir(), "refsync", "config.json")
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Owner, loaded.Owner)
	assert.Equal(t, cfg.Repo, loaded.Repo)
	assert.Equal(t, cfg.Branch, loaded.Branch)
	assert.Equal(t, cfg.Token, loaded.Token)
	assert.Equal(t, path, loaded.Path)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
