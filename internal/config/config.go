package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/refsync/refsync/internal/utils"
)

var (
	home, _           = os.UserHomeDir()
	DefaultConfigPath  = filepath.Join(home, ".refsync", "config.json")
	DefaultDataDir     = filepath.Join(home, "RefSync")
	DefaultLogFilePath = filepath.Join(home, ".refsync", "logs", "refsync.log")
	DefaultAPIBaseURL  = "https://api.github.com"

	DefaultSyncInterval = 30 * time.Second
)

var (
	ErrNoOwner  = errors.New("config: repository owner missing")
	ErrNoRepo   = errors.New("config: repository name missing")
	ErrNoBranch = errors.New("config: branch missing")
	ErrNoToken  = errors.New("config: access token missing")
)

// Config carries everything the daemon needs: the local tree root and the
// identity + credentials of the remote object repository. It is built once at
// startup and injected into constructors, never read from global state.
type Config struct {
	DataDir      string        `json:"data_dir"`
	Owner        string        `json:"owner"`
	Repo         string        `json:"repo"`
	Branch       string        `json:"branch"`
	Token        string        `json:"token"`
	APIBaseURL   string        `json:"api_base_url"`
	SyncInterval time.Duration `json:"-"`
	Path         string        `json:"-"`
}

func (c *Config) Validate() error {
	if c.Owner == "" {
		return ErrNoOwner
	}
	if c.Repo == "" {
		return ErrNoRepo
	}
	if c.Branch == "" {
		return ErrNoBranch
	}
	if c.Token == "" {
		return ErrNoToken
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = DefaultAPIBaseURL
	}
	if c.SyncInterval <= 0 {
		c.SyncInterval = DefaultSyncInterval
	}

	dataDir, err := utils.ResolvePath(c.DataDir)
	if err != nil {
		return fmt.Errorf("config: resolve data dir: %w", err)
	}
	c.DataDir = dataDir

	return utils.EnsureDir(c.DataDir)
}

// RepoSlug returns the "owner/repo" identity used in logs and errors.
func (c *Config) RepoSlug() string {
	return c.Owner + "/" + c.Repo
}

func (c *Config) Save(path string) error {
	if err := utils.EnsureParent(path); err != nil {
		return err
	}

	data, err := json.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.Path = path
	cfg.SyncInterval = DefaultSyncInterval

	return &cfg, nil
}
