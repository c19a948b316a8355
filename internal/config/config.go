package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Environment variables override defaults, e.g.
// MANGASYNC_SYNC__TITLE_LIMIT=25 sets sync.title_limit.
const envPrefix = "MANGASYNC_"

type Config struct {
	ListenAddr string         `koanf:"listen_addr"`
	Database   DatabaseConfig `koanf:"database"`
	MangaDex   MangaDexConfig `koanf:"mangadex"`
	Sync       SyncConfig     `koanf:"sync"`
}

type DatabaseConfig struct {
	Path string `koanf:"path"`
}

type MangaDexConfig struct {
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
}

type SyncConfig struct {
	Enabled      bool          `koanf:"enabled"`
	TitleLimit   int           `koanf:"title_limit"`   // popular titles per run
	ChapterLimit int           `koanf:"chapter_limit"` // chapters per title per run
	CallDelay    time.Duration `koanf:"call_delay"`    // courtesy throttle between outbound calls
	MaxRetries   int           `koanf:"max_retries"`
	Interval     time.Duration `koanf:"interval"`    // scheduler period
	RunTimeout   time.Duration `koanf:"run_timeout"` // deadline for one whole run
}

func defaultConfig() Config {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return Config{
		ListenAddr: ":8080",
		Database: DatabaseConfig{
			Path: filepath.Join(home, ".mangasync", "data.db"),
		},
		MangaDex: MangaDexConfig{
			BaseURL: "https://api.mangadex.org",
			Timeout: 15 * time.Second,
		},
		Sync: SyncConfig{
			Enabled:      true,
			TitleLimit:   100,
			ChapterLimit: 50,
			CallDelay:    time.Second,
			MaxRetries:   3,
			Interval:     24 * time.Hour,
			RunTimeout:   2 * time.Hour,
		},
	}
}

// Load builds the config from defaults overridden by MANGASYNC_* env vars.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Sync.TitleLimit <= 0 {
		return fmt.Errorf("sync.title_limit must be positive, got %d", c.Sync.TitleLimit)
	}
	if c.Sync.ChapterLimit <= 0 {
		return fmt.Errorf("sync.chapter_limit must be positive, got %d", c.Sync.ChapterLimit)
	}
	if c.Sync.MaxRetries <= 0 {
		return fmt.Errorf("sync.max_retries must be positive, got %d", c.Sync.MaxRetries)
	}
	if c.Sync.Interval <= 0 {
		return fmt.Errorf("sync.interval must be positive, got %s", c.Sync.Interval)
	}
	if c.Sync.RunTimeout <= 0 {
		return fmt.Errorf("sync.run_timeout must be positive, got %s", c.Sync.RunTimeout)
	}
	if c.MangaDex.BaseURL == "" {
		return fmt.Errorf("mangadex.base_url must not be empty")
	}
	return nil
}
