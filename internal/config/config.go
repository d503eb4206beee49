// Package config loads daemon settings from a YAML file layered over
// built-in defaults. A missing file is not an error; every knob has a
// usable default.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/talgya/courier-world/internal/ai"
)

// Config collects every setting the daemon reads at startup.
type Config struct {
	Feed     Feed     `yaml:"feed"`
	Database Database `yaml:"database"`
	API      API      `yaml:"api"`
	Session  Session  `yaml:"session"`
	Engine   Engine   `yaml:"engine"`
}

// Feed points at the city API and its on-disk cache.
type Feed struct {
	BaseURL  string `yaml:"base_url"`
	CacheDir string `yaml:"cache_dir"`
}

// Database locates the SQLite file.
type Database struct {
	Path string `yaml:"path"`
}

// API configures the observer HTTP surface.
type API struct {
	Enabled    bool   `yaml:"enabled"`
	Addr       string `yaml:"addr"`
	RatePerMin int    `yaml:"rate_per_min"`
}

// Session shapes the run itself.
type Session struct {
	Slot      string  `yaml:"slot"`
	Autopilot string  `yaml:"autopilot"` // "easy", "medium", "hard", or "" for manual
	Seed      uint64  `yaml:"seed"`      // 0 draws fresh entropy
	UndoDepth int     `yaml:"undo_depth"`
	Goal      float64 `yaml:"goal"` // 0 keeps the feed's goal
}

// Engine paces the tick loop.
type Engine struct {
	TickMillis  int     `yaml:"tick_millis"`
	Speed       float64 `yaml:"speed"`
	AutosaveSec int     `yaml:"autosave_sec"` // 0 disables autosave
}

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Feed: Feed{
			BaseURL:  "https://api.courier.city",
			CacheDir: "api_cache",
		},
		Database: Database{
			Path: "courier.db",
		},
		API: API{
			Enabled:    true,
			Addr:       ":8080",
			RatePerMin: 120,
		},
		Session: Session{
			Slot:      "default",
			Autopilot: "medium",
		},
		Engine: Engine{
			TickMillis:  100,
			Speed:       1.0,
			AutosaveSec: 30,
		},
	}
}

// Load reads path over the defaults. An empty path or a missing file keeps
// the defaults as-is; a present file must parse and validate.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects settings the daemon cannot run with.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return &ValidationError{"database.path", "must not be empty"}
	}
	if c.Session.Slot == "" {
		return &ValidationError{"session.slot", "must not be empty"}
	}
	if c.Session.Autopilot != "" {
		if _, err := ai.ParseTier(c.Session.Autopilot); err != nil {
			return &ValidationError{"session.autopilot", err.Error()}
		}
	}
	if c.Session.UndoDepth < 0 {
		return &ValidationError{"session.undo_depth", "must not be negative"}
	}
	if c.Session.Goal < 0 {
		return &ValidationError{"session.goal", "must not be negative"}
	}
	if c.API.Enabled && c.API.Addr == "" {
		return &ValidationError{"api.addr", "must not be empty while the API is enabled"}
	}
	if c.API.RatePerMin < 0 {
		return &ValidationError{"api.rate_per_min", "must not be negative"}
	}
	if c.Engine.TickMillis <= 0 {
		return &ValidationError{"engine.tick_millis", "must be positive"}
	}
	if c.Engine.Speed <= 0 {
		return &ValidationError{"engine.speed", "must be positive"}
	}
	if c.Engine.AutosaveSec < 0 {
		return &ValidationError{"engine.autosave_sec", "must not be negative"}
	}
	return nil
}
