package application

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"sitewatch-cloud/internal/replay/playback"
)

// SpeedPreset maps a named playback speed to a per-step delay.
type SpeedPreset struct {
	Label  string `yaml:"label"`
	Millis int    `yaml:"millis"`
}

// Config carries the replay engine tunables.
type Config struct {
	Speeds                 []SpeedPreset `yaml:"speeds"`
	TransitionMillis       int           `yaml:"transition_millis"`
	DefaultSnapshotsPerDay int           `yaml:"default_snapshots_per_day"`
}

// DefaultConfig returns the built-in speed menu and sampling density.
func DefaultConfig() Config {
	return Config{
		Speeds: []SpeedPreset{
			{Label: "0.5x", Millis: 2000},
			{Label: "1x", Millis: 1000},
			{Label: "2x", Millis: 500},
			{Label: "4x", Millis: 250},
		},
		TransitionMillis:       300,
		DefaultSnapshotsPerDay: 4,
	}
}

// LoadConfig loads replay configuration, layering an optional yaml file
// (REPLAY_CONFIG) over the defaults.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	if path := os.Getenv("REPLAY_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations that would degrade silently.
func (c Config) Validate() error {
	if len(c.Speeds) == 0 {
		return errors.New("replay config: empty speed menu")
	}
	for _, speed := range c.Speeds {
		if speed.Label == "" {
			return errors.New("replay config: speed preset missing label")
		}
		if speed.Millis <= 0 {
			return fmt.Errorf("replay config: speed %q must have positive millis", speed.Label)
		}
	}
	if c.TransitionMillis < 0 {
		return errors.New("replay config: transition_millis must not be negative")
	}
	if c.DefaultSnapshotsPerDay < 1 {
		return errors.New("replay config: default_snapshots_per_day must be at least 1")
	}
	return nil
}

// SpeedMenu converts presets to the controller's menu.
func (c Config) SpeedMenu() []playback.Speed {
	menu := make([]playback.Speed, 0, len(c.Speeds))
	for _, speed := range c.Speeds {
		menu = append(menu, playback.Speed{
			Label:    speed.Label,
			Duration: time.Duration(speed.Millis) * time.Millisecond,
		})
	}
	return menu
}

// Transition returns the configured per-step transition duration.
func (c Config) Transition() time.Duration {
	return time.Duration(c.TransitionMillis) * time.Millisecond
}
