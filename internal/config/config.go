// Package config holds the engine settings persisted as JSON.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/resonance-box/engine-go/internal/logging"
	"github.com/resonance-box/engine-go/internal/timing"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	LookaheadMs      float64 `json:"lookaheadMs"`
	UpdateIntervalMs float64 `json:"updateIntervalMs"`
	BPM              float64 `json:"bpm"`
	PPQ              int     `json:"ppq"`
	SampleRate       int     `json:"sampleRate"`
	SoundFont        string  `json:"soundFont,omitempty"`
	MIDIPort         string  `json:"midiPort,omitempty"`
	LogLevel         string  `json:"logLevel,omitempty"`
}

func Default() Config {
	return Config{
		LookaheadMs:      100,
		UpdateIntervalMs: 16,
		BPM:              120,
		PPQ:              480,
		SampleRate:       48000,
		LogLevel:         "info",
	}
}

// Validate checks every field and joins all problems into one error.
func (c Config) Validate() error {
	var errs []error
	if !(c.LookaheadMs > 0) {
		errs = append(errs, fmt.Errorf("%w: lookaheadMs must be positive, got %v", ErrInvalidConfig, c.LookaheadMs))
	}
	if !(c.UpdateIntervalMs > 0) {
		errs = append(errs, fmt.Errorf("%w: updateIntervalMs must be positive, got %v", ErrInvalidConfig, c.UpdateIntervalMs))
	}
	if err := timing.ValidateTempo(c.BPM); err != nil {
		errs = append(errs, err)
	}
	if err := timing.ValidateResolution(c.PPQ); err != nil {
		errs = append(errs, err)
	}
	if c.SampleRate < 16000 || c.SampleRate > 192000 {
		errs = append(errs, fmt.Errorf("%w: sampleRate must be within 16000..192000, got %d", ErrInvalidConfig, c.SampleRate))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrInvalidConfig, err))
	}
	return errors.Join(errs...)
}

func (c Config) Lookahead() time.Duration {
	return time.Duration(c.LookaheadMs * float64(time.Millisecond))
}

func (c Config) UpdateInterval() time.Duration {
	return time.Duration(c.UpdateIntervalMs * float64(time.Millisecond))
}

// DefaultPath returns config.json under the user config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "resonance", "config.json"), nil
}

// Load reads path, or returns defaults if it does not exist. Fields missing
// from the file keep their default values.
func Load(fs afero.Fs, path string) (Config, error) {
	cfg := Default()
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("load config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Default(), fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Save(fs afero.Fs, path string) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	if err := afero.WriteFile(fs, path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	return nil
}
