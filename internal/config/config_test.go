package config

import (
	"errors"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/resonance-box/engine-go/internal/timing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Lookahead() != 100*time.Millisecond {
		t.Fatalf("lookahead = %v", cfg.Lookahead())
	}
	if cfg.UpdateInterval() != 16*time.Millisecond {
		t.Fatalf("update interval = %v", cfg.UpdateInterval())
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(afero.NewMemMapFs(), "/etc/resonance/config.json")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestSaveThenLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	in := Default()
	in.LookaheadMs = 150
	in.BPM = 96
	in.SoundFont = "/sf/piano.sf2"
	in.MIDIPort = "IAC"
	if err := in.Save(fs, "/home/u/.config/resonance/config.json"); err != nil {
		t.Fatalf("save: %v", err)
	}
	out, err := Load(fs, "/home/u/.config/resonance/config.json")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if out != in {
		t.Fatalf("round trip = %+v, want %+v", out, in)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/c.json", []byte(`{"bpm": 90}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(fs, "/c.json")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BPM != 90 || cfg.PPQ != 480 || cfg.LookaheadMs != 100 {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadRejectsInvalidFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "/bad.json", []byte(`{"bpm":`), 0o644)
	afero.WriteFile(fs, "/zero.json", []byte(`{"lookaheadMs": 0, "ppq": -1}`), 0o644)

	if _, err := Load(fs, "/bad.json"); err == nil {
		t.Fatal("expected parse error")
	}
	_, err := Load(fs, "/zero.json")
	if !errors.Is(err, ErrInvalidConfig) || !errors.Is(err, timing.ErrInvalidResolution) {
		t.Fatalf("err = %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		target error
	}{
		{"negative lookahead", func(c *Config) { c.LookaheadMs = -1 }, ErrInvalidConfig},
		{"zero interval", func(c *Config) { c.UpdateIntervalMs = 0 }, ErrInvalidConfig},
		{"zero bpm", func(c *Config) { c.BPM = 0 }, timing.ErrInvalidTempo},
		{"zero ppq", func(c *Config) { c.PPQ = 0 }, timing.ErrInvalidResolution},
		{"low sample rate", func(c *Config) { c.SampleRate = 8000 }, ErrInvalidConfig},
		{"bad log level", func(c *Config) { c.LogLevel = "chatty" }, ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.target) {
				t.Fatalf("err = %v, want %v", err, tt.target)
			}
		})
	}
}
