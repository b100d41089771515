package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/resonance-box/engine-go/internal/config"
	"github.com/resonance-box/engine-go/internal/timeline"
)

func TestConfigInitThenShow(t *testing.T) {
	fs := afero.NewMemMapFs()
	var out bytes.Buffer
	app := newApp(fs, &out)

	if err := app.Run([]string{"resonance", "--config", "/cfg/config.json", "config", "init"}); err != nil {
		t.Fatalf("init: %v", err)
	}
	cfg, err := config.Load(fs, "/cfg/config.json")
	if err != nil || cfg != config.Default() {
		t.Fatalf("saved config = %+v, err = %v", cfg, err)
	}

	out.Reset()
	if err := app.Run([]string{"resonance", "--config", "/cfg/config.json", "--log-level", "debug", "config", "show"}); err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.Contains(out.String(), `"lookaheadMs": 100`) || !strings.Contains(out.String(), `"logLevel": "debug"`) {
		t.Fatalf("show output = %q", out.String())
	}
}

func TestConfigInitRefusesOverwrite(t *testing.T) {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "/cfg/config.json", []byte(`{"bpm": 99}`), 0o644)
	app := newApp(fs, &bytes.Buffer{})
	if err := app.Run([]string{"resonance", "--config", "/cfg/config.json", "config", "init"}); err == nil {
		t.Fatal("expected error when config exists")
	}
	if err := app.Run([]string{"resonance", "--config", "/cfg/config.json", "config", "init", "--force"}); err != nil {
		t.Fatalf("init --force: %v", err)
	}
	cfg, _ := config.Load(fs, "/cfg/config.json")
	if cfg.BPM != 120 {
		t.Fatalf("bpm = %v after force", cfg.BPM)
	}
}

func TestRenderRequiresSoundFont(t *testing.T) {
	fs := afero.NewMemMapFs()
	f, _ := fs.Create("/song.mid")
	song := &timeline.Song{PPQ: 480, BPM: 120, Events: []timeline.NoteEvent{{Ticks: 0, Duration: 480, NoteNumber: 60, Velocity: 100}}}
	if err := timeline.WriteSMF(f, song); err != nil {
		t.Fatal(err)
	}
	f.Close()

	app := newApp(fs, &bytes.Buffer{})
	err := app.Run([]string{"resonance", "--config", "/none.json", "render", "/song.mid", "/out.wav"})
	if err == nil || !strings.Contains(err.Error(), "SoundFont") {
		t.Fatalf("err = %v", err)
	}
	if ok, _ := afero.Exists(fs, "/out.wav"); ok {
		t.Fatal("no output expected without a SoundFont")
	}
}

func TestApplySongThenFlags(t *testing.T) {
	cfg := config.Default()
	applySong(&cfg, &timeline.Song{PPQ: 96, BPM: 140})
	if cfg.PPQ != 96 || cfg.BPM != 140 {
		t.Fatalf("cfg = %+v", cfg)
	}
}
