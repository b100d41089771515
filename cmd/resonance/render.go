package main

import (
	"errors"
	"fmt"

	"github.com/spf13/afero"
	"github.com/urfave/cli"

	engine "github.com/resonance-box/engine-go"
	"github.com/resonance-box/engine-go/internal/synth"
	"github.com/resonance-box/engine-go/internal/timeline"
	"github.com/resonance-box/engine-go/internal/timing"
)

var renderFlags = []cli.Flag{
	cli.StringFlag{Name: "soundfont, s", Usage: "SF2 file (overrides config)"},
	cli.Float64Flag{Name: "tail", Value: 2, Usage: "seconds rendered after the last release"},
	cli.Float64Flag{Name: "bpm", Usage: "tempo (default: from the MIDI file)"},
	cli.IntFlag{Name: "sample-rate", Usage: "output sample rate (overrides config)"},
	cli.Float64Flag{Name: "lookahead", Usage: "lookahead in milliseconds (overrides config)"},
}

func render(c *cli.Context, fs afero.Fs) error {
	if c.NArg() < 2 {
		return errors.New("render: need <file.mid> and <out.wav>")
	}
	in, out := c.Args().Get(0), c.Args().Get(1)

	cfg, _, err := loadConfig(c, fs)
	if err != nil {
		return err
	}
	song, err := timeline.LoadSMFFile(fs, in)
	if err != nil {
		return err
	}
	applySong(&cfg, song)
	applyFlags(c, &cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.SoundFont == "" {
		return errors.New("render: no SoundFont (set --soundfont or soundFont in config)")
	}
	log, err := newLogger(c, cfg, false)
	if err != nil {
		return err
	}
	defer log.Sync()

	font, err := synth.LoadSoundFont(fs, cfg.SoundFont)
	if err != nil {
		return err
	}
	voicer, err := synth.NewSoundFontVoicer(font, cfg.SampleRate)
	if err != nil {
		return err
	}

	store := song.Store()
	seconds := timing.TicksToSeconds(store.EndTicks(), cfg.BPM, cfg.PPQ) + c.Float64("tail")
	samples, err := engine.RenderTimeline(store, voicer, cfg.SampleRate, seconds, engineOptions(cfg, log)...)
	if err != nil {
		return err
	}
	if err := afero.WriteFile(fs, out, engine.EncodeWAVFloat32LE(samples, cfg.SampleRate, 2), 0o644); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "wrote %s (%.2fs, %d notes)\n", out, seconds, store.Len())
	return nil
}
