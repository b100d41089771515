package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/afero"
	"github.com/urfave/cli"
	"go.uber.org/zap"

	engine "github.com/resonance-box/engine-go"
	"github.com/resonance-box/engine-go/internal/audio"
	"github.com/resonance-box/engine-go/internal/config"
	"github.com/resonance-box/engine-go/internal/midiout"
	"github.com/resonance-box/engine-go/internal/synth"
	"github.com/resonance-box/engine-go/internal/timeline"
)

var playFlags = []cli.Flag{
	cli.StringFlag{Name: "soundfont, s", Usage: "SF2 file for audio output (overrides config)"},
	cli.StringFlag{Name: "port", Usage: "MIDI output port name or substring (overrides config)"},
	cli.Float64Flag{Name: "bpm", Usage: "tempo (default: from the MIDI file)"},
	cli.IntFlag{Name: "sample-rate", Usage: "audio sample rate (overrides config)"},
	cli.Float64Flag{Name: "lookahead", Usage: "lookahead in milliseconds (overrides config)"},
	cli.BoolFlag{Name: "no-ui", Usage: "play to the end without the terminal monitor"},
}

// applySong takes tempo and resolution from the file. Tick positions are in
// the file's resolution, so its PPQ always wins.
func applySong(cfg *config.Config, song *timeline.Song) {
	cfg.BPM = song.BPM
	cfg.PPQ = song.PPQ
}

func applyFlags(c *cli.Context, cfg *config.Config) {
	if c.IsSet("soundfont") {
		cfg.SoundFont = c.String("soundfont")
	}
	if c.IsSet("port") {
		cfg.MIDIPort = c.String("port")
	}
	if c.IsSet("bpm") {
		cfg.BPM = c.Float64("bpm")
	}
	if c.IsSet("sample-rate") {
		cfg.SampleRate = c.Int("sample-rate")
	}
	if c.IsSet("lookahead") {
		cfg.LookaheadMs = c.Float64("lookahead")
	}
}

func engineOptions(cfg config.Config, log *zap.Logger) []engine.Option {
	return []engine.Option{
		engine.WithLookahead(cfg.Lookahead()),
		engine.WithUpdateInterval(cfg.UpdateInterval()),
		engine.WithTempo(cfg.BPM),
		engine.WithResolution(cfg.PPQ),
		engine.WithLogger(log),
	}
}

func play(c *cli.Context, fs afero.Fs) error {
	if c.NArg() < 1 {
		return errors.New("play: need <file.mid>")
	}
	cfg, _, err := loadConfig(c, fs)
	if err != nil {
		return err
	}
	song, err := timeline.LoadSMFFile(fs, c.Args().First())
	if err != nil {
		return err
	}
	applySong(&cfg, song)
	applyFlags(c, &cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	withUI := !c.Bool("no-ui")
	log, err := newLogger(c, cfg, withUI)
	if err != nil {
		return err
	}
	defer log.Sync()

	e, err := engine.New(song.Store(), engineOptions(cfg, log)...)
	if err != nil {
		return err
	}

	outputs := synth.NewMulti()
	var meter func() float32
	if cfg.SoundFont != "" {
		font, err := synth.LoadSoundFont(fs, cfg.SoundFont)
		if err != nil {
			return err
		}
		node, err := synth.NewSoundFontNode(font, cfg.SampleRate, synth.WithLogger(log))
		if err != nil {
			return err
		}
		player, err := audio.NewPlayer(cfg.SampleRate, node, cfg.Lookahead())
		if err != nil {
			return err
		}
		defer player.Close()
		player.Play()
		outputs.AddSink("audio", node)
		meter = player.Peak
	}
	if cfg.MIDIPort != "" {
		port, err := midiout.Open(cfg.MIDIPort, midiout.WithLogger(log))
		if err != nil {
			return err
		}
		defer port.Close()
		outputs.AddSink("midi", port)
	}
	if len(outputs.Names()) == 0 {
		log.Warn("no output configured, scheduling without sound")
	}
	e.SetSynthesizer(outputs)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go e.Run(ctx)

	events := e.Watch()
	e.Play()
	defer e.Stop()

	if withUI {
		m := newMonitor(e, events, meter, c.Args().First(), outputs.Names())
		_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
		if err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			if ev.Ended {
				// let release tails ring out
				time.Sleep(e.Lookahead() + 500*time.Millisecond)
				return nil
			}
		}
	}
}
