package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"
	"github.com/urfave/cli"
	"go.uber.org/zap"

	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/resonance-box/engine-go/internal/config"
	"github.com/resonance-box/engine-go/internal/logging"
)

var version = "dev"

var globalFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "config",
		Usage: "path to the JSON config file (default: user config dir)",
	},
	cli.StringFlag{
		Name:  "log-level",
		Usage: "debug|info|warn|error (overrides config)",
	},
	cli.StringFlag{
		Name:  "log-file",
		Usage: "write logs to this file instead of stderr",
	},
	cli.BoolFlag{
		Name:  "dev",
		Usage: "human readable console logs",
	},
}

func newApp(fs afero.Fs, out io.Writer) *cli.App {
	app := cli.NewApp()
	app.Name = "resonance"
	app.HelpName = "resonance"
	app.Usage = "lookahead MIDI note scheduler"
	app.UsageText = "resonance [global options] <command> [arguments...]"
	app.Version = version
	app.Writer = out
	app.ErrWriter = out
	app.Flags = globalFlags
	app.Commands = []cli.Command{
		{
			Name:      "play",
			Aliases:   []string{"p"},
			Usage:     "play a Standard MIDI File through a SoundFont and/or a MIDI output",
			ArgsUsage: "<file.mid>",
			Flags:     playFlags,
			Action:    func(c *cli.Context) error { return play(c, fs) },
		},
		{
			Name:      "render",
			Aliases:   []string{"r"},
			Usage:     "render a Standard MIDI File to a float32 WAV file",
			ArgsUsage: "<file.mid> <out.wav>",
			Flags:     renderFlags,
			Action:    func(c *cli.Context) error { return render(c, fs) },
		},
		{
			Name:   "ports",
			Usage:  "list MIDI output ports",
			Action: ports,
		},
		{
			Name:  "config",
			Usage: "manage the config file",
			Subcommands: []cli.Command{
				{
					Name:   "init",
					Usage:  "write the default config",
					Flags:  []cli.Flag{cli.BoolFlag{Name: "force, f", Usage: "overwrite an existing file"}},
					Action: func(c *cli.Context) error { return configInit(c, fs) },
				},
				{
					Name:   "show",
					Usage:  "print the effective config",
					Action: func(c *cli.Context) error { return configShow(c, fs) },
				},
			},
		},
	}
	return app
}

func main() {
	if err := newApp(afero.NewOsFs(), os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "resonance:", err)
		os.Exit(1)
	}
}

// configPath returns --config or the default location.
func configPath(c *cli.Context) (string, error) {
	if p := c.GlobalString("config"); p != "" {
		return p, nil
	}
	return config.DefaultPath()
}

func loadConfig(c *cli.Context, fs afero.Fs) (config.Config, string, error) {
	path, err := configPath(c)
	if err != nil {
		return config.Default(), "", err
	}
	cfg, err := config.Load(fs, path)
	if err != nil {
		return cfg, path, err
	}
	if lvl := c.GlobalString("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	return cfg, path, nil
}

// newLogger discards output when quiet is set and no log file was given, so
// the terminal UI is not overwritten.
func newLogger(c *cli.Context, cfg config.Config, quiet bool) (*zap.Logger, error) {
	file := c.GlobalString("log-file")
	if quiet && file == "" {
		return logging.Nop(), nil
	}
	return logging.New(logging.Options{
		Level:       cfg.LogLevel,
		Development: c.GlobalBool("dev"),
		OutputPath:  file,
	})
}
