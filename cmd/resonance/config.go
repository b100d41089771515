package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/afero"
	"github.com/urfave/cli"

	"github.com/resonance-box/engine-go/internal/config"
	"github.com/resonance-box/engine-go/internal/midiout"
)

func configInit(c *cli.Context, fs afero.Fs) error {
	path, err := configPath(c)
	if err != nil {
		return err
	}
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return err
	}
	if exists && !c.Bool("force") {
		return fmt.Errorf("config: %s already exists (use --force to overwrite)", path)
	}
	if err := config.Default().Save(fs, path); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, "wrote", path)
	return nil
}

func configShow(c *cli.Context, fs afero.Fs) error {
	cfg, path, err := loadConfig(c, fs)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "# %s\n%s\n", path, data)
	return nil
}

func ports(c *cli.Context) error {
	names := midiout.ListPorts()
	if len(names) == 0 {
		fmt.Fprintln(c.App.Writer, "no MIDI output ports found")
		return nil
	}
	for i, name := range names {
		fmt.Fprintf(c.App.Writer, "%2d  %s\n", i, name)
	}
	return nil
}
