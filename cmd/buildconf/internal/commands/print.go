package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

type PrintCmd struct {
	ProjectFlags

	Mode   string `help:"build mode (development or production)" required:"" env:"BUILDCONF_MODE"`
	Format string `help:"output format" enum:"yaml,json" default:"yaml"`
}

func (c *PrintCmd) Run(ctx context.Context, globals *Globals) error {
	res, err := c.resolve(c.Mode)
	if err != nil {
		return err
	}

	var out []byte
	switch c.Format {
	case "json":
		out, err = json.MarshalIndent(res.Tree, "", "  ")
		out = append(out, '\n')
	default:
		out, err = yaml.Marshal(res.Tree)
	}
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}

	_, err = globals.stdout().Write(out)
	return err
}
