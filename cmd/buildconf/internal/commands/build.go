package commands

import (
	"context"
	"fmt"

	"github.com/wolfeidau/buildconf/internal/bundler"
	"github.com/wolfeidau/buildconf/internal/logger"
)

type BuildCmd struct {
	ProjectFlags

	Mode string `help:"build mode (development or production)" required:"" env:"BUILDCONF_MODE"`
}

func (c *BuildCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)

	res, err := c.resolve(c.Mode)
	if err != nil {
		return err
	}

	log.Info().Str("version", globals.Version).Str("mode", res.Mode.String()).Msg("Resolved configuration")

	result, err := bundler.New(logger.Component(log, "bundler")).Build(ctx, res.Config)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	log.Info().Str("build_id", result.ID).Int("files", len(result.Files)).Int("warnings", result.Warnings).Msg("Build complete")
	return nil
}
