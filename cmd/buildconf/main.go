package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/wolfeidau/buildconf/cmd/buildconf/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Debug   bool `help:"Enable debug mode."`
		Version kong.VersionFlag
		Print   commands.PrintCmd `cmd:"" help:"Print the resolved build configuration"`
		Build   commands.BuildCmd `cmd:"" help:"Resolve the build configuration and build assets"`
		Serve   commands.ServeCmd `cmd:"" help:"Run the development server"`
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("buildconf"),
		kong.Description("Resolve mode specific bundler configuration and run builds with it."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
