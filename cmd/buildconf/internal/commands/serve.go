package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/buildconf/internal/buildconf"
	"github.com/wolfeidau/buildconf/internal/bundler"
	"github.com/wolfeidau/buildconf/internal/logger"
	"github.com/wolfeidau/buildconf/internal/project"
)

// ServeCmd runs the development server. The project file is watched and the
// server restarts with the new configuration whenever it changes.
type ServeCmd struct {
	ProjectFlags

	Watch bool `help:"restart when the project file changes" default:"true" negatable:"" env:"BUILDCONF_WATCH"`
}

func (c *ServeCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = log.WithContext(ctx)

	res, err := c.resolve(buildconf.Development.String())
	if err != nil {
		return err
	}

	reload := make(chan struct{}, 1)
	if c.Watch {
		if err := c.watch(ctx, reload); err != nil {
			return err
		}
	}

	engine := bundler.New(logger.Component(log, "bundler"))

	for {
		next, err := c.serveUntil(ctx, engine, res.Config, reload, log)
		if err != nil || next == nil {
			return err
		}
		res = next
	}
}

// serveUntil serves cfg until ctx is done, the server fails or a reload
// produces a valid configuration, which is returned.
func (c *ServeCmd) serveUntil(ctx context.Context, engine *bundler.Engine, cfg *buildconf.BuildConfiguration, reload <-chan struct{}, log zerolog.Logger) (*buildconf.Resolved, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- engine.Serve(runCtx, cfg)
	}()

	for {
		select {
		case <-ctx.Done():
			<-done
			return nil, nil
		case err := <-done:
			if err == nil {
				err = errors.New("dev server stopped unexpectedly")
			}
			return nil, fmt.Errorf("serve failed: %w", err)
		case <-reload:
			next, err := c.resolve(buildconf.Development.String())
			if err != nil {
				log.Error().Err(err).Msg("Project file rejected, keeping current configuration")
				continue
			}
			log.Info().Msg("Project file changed, restarting dev server")
			cancel()
			<-done
			return next, nil
		}
	}
}

func (c *ServeCmd) watch(ctx context.Context, reload chan<- struct{}) error {
	if _, err := os.Stat(c.Project); err != nil {
		zerolog.Ctx(ctx).Debug().Str("path", c.Project).Msg("No project file to watch")
		return nil
	}

	return project.Watch(ctx, c.Project, func() {
		select {
		case reload <- struct{}{}:
		default:
		}
	})
}
