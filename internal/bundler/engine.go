package bundler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/evanw/esbuild/pkg/api"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/buildconf/internal/buildconf"
)

var (
	// ErrBuildFailed indicates the engine reported errors
	ErrBuildFailed = errors.New("esbuild failed with errors")
	// ErrNoDevServer indicates serving was requested for a configuration without a dev server
	ErrNoDevServer = errors.New("configuration has no dev server")
)

const serveAttempts = 5

// Engine hands resolved configurations to esbuild.
type Engine struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Engine {
	return &Engine{log: log}
}

// Result summarises one finished build.
type Result struct {
	ID       string
	Files    []string
	Warnings int
}

// prepare translates cfg and builds its plugin steps.
func (e *Engine) prepare(cfg *buildconf.BuildConfiguration) (*Plan, []*step, error) {
	plan, err := Translate(cfg)
	if err != nil {
		return nil, nil, err
	}
	for ext, loader := range plan.Unsupported {
		e.log.Warn().Str("ext", ext).Str("loader", loader).Msg("No engine equivalent for loader chain, files will fail to import")
	}

	s, err := steps(cfg)
	if err != nil {
		return nil, nil, err
	}
	return plan, s, nil
}

// Build runs one build and writes its outputs.
func (e *Engine) Build(ctx context.Context, cfg *buildconf.BuildConfiguration) (*Result, error) {
	id := uuid.NewString()
	log := e.log.With().Str("build_id", id).Logger()
	ctx = log.WithContext(ctx)

	plan, s, err := e.prepare(cfg)
	if err != nil {
		return nil, err
	}

	if err := runBefore(ctx, cfg, s); err != nil {
		return nil, err
	}

	entries := make([]string, 0, len(plan.Options.EntryPointsAdvanced))
	for _, ep := range plan.Options.EntryPointsAdvanced {
		entries = append(entries, ep.InputPath)
	}
	log.Info().Str("mode", cfg.Mode.String()).Strs("entrypoints", entries).Msg("Building assets")

	result := api.Build(plan.Options)
	e.report(result, cfg.DevServer.Overlay.Warnings || !cfg.DevServer.Enabled())
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("%w: %d error(s)", ErrBuildFailed, len(result.Errors))
	}

	out, err := e.output(cfg, plan, result)
	if err != nil {
		return nil, err
	}
	if err := runEmit(ctx, out, s); err != nil {
		return nil, err
	}

	res := &Result{ID: id, Warnings: len(result.Warnings)}
	for _, file := range out.Files {
		if err := writeFile(file.Path, file.Contents); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", file.Path, err)
		}
		log.Debug().Str("file", file.Path).Msg("Built file")
		res.Files = append(res.Files, file.Path)
	}

	if err := runAfter(ctx, out, s); err != nil {
		return nil, err
	}

	return res, nil
}

// Serve watches the sources and serves the build from memory alongside the
// dev server's content base until ctx is done.
func (e *Engine) Serve(ctx context.Context, cfg *buildconf.BuildConfiguration) error {
	if !cfg.DevServer.Enabled() {
		return ErrNoDevServer
	}
	ctx = e.log.WithContext(ctx)

	plan, s, err := e.prepare(cfg)
	if err != nil {
		return err
	}

	opts := plan.Options
	opts.Plugins = append(opts.Plugins, e.stepsPlugin(ctx, cfg, plan, s))

	bctx, cerr := api.Context(opts)
	if cerr != nil {
		for _, msg := range cerr.Errors {
			e.log.Error().Str("error", msg.Text).Msg("Build error")
		}
		return fmt.Errorf("%w: could not create build context", ErrBuildFailed)
	}
	defer bctx.Dispose()

	if err := bctx.Watch(api.WatchOptions{}); err != nil {
		return fmt.Errorf("failed to watch sources: %w", err)
	}

	// a server being restarted may still hold the port for a moment
	_, err = backoff.Retry(ctx, func() (api.ServeResult, error) {
		return bctx.Serve(api.ServeOptions{
			Port:     cfg.DevServer.Port,
			Servedir: cfg.DevServer.ContentBase,
		})
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(serveAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			e.log.Warn().Err(err).Dur("retry_in", next).Msg("Dev server failed to listen, retrying")
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to start dev server: %w", err)
	}

	e.log.Info().
		Int("port", cfg.DevServer.Port).
		Str("content_base", cfg.DevServer.ContentBase).
		Bool("hot", cfg.DevServer.Hot).
		Msg("Dev server listening")

	<-ctx.Done()
	e.log.Info().Msg("Dev server stopping")
	return nil
}

// stepsPlugin runs the plugin steps around every rebuild of a watch context.
func (e *Engine) stepsPlugin(ctx context.Context, cfg *buildconf.BuildConfiguration, plan *Plan, s []*step) api.Plugin {
	return api.Plugin{
		Name: "buildconf-steps",
		Setup: func(build api.PluginBuild) {
			build.OnStart(func() (api.OnStartResult, error) {
				return api.OnStartResult{}, runBefore(ctx, cfg, s)
			})
			build.OnEnd(func(result *api.BuildResult) (api.OnEndResult, error) {
				e.report(*result, cfg.DevServer.Overlay.Warnings)
				if len(result.Errors) > 0 {
					return api.OnEndResult{}, nil
				}

				out, err := e.output(cfg, plan, *result)
				if err != nil {
					return api.OnEndResult{}, err
				}
				if err := runEmit(ctx, out, s); err != nil {
					return api.OnEndResult{}, err
				}
				// the engine serves its own outputs from memory, relocated
				// and rewritten files are served from the content base
				for _, file := range out.changed() {
					if err := writeFile(file.Path, file.Contents); err != nil {
						return api.OnEndResult{}, err
					}
				}
				if err := runAfter(ctx, out, s); err != nil {
					return api.OnEndResult{}, err
				}

				e.log.Info().Int("files", len(result.OutputFiles)).Msg("Rebuilt")
				return api.OnEndResult{}, nil
			})
		},
	}
}

func (e *Engine) output(cfg *buildconf.BuildConfiguration, plan *Plan, result api.BuildResult) (*Output, error) {
	meta, err := parseMetadata(result.Metafile)
	if err != nil {
		return nil, err
	}
	return &Output{
		Config:   cfg,
		WorkDir:  plan.Options.AbsWorkingDir,
		OutDir:   plan.Options.Outdir,
		Metadata: meta,
		Files:    append([]api.OutputFile(nil), result.OutputFiles...),
	}, nil
}

// report logs engine messages. Errors are always logged, warnings only when
// asked for.
func (e *Engine) report(result api.BuildResult, warnings bool) {
	for _, msg := range result.Errors {
		e.log.Error().Str("error", msg.Text).Str("location", location(msg)).Msg("Build error")
	}
	if !warnings {
		return
	}
	for _, msg := range result.Warnings {
		e.log.Warn().Str("warning", msg.Text).Str("location", location(msg)).Msg("Build warning")
	}
}

func location(msg api.Message) string {
	if msg.Location == nil {
		return ""
	}
	return fmt.Sprintf("%s:%d:%d", msg.Location.File, msg.Location.Line, msg.Location.Column)
}
