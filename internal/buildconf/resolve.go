package buildconf

import (
	"fmt"

	"github.com/wolfeidau/buildconf/internal/merge"
)

// Env is the environment mapping passed alongside the mode. It is carried
// through to the result but never changes what is resolved.
type Env map[string]string

// Resolved is one complete configuration for one invocation.
type Resolved struct {
	Mode   Mode
	Env    Env
	Tree   merge.Map
	Config *BuildConfiguration
}

type options struct {
	paths     Paths
	port      int
	overrides merge.Map
	env       Env
	polyfills []string
}

// Option customises a single Resolve call.
type Option func(*options)

// WithPaths anchors the partials to a project layout.
func WithPaths(p Paths) Option {
	return func(o *options) {
		o.paths = p
	}
}

// WithDevServerPort changes the development server port.
func WithDevServerPort(port int) Option {
	return func(o *options) {
		if port > 0 {
			o.port = port
		}
	}
}

// WithOverrides merges a project supplied tree over the mode overlay.
func WithOverrides(overrides merge.Map) Option {
	return func(o *options) {
		o.overrides = overrides
	}
}

// WithPolyfills puts modules ahead of the app entry point, such as
// "@babel/polyfill". They are bundled once, before any entry code runs.
func WithPolyfills(modules ...string) Option {
	return func(o *options) {
		o.polyfills = append(o.polyfills, modules...)
	}
}

// WithEnv records the caller's environment mapping.
func WithEnv(env Env) Option {
	return func(o *options) {
		o.env = env
	}
}

// Resolve builds the configuration for mode by merging the base partial with
// the development or production overlay. Every call starts from freshly built
// partials, so results never share state.
func Resolve(mode Mode, opts ...Option) (*Resolved, error) {
	mode, err := ParseMode(string(mode))
	if err != nil {
		return nil, err
	}

	o := &options{
		paths: DefaultPaths("."),
		port:  DefaultDevServerPort,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.paths.AssetsDir == "" {
		o.paths.AssetsDir = "assets"
	}

	var overlay merge.Map
	switch mode {
	case Production:
		overlay = production(o.paths)
	default:
		overlay = development(o.paths, o.port)
	}

	tree := merge.All(base(o.paths, o.polyfills), overlay, o.overrides)

	if err := Validate(tree); err != nil {
		return nil, err
	}

	cfg, err := Decode(tree)
	if err != nil {
		return nil, err
	}
	if cfg.Mode != mode {
		return nil, fmt.Errorf("%w: overrides changed mode from %s to %s", ErrInvalidConfiguration, mode, cfg.Mode)
	}

	return &Resolved{
		Mode:   mode,
		Env:    o.env,
		Tree:   tree,
		Config: cfg,
	}, nil
}

// Partials returns fresh copies of the base partial and the overlay for mode,
// unmerged. Useful for inspecting what each layer contributes.
func Partials(mode Mode, p Paths) (baseTree, overlay merge.Map, err error) {
	mode, err = ParseMode(string(mode))
	if err != nil {
		return nil, nil, err
	}
	if p.AssetsDir == "" {
		p.AssetsDir = "assets"
	}
	if mode.IsProduction() {
		return base(p, nil), production(p), nil
	}
	return base(p, nil), development(p, DefaultDevServerPort), nil
}
