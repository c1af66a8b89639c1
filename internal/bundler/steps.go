package bundler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/google/renameio/v2"
	"github.com/wolfeidau/buildconf/internal/buildconf"
)

var (
	// ErrUnknownPlugin indicates a plugin descriptor the adapter has no implementation for
	ErrUnknownPlugin = errors.New("unknown plugin")
	// ErrOutputCollision indicates two emitted files were given the same path
	ErrOutputCollision = errors.New("emitted files collide")
)

// Output is what after-build steps see: the configuration, the engine's
// metafile and the emitted files.
type Output struct {
	Config   *buildconf.BuildConfiguration
	WorkDir  string
	OutDir   string
	Metadata *BuildMetadata
	Files    []api.OutputFile

	// moved maps engine paths to where emit steps relocated them
	moved   map[string]string
	touched map[string]bool
}

// abs returns where a metafile key or engine path ends up on disk.
func (o *Output) abs(p string) string {
	if !filepath.IsAbs(p) {
		p = filepath.Join(o.WorkDir, p)
	}
	if to, ok := o.moved[p]; ok {
		return to
	}
	return p
}

// Rel returns an emitted file's path relative to the output directory, with
// forward slashes. Metafile keys are relative to the working directory,
// output file paths are absolute; both are accepted, and files moved by an
// emit step are reported at their new location.
func (o *Output) Rel(p string) string {
	p = o.abs(p)
	rel, err := filepath.Rel(o.OutDir, p)
	if err != nil {
		return filepath.ToSlash(p)
	}
	return filepath.ToSlash(rel)
}

// URL is where the browser loads an emitted file from.
func (o *Output) URL(p string) string {
	public := o.Config.Output.PublicPath
	if public == "" {
		public = "/"
	}
	if !strings.HasSuffix(public, "/") {
		public += "/"
	}
	return public + o.Rel(p)
}

// move relocates file i to target.
func (o *Output) move(i int, target string) error {
	for _, f := range o.Files {
		if f.Path == target {
			return fmt.Errorf("%w: %s", ErrOutputCollision, o.Rel(target))
		}
	}

	old := o.Files[i].Path
	if o.moved == nil {
		o.moved = map[string]string{}
	}
	for from, to := range o.moved {
		if to == old {
			o.moved[from] = target
		}
	}
	o.moved[old] = target

	o.Files[i].Path = target
	o.touch(target)
	return nil
}

// moveWithSourceMap relocates file i along with its linked source map.
func (o *Output) moveWithSourceMap(i int, target string) error {
	old := o.Files[i].Path
	if err := o.move(i, target); err != nil {
		return err
	}

	for j := range o.Files {
		if o.Files[j].Path != old+".map" {
			continue
		}
		if err := o.move(j, target+".map"); err != nil {
			return err
		}
		o.setContents(i, bytes.Replace(o.Files[i].Contents,
			[]byte("sourceMappingURL="+filepath.Base(old)+".map"),
			[]byte("sourceMappingURL="+filepath.Base(target)+".map"), 1))
	}
	return nil
}

func (o *Output) setContents(i int, data []byte) {
	o.Files[i].Contents = data
	o.touch(o.Files[i].Path)
}

func (o *Output) touch(p string) {
	if o.touched == nil {
		o.touched = map[string]bool{}
	}
	o.touched[p] = true
}

// changed returns the files emit steps moved or rewrote.
func (o *Output) changed() []api.OutputFile {
	var out []api.OutputFile
	for _, f := range o.Files {
		if o.touched[f.Path] {
			out = append(out, f)
		}
	}
	return out
}

// step is the work a plugin descriptor contributes around an engine build.
// before runs ahead of the engine, emit rearranges the engine's outputs
// before anything is written and after sees the final files. Any hook may
// be nil.
type step struct {
	name   string
	before func(ctx context.Context, cfg *buildconf.BuildConfiguration) error
	emit   func(ctx context.Context, out *Output) error
	after  func(ctx context.Context, out *Output) error
}

type stepFactory func(p buildconf.Plugin) (*step, error)

// engineOnly plugins are fully expressed through engine options.
func engineOnly(p buildconf.Plugin) (*step, error) {
	return &step{name: p.Name}, nil
}

var stepFactories = map[string]stepFactory{
	buildconf.PluginClean:          cleanStep,
	buildconf.PluginCopy:           copyStep,
	buildconf.PluginHTML:           htmlStep,
	buildconf.PluginManifest:       manifestStep,
	buildconf.PluginCompression:    compressionStep,
	buildconf.PluginMiniCSSExtract: cssExtractStep,
	buildconf.PluginSourceMap:      engineOnly,
	buildconf.PluginTerser:         engineOnly,
	buildconf.PluginOptimizeCSS:    engineOnly,
}

// steps builds the hooks for the module rules, then every plugin and
// minimizer in configuration order. All unknown names are reported together.
func steps(cfg *buildconf.BuildConfiguration) ([]*step, error) {
	var (
		out  []*step
		errs []error
	)

	assets, err := assetStep(cfg.Module.Rules)
	if err != nil {
		return nil, err
	}
	if assets != nil {
		out = append(out, assets)
	}

	descriptors := append(append([]buildconf.Plugin{}, cfg.Plugins...), cfg.Optimization.Minimizer...)
	for _, p := range descriptors {
		factory, ok := stepFactories[p.Name]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s", ErrUnknownPlugin, p.Name))
			continue
		}
		s, err := factory(p)
		if err != nil {
			errs = append(errs, fmt.Errorf("plugin %s: %w", p.Name, err))
			continue
		}
		out = append(out, s)
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}

func runBefore(ctx context.Context, cfg *buildconf.BuildConfiguration, steps []*step) error {
	for _, s := range steps {
		if s.before == nil {
			continue
		}
		if err := s.before(ctx, cfg); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

func runEmit(ctx context.Context, out *Output, steps []*step) error {
	for _, s := range steps {
		if s.emit == nil {
			continue
		}
		if err := s.emit(ctx, out); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

func runAfter(ctx context.Context, out *Output, steps []*step) error {
	for _, s := range steps {
		if s.after == nil {
			continue
		}
		if err := s.after(ctx, out); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

// writeFile replaces path atomically, creating parent directories.
func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return renameio.WriteFile(path, data, 0o644)
}

func stringOption(p buildconf.Plugin, key, fallback string) string {
	if v, ok := p.Options[key].(string); ok && v != "" {
		return v
	}
	return fallback
}
