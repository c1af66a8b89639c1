package buildconf

import (
	"errors"
	"fmt"
	"strings"

	"github.com/wolfeidau/buildconf/internal/merge"
	"gopkg.in/yaml.v3"
)

// RequiredSections must be defined after merging base with either overlay.
// Nested sections use dotted paths.
var RequiredSections = []string{
	"mode",
	"context",
	"entry",
	"output.filename",
	"output.path",
	"output.publicPath",
	"devtool",
	"devServer",
	"resolve.alias",
	"optimization",
	"plugins",
	"module.rules",
}

// BuildConfiguration is the typed view of a resolved tree, as handed to the
// bundler engine.
type BuildConfiguration struct {
	Mode         Mode                `yaml:"mode"`
	Context      string              `yaml:"context"`
	Entry        map[string][]string `yaml:"entry"`
	Output       Output              `yaml:"output"`
	Devtool      Devtool             `yaml:"devtool"`
	DevServer    DevServer           `yaml:"devServer"`
	Resolve      ResolveSection      `yaml:"resolve"`
	Optimization Optimization        `yaml:"optimization"`
	Plugins      []Plugin            `yaml:"plugins"`
	Module       ModuleSection       `yaml:"module"`
}

type Output struct {
	Filename      string `yaml:"filename"`
	ChunkFilename string `yaml:"chunkFilename,omitempty"`
	Path          string `yaml:"path"`
	PublicPath    string `yaml:"publicPath"`
}

// DevServer is empty for builds that do not serve.
type DevServer struct {
	Port        int     `yaml:"port,omitempty"`
	Hot         bool    `yaml:"hot,omitempty"`
	ContentBase string  `yaml:"contentBase,omitempty"`
	Overlay     Overlay `yaml:"overlay,omitempty"`
}

// Overlay controls which diagnostics the dev server surfaces in the browser.
type Overlay struct {
	Warnings bool `yaml:"warnings"`
	Errors   bool `yaml:"errors"`
}

func (d DevServer) Enabled() bool {
	return d.Port > 0
}

type ResolveSection struct {
	Alias map[string]string `yaml:"alias"`
}

type Optimization struct {
	SplitChunks SplitChunks `yaml:"splitChunks,omitempty"`
	Minimizer   []Plugin    `yaml:"minimizer,omitempty"`
}

type SplitChunks struct {
	Chunks string `yaml:"chunks,omitempty"`
}

// Minimize reports whether any minimizer is configured.
func (o Optimization) Minimize() bool {
	return len(o.Minimizer) > 0
}

// Plugin describes one plugin by name; the bundler adapter decides what it does.
type Plugin struct {
	Name    string         `yaml:"name"`
	Options map[string]any `yaml:"options,omitempty"`
}

type ModuleSection struct {
	Rules []Rule `yaml:"rules"`
}

// Rule applies a loader chain to files whose path matches Test and not Exclude.
type Rule struct {
	Test    string   `yaml:"test"`
	Exclude string   `yaml:"exclude,omitempty"`
	Use     []Loader `yaml:"use"`
}

// Loader is one step of a rule's chain.
type Loader struct {
	Loader  string         `yaml:"loader"`
	Options map[string]any `yaml:"options,omitempty"`
}

// Devtool is a source map style. The empty value means source maps are off,
// written as false in configuration.
type Devtool string

func (d Devtool) Enabled() bool {
	return d != ""
}

func (d *Devtool) UnmarshalYAML(value *yaml.Node) error {
	if value.Tag == "!!bool" {
		var on bool
		if err := value.Decode(&on); err != nil {
			return err
		}
		if on {
			return errors.New("devtool: true is not a source map style")
		}
		*d = ""
		return nil
	}

	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	*d = Devtool(strings.TrimPrefix(s, "#"))
	return nil
}

func (d Devtool) MarshalYAML() (any, error) {
	if d == "" {
		return false, nil
	}
	return string(d), nil
}

// PluginsNamed returns the plugins with the given name in configuration order.
func (c *BuildConfiguration) PluginsNamed(name string) []Plugin {
	var out []Plugin
	for _, p := range c.Plugins {
		if p.Name == name {
			out = append(out, p)
		}
	}
	return out
}

// Validate reports every required section missing from tree.
func Validate(tree merge.Map) error {
	var errs []error
	for _, section := range RequiredSections {
		if !defined(tree, section) {
			errs = append(errs, fmt.Errorf("%w: %s", ErrMissingSection, section))
		}
	}
	return errors.Join(errs...)
}

// Decode converts a resolved tree to its typed view.
func Decode(tree merge.Map) (*BuildConfiguration, error) {
	raw, err := yaml.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}

	var cfg BuildConfiguration
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}

	if _, err := ParseMode(string(cfg.Mode)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}

	return &cfg, nil
}

func defined(tree merge.Map, path string) bool {
	cur := tree
	parts := strings.Split(path, ".")
	for i, part := range parts {
		v, ok := cur[part]
		if !ok || v == nil {
			return false
		}
		if i == len(parts)-1 {
			return true
		}
		next, ok := v.(merge.Map)
		if !ok {
			return false
		}
		cur = next
	}
	return false
}
