package project

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"github.com/wolfeidau/buildconf/internal/buildconf"
	"gopkg.in/yaml.v3"
)

// DefaultFile is looked up in the project root when no file is named.
const DefaultFile = "buildconf.yaml"

var (
	// ErrProjectFile indicates the project file exists but could not be read or parsed
	ErrProjectFile = errors.New("invalid project file")
)

// Settings is the tool's own configuration, assembled from command line
// flags, the project file and defaults.
type Settings struct {
	// Root is the project directory relative paths are resolved against
	Root          string         `yaml:"root"`
	Paths         PathSettings   `yaml:"paths"`
	DevServerPort int            `yaml:"devServerPort"`
	LenientMode   bool           `yaml:"lenientMode"`
	Overrides     map[string]any `yaml:"overrides"`
	// Polyfills are bundled ahead of the app entry point
	Polyfills []string `yaml:"polyfills"`
}

type PathSettings struct {
	Src       string `yaml:"src"`
	Assets    string `yaml:"assets"`
	Dist      string `yaml:"dist"`
	AssetsDir string `yaml:"assetsDir"`
}

// Defaults are used for anything neither flags nor the project file set.
func Defaults() *Settings {
	return &Settings{
		Root: ".",
		Paths: PathSettings{
			Src:       "src",
			Assets:    filepath.Join("src", "assets"),
			Dist:      "dist",
			AssetsDir: "assets",
		},
		DevServerPort: buildconf.DefaultDevServerPort,
	}
}

// Load reads a project file. A missing file is only an error when required.
func Load(path string, required bool) (*Settings, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return &Settings{}, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrProjectFile, err)
	}

	var s Settings
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrProjectFile, path, err)
	}

	// relative roots in a project file are relative to the file
	if s.Root == "" || !filepath.IsAbs(s.Root) {
		s.Root = filepath.Join(filepath.Dir(path), s.Root)
	}

	return &s, nil
}

// Layer merges settings in priority order: a field set in an earlier layer
// wins over later ones. Nil layers are skipped.
func Layer(layers ...*Settings) (*Settings, error) {
	out := new(Settings)
	for _, l := range layers {
		if l == nil {
			continue
		}
		if err := mergo.Merge(out, l); err != nil {
			return nil, fmt.Errorf("failed to merge settings: %w", err)
		}
	}
	return out, nil
}

// BuildPaths anchors the path settings at Root.
func (s *Settings) BuildPaths() buildconf.Paths {
	abs := func(p string) string {
		if filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(s.Root, p)
	}
	return buildconf.Paths{
		Src:       abs(s.Paths.Src),
		SrcAssets: abs(s.Paths.Assets),
		Dist:      abs(s.Paths.Dist),
		AssetsDir: s.Paths.AssetsDir,
	}
}

// ParseMode applies the project's mode policy.
func (s *Settings) ParseMode(mode string) (buildconf.Mode, error) {
	if s.LenientMode {
		return buildconf.ParseModeLenient(mode), nil
	}
	return buildconf.ParseMode(mode)
}

// Resolve resolves mode with these settings.
func (s *Settings) Resolve(mode buildconf.Mode, env buildconf.Env) (*buildconf.Resolved, error) {
	return buildconf.Resolve(mode,
		buildconf.WithPaths(s.BuildPaths()),
		buildconf.WithDevServerPort(s.DevServerPort),
		buildconf.WithOverrides(s.Overrides),
		buildconf.WithPolyfills(s.Polyfills...),
		buildconf.WithEnv(env),
	)
}
