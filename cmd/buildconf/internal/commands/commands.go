package commands

import (
	"io"
	"os"
	"path/filepath"

	"github.com/wolfeidau/buildconf/internal/buildconf"
	"github.com/wolfeidau/buildconf/internal/project"
)

type Globals struct {
	Debug   bool
	Version string

	// Stdout receives command output, nil means os.Stdout
	Stdout io.Writer
}

func (g *Globals) stdout() io.Writer {
	if g.Stdout == nil {
		return os.Stdout
	}
	return g.Stdout
}

// ProjectFlags are shared by every command that resolves a configuration.
// Flags win over the project file, which wins over the defaults.
type ProjectFlags struct {
	Project     string            `help:"path to the project file" default:"buildconf.yaml" env:"BUILDCONF_PROJECT"`
	Root        string            `help:"project root directory" env:"BUILDCONF_ROOT"`
	Src         string            `help:"source directory, relative to the root" env:"BUILDCONF_SRC"`
	Dist        string            `help:"output directory, relative to the root" env:"BUILDCONF_DIST"`
	Port        int               `help:"development server port" env:"BUILDCONF_PORT"`
	LenientMode bool              `help:"treat any mode other than production as development" env:"BUILDCONF_LENIENT_MODE"`
	Env         map[string]string `help:"environment values handed to the resolver (KEY=VALUE;...)"`
}

// settings loads the project file and layers the flags over it. A project
// file named explicitly must exist.
func (f *ProjectFlags) settings() (*project.Settings, error) {
	required := f.Project != project.DefaultFile
	file, err := project.Load(f.Project, required)
	if err != nil {
		return nil, err
	}

	flags := &project.Settings{
		Root: f.Root,
		Paths: project.PathSettings{
			Src:  f.Src,
			Dist: f.Dist,
		},
		DevServerPort: f.Port,
		LenientMode:   f.LenientMode,
	}
	if f.Src != "" {
		flags.Paths.Assets = filepath.Join(f.Src, "assets")
	}

	return project.Layer(flags, file, project.Defaults())
}

// resolve parses mode with the project's mode policy and resolves it.
func (f *ProjectFlags) resolve(mode string) (*buildconf.Resolved, error) {
	s, err := f.settings()
	if err != nil {
		return nil, err
	}

	m, err := s.ParseMode(mode)
	if err != nil {
		return nil, err
	}

	return s.Resolve(m, buildconf.Env(f.Env))
}
