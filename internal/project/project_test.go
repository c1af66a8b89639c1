package project

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/buildconf/internal/buildconf"
)

const sampleProject = `
paths:
  dist: public
devServerPort: 3000
polyfills:
  - "@babel/polyfill"
overrides:
  output:
    publicPath: /static/
  plugins:
    - name: ManifestPlugin
      options:
        filename: assets.json
`

func writeProject(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultFile)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeProject(t, sampleProject)

	s, err := Load(path, true)
	require.NoError(t, err)
	require.Equal(t, filepath.Dir(path), s.Root)
	require.Equal(t, "public", s.Paths.Dist)
	require.Equal(t, 3000, s.DevServerPort)
	require.Equal(t, []string{"@babel/polyfill"}, s.Polyfills)
	require.Contains(t, s.Overrides, "plugins")
}

func TestLoadMissing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), DefaultFile)

	s, err := Load(missing, false)
	require.NoError(t, err)
	require.Equal(t, &Settings{}, s)

	_, err = Load(missing, true)
	require.ErrorIs(t, err, ErrProjectFile)
}

func TestLoadInvalid(t *testing.T) {
	path := writeProject(t, "devServerPort: [not, a, port]\n")

	_, err := Load(path, true)
	require.ErrorIs(t, err, ErrProjectFile)
}

func TestLayer(t *testing.T) {
	flags := &Settings{DevServerPort: 9000}
	file := &Settings{
		Root:          "/project",
		Paths:         PathSettings{Dist: "public"},
		DevServerPort: 3000,
	}

	s, err := Layer(flags, nil, file, Defaults())
	require.NoError(t, err)

	require.Equal(t, 9000, s.DevServerPort)
	require.Equal(t, "/project", s.Root)
	require.Equal(t, "public", s.Paths.Dist)
	require.Equal(t, "src", s.Paths.Src)
	require.Equal(t, "assets", s.Paths.AssetsDir)
	require.False(t, s.LenientMode)

	require.Equal(t, buildconf.Paths{
		Src:       "/project/src",
		SrcAssets: "/project/src/assets",
		Dist:      "/project/public",
		AssetsDir: "assets",
	}, s.BuildPaths())
}

func TestSettingsParseMode(t *testing.T) {
	strict := Defaults()
	_, err := strict.ParseMode("staging")
	require.ErrorIs(t, err, buildconf.ErrUnknownMode)

	lenient := Defaults()
	lenient.LenientMode = true
	mode, err := lenient.ParseMode("staging")
	require.NoError(t, err)
	require.Equal(t, buildconf.Development, mode)
}

func TestSettingsResolve(t *testing.T) {
	file, err := Load(writeProject(t, sampleProject), true)
	require.NoError(t, err)

	s, err := Layer(file, Defaults())
	require.NoError(t, err)

	res, err := s.Resolve(buildconf.Development, buildconf.Env{"CI": "1"})
	require.NoError(t, err)

	require.Equal(t, 3000, res.Config.DevServer.Port)
	require.Equal(t, "/static/", res.Config.Output.PublicPath)
	require.Equal(t, filepath.Join(s.Root, "public"), res.Config.Output.Path)
	require.Equal(t, []string{"@babel/polyfill", "./index.js"}, res.Config.Entry["app"])

	last := res.Config.Plugins[len(res.Config.Plugins)-1]
	require.Equal(t, buildconf.PluginManifest, last.Name)
	require.Equal(t, "assets.json", last.Options["filename"])
}

func TestWatch(t *testing.T) {
	path := writeProject(t, sampleProject)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	require.NoError(t, Watch(ctx, path, func() { calls.Add(1) }))

	// several writes in a burst collapse into one reload
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte(sampleProject+"\n"), 0600))
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, 5*time.Second, 50*time.Millisecond)

	// unrelated files in the same directory are ignored
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), "other.yaml"), []byte("x: 1\n"), 0600))
	time.Sleep(2 * debounce)
	require.Equal(t, int32(1), calls.Load())
}
