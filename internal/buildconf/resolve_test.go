package buildconf

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/buildconf/internal/merge"
)

func TestResolveDefinesEverySection(t *testing.T) {
	for _, mode := range Modes {
		t.Run(string(mode), func(t *testing.T) {
			res, err := Resolve(mode, WithPaths(DefaultPaths("/project")))
			require.NoError(t, err)
			require.NoError(t, Validate(res.Tree))
			require.Equal(t, mode, res.Config.Mode)
			require.Equal(t, "/project/src", res.Config.Context)
			require.Equal(t, "/project/dist", res.Config.Output.Path)
			require.Equal(t, "/", res.Config.Output.PublicPath)
			require.Equal(t, []string{"./index.js"}, res.Config.Entry["app"])
			require.Equal(t, map[string]string{
				"@assets": "/project/src/assets",
				"@":       "/project/src",
			}, res.Config.Resolve.Alias)
			require.Equal(t, "all", res.Config.Optimization.SplitChunks.Chunks)
		})
	}
}

func TestResolveDevelopment(t *testing.T) {
	res, err := Resolve(Development, WithPaths(DefaultPaths("/project")))
	require.NoError(t, err)

	cfg := res.Config
	require.Equal(t, Devtool(InlineSourceMap), cfg.Devtool)
	require.Equal(t, 8081, cfg.DevServer.Port)
	require.True(t, cfg.DevServer.Hot)
	require.Equal(t, "/project/dist", cfg.DevServer.ContentBase)
	require.Equal(t, Overlay{Warnings: false, Errors: true}, cfg.DevServer.Overlay)
	require.Equal(t, "assets/js/[name].js", cfg.Output.Filename)
	require.Equal(t, "assets/js/[id].js", cfg.Output.ChunkFilename)
	require.False(t, cfg.Optimization.Minimize())

	require.Equal(t, []string{
		PluginClean, PluginCopy, PluginHTML, PluginMiniCSSExtract, PluginSourceMap,
	}, pluginNames(cfg.Plugins))

	css := cfg.PluginsNamed(PluginMiniCSSExtract)
	require.Len(t, css, 1)
	require.Equal(t, "assets/css/[name].css", css[0].Options["filename"])
}

func TestResolveProduction(t *testing.T) {
	res, err := Resolve(Production, WithPaths(DefaultPaths("/project")))
	require.NoError(t, err)

	cfg := res.Config
	require.False(t, cfg.Devtool.Enabled())
	require.Equal(t, false, res.Tree["devtool"])
	require.False(t, cfg.DevServer.Enabled())
	require.False(t, cfg.DevServer.Hot)
	require.Empty(t, res.Tree["devServer"])
	require.Equal(t, "assets/js/[name].[hash].js", cfg.Output.Filename)
	require.True(t, cfg.Optimization.Minimize())

	require.Equal(t, []string{
		PluginClean, PluginCopy, PluginHTML, PluginMiniCSSExtract, PluginManifest, PluginCompression,
	}, pluginNames(cfg.Plugins))
}

func TestResolveAssetNames(t *testing.T) {
	tests := []struct {
		mode     Mode
		expected string
	}{
		{mode: Development, expected: "[name].[ext]"},
		{mode: Production, expected: "[name].[hash].[ext]"},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			res, err := Resolve(tt.mode)
			require.NoError(t, err)

			var names []any
			for _, r := range res.Config.Module.Rules {
				for _, l := range r.Use {
					if l.Loader == LoaderFile {
						names = append(names, l.Options["name"])
					}
				}
			}
			require.Equal(t, []any{tt.expected, tt.expected}, names)
		})
	}
}

func TestResolveRulesConcatenate(t *testing.T) {
	res, err := Resolve(Development)
	require.NoError(t, err)

	var tests []string
	for _, r := range res.Config.Module.Rules {
		tests = append(tests, r.Test)
	}
	// the base js rule stays first, overlay rules follow in order
	require.Equal(t, []string{
		`\.js$`, `\.css$`, `\.s[ac]ss$`, `\.(gif|png|jpe?g|svg)$`, `\.(woff2?|ttf|otf|eot)$`,
	}, tests)

	scss := res.Config.Module.Rules[2]
	require.Equal(t, []string{
		LoaderMiniCSSExtract, LoaderCSS, LoaderPostCSS, LoaderResolveURL, LoaderSass,
	}, loaderNames(scss.Use))
}

func TestResolveIsDeterministic(t *testing.T) {
	first, err := Resolve(Production)
	require.NoError(t, err)

	// mutate the first result; a second call must not observe it
	first.Tree["plugins"] = append(first.Tree["plugins"].([]any), "stray")
	first.Tree["output"].(merge.Map)["filename"] = "changed"

	second, err := Resolve(Production)
	require.NoError(t, err)

	dev, err := Resolve(Development)
	require.NoError(t, err)
	require.NotEqual(t, second.Config.Output.Filename, dev.Config.Output.Filename)

	third, err := Resolve(Production)
	require.NoError(t, err)
	require.Empty(t, cmp.Diff(second.Tree, third.Tree))
	require.Equal(t, "assets/js/[name].[hash].js", third.Config.Output.Filename)
	require.Len(t, third.Config.Plugins, 6)
}

func TestResolveOptions(t *testing.T) {
	env := Env{"NODE_ENV": "development"}
	res, err := Resolve(Development,
		WithDevServerPort(9000),
		WithEnv(env),
		WithOverrides(merge.Map{
			"output":  merge.Map{"publicPath": "/static/"},
			"plugins": []any{merge.Map{"name": PluginManifest}},
		}),
	)
	require.NoError(t, err)

	require.Equal(t, 9000, res.Config.DevServer.Port)
	require.Equal(t, env, res.Env)
	require.Equal(t, "/static/", res.Config.Output.PublicPath)
	require.Equal(t, "assets/js/[name].js", res.Config.Output.Filename)
	require.Equal(t, PluginManifest, res.Config.Plugins[len(res.Config.Plugins)-1].Name)
}

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		name    string
		mode    Mode
		opts    []Option
		errType error
	}{
		{
			name:    "unknown mode",
			mode:    Mode("staging"),
			errType: ErrUnknownMode,
		},
		{
			name:    "empty mode",
			mode:    Mode(""),
			errType: ErrUnknownMode,
		},
		{
			name:    "override drops a section",
			mode:    Development,
			opts:    []Option{WithOverrides(merge.Map{"context": nil})},
			errType: ErrMissingSection,
		},
		{
			name:    "override changes mode",
			mode:    Development,
			opts:    []Option{WithOverrides(merge.Map{"mode": "production"})},
			errType: ErrInvalidConfiguration,
		},
		{
			name:    "override sets devtool true",
			mode:    Production,
			opts:    []Option{WithOverrides(merge.Map{"devtool": true})},
			errType: ErrInvalidConfiguration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(tt.mode, tt.opts...)
			require.Error(t, err)
			require.True(t, errors.Is(err, tt.errType), "got %v", err)
		})
	}
}

func TestResolvePaddedMode(t *testing.T) {
	tests := []struct {
		mode    Mode
		want    Mode
		devtool bool
	}{
		{mode: Mode(" production "), want: Production, devtool: false},
		{mode: Mode("\tdevelopment\n"), want: Development, devtool: true},
	}

	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			res, err := Resolve(tt.mode)
			require.NoError(t, err)
			require.Equal(t, tt.want, res.Mode)
			require.Equal(t, tt.want, res.Config.Mode)
			require.Equal(t, tt.devtool, res.Config.Devtool.Enabled())

			_, overlay, err := Partials(tt.mode, DefaultPaths("."))
			require.NoError(t, err)
			require.Equal(t, string(tt.want), overlay["mode"])
		})
	}
}

func TestResolvePolyfills(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
		want []string
	}{
		{name: "none", want: []string{"./index.js"}},
		{
			name: "babel",
			opts: []Option{WithPolyfills("@babel/polyfill")},
			want: []string{"@babel/polyfill", "./index.js"},
		},
		{
			name: "in order",
			opts: []Option{WithPolyfills("core-js/stable"), WithPolyfills("regenerator-runtime/runtime")},
			want: []string{"core-js/stable", "regenerator-runtime/runtime", "./index.js"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Resolve(Production, tt.opts...)
			require.NoError(t, err)
			require.Equal(t, tt.want, res.Config.Entry["app"])
		})
	}
}

func TestValidate(t *testing.T) {
	err := Validate(merge.Map{
		"mode":   "development",
		"output": merge.Map{"path": "dist"},
	})
	require.ErrorIs(t, err, ErrMissingSection)
	require.Contains(t, err.Error(), "output.filename")
	require.Contains(t, err.Error(), "module.rules")
	require.NotContains(t, err.Error(), "output.path\n")

	tree, overlay, err := Partials(Production, DefaultPaths("."))
	require.NoError(t, err)
	require.Error(t, Validate(tree))
	require.Error(t, Validate(overlay))
	require.NoError(t, Validate(merge.Deep(tree, overlay)))
}

func TestPartialsPluginConcatenation(t *testing.T) {
	baseTree, overlay, err := Partials(Production, DefaultPaths("."))
	require.NoError(t, err)

	merged := merge.Deep(baseTree, overlay)

	want := append(append([]any{}, baseTree["plugins"].([]any)...), overlay["plugins"].([]any)...)
	require.Empty(t, cmp.Diff(want, merged["plugins"]))
}

func pluginNames(plugins []Plugin) []string {
	out := make([]string, len(plugins))
	for i, p := range plugins {
		out[i] = p.Name
	}
	return out
}

func loaderNames(loaders []Loader) []string {
	out := make([]string, len(loaders))
	for i, l := range loaders {
		out[i] = l.Loader
	}
	return out
}
