package bundler

import (
	"testing"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/buildconf/internal/buildconf"
)

func resolve(t *testing.T, mode buildconf.Mode, opts ...buildconf.Option) *buildconf.BuildConfiguration {
	t.Helper()
	opts = append([]buildconf.Option{buildconf.WithPaths(buildconf.DefaultPaths("/project"))}, opts...)
	res, err := buildconf.Resolve(mode, opts...)
	require.NoError(t, err)
	return res.Config
}

func TestTranslateDevelopment(t *testing.T) {
	plan, err := Translate(resolve(t, buildconf.Development))
	require.NoError(t, err)

	opts := plan.Options
	require.Equal(t, "/project/src", opts.AbsWorkingDir)
	require.Equal(t, "/project/dist", opts.Outdir)
	require.Equal(t, []api.EntryPoint{{InputPath: "./index.js", OutputPath: "app"}}, opts.EntryPointsAdvanced)
	require.Empty(t, opts.Inject)
	require.Equal(t, "assets/js/[name]", opts.EntryNames)
	require.Equal(t, "assets/js/[name]-[hash]", opts.ChunkNames)
	require.Equal(t, "assets/[ext]/[name]", opts.AssetNames)
	require.Equal(t, "/", opts.PublicPath)
	require.Equal(t, api.SourceMapInline, opts.Sourcemap)
	require.False(t, opts.MinifyWhitespace)
	require.False(t, opts.MinifyIdentifiers)
	require.False(t, opts.MinifySyntax)
	require.True(t, opts.Splitting)
	require.False(t, opts.Write)
	require.True(t, opts.Metafile)
	require.Equal(t, `"development"`, opts.Define["process.env.NODE_ENV"])
	require.Len(t, opts.Plugins, 1)

	require.Equal(t, api.LoaderJS, opts.Loader[".js"])
	require.Equal(t, api.LoaderCSS, opts.Loader[".css"])
	require.Equal(t, api.LoaderFile, opts.Loader[".png"])
	require.Equal(t, api.LoaderFile, opts.Loader[".jpeg"])
	require.Equal(t, api.LoaderFile, opts.Loader[".woff2"])
	require.NotContains(t, opts.Loader, ".scss")
	require.Equal(t, map[string]string{
		".scss": buildconf.LoaderSass,
		".sass": buildconf.LoaderSass,
	}, plan.Unsupported)
}

func TestTranslateProduction(t *testing.T) {
	plan, err := Translate(resolve(t, buildconf.Production))
	require.NoError(t, err)

	opts := plan.Options
	require.Equal(t, "assets/js/[name].[hash]", opts.EntryNames)
	require.Equal(t, "assets/js/[name].[hash]", opts.ChunkNames)
	require.Equal(t, "assets/[ext]/[name].[hash]", opts.AssetNames)
	require.Equal(t, api.SourceMapNone, opts.Sourcemap)
	require.True(t, opts.MinifyWhitespace)
	require.True(t, opts.MinifyIdentifiers)
	require.True(t, opts.MinifySyntax)
	require.Equal(t, `"production"`, opts.Define["process.env.NODE_ENV"])
}

func TestTranslatePolyfills(t *testing.T) {
	plan, err := Translate(resolve(t, buildconf.Production, buildconf.WithPolyfills("@babel/polyfill")))
	require.NoError(t, err)

	require.Equal(t, []api.EntryPoint{{InputPath: "./index.js", OutputPath: "app"}}, plan.Options.EntryPointsAdvanced)
	require.Equal(t, []string{"@babel/polyfill"}, plan.Options.Inject)
}

func TestEntryPoints(t *testing.T) {
	entries, inject := entryPoints(map[string][]string{
		"app":    {"@babel/polyfill", "./index.js"},
		"admin":  {"@babel/polyfill", "./admin.js"},
		"worker": {"./worker.js"},
		"empty":  {},
	})

	require.Equal(t, []api.EntryPoint{
		{InputPath: "./admin.js", OutputPath: "admin"},
		{InputPath: "./index.js", OutputPath: "app"},
		{InputPath: "./worker.js", OutputPath: "worker"},
	}, entries)
	require.Equal(t, []string{"@babel/polyfill"}, inject)
}

func TestNameTemplates(t *testing.T) {
	tests := []struct {
		name     string
		fn       func(string) string
		input    string
		expected string
	}{
		{name: "entry stable", fn: entryNames, input: "assets/js/[name].js", expected: "assets/js/[name]"},
		{name: "entry hashed", fn: entryNames, input: "assets/js/[name].[hash].js", expected: "assets/js/[name].[hash]"},
		{name: "entry contenthash", fn: entryNames, input: "[name].[contenthash].js", expected: "[name].[hash]"},
		{name: "entry empty", fn: entryNames, input: "", expected: "[name]"},
		{name: "chunk id gets hash", fn: chunkNames, input: "assets/js/[id].js", expected: "assets/js/[name]-[hash]"},
		{name: "chunk hashed", fn: chunkNames, input: "assets/js/[id].[hash].js", expected: "assets/js/[name].[hash]"},
		{name: "chunk empty", fn: chunkNames, input: "", expected: "[name]-[hash]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, tt.fn(tt.input))
		})
	}
}

func TestAssetNames(t *testing.T) {
	require.Equal(t, "[name]-[hash]", assetNames(nil))

	require.Equal(t, "[dir]/[name]", assetNames([]buildconf.Rule{{
		Test: `\.png$`,
		Use:  []buildconf.Loader{{Loader: buildconf.LoaderFile, Options: map[string]any{"name": "[path][name].[ext]"}}},
	}}))

	require.Equal(t, "static/[ext]/[name].[hash]", assetNames([]buildconf.Rule{{
		Test: `\.png$`,
		Use: []buildconf.Loader{{Loader: buildconf.LoaderFile, Options: map[string]any{
			"name":       "[name].[hash].[ext]",
			"outputPath": "static/img",
		}}},
	}}))
}

func TestSourceMap(t *testing.T) {
	tests := []struct {
		name     string
		devtool  buildconf.Devtool
		plugins  []buildconf.Plugin
		expected api.SourceMap
	}{
		{name: "eval", devtool: "cheap-module-eval-source-map", expected: api.SourceMapInline},
		{name: "inline", devtool: "inline-source-map", expected: api.SourceMapInline},
		{name: "external", devtool: "source-map", expected: api.SourceMapLinked},
		{name: "off", devtool: "", expected: api.SourceMapNone},
		{
			name:     "off with plugin",
			devtool:  "",
			plugins:  []buildconf.Plugin{{Name: buildconf.PluginSourceMap}},
			expected: api.SourceMapLinked,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &buildconf.BuildConfiguration{Devtool: tt.devtool, Plugins: tt.plugins}
			require.Equal(t, tt.expected, sourceMap(cfg))
		})
	}
}

func TestLoaderTable(t *testing.T) {
	loaders, unsupported, err := loaderTable([]buildconf.Rule{
		{Test: `\.svg$`, Use: []buildconf.Loader{{Loader: buildconf.LoaderURL}}},
		{Test: `\.(png|svg)$`, Use: []buildconf.Loader{{Loader: buildconf.LoaderFile}}},
		{Test: `\.txt$`, Use: []buildconf.Loader{{Loader: "raw-loader"}}},
	})
	require.NoError(t, err)

	// first rule wins for svg
	require.Equal(t, map[string]api.Loader{
		".svg": api.LoaderDataURL,
		".png": api.LoaderFile,
	}, loaders)
	require.Equal(t, map[string]string{".txt": "raw-loader"}, unsupported)

	_, _, err = loaderTable([]buildconf.Rule{{Test: `\.(js`}})
	require.ErrorIs(t, err, ErrUnsupportedRule)

	_, _, err = loaderTable([]buildconf.Rule{{Test: `\.js$`, Exclude: `[`}})
	require.ErrorIs(t, err, ErrUnsupportedRule)
}

func TestRewriteAlias(t *testing.T) {
	alias := map[string]string{
		"@":       "/project/src",
		"@assets": "/project/src/assets",
	}
	keys := sortedAliasKeys(alias)
	require.Equal(t, []string{"@assets", "@"}, keys)

	tests := []struct {
		input    string
		expected string
		ok       bool
	}{
		{input: "@/components/button", expected: "/project/src/components/button", ok: true},
		{input: "@assets/img/logo.png", expected: "/project/src/assets/img/logo.png", ok: true},
		{input: "@assets", expected: "/project/src/assets", ok: true},
		{input: "@babel/polyfill", ok: false},
		{input: "./local", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := rewriteAlias(keys, alias, tt.input)
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.expected, got)
		})
	}
}
