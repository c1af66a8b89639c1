package bundler

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/wolfeidau/buildconf/internal/buildconf"
)

// ErrUnsupportedRule indicates a rule whose test or exclude pattern does not compile
var ErrUnsupportedRule = errors.New("unsupported module rule")

// knownExtensions are probed against each rule's test pattern to derive the
// engine's loader table.
var knownExtensions = []string{
	".js", ".mjs", ".cjs", ".jsx", ".ts", ".tsx",
	".css", ".scss", ".sass",
	".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".ico",
	".woff", ".woff2", ".ttf", ".otf", ".eot",
	".json", ".txt",
}

// Plan is a BuildConfiguration translated into engine options.
type Plan struct {
	Options api.BuildOptions
	// Unsupported lists loaders the engine has no equivalent for, keyed by extension
	Unsupported map[string]string
}

// Translate maps a resolved configuration onto esbuild build options. The
// result does not write to disk; the engine writes outputs itself.
func Translate(cfg *buildconf.BuildConfiguration) (*Plan, error) {
	workDir, err := filepath.Abs(cfg.Context)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve context: %w", err)
	}
	outDir, err := filepath.Abs(cfg.Output.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output path: %w", err)
	}

	entries, inject := entryPoints(cfg.Entry)

	loaders, unsupported, err := loaderTable(cfg.Module.Rules)
	if err != nil {
		return nil, err
	}

	minify := cfg.Optimization.Minimize()
	splitting := cfg.Optimization.SplitChunks.Chunks == "all"

	opts := api.BuildOptions{
		AbsWorkingDir:       workDir,
		EntryPointsAdvanced: entries,
		Inject:              inject,
		Bundle:              true,
		Splitting:           splitting,
		Write:               false,
		Metafile:            true,
		Outdir:              outDir,
		PublicPath:          cfg.Output.PublicPath,
		EntryNames:          entryNames(cfg.Output.Filename),
		ChunkNames:          chunkNames(cfg.Output.ChunkFilename),
		AssetNames:          assetNames(cfg.Module.Rules),
		Format:              api.FormatESModule,
		Platform:            api.PlatformBrowser,
		Target:              api.ES2020,
		Loader:              loaders,
		MinifyWhitespace:    minify,
		MinifyIdentifiers:   minify,
		MinifySyntax:        minify,
		TreeShaking:         api.TreeShakingTrue,
		Sourcemap:           sourceMap(cfg),
		LogLevel:            api.LogLevelSilent,
		Define: map[string]string{
			"process.env.NODE_ENV": fmt.Sprintf("%q", cfg.Mode),
		},
	}

	if len(cfg.Resolve.Alias) > 0 {
		opts.Plugins = append(opts.Plugins, aliasPlugin(cfg.Resolve.Alias))
	}

	return &Plan{Options: opts, Unsupported: unsupported}, nil
}

// entryPoints turns each named entry into one engine entry point. Webpack
// bundles every item of a multi-item entry and exports the last one; the
// leading items are injected instead.
func entryPoints(entry map[string][]string) ([]api.EntryPoint, []string) {
	names := make([]string, 0, len(entry))
	for name := range entry {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		entries []api.EntryPoint
		inject  []string
		seen    = map[string]bool{}
	)
	for _, name := range names {
		items := entry[name]
		if len(items) == 0 {
			continue
		}
		for _, item := range items[:len(items)-1] {
			if !seen[item] {
				seen[item] = true
				inject = append(inject, item)
			}
		}
		entries = append(entries, api.EntryPoint{
			InputPath:  items[len(items)-1],
			OutputPath: name,
		})
	}
	return entries, inject
}

// entryNames converts "assets/js/[name].[hash].js" into the engine's
// extension-less template.
func entryNames(filename string) string {
	if filename == "" {
		return "[name]"
	}
	return placeholders(strings.TrimSuffix(filename, path.Ext(filename)))
}

// chunkNames converts the chunk template. Chunks have no stable names in the
// engine, so a hash is always kept to stop chunks colliding.
func chunkNames(filename string) string {
	if filename == "" {
		return "[name]-[hash]"
	}
	tmpl := entryNames(filename)
	if !strings.Contains(tmpl, "[hash]") {
		tmpl += "-[hash]"
	}
	return tmpl
}

// assetNames uses the first file loader's output path and name. The engine
// has a single asset template, so differing output paths collapse to it.
func assetNames(rules []buildconf.Rule) string {
	for _, r := range rules {
		for _, l := range r.Use {
			if l.Loader != buildconf.LoaderFile {
				continue
			}
			name, _ := l.Options["name"].(string)
			if name == "" {
				name = "[name].[hash].[ext]"
			}
			name = placeholders(strings.TrimSuffix(name, ".[ext]"))
			if out, ok := l.Options["outputPath"].(string); ok && out != "" {
				// outputs are grouped by extension rather than by rule
				return path.Join(path.Dir(out), "[ext]", name)
			}
			return name
		}
	}
	return "[name]-[hash]"
}

func placeholders(tmpl string) string {
	return strings.NewReplacer(
		"[path]", "[dir]/",
		"[id]", "[name]",
		"[contenthash]", "[hash]",
		"[chunkhash]", "[hash]",
	).Replace(tmpl)
}

// sourceMap picks the engine's source map mode. Eval and inline devtools
// embed the map; other devtools, or the source map plugin on its own, link
// an external file.
func sourceMap(cfg *buildconf.BuildConfiguration) api.SourceMap {
	if cfg.Devtool.Enabled() {
		d := string(cfg.Devtool)
		if strings.Contains(d, "eval") || strings.Contains(d, "inline") {
			return api.SourceMapInline
		}
		return api.SourceMapLinked
	}
	if len(cfg.PluginsNamed(buildconf.PluginSourceMap)) > 0 {
		return api.SourceMapLinked
	}
	return api.SourceMapNone
}

// loaderTable assigns an engine loader to every known extension matched by a
// rule. The first matching rule wins, as rules are ordered base first.
func loaderTable(rules []buildconf.Rule) (map[string]api.Loader, map[string]string, error) {
	loaders := map[string]api.Loader{}
	unsupported := map[string]string{}

	for _, r := range rules {
		test, err := regexp.Compile(r.Test)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: test %q: %w", ErrUnsupportedRule, r.Test, err)
		}
		// exclude narrows which sources match, the engine only keys loaders by extension
		if r.Exclude != "" {
			if _, err := regexp.Compile(r.Exclude); err != nil {
				return nil, nil, fmt.Errorf("%w: exclude %q: %w", ErrUnsupportedRule, r.Exclude, err)
			}
		}

		loader, ok, name := chainLoader(r.Use)

		for _, ext := range knownExtensions {
			if !test.MatchString("file" + ext) {
				continue
			}
			if _, done := loaders[ext]; done {
				continue
			}
			if _, done := unsupported[ext]; done {
				continue
			}
			if !ok {
				unsupported[ext] = name
				continue
			}
			loaders[ext] = loader
		}
	}

	return loaders, unsupported, nil
}

// chainLoader maps a loader chain to one engine loader. Preprocessors the
// engine cannot run make the whole chain unsupported.
func chainLoader(chain []buildconf.Loader) (api.Loader, bool, string) {
	var (
		loader api.Loader
		found  bool
	)
	for _, l := range chain {
		switch l.Loader {
		case buildconf.LoaderSass:
			return api.LoaderNone, false, l.Loader
		case buildconf.LoaderBabel:
			loader, found = api.LoaderJS, true
		case buildconf.LoaderCSS:
			loader, found = api.LoaderCSS, true
		case buildconf.LoaderFile:
			loader, found = api.LoaderFile, true
		case buildconf.LoaderURL:
			loader, found = api.LoaderDataURL, true
		}
	}
	if !found {
		names := make([]string, len(chain))
		for i, l := range chain {
			names[i] = l.Loader
		}
		return api.LoaderNone, false, strings.Join(names, "!")
	}
	return loader, true, ""
}
