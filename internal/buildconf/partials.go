package buildconf

import (
	"path/filepath"

	"github.com/wolfeidau/buildconf/internal/merge"
)

const (
	// InlineSourceMap is the devtool used for development builds
	InlineSourceMap = "cheap-module-eval-source-map"
	// DefaultDevServerPort is where the development server listens unless overridden
	DefaultDevServerPort = 8081
)

// Plugin and loader names understood by the bundler adapter.
const (
	PluginClean          = "CleanWebpackPlugin"
	PluginCopy           = "CopyWebpackPlugin"
	PluginHTML           = "HTMLWebpackPlugin"
	PluginMiniCSSExtract = "MiniCssExtractPlugin"
	PluginSourceMap      = "SourceMapDevToolPlugin"
	PluginTerser         = "TerserWebpackPlugin"
	PluginOptimizeCSS    = "OptimizeCssAssetsWebpackPlugin"
	PluginManifest       = "ManifestPlugin"
	PluginCompression    = "CompressionPlugin"

	LoaderMiniCSSExtract = "mini-css-extract-plugin/loader"
	LoaderBabel          = "babel-loader"
	LoaderCSS            = "css-loader"
	LoaderPostCSS        = "postcss-loader"
	LoaderResolveURL     = "resolve-url-loader"
	LoaderSass           = "sass-loader"
	LoaderFile           = "file-loader"
	LoaderURL            = "url-loader"
)

const (
	defaultEntryName      = "app"
	defaultEntryPoint     = "./index.js"
	defaultHTMLTemplate   = "index.html"
	defaultManifest       = "manifest.json"
	defaultSourceMapName  = "[file].map"
	defaultCompressFilter = `\.(js|css|html|svg)$`
)

// base holds the sections shared by every mode. Each call returns a new tree.
func base(p Paths, polyfills []string) merge.Map {
	app := make([]any, 0, len(polyfills)+1)
	for _, m := range polyfills {
		app = append(app, m)
	}
	app = append(app, defaultEntryPoint)

	return merge.Map{
		"context": p.Src,
		"entry": merge.Map{
			defaultEntryName: app,
		},
		"output": merge.Map{
			"path":       p.Dist,
			"publicPath": "/",
		},
		"devServer": merge.Map{},
		"resolve": merge.Map{
			"alias": merge.Map{
				"@assets": p.SrcAssets,
				"@":       p.Src,
			},
		},
		"optimization": merge.Map{
			"splitChunks": merge.Map{"chunks": "all"},
		},
		"plugins": []any{
			plugin(PluginClean, nil),
			plugin(PluginCopy, merge.Map{
				"patterns": []any{
					merge.Map{"from": filepath.Join(p.SrcAssets, "static"), "to": ""},
				},
			}),
			plugin(PluginHTML, merge.Map{
				"template": filepath.Join(p.SrcAssets, defaultHTMLTemplate),
				"filename": defaultHTMLTemplate,
			}),
		},
		"module": merge.Map{
			"rules": []any{
				rule(`\.js$`, "node_modules",
					loader(LoaderBabel, merge.Map{
						"presets": []any{"@babel/preset-env"},
						"plugins": []any{"@babel/plugin-proposal-class-properties"},
					}),
				),
			},
		},
	}
}

// development is the overlay for local work: stable names, inline source
// maps and a hot reloading dev server.
func development(p Paths, port int) merge.Map {
	names := Names{Mode: Development, AssetsDir: p.AssetsDir}
	return merge.Map{
		"mode": string(Development),
		"output": merge.Map{
			"filename":      names.Filename("js"),
			"chunkFilename": names.FileID("js"),
		},
		"devtool": InlineSourceMap,
		"devServer": merge.Map{
			"port":        port,
			"hot":         true,
			"contentBase": p.Dist,
			"overlay": merge.Map{
				"warnings": false,
				"errors":   true,
			},
		},
		"plugins": []any{
			plugin(PluginMiniCSSExtract, merge.Map{
				"filename":      names.Filename("css"),
				"chunkFilename": names.FileID("css"),
			}),
			plugin(PluginSourceMap, merge.Map{"filename": defaultSourceMapName}),
		},
		"module": merge.Map{
			"rules": assetRules(names),
		},
	}
}

// production is the overlay for release builds: hashed names, minimizers and
// no dev server.
func production(p Paths) merge.Map {
	names := Names{Mode: Production, AssetsDir: p.AssetsDir}
	return merge.Map{
		"mode": string(Production),
		"output": merge.Map{
			"filename":      names.Filename("js"),
			"chunkFilename": names.FileID("js"),
		},
		"devtool": false,
		"optimization": merge.Map{
			"minimizer": []any{
				plugin(PluginOptimizeCSS, merge.Map{
					"assetNameRegExp": `\.css$`,
					"discardComments": true,
				}),
				plugin(PluginTerser, nil),
			},
		},
		"plugins": []any{
			plugin(PluginMiniCSSExtract, merge.Map{
				"filename":      names.Filename("css"),
				"chunkFilename": names.FileID("css"),
			}),
			plugin(PluginManifest, merge.Map{"filename": defaultManifest}),
			plugin(PluginCompression, merge.Map{
				"algorithm": "gzip",
				"test":      defaultCompressFilter,
			}),
		},
		"module": merge.Map{
			"rules": assetRules(names),
		},
	}
}

// assetRules are the style, image and font rules. Only their naming and
// source map flags differ between modes.
func assetRules(names Names) []any {
	dev := !names.Mode.IsProduction()

	styles := func(extra ...merge.Map) []any {
		chain := []any{
			loader(LoaderMiniCSSExtract, merge.Map{
				"publicPath": "../../",
				"hmr":        dev,
				"reloadAll":  true,
			}),
			loader(LoaderCSS, merge.Map{"sourceMap": dev}),
			loader(LoaderPostCSS, merge.Map{"sourceMap": dev}),
		}
		for _, l := range extra {
			chain = append(chain, l)
		}
		return chain
	}

	return []any{
		merge.Map{"test": `\.css$`, "use": styles()},
		merge.Map{"test": `\.s[ac]ss$`, "use": styles(
			loader(LoaderResolveURL, merge.Map{"sourceMap": dev}),
			loader(LoaderSass, merge.Map{"sourceMap": dev}),
		)},
		rule(`\.(gif|png|jpe?g|svg)$`, "",
			loader(LoaderFile, merge.Map{
				"name":       names.Asset(),
				"outputPath": names.AssetsDir + "/img",
			}),
		),
		rule(`\.(woff2?|ttf|otf|eot)$`, "node_modules",
			loader(LoaderFile, merge.Map{
				"name":       names.Asset(),
				"outputPath": names.AssetsDir + "/fonts",
			}),
		),
	}
}

func plugin(name string, options merge.Map) merge.Map {
	p := merge.Map{"name": name}
	if options != nil {
		p["options"] = options
	}
	return p
}

func loader(name string, options merge.Map) merge.Map {
	l := merge.Map{"loader": name}
	if options != nil {
		l["options"] = options
	}
	return l
}

func rule(test, exclude string, use ...merge.Map) merge.Map {
	chain := make([]any, len(use))
	for i, l := range use {
		chain[i] = l
	}
	r := merge.Map{"test": test, "use": chain}
	if exclude != "" {
		r["exclude"] = exclude
	}
	return r
}
