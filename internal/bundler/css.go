package bundler

import (
	"context"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/buildconf/internal/buildconf"
)

// cssExtractStep moves the stylesheets the engine extracted next to the
// scripts to the plugin's filename and chunkFilename templates. Stylesheets
// of an entry take the entry's name, any other takes its own.
func cssExtractStep(p buildconf.Plugin) (*step, error) {
	filename := stringOption(p, "filename", "[name].css")
	chunkFilename := stringOption(p, "chunkFilename", "[id].css")

	return &step{
		name: p.Name,
		emit: func(ctx context.Context, out *Output) error {
			entries := entryStylesheets(out)

			moved := 0
			for i := range out.Files {
				f := out.Files[i]
				if filepath.Ext(f.Path) != ".css" {
					continue
				}

				tmpl, name := chunkFilename, strings.TrimSuffix(filepath.Base(f.Path), ".css")
				if entry, ok := entries[f.Path]; ok {
					tmpl, name = filename, entry
				}

				target := filepath.Join(out.OutDir, filepath.FromSlash(outputName(tmpl, name, f.Contents)))
				if target == f.Path {
					continue
				}
				if err := out.moveWithSourceMap(i, target); err != nil {
					return err
				}
				moved++
			}

			zerolog.Ctx(ctx).Debug().Int("files", moved).Msg("Moved extracted stylesheets")
			return nil
		},
	}, nil
}

// entryStylesheets maps the path of each entry's stylesheet to the entry name.
func entryStylesheets(out *Output) map[string]string {
	sheets := map[string]string{}
	if out.Metadata == nil {
		return sheets
	}

	byInput := map[string]string{}
	for name, items := range out.Config.Entry {
		if len(items) == 0 {
			continue
		}
		byInput[filepath.ToSlash(filepath.Clean(items[len(items)-1]))] = name
	}

	for key, info := range out.Metadata.Outputs {
		name, ok := byInput[info.EntryPoint]
		if !ok {
			continue
		}
		if info.CSSBundle != "" {
			sheets[out.abs(info.CSSBundle)] = name
		}
		// a stylesheet used directly as an entry point
		if path.Ext(key) == ".css" {
			sheets[out.abs(key)] = name
		}
	}
	return sheets
}

// outputName expands a webpack style name template. Every hash placeholder
// becomes the digest of data.
func outputName(tmpl, name string, data []byte) string {
	hash := contentHash(data)
	return strings.NewReplacer(
		"[name]", name,
		"[id]", name,
		"[contenthash]", hash,
		"[chunkhash]", hash,
		"[hash]", hash,
	).Replace(tmpl)
}
