package bundler

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/buildconf/internal/buildconf"
)

// fileRule is a module rule as seen by the asset step.
type fileRule struct {
	test       *regexp.Regexp
	exclude    *regexp.Regexp
	file       bool
	name       string
	outputPath string
}

// assetStep moves files emitted for file-loader rules to the rule's
// outputPath and name template, then points the scripts and stylesheets
// referencing them at the new URL. The engine has a single asset name
// template, this restores the per rule layout. Returns nil when no rule
// uses the file loader.
func assetStep(rules []buildconf.Rule) (*step, error) {
	var (
		compiled []fileRule
		hasFile  bool
	)
	for _, r := range rules {
		test, err := regexp.Compile(r.Test)
		if err != nil {
			return nil, fmt.Errorf("%w: test %q: %w", ErrUnsupportedRule, r.Test, err)
		}
		fr := fileRule{test: test}
		if r.Exclude != "" {
			if fr.exclude, err = regexp.Compile(r.Exclude); err != nil {
				return nil, fmt.Errorf("%w: exclude %q: %w", ErrUnsupportedRule, r.Exclude, err)
			}
		}
		for _, l := range r.Use {
			if l.Loader != buildconf.LoaderFile {
				continue
			}
			fr.file = true
			fr.name, _ = l.Options["name"].(string)
			fr.outputPath, _ = l.Options["outputPath"].(string)
			if fr.name == "" {
				fr.name = "[hash].[ext]"
			}
			hasFile = true
		}
		compiled = append(compiled, fr)
	}
	if !hasFile {
		return nil, nil
	}

	return &step{
		name: buildconf.LoaderFile,
		emit: func(ctx context.Context, out *Output) error {
			if out.Metadata == nil {
				return nil
			}

			sources := map[string]string{}
			for key := range out.Metadata.Outputs {
				if in := out.Metadata.Sources(key); len(in) == 1 {
					sources[filepath.Join(out.WorkDir, key)] = in[0]
				}
			}

			var urls []string
			for i := range out.Files {
				f := out.Files[i]
				if isCode(f.Path) {
					continue
				}
				src, ok := sources[f.Path]
				if !ok {
					continue
				}
				r := matchRule(compiled, src)
				if r == nil || !r.file {
					continue
				}

				name := path.Join(r.outputPath, assetName(r.name, src, f.Contents))
				target := filepath.Join(out.OutDir, filepath.FromSlash(name))
				if target == f.Path {
					continue
				}

				from := out.URL(f.Path)
				if err := out.move(i, target); err != nil {
					return err
				}
				urls = append(urls, from, out.URL(target))
			}
			if len(urls) == 0 {
				return nil
			}

			refs := strings.NewReplacer(urls...)
			for i, f := range out.Files {
				if !isCode(f.Path) || strings.HasSuffix(f.Path, ".map") {
					continue
				}
				if rewritten := refs.Replace(string(f.Contents)); rewritten != string(f.Contents) {
					out.setContents(i, []byte(rewritten))
				}
			}

			zerolog.Ctx(ctx).Debug().Int("files", len(urls)/2).Msg("Moved file loader assets")
			return nil
		},
	}, nil
}

// matchRule returns the first rule applying to src, the same rule the
// engine's loader table picked for its extension.
func matchRule(rules []fileRule, src string) *fileRule {
	for i := range rules {
		r := &rules[i]
		if !r.test.MatchString(src) {
			continue
		}
		if r.exclude != nil && r.exclude.MatchString(src) {
			continue
		}
		return r
	}
	return nil
}

// assetName expands a file-loader name template for src, a path relative
// to the build context.
func assetName(tmpl, src string, data []byte) string {
	ext := path.Ext(src)
	dir := path.Dir(src)
	if dir == "." {
		dir = ""
	} else {
		dir += "/"
	}

	hash := contentHash(data)
	return strings.NewReplacer(
		"[path]", dir,
		"[name]", strings.TrimSuffix(path.Base(src), ext),
		"[ext]", strings.TrimPrefix(ext, "."),
		"[contenthash]", hash,
		"[hash]", hash,
	).Replace(tmpl)
}

func isCode(p string) bool {
	switch filepath.Ext(strings.TrimSuffix(p, ".map")) {
	case ".js", ".mjs", ".css":
		return true
	}
	return false
}
