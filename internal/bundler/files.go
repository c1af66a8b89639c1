package bundler

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/buildconf/internal/buildconf"
)

// ErrUnsafeClean indicates the output directory is not something that should be emptied
var ErrUnsafeClean = errors.New("refusing to clean output directory")

// cleanStep empties the output directory before each build.
func cleanStep(p buildconf.Plugin) (*step, error) {
	return &step{
		name: p.Name,
		before: func(ctx context.Context, cfg *buildconf.BuildConfiguration) error {
			return cleanDir(ctx, cfg.Output.Path, cfg.Context)
		},
	}, nil
}

func cleanDir(ctx context.Context, dir, src string) error {
	outDir, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	srcDir, err := filepath.Abs(src)
	if err != nil {
		return err
	}

	if outDir == filepath.Dir(outDir) {
		return fmt.Errorf("%w: %s is a filesystem root", ErrUnsafeClean, outDir)
	}
	if within(srcDir, outDir) {
		return fmt.Errorf("%w: %s contains the sources in %s", ErrUnsafeClean, outDir, srcDir)
	}

	entries, err := os.ReadDir(outDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(outDir, e.Name())); err != nil {
			return err
		}
	}

	zerolog.Ctx(ctx).Debug().Str("dir", outDir).Int("removed", len(entries)).Msg("Cleaned output directory")
	return nil
}

// within reports whether path is dir or below it.
func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

type copyPattern struct {
	From string
	To   string
}

// copyStep copies static files into the output directory before each build.
func copyStep(p buildconf.Plugin) (*step, error) {
	patterns, err := copyPatterns(p)
	if err != nil {
		return nil, err
	}

	return &step{
		name: p.Name,
		before: func(ctx context.Context, cfg *buildconf.BuildConfiguration) error {
			for _, pat := range patterns {
				if err := copyTree(ctx, pat.From, filepath.Join(cfg.Output.Path, pat.To)); err != nil {
					return err
				}
			}
			return nil
		},
	}, nil
}

func copyPatterns(p buildconf.Plugin) ([]copyPattern, error) {
	raw, _ := p.Options["patterns"].([]any)

	out := make([]copyPattern, 0, len(raw))
	for i, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("pattern %d is not a mapping", i)
		}
		from, _ := m["from"].(string)
		to, _ := m["to"].(string)
		if from == "" {
			return nil, fmt.Errorf("pattern %d has no from", i)
		}
		out = append(out, copyPattern{From: from, To: to})
	}
	return out, nil
}

func copyTree(ctx context.Context, from, to string) error {
	log := zerolog.Ctx(ctx)

	if _, err := os.Stat(from); errors.Is(err, fs.ErrNotExist) {
		log.Warn().Str("from", from).Msg("Copy source missing, skipping")
		return nil
	}

	copied := 0
	err := filepath.WalkDir(from, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(from, path)
		if err != nil {
			return err
		}
		// a single file source is copied into the destination directory
		if rel == "." {
			rel = filepath.Base(path)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		copied++
		return writeFile(filepath.Join(to, rel), data)
	})
	if err != nil {
		return fmt.Errorf("failed to copy %s: %w", from, err)
	}

	log.Debug().Str("from", from).Str("to", to).Int("files", copied).Msg("Copied static files")
	return nil
}
