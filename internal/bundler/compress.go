package bundler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/buildconf/internal/buildconf"
)

const defaultMinRatio = 0.8

type compressor struct {
	ext    string
	writer func(w io.Writer) (io.WriteCloser, error)
}

var compressors = map[string]compressor{
	"gzip": {
		ext: ".gz",
		writer: func(w io.Writer) (io.WriteCloser, error) {
			return gzip.NewWriterLevel(w, gzip.BestCompression)
		},
	},
	"zstd": {
		ext: ".zst",
		writer: func(w io.Writer) (io.WriteCloser, error) {
			return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
		},
	},
}

// compressionStep writes a compressed sibling next to every emitted file
// that matches test, is at least threshold bytes and shrinks below minRatio.
func compressionStep(p buildconf.Plugin) (*step, error) {
	algorithm := stringOption(p, "algorithm", "gzip")
	c, ok := compressors[algorithm]
	if !ok {
		return nil, fmt.Errorf("unsupported algorithm %q", algorithm)
	}

	test, err := regexp.Compile(stringOption(p, "test", "."))
	if err != nil {
		return nil, fmt.Errorf("invalid test pattern: %w", err)
	}

	threshold := intOption(p, "threshold", 0)
	minRatio := floatOption(p, "minRatio", defaultMinRatio)

	return &step{
		name: p.Name,
		after: func(ctx context.Context, out *Output) error {
			written := 0
			for _, f := range out.Files {
				if !test.MatchString(f.Path) || len(f.Contents) < threshold || len(f.Contents) == 0 {
					continue
				}

				packed, err := compress(c, f.Contents)
				if err != nil {
					return fmt.Errorf("failed to compress %s: %w", f.Path, err)
				}
				if float64(len(packed))/float64(len(f.Contents)) >= minRatio {
					continue
				}

				if err := writeFile(f.Path+c.ext, packed); err != nil {
					return err
				}
				written++
			}

			zerolog.Ctx(ctx).Info().Str("algorithm", algorithm).Int("files", written).Msg("Compressed outputs")
			return nil
		},
	}, nil
}

func compress(c compressor, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := c.writer(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func intOption(p buildconf.Plugin, key string, fallback int) int {
	switch v := p.Options[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return fallback
}

func floatOption(p buildconf.Plugin, key string, fallback float64) float64 {
	switch v := p.Options[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return fallback
}
