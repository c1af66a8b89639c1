package bundler

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/minio/crc64nvme"
	"github.com/mr-tron/base58"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/buildconf/internal/buildconf"
)

// Manifest maps logical names to the hashed files a build emitted, so servers
// can link assets without knowing their content hashes.
type Manifest struct {
	Entrypoints map[string]ManifestEntry `json:"entrypoints"`
	Files       map[string]ManifestFile  `json:"files"`
}

type ManifestEntry struct {
	JS  []string `json:"js"`
	CSS []string `json:"css,omitempty"`
}

type ManifestFile struct {
	URL    string `json:"url"`
	Size   int    `json:"size"`
	Digest string `json:"digest"`
}

func manifestStep(p buildconf.Plugin) (*step, error) {
	filename := stringOption(p, "filename", "manifest.json")

	return &step{
		name: p.Name,
		after: func(ctx context.Context, out *Output) error {
			m, err := buildManifest(out)
			if err != nil {
				return err
			}

			raw, err := json.MarshalIndent(m, "", "  ")
			if err != nil {
				return err
			}

			target := filepath.Join(out.OutDir, filename)
			if err := writeFile(target, raw); err != nil {
				return err
			}

			zerolog.Ctx(ctx).Info().Str("file", target).Int("files", len(m.Files)).Msg("Wrote manifest")
			return nil
		},
	}, nil
}

func buildManifest(out *Output) (*Manifest, error) {
	m := &Manifest{
		Entrypoints: map[string]ManifestEntry{},
		Files:       map[string]ManifestFile{},
	}

	for _, f := range out.Files {
		rel := out.Rel(f.Path)
		m.Files[rel] = ManifestFile{
			URL:    out.URL(f.Path),
			Size:   len(f.Contents),
			Digest: Digest(f.Contents),
		}
	}

	if out.Metadata == nil {
		return m, nil
	}

	for name, items := range out.Config.Entry {
		if len(items) == 0 {
			continue
		}
		scripts, css, err := out.Metadata.Scripts(items[len(items)-1])
		if err != nil {
			return nil, err
		}

		entry := ManifestEntry{}
		for _, s := range scripts {
			if strings.HasSuffix(s, ".js") {
				entry.JS = append(entry.JS, out.URL(s))
			}
		}
		if css != "" {
			entry.CSS = append(entry.CSS, out.URL(css))
		}
		m.Entrypoints[name] = entry
	}

	return m, nil
}

// Digest is the base58 encoded CRC64-NVME checksum of data.
func Digest(data []byte) string {
	h := crc64nvme.New()
	h.Write(data)

	var sum [8]byte
	binary.BigEndian.PutUint64(sum[:], h.Sum64())
	return base58.Encode(sum[:])
}

// contentHash is the short digest placed in hashed file names.
func contentHash(data []byte) string {
	d := Digest(data)
	return d[:min(len(d), 8)]
}
