package bundler

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
)

// ErrEntryNotFound indicates the metafile has no output for an entry point
var ErrEntryNotFound = errors.New("entrypoint not found in metadata")

// BuildMetadata is the subset of the esbuild metafile used to wire pages to
// their outputs. Paths are relative to the build's working directory.
type BuildMetadata struct {
	Outputs map[string]OutputInfo `json:"outputs"`
}

type OutputInfo struct {
	EntryPoint string               `json:"entryPoint"`
	Imports    []ImportInfo         `json:"imports"`
	Inputs     map[string]InputInfo `json:"inputs"`
	CSSBundle  string               `json:"cssBundle"`
	Bytes      int                  `json:"bytes"`
}

// InputInfo is a source file's contribution to an output.
type InputInfo struct {
	BytesInOutput int `json:"bytesInOutput"`
}

type ImportInfo struct {
	Path     string `json:"path"`
	Kind     string `json:"kind"`
	External bool   `json:"external"`
}

func parseMetadata(metafile string) (*BuildMetadata, error) {
	var m BuildMetadata
	if err := json.Unmarshal([]byte(metafile), &m); err != nil {
		return nil, fmt.Errorf("failed to parse metafile: %w", err)
	}
	return &m, nil
}

// Scripts returns the output for entryPoint followed by every chunk it
// imports, depth first, each listed once. The second value is the entry's
// extracted stylesheet, if any.
func (m *BuildMetadata) Scripts(entryPoint string) ([]string, string, error) {
	want := filepath.ToSlash(filepath.Clean(entryPoint))

	// map iteration order is random; keep results stable
	keys := make([]string, 0, len(m.Outputs))
	for k := range m.Outputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, outputPath := range keys {
		info := m.Outputs[outputPath]
		if info.EntryPoint != want {
			continue
		}

		scripts := []string{outputPath}
		visited := map[string]bool{outputPath: true}
		m.addDependencies(info, &scripts, visited)
		return scripts, info.CSSBundle, nil
	}

	return nil, "", fmt.Errorf("%w: %s", ErrEntryNotFound, entryPoint)
}

// Sources returns the inputs that make up outputPath, sorted.
func (m *BuildMetadata) Sources(outputPath string) []string {
	info, ok := m.Outputs[outputPath]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(info.Inputs))
	for in := range info.Inputs {
		out = append(out, in)
	}
	sort.Strings(out)
	return out
}

func (m *BuildMetadata) addDependencies(output OutputInfo, scripts *[]string, visited map[string]bool) {
	for _, imp := range output.Imports {
		// dynamic imports load on demand, only static chunks belong in the page
		if imp.External || imp.Kind == "dynamic-import" || visited[imp.Path] {
			continue
		}
		visited[imp.Path] = true
		*scripts = append(*scripts, imp.Path)

		if chunk, ok := m.Outputs[imp.Path]; ok {
			m.addDependencies(chunk, scripts, visited)
		}
	}
}
