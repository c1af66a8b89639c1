package buildconf

import "fmt"

// Names derives output file-name templates for a mode. Development names are
// stable, production names carry the content hash for cache busting.
type Names struct {
	Mode      Mode
	AssetsDir string
}

// Filename is the template for an emitted entry of the given extension,
// e.g. assets/js/[name].js or assets/js/[name].[hash].js.
func (n Names) Filename(ext string) string {
	return fmt.Sprintf("%s/%s/%s.%s", n.AssetsDir, ext, n.stem("[name]"), ext)
}

// FileID is the template for chunks that only have an id.
func (n Names) FileID(ext string) string {
	return fmt.Sprintf("%s/%s/%s.%s", n.AssetsDir, ext, n.stem("[id]"), ext)
}

// Asset is the template handed to file loaders.
func (n Names) Asset() string {
	return n.stem("[name]") + ".[ext]"
}

func (n Names) stem(placeholder string) string {
	if n.Mode.IsProduction() {
		return placeholder + ".[hash]"
	}
	return placeholder
}
