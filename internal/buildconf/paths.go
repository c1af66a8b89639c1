package buildconf

import "path/filepath"

// Paths anchors the partials to a project on disk.
type Paths struct {
	// Src is the bundler context, where entries are resolved from
	Src string
	// SrcAssets holds static files, the html template and styles
	SrcAssets string
	// Dist is the output directory
	Dist string
	// AssetsDir is the directory name under Dist that emitted assets go in
	AssetsDir string
}

// DefaultPaths lays the project out as src/, src/assets/ and dist/ under root.
func DefaultPaths(root string) Paths {
	src := filepath.Join(root, "src")
	return Paths{
		Src:       src,
		SrcAssets: filepath.Join(src, "assets"),
		Dist:      filepath.Join(root, "dist"),
		AssetsDir: "assets",
	}
}
