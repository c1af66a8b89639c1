package commands

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildCmd_Run(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "web"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "web", "index.js"), []byte("console.log(\"hi\");\n"), 0o600))

	cmd := &BuildCmd{
		ProjectFlags: ProjectFlags{
			Project: filepath.Join(root, "missing.yaml"),
			Root:    root,
			Src:     "web",
			Dist:    "out",
		},
		Mode: "development",
	}

	// explicitly named project files must exist
	err := cmd.Run(context.Background(), &Globals{})
	require.Error(t, err)

	cmd.Project = "buildconf.yaml"
	require.NoError(t, cmd.Run(context.Background(), &Globals{}))

	require.FileExists(t, filepath.Join(root, "out", "assets", "js", "app.js"))
	require.FileExists(t, filepath.Join(root, "out", "index.html"))
}
