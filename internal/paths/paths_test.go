package paths

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, EnsureDir(dir, 0))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(DefaultDirPerm), info.Mode().Perm())

	// Idempotent.
	require.NoError(t, EnsureDir(dir, 0))
}

func TestServerDir(t *testing.T) {
	got := ServerDir("/root/servers", "github", "my-mcp")
	assert.Equal(t, filepath.Join("/root/servers", "github", "my-mcp"), got)
}

func TestCacheLayout(t *testing.T) {
	root := "/srv/mcp"
	assert.Equal(t, filepath.Join(root, ".cache"), CacheDir(root))
	assert.Equal(t, filepath.Join(root, ".cache", "metadata"), MetadataCacheDir(root))
	assert.Equal(t, filepath.Join(root, ".cache", "builds"), BuildCacheDir(root))
}

func TestDefaultInstallRoot(t *testing.T) {
	root, err := DefaultInstallRoot()
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(root))
	assert.Equal(t, filepath.Join(Home(), ".vscode", "mcp-servers"), root)
}
