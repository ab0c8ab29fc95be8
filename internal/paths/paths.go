package paths

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/cockroachdb/errors"
)

// Sentinel errors for path resolution.
var (
	// ErrHomeDirNotFound indicates the user's home directory could not be determined.
	ErrHomeDirNotFound = errors.New("home directory not found")

	// ErrInvalidPath indicates the provided path is malformed or invalid.
	ErrInvalidPath = errors.New("invalid path")
)

// DefaultDirPerm is the default permission for newly created directories (private).
const DefaultDirPerm = 0o700

// AppName is used for config and state directory naming.
const AppName = "mcphost"

// installRootDirName is the directory under $HOME that holds installed
// servers. It mirrors the layout the editor extension established, so
// existing installations remain visible.
const installRootDirName = ".vscode/mcp-servers"

// EnsureDir creates the directory and any necessary parents with specified permissions.
// If perm is 0, DefaultDirPerm (0700) is used.
// This function is idempotent; it returns nil if the directory already exists.
func EnsureDir(path string, perm os.FileMode) error {
	if perm == 0 {
		perm = DefaultDirPerm
	}
	return os.MkdirAll(path, perm)
}

// Home returns the user's home directory, or empty string when unknown.
func Home() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home
}

// ResolveHome returns the user's home directory or an error.
func ResolveHome() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "", errors.WithSecondaryError(ErrHomeDirNotFound, err)
	}
	return home, nil
}

// ConfigHome returns the XDG config home directory.
func ConfigHome() string {
	return xdg.ConfigHome
}

// StateHome returns the XDG state home directory, used for the
// file-backed registry store.
func StateHome() string {
	return xdg.StateHome
}

// StateDir returns the directory holding mcphost's persisted state.
func StateDir() string {
	return filepath.Join(xdg.StateHome, AppName)
}

// DefaultInstallRoot returns the default root under which server
// sources are installed: $HOME/.vscode/mcp-servers.
func DefaultInstallRoot() (string, error) {
	home, err := ResolveHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, installRootDirName), nil
}

// ServerDir returns the source tree directory for one installed server:
// <root>/<type>/<name>.
func ServerDir(root, originType, name string) string {
	return filepath.Join(root, originType, name)
}

// CacheDir returns the cache directory under the installation root.
func CacheDir(root string) string {
	return filepath.Join(root, ".cache")
}

// MetadataCacheDir returns the directory holding installer cache
// metadata records.
func MetadataCacheDir(root string) string {
	return filepath.Join(root, ".cache", "metadata")
}

// BuildCacheDir returns the directory reserved for build artifacts.
func BuildCacheDir(root string) string {
	return filepath.Join(root, ".cache", "builds")
}
