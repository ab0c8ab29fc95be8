// Package paths resolves the filesystem layout used by the runtime:
// the server installation root, the installer cache directories beneath
// it, and the XDG config and state homes for mcphost's own files.
package paths
