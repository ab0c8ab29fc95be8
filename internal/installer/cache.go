package installer

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/thoreinstein/mcphost/internal/paths"
	"github.com/thoreinstein/mcphost/internal/registry"
	"github.com/thoreinstein/mcphost/pkg/fileutil"
)

// DefaultCacheTTL is how long a cached install stays fresh.
const DefaultCacheTTL = 7 * 24 * time.Hour

// cacheRecord is the metadata persisted per completed install.
type cacheRecord struct {
	Timestamp    time.Time             `json:"timestamp"`
	CacheKey     string                `json:"cacheKey"`
	ServerConfig registry.ServerRecord `json:"serverConfig"`
	InstallPath  string                `json:"installPath"`
}

// cacheKey derives a stable 16-character key from the origin identity
// and the options that affect the produced artifact.
func cacheKey(origin Origin, opts InstallOptions) string {
	payload := struct {
		Type     OriginType `json:"type"`
		FullName string     `json:"fullName"`
		Version  string     `json:"version"`
		Branch   string     `json:"branch,omitempty"`
		Subpath  string     `json:"subpath,omitempty"`
		Options  struct {
			ID  string            `json:"id,omitempty"`
			Env map[string]string `json:"env,omitempty"`
		} `json:"options"`
	}{
		Type:     origin.Type,
		FullName: origin.FullName,
		Version:  origin.Version,
		Branch:   origin.Branch,
		Subpath:  origin.Subpath,
	}
	payload.Options.ID = opts.ID
	payload.Options.Env = opts.Env

	data, _ := json.Marshal(payload)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:16]
}

func (i *Installer) cachePath(key string) string {
	return filepath.Join(paths.MetadataCacheDir(i.root), key+".json")
}

// cacheLookup returns the cached record for the key when it exists, is
// not expired, and its install path is still present on disk.
func (i *Installer) cacheLookup(key string) (cacheRecord, bool) {
	data, err := os.ReadFile(i.cachePath(key))
	if err != nil {
		return cacheRecord{}, false
	}
	var rec cacheRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return cacheRecord{}, false
	}
	if time.Since(rec.Timestamp) > i.opts.CacheTTL {
		return cacheRecord{}, false
	}
	if !dirExists(rec.InstallPath) {
		return cacheRecord{}, false
	}
	return rec, true
}

// cacheWrite persists the install outcome atomically.
func (i *Installer) cacheWrite(key string, record registry.ServerRecord, installPath string) error {
	dir := paths.MetadataCacheDir(i.root)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "creating cache metadata directory")
	}
	rec := cacheRecord{
		Timestamp:    i.now(),
		CacheKey:     key,
		ServerConfig: record,
		InstallPath:  installPath,
	}
	return fileutil.AtomicWriteJSON(i.cachePath(key), rec)
}

// cacheDrop removes the metadata entry for a key.
func (i *Installer) cacheDrop(key string) {
	_ = os.Remove(i.cachePath(key))
}

// ClearCache removes all cache metadata.
func (i *Installer) ClearCache() error {
	dir := paths.MetadataCacheDir(i.root)
	if err := os.RemoveAll(dir); err != nil {
		return errors.Wrap(err, "clearing cache metadata")
	}
	return nil
}
