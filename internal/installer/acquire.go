package installer

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/thoreinstein/mcphost/internal/runner"
)

// acquire fetches the origin's source into dest, removing any previous
// directory at that path first.
func (i *Installer) acquire(ctx context.Context, origin Origin, dest string) error {
	if err := os.RemoveAll(dest); err != nil {
		return errors.Wrapf(err, "removing previous install at %s", dest)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return errors.Wrap(err, "creating install parent directory")
	}

	switch origin.Type {
	case OriginGitHub, OriginGitLab, OriginBitbucket, OriginGit:
		return i.acquireGit(ctx, origin, dest)
	case OriginNPM:
		return i.acquireNPM(ctx, origin, dest)
	case OriginPip:
		return i.acquirePip(ctx, origin, dest)
	case OriginTarball:
		return i.acquireTarball(ctx, origin, dest)
	case OriginLocal:
		return copyTree(origin.Path, dest)
	}
	return errors.Newf("unsupported origin type %q", origin.Type)
}

func (i *Installer) acquireGit(ctx context.Context, origin Origin, dest string) error {
	args := []string{"clone", "--depth", "1"}
	if origin.Branch != "" && origin.Branch != "main" {
		args = append(args, "--branch", origin.Branch)
	}
	args = append(args, origin.CloneURL, dest)

	if _, err := i.run(ctx, runner.Command{Name: "git", Args: args}); err != nil {
		return errors.Wrapf(err, "cloning %s", origin.CloneURL)
	}

	// A subpath install hoists the subtree to the install root.
	if origin.Subpath != "" {
		sub := filepath.Join(dest, filepath.FromSlash(origin.Subpath))
		if !dirExists(sub) {
			return errors.Newf("subpath %s not present in repository", origin.Subpath)
		}
		return hoist(sub, dest)
	}
	return nil
}

func (i *Installer) acquireNPM(ctx context.Context, origin Origin, dest string) error {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return errors.Wrap(err, "creating install directory")
	}

	spec := origin.Package + "@" + origin.Version
	res, err := i.run(ctx, runner.Command{Name: "npm", Args: []string{"pack", spec}, Dir: dest})
	if err != nil {
		return errors.Wrapf(err, "fetching npm package %s", spec)
	}

	// npm pack prints the produced tarball name on the last line.
	tgz := lastLine(res.Stdout)
	if tgz == "" {
		return errors.Newf("npm pack produced no tarball for %s", spec)
	}
	tgzPath := filepath.Join(dest, tgz)

	if _, err := i.run(ctx, runner.Command{Name: "tar", Args: []string{"-xzf", tgzPath}, Dir: dest}); err != nil {
		return errors.Wrapf(err, "extracting %s", tgz)
	}
	_ = os.Remove(tgzPath)

	// npm tarballs wrap everything in package/.
	pkgDir := filepath.Join(dest, "package")
	if dirExists(pkgDir) {
		return hoist(pkgDir, dest)
	}
	return nil
}

func (i *Installer) acquirePip(ctx context.Context, origin Origin, dest string) error {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return errors.Wrap(err, "creating install directory")
	}

	spec := origin.Package
	if origin.Version != "" && origin.Version != "latest" {
		spec += "==" + origin.Version
	}
	args := []string{"download", "--no-deps", "--no-binary", ":all:", "--dest", dest, spec}
	if _, err := i.run(ctx, runner.Command{Name: "pip", Args: args}); err != nil {
		return errors.Wrapf(err, "downloading pip package %s", spec)
	}

	// Extract whatever sdist pip produced.
	entries, err := os.ReadDir(dest)
	if err != nil {
		return errors.Wrap(err, "listing downloaded files")
	}
	for _, e := range entries {
		name := e.Name()
		if strings.HasSuffix(name, ".tar.gz") || strings.HasSuffix(name, ".tgz") {
			p := filepath.Join(dest, name)
			args := []string{"-xzf", p, "--strip-components=1"}
			if _, err := i.run(ctx, runner.Command{Name: "tar", Args: args, Dir: dest}); err != nil {
				return errors.Wrapf(err, "extracting %s", name)
			}
			_ = os.Remove(p)
		}
	}
	return nil
}

func (i *Installer) acquireTarball(ctx context.Context, origin Origin, dest string) error {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return errors.Wrap(err, "creating install directory")
	}

	archive := filepath.Join(dest, urlBase(origin.URL))
	if err := i.download(ctx, origin.URL, archive); err != nil {
		return err
	}
	defer os.Remove(archive)

	if strings.HasSuffix(archive, ".zip") {
		if _, err := i.run(ctx, runner.Command{Name: "unzip", Args: []string{"-q", archive}, Dir: dest}); err != nil {
			return errors.Wrapf(err, "unzipping %s", origin.URL)
		}
		return nil
	}

	args := []string{"-xzf", archive, "--strip-components=1"}
	if _, err := i.run(ctx, runner.Command{Name: "tar", Args: args, Dir: dest}); err != nil {
		return errors.Wrapf(err, "extracting %s", origin.URL)
	}
	return nil
}

func (i *Installer) download(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrap(err, "building download request")
	}
	resp, err := i.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "downloading %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Newf("downloading %s: HTTP %d", url, resp.StatusCode)
	}

	f, err := os.Create(dest)
	if err != nil {
		return errors.Wrap(err, "creating download file")
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return errors.Wrapf(err, "writing %s", dest)
	}
	return nil
}

// hoist moves the contents of sub up into dest, replacing dest's other
// contents.
func hoist(sub, dest string) error {
	tmp := dest + ".hoist"
	if err := os.RemoveAll(tmp); err != nil {
		return errors.Wrap(err, "clearing hoist staging")
	}
	if err := os.Rename(sub, tmp); err != nil {
		return errors.Wrap(err, "staging subtree")
	}
	if err := os.RemoveAll(dest); err != nil {
		return errors.Wrap(err, "removing wrapper directory")
	}
	if err := os.Rename(tmp, dest); err != nil {
		return errors.Wrap(err, "promoting subtree")
	}
	return nil
}

// copyTree recursively copies a directory.
func copyTree(src, dest string) error {
	info, err := os.Stat(src)
	if err != nil {
		return errors.Wrapf(err, "reading source %s", src)
	}
	if !info.IsDir() {
		return errors.Newf("local source %s is not a directory", src)
	}

	return filepath.WalkDir(src, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return errors.Wrapf(err, "reading %s", p)
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, info.Mode().Perm())
	})
}

func lastLine(s string) string {
	lines := strings.Fields(strings.TrimSpace(s))
	if len(lines) == 0 {
		return ""
	}
	return lines[len(lines)-1]
}

func urlBase(url string) string {
	if i := strings.LastIndex(url, "/"); i >= 0 {
		return url[i+1:]
	}
	return url
}
