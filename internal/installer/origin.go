package installer

import (
	"path"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
)

// OriginType classifies an install source; the classification drives
// the acquisition strategy.
type OriginType string

// Known origin types.
const (
	OriginGitHub    OriginType = "github"
	OriginGitLab    OriginType = "gitlab"
	OriginBitbucket OriginType = "bitbucket"
	OriginGit       OriginType = "git"
	OriginNPM       OriginType = "npm"
	OriginPip       OriginType = "pip"
	OriginTarball   OriginType = "tarball"
	OriginLocal     OriginType = "local"
)

// Origin is the parsed form of an install source string.
type Origin struct {
	Type OriginType
	Raw  string

	// Name is the server-usable name derived from the source.
	Name string
	// FullName preserves scoping, e.g. "@scope/pkg" or "owner/repo".
	FullName string

	// Git-family fields.
	CloneURL string
	Branch   string
	Subpath  string

	// Package-registry fields.
	Package string
	Version string

	// Tarball download URL or local path.
	URL  string
	Path string
}

var (
	githubPattern    = regexp.MustCompile(`^https?://github\.com/([^/]+)/([^/]+?)(?:\.git)?(?:/tree/([^/]+)(/.*)?)?/?$`)
	gitlabPattern    = regexp.MustCompile(`^https?://gitlab\.com/([^/]+)/([^/]+?)(?:\.git)?(?:/-/tree/([^/]+)(/.*)?)?/?$`)
	bitbucketPattern = regexp.MustCompile(`^https?://bitbucket\.org/([^/]+)/([^/]+?)(?:\.git)?(?:/src/([^/]+)(/.*)?)?/?$`)
	gitPattern       = regexp.MustCompile(`^git\+(https?://.+\.git)$`)
	tarballPattern   = regexp.MustCompile(`^https?://.+\.(tar\.gz|tgz|zip)$`)
	npmPattern       = regexp.MustCompile(`^(?:npm:)?(@?[A-Za-z0-9][\w.-]*(?:/[A-Za-z0-9][\w.-]*)?)(?:@([\w.-]+))?$`)
	pipPattern       = regexp.MustCompile(`^(?:pip:|pypi:)([A-Za-z0-9][\w.-]*)(?:==([\w.-]+))?$`)
	barePipPattern   = regexp.MustCompile(`^([A-Za-z0-9][\w.-]*)==([\w.-]+)$`)
)

// ParseOrigin classifies an install source string. Unrecognized bare
// tokens fall back to npm packages.
func ParseOrigin(raw string) (Origin, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Origin{}, errors.New("empty install source")
	}

	if m := githubPattern.FindStringSubmatch(s); m != nil {
		return gitForge(OriginGitHub, "https://github.com", s, m), nil
	}
	if m := gitlabPattern.FindStringSubmatch(s); m != nil {
		return gitForge(OriginGitLab, "https://gitlab.com", s, m), nil
	}
	if m := bitbucketPattern.FindStringSubmatch(s); m != nil {
		return gitForge(OriginBitbucket, "https://bitbucket.org", s, m), nil
	}
	if m := gitPattern.FindStringSubmatch(s); m != nil {
		name := strings.TrimSuffix(path.Base(m[1]), ".git")
		return Origin{
			Type:     OriginGit,
			Raw:      s,
			Name:     sanitizeName(name),
			FullName: name,
			CloneURL: m[1],
			Branch:   "main",
		}, nil
	}
	if tarballPattern.MatchString(s) {
		name := path.Base(s)
		for _, suffix := range []string{".tar.gz", ".tgz", ".zip"} {
			name = strings.TrimSuffix(name, suffix)
		}
		return Origin{
			Type:     OriginTarball,
			Raw:      s,
			Name:     sanitizeName(name),
			FullName: name,
			URL:      s,
		}, nil
	}
	if strings.HasPrefix(s, "file://") {
		p := strings.TrimPrefix(s, "file://")
		if !strings.HasPrefix(p, "/") {
			return Origin{}, errors.Newf("local origin must be an absolute path: %s", raw)
		}
		name := path.Base(p)
		return Origin{
			Type:     OriginLocal,
			Raw:      s,
			Name:     sanitizeName(name),
			FullName: name,
			Path:     p,
		}, nil
	}
	if m := pipPattern.FindStringSubmatch(s); m != nil {
		return packageOrigin(OriginPip, s, m[1], m[2]), nil
	}
	if m := barePipPattern.FindStringSubmatch(s); m != nil {
		return packageOrigin(OriginPip, s, m[1], m[2]), nil
	}
	if m := npmPattern.FindStringSubmatch(s); m != nil {
		return packageOrigin(OriginNPM, s, m[1], m[2]), nil
	}

	return Origin{}, errors.Newf("unrecognized install source: %s", raw)
}

func gitForge(t OriginType, base, raw string, m []string) Origin {
	owner, repo := m[1], m[2]
	branch := m[3]
	if branch == "" {
		branch = "main"
	}
	subpath := strings.Trim(m[4], "/")
	return Origin{
		Type:     t,
		Raw:      raw,
		Name:     sanitizeName(repo),
		FullName: owner + "/" + repo,
		CloneURL: base + "/" + owner + "/" + repo + ".git",
		Branch:   branch,
		Subpath:  subpath,
	}
}

func packageOrigin(t OriginType, raw, pkg, ver string) Origin {
	if ver == "" {
		ver = "latest"
	}
	name := pkg
	if i := strings.LastIndex(pkg, "/"); i >= 0 {
		name = pkg[i+1:]
	}
	return Origin{
		Type:     t,
		Raw:      raw,
		Name:     sanitizeName(name),
		FullName: pkg,
		Package:  pkg,
		Version:  ver,
	}
}

var invalidNameChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// sanitizeName squeezes a source-derived name into the server id
// character class.
func sanitizeName(name string) string {
	out := invalidNameChars.ReplaceAllString(name, "-")
	out = strings.Trim(out, "-")
	if out == "" {
		out = "server"
	}
	return out
}
