package installer

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gobwas/glob"
)

// RiskLevel grades a validation outcome.
type RiskLevel string

// Risk levels, lowest to highest.
const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// ValidationResult is the outcome of the source security gate.
type ValidationResult struct {
	OK       bool      `json:"ok"`
	Warnings []string  `json:"warnings,omitempty"`
	Errors   []string  `json:"errors,omitempty"`
	Risk     RiskLevel `json:"riskLevel"`
}

// maxSourceURLLength bounds accepted source strings.
const maxSourceURLLength = 500

// allowedDomains are the registries and forges installs may come from.
var allowedDomains = []string{
	"github.com",
	"gitlab.com",
	"bitbucket.org",
	"npmjs.org",
	"registry.npmjs.org",
	"pypi.org",
}

// trustedPublishers are glob patterns over package full names whose
// matches downgrade risk.
var trustedPublishers = []string{
	"@modelcontextprotocol/*",
	"@anthropic/*",
	"modelcontextprotocol/*",
}

var unsafeURLChars = regexp.MustCompile(`[<>"|]`)

// SourceValidator applies the allowed-domain list, the
// trusted-publisher list, and URL-safety rules to a parsed origin.
type SourceValidator struct {
	domains    []string
	publishers []glob.Glob
}

// NewSourceValidator builds a validator with the default policy.
func NewSourceValidator() *SourceValidator {
	v := &SourceValidator{domains: allowedDomains}
	for _, p := range trustedPublishers {
		if g, err := glob.Compile(p); err == nil {
			v.publishers = append(v.publishers, g)
		}
	}
	return v
}

// Validate checks the origin. Errors are fatal; warnings raise the
// risk level.
func (v *SourceValidator) Validate(origin Origin) ValidationResult {
	res := ValidationResult{OK: true, Risk: RiskLow}

	raw := origin.Raw
	if len(raw) > maxSourceURLLength {
		res.Errors = append(res.Errors, "source exceeds maximum length")
	}
	if strings.Contains(raw, "..") {
		res.Errors = append(res.Errors, "source contains path traversal")
	}
	if unsafeURLChars.MatchString(raw) {
		res.Errors = append(res.Errors, "source contains unsafe characters")
	}

	switch origin.Type {
	case OriginGitHub, OriginGitLab, OriginBitbucket, OriginGit, OriginTarball:
		url := origin.CloneURL
		if url == "" {
			url = origin.URL
		}
		if !v.domainAllowed(url) {
			if origin.Type == OriginGit || origin.Type == OriginTarball {
				res.Warnings = append(res.Warnings, "source host is not on the allowed-domain list")
				res.Risk = RiskMedium
			} else {
				res.Errors = append(res.Errors, "source host is not on the allowed-domain list")
			}
		}
	case OriginLocal:
		res.Warnings = append(res.Warnings, "local sources bypass registry provenance")
		res.Risk = RiskMedium
	}

	if v.trusted(origin.FullName) {
		res.Risk = RiskLow
	}

	if len(res.Errors) > 0 {
		res.OK = false
		res.Risk = RiskHigh
	}
	return res
}

func (v *SourceValidator) domainAllowed(url string) bool {
	for _, d := range v.domains {
		if strings.Contains(url, "://"+d+"/") || strings.Contains(url, "://www."+d+"/") {
			return true
		}
	}
	return false
}

func (v *SourceValidator) trusted(fullName string) bool {
	for _, g := range v.publishers {
		if g.Match(fullName) {
			return true
		}
	}
	return false
}

// Finding is one security scan hit.
type Finding struct {
	Severity RiskLevel `json:"severity"`
	File     string    `json:"file"`
	Detail   string    `json:"detail"`
}

// ScanReport aggregates the build-time security scan.
type ScanReport struct {
	Findings []Finding         `json:"findings,omitempty"`
	Hashes   map[string]string `json:"hashes,omitempty"`
}

// HighRisk reports whether any finding is high severity.
func (r ScanReport) HighRisk() bool {
	for _, f := range r.Findings {
		if f.Severity == RiskHigh {
			return true
		}
	}
	return false
}

// blockedPatterns are code constructs that block an install when found
// in source files.
var blockedPatterns = []struct {
	re       *regexp.Regexp
	severity RiskLevel
	detail   string
}{
	{regexp.MustCompile(`\beval\s*\(`), RiskHigh, "dynamic eval"},
	{regexp.MustCompile(`\bexec\s*\(`), RiskMedium, "dynamic exec"},
	{regexp.MustCompile(`child_process`), RiskMedium, "child process invocation"},
	{regexp.MustCompile(`\bspawn\s*\(`), RiskMedium, "process spawn"},
	{regexp.MustCompile(`rm\s+-rf\s+[/~]`), RiskHigh, "recursive delete of root or home"},
	{regexp.MustCompile(`\bsudo\b`), RiskHigh, "privilege escalation"},
	{regexp.MustCompile(`chmod\s+\+s`), RiskHigh, "setuid bit"},
	{regexp.MustCompile(`\.ssh/id_[a-z0-9]+`), RiskHigh, "ssh key access"},
	{regexp.MustCompile(`\.aws/credentials`), RiskHigh, "aws credential access"},
	{regexp.MustCompile(`/etc/passwd|/etc/shadow`), RiskHigh, "system credential file access"},
}

// scannableExtensions are the text files inspected by the scan.
var scannableExtensions = map[string]bool{
	".js": true, ".ts": true, ".py": true, ".sh": true, ".bash": true,
	".json": true, ".yaml": true, ".yml": true,
}

// skippedDirs are never descended into.
var skippedDirs = map[string]bool{
	"node_modules": true, ".git": true, ".vscode": true, "dist": true, "build": true,
}

// hashedManifest is the set of files whose sha-256 is recorded.
var hashedManifest = []string{"package.json", "index.js", "server.js", "main.js"}

// ScanTree recursively scans a source tree against the blocked-pattern
// set and the obfuscation heuristic, and hashes the manifest files.
func ScanTree(dir string) (ScanReport, error) {
	report := ScanReport{Hashes: make(map[string]string)}

	err := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != dir && skippedDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !scannableExtensions[filepath.Ext(p)] {
			return nil
		}

		data, err := os.ReadFile(p)
		if err != nil {
			return errors.Wrapf(err, "reading %s", p)
		}
		rel, _ := filepath.Rel(dir, p)
		report.Findings = append(report.Findings, scanContent(rel, string(data))...)
		return nil
	})
	if err != nil {
		return report, errors.Wrap(err, "scanning source tree")
	}

	report.Findings = append(report.Findings, scanPackageManifest(dir)...)

	for _, name := range hashedManifest {
		p := filepath.Join(dir, name)
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		sum := sha256.Sum256(data)
		report.Hashes[name] = hex.EncodeToString(sum[:])
	}

	return report, nil
}

// scanContent applies the blocked patterns and the obfuscation
// heuristic to one file.
func scanContent(rel, content string) []Finding {
	var findings []Finding

	for _, bp := range blockedPatterns {
		if bp.re.MatchString(content) {
			findings = append(findings, Finding{Severity: bp.severity, File: rel, Detail: bp.detail})
		}
	}

	lines := strings.Split(content, "\n")
	if len(lines) > 50 {
		lines = lines[:50]
	}
	suspicious := 0
	for _, line := range lines {
		if looksObfuscated(line) {
			suspicious++
		}
	}
	if suspicious > 3 {
		findings = append(findings, Finding{
			Severity: RiskHigh,
			File:     rel,
			Detail:   "possible obfuscation: dense unreadable lines",
		})
	}
	return findings
}

// looksObfuscated flags a line longer than 200 characters with fewer
// than 5 whitespace tokens, or with more than 30% special characters.
func looksObfuscated(line string) bool {
	if len(line) <= 200 {
		return false
	}
	if len(strings.Fields(line)) < 5 {
		return true
	}
	special := 0
	for _, r := range line {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == ' ', r == '\t':
		default:
			special++
		}
	}
	return special*10 > len(line)*3
}

// scanPackageManifest checks package.json scripts against the blocked
// patterns and flags suspicious dependency names.
func scanPackageManifest(dir string) []Finding {
	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return nil
	}

	var manifest struct {
		Scripts         map[string]string `json:"scripts"`
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if json.Unmarshal(data, &manifest) != nil {
		return nil
	}

	var findings []Finding
	for name, script := range manifest.Scripts {
		for _, bp := range blockedPatterns {
			if bp.re.MatchString(script) {
				findings = append(findings, Finding{
					Severity: bp.severity,
					File:     "package.json",
					Detail:   "script " + name + ": " + bp.detail,
				})
			}
		}
	}

	checkDeps := func(deps map[string]string) {
		for name := range deps {
			trimmed := name
			if strings.HasPrefix(name, "@") {
				// A single slash is legitimate scoping.
				trimmed = strings.Replace(name, "/", "", 1)
			}
			if strings.Contains(name, "..") || strings.Contains(trimmed, "/") {
				findings = append(findings, Finding{
					Severity: RiskHigh,
					File:     "package.json",
					Detail:   "suspicious dependency name " + name,
				})
			}
		}
	}
	checkDeps(manifest.Dependencies)
	checkDeps(manifest.DevDependencies)

	return findings
}
