package installer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, s string) Origin {
	t.Helper()
	o, err := ParseOrigin(s)
	require.NoError(t, err)
	return o
}

func TestValidateSource(t *testing.T) {
	v := NewSourceValidator()

	tests := []struct {
		name     string
		origin   Origin
		wantOK   bool
		wantRisk RiskLevel
	}{
		{"github allowed", mustParse(t, "https://github.com/example/srv"), true, RiskLow},
		{"npm package", mustParse(t, "npm:@modelcontextprotocol/server-everything"), true, RiskLow},
		{"unknown git host", mustParse(t, "git+https://evil.example/x.git"), true, RiskMedium},
		{"local source", mustParse(t, "file:///opt/srv"), true, RiskMedium},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := v.Validate(tt.origin)
			assert.Equal(t, tt.wantOK, res.OK)
			assert.Equal(t, tt.wantRisk, res.Risk)
		})
	}
}

func TestValidateSourceRejectsUnsafeStrings(t *testing.T) {
	v := NewSourceValidator()

	traversal := Origin{Type: OriginGitHub, Raw: "https://github.com/a/../etc", CloneURL: "https://github.com/a/b.git"}
	res := v.Validate(traversal)
	assert.False(t, res.OK)
	assert.Equal(t, RiskHigh, res.Risk)

	long := Origin{Type: OriginNPM, Raw: strings.Repeat("x", 501)}
	assert.False(t, v.Validate(long).OK)

	unsafe := Origin{Type: OriginNPM, Raw: `pkg<script>`}
	assert.False(t, v.Validate(unsafe).OK)
}

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

func TestScanTreeFindsBlockedPatterns(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"index.js":             `const result = eval(userInput);`,
		"helper.py":            "import os\nos.system('ls')\n",
		"node_modules/x/bad.js": `eval("skipped because node_modules is not scanned")`,
	})

	report, err := ScanTree(dir)
	require.NoError(t, err)

	require.NotEmpty(t, report.Findings)
	assert.True(t, report.HighRisk())
	for _, f := range report.Findings {
		assert.NotContains(t, f.File, "node_modules")
	}
	assert.Contains(t, report.Hashes, "index.js")
	assert.Len(t, report.Hashes["index.js"], 64)
}

func TestScanTreeObfuscationHeuristic(t *testing.T) {
	dense := strings.Repeat("x$_;", 60) // >200 chars, one token, heavy specials
	var b strings.Builder
	for i := 0; i < 5; i++ {
		b.WriteString(dense)
		b.WriteByte('\n')
	}
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"packed.js": b.String()})

	report, err := ScanTree(dir)
	require.NoError(t, err)

	found := false
	for _, f := range report.Findings {
		if strings.Contains(f.Detail, "obfuscation") {
			found = true
			assert.Equal(t, RiskHigh, f.Severity)
		}
	}
	assert.True(t, found, "expected an obfuscation finding")
}

func TestScanPackageManifest(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"package.json": `{
			"name": "srv",
			"scripts": {"postinstall": "sudo rm -rf /tmp/x"},
			"dependencies": {"../escape": "1.0.0", "@scope/ok": "2.0.0", "plain": "1.0.0"}
		}`,
	})

	report, err := ScanTree(dir)
	require.NoError(t, err)

	var scriptHit, depHit, scopedFlagged bool
	for _, f := range report.Findings {
		if strings.Contains(f.Detail, "script postinstall") {
			scriptHit = true
		}
		if strings.Contains(f.Detail, "../escape") {
			depHit = true
		}
		if strings.Contains(f.Detail, "@scope/ok") {
			scopedFlagged = true
		}
	}
	assert.True(t, scriptHit)
	assert.True(t, depHit)
	assert.False(t, scopedFlagged, "legitimate scoped names are not suspicious")
}

func TestLooksObfuscated(t *testing.T) {
	assert.False(t, looksObfuscated("short line"))
	assert.False(t, looksObfuscated(strings.Repeat("word ", 50)))
	assert.True(t, looksObfuscated(strings.Repeat("a", 201)))
	assert.True(t, looksObfuscated(strings.Repeat("$;", 150)))
}
