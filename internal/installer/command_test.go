package installer

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveInvocationBuildOutput(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"dist/index.js": "// built"})

	inv := deriveInvocation(Analysis{ProjectType: ProjectNode}, dir, filepath.Join(dir, "dist"), nil)
	assert.Equal(t, "node", inv.Command)
	assert.Equal(t, []string{filepath.Join("dist", "index.js")}, inv.Args)
	assert.Equal(t, dir, inv.Cwd)
}

func TestDeriveInvocationBin(t *testing.T) {
	dir := t.TempDir()
	a := Analysis{ProjectType: ProjectNode, PackageName: "echo-server", BinNames: []string{"echo-server"}}

	inv := deriveInvocation(a, dir, "", nil)
	assert.Equal(t, "npx", inv.Command)
	assert.Equal(t, []string{"echo-server"}, inv.Args)
	assert.Equal(t, dir, inv.Cwd)
}

func TestDeriveInvocationStringBinUsesPackageName(t *testing.T) {
	dir := t.TempDir()
	a := Analysis{ProjectType: ProjectNode, PackageName: "@scope/echo", BinNames: []string{""}}

	inv := deriveInvocation(a, dir, "", nil)
	assert.Equal(t, "npx", inv.Command)
	assert.Equal(t, []string{"echo"}, inv.Args)
}

func TestDeriveInvocationStartScript(t *testing.T) {
	dir := t.TempDir()
	a := Analysis{ProjectType: ProjectNode, Scripts: map[string]string{"start": "node ."}}

	inv := deriveInvocation(a, dir, "", nil)
	assert.Equal(t, "npm", inv.Command)
	assert.Equal(t, []string{"start"}, inv.Args)
}

func TestDeriveInvocationScopedPackage(t *testing.T) {
	a := Analysis{ProjectType: ProjectNode, PackageName: "@scope/server"}

	inv := deriveInvocation(a, t.TempDir(), "", nil)
	assert.Equal(t, "npx", inv.Command)
	assert.Equal(t, []string{"-y", "@scope/server"}, inv.Args)
}

func TestDeriveInvocationKnownEntryPoints(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"server.ts": "// entry"})

	inv := deriveInvocation(Analysis{}, dir, "", nil)
	assert.Equal(t, "ts-node", inv.Command)
	assert.Equal(t, []string{"server.ts"}, inv.Args)
}

func TestDeriveInvocationEntryOrder(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"server.js":    "",
		"src/index.js": "",
	})

	// index.js variants outrank server.js in the ladder only at the
	// same directory level; root entries come first.
	inv := deriveInvocation(Analysis{}, dir, "", nil)
	assert.Equal(t, []string{"server.js"}, inv.Args)
}

func TestDeriveInvocationFallback(t *testing.T) {
	dir := t.TempDir()
	env := map[string]string{"API_KEY": "x"}

	inv := deriveInvocation(Analysis{}, dir, "", env)
	assert.Equal(t, "node", inv.Command)
	assert.Equal(t, []string{"index.js"}, inv.Args)
	assert.Equal(t, env, inv.Env)
}
