package installer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeNodeProject(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"package.json": `{
			"name": "@scope/echo-server",
			"version": "2.1.0",
			"description": "echo things",
			"scripts": {"build": "tsc", "start": "node dist/index.js"},
			"dependencies": {"ws": "8.0.0"},
			"devDependencies": {"typescript": "5.0.0"},
			"bin": {"echo-server": "./dist/cli.js"}
		}`,
		"tsconfig.json": `{}`,
		"yarn.lock":     "",
	})

	a, err := Analyze(dir)
	require.NoError(t, err)

	assert.Equal(t, ProjectNode, a.ProjectType)
	assert.Equal(t, "yarn", a.PackageManager)
	assert.Equal(t, "@scope/echo-server", a.PackageName)
	assert.Equal(t, "2.1.0", a.PackageVersion)
	assert.Contains(t, a.Dependencies, "ws")
	assert.Contains(t, a.DevDependencies, "typescript")
	assert.Equal(t, []string{"echo-server"}, a.BinNames)
	require.NotNil(t, a.BuildSystem)
	assert.Equal(t, "typescript", a.BuildSystem.Name)
}

func TestAnalyzePythonProject(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"requirements.txt": "mcp>=1.0\n",
		"pyproject.toml":   "[project]\nname = \"srv\"\n",
	})

	a, err := Analyze(dir)
	require.NoError(t, err)
	assert.Equal(t, ProjectPython, a.ProjectType)
	require.NotNil(t, a.BuildSystem)
	assert.Equal(t, "python", a.BuildSystem.Name)
}

func TestAnalyzePackageManagerByLockfile(t *testing.T) {
	tests := []struct {
		lockfile string
		want     string
	}{
		{"yarn.lock", "yarn"},
		{"pnpm-lock.yaml", "pnpm"},
		{"bun.lockb", "bun"},
		{"package-lock.json", "npm"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			dir := t.TempDir()
			writeFiles(t, dir, map[string]string{
				"package.json": `{"name":"x"}`,
				tt.lockfile:    "",
			})
			a, err := Analyze(dir)
			require.NoError(t, err)
			assert.Equal(t, tt.want, a.PackageManager)
		})
	}
}

func TestAnalyzeBuildSystemPriority(t *testing.T) {
	// tsconfig.json outranks webpack.config.js in the detection table.
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"package.json":      `{"name":"x"}`,
		"tsconfig.json":     `{}`,
		"webpack.config.js": ``,
	})
	a, err := Analyze(dir)
	require.NoError(t, err)
	require.NotNil(t, a.BuildSystem)
	assert.Equal(t, "typescript", a.BuildSystem.Name)
}

func TestAnalyzeRustAndGo(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"Cargo.toml": "[package]\n"})
	a, err := Analyze(dir)
	require.NoError(t, err)
	require.NotNil(t, a.BuildSystem)
	assert.Equal(t, "rust", a.BuildSystem.Name)
	assert.Equal(t, []string{"target/release"}, a.BuildSystem.OutputDirs)

	dir = t.TempDir()
	writeFiles(t, dir, map[string]string{"go.mod": "module x\n"})
	a, err = Analyze(dir)
	require.NoError(t, err)
	require.NotNil(t, a.BuildSystem)
	assert.Equal(t, "go", a.BuildSystem.Name)
}

func TestAnalyzeUnknownProject(t *testing.T) {
	a, err := Analyze(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, ProjectUnknown, a.ProjectType)
	assert.Nil(t, a.BuildSystem)
	assert.Equal(t, "npm", a.PackageManager)
}
