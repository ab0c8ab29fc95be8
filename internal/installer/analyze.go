package installer

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

// ProjectType identifies the language ecosystem of a source tree.
type ProjectType string

// Known project types.
const (
	ProjectNode    ProjectType = "node"
	ProjectPython  ProjectType = "python"
	ProjectUnknown ProjectType = "unknown"
)

// BuildSystem describes one recognized build toolchain.
type BuildSystem struct {
	Name      string
	Sentinels []string
	// Commands are tried in order until one succeeds.
	Commands [][]string
	// OutputDirs are searched in order for build artifacts.
	OutputDirs []string
}

// buildSystems is the detection table, in priority order: the first
// system whose sentinel file exists wins.
var buildSystems = []BuildSystem{
	{
		Name:       "typescript",
		Sentinels:  []string{"tsconfig.json"},
		Commands:   [][]string{{"npm", "run", "build"}, {"yarn", "build"}, {"tsc"}, {"bun", "run", "build"}},
		OutputDirs: []string{"dist", "build", "lib", "out"},
	},
	{
		Name:       "webpack",
		Sentinels:  []string{"webpack.config.js", "webpack.config.ts"},
		Commands:   [][]string{{"npm", "run", "build"}, {"yarn", "build"}, {"webpack"}, {"bun", "run", "build"}},
		OutputDirs: []string{"dist", "build"},
	},
	{
		Name:       "rollup",
		Sentinels:  []string{"rollup.config.js", "rollup.config.ts"},
		Commands:   [][]string{{"npm", "run", "build"}, {"yarn", "build"}, {"rollup", "-c"}, {"bun", "run", "build"}},
		OutputDirs: []string{"dist", "build"},
	},
	{
		Name:       "vite",
		Sentinels:  []string{"vite.config.js", "vite.config.ts"},
		Commands:   [][]string{{"npm", "run", "build"}, {"yarn", "build"}, {"vite", "build"}, {"bun", "run", "build"}},
		OutputDirs: []string{"dist", "build"},
	},
	{
		Name:       "esbuild",
		Sentinels:  []string{"esbuild.config.js", "build.js"},
		Commands:   [][]string{{"npm", "run", "build"}, {"yarn", "build"}, {"esbuild"}, {"bun", "run", "build"}},
		OutputDirs: []string{"dist", "build"},
	},
	{
		Name:       "python",
		Sentinels:  []string{"setup.py", "pyproject.toml", "setup.cfg"},
		Commands:   [][]string{{"pip", "install", "-e", "."}, {"python", "setup.py", "install"}, {"poetry", "install"}},
		OutputDirs: []string{"build", "dist"},
	},
	{
		Name:       "rust",
		Sentinels:  []string{"Cargo.toml"},
		Commands:   [][]string{{"cargo", "build", "--release"}},
		OutputDirs: []string{"target/release"},
	},
	{
		Name:       "go",
		Sentinels:  []string{"go.mod"},
		Commands:   [][]string{{"go", "build"}, {"go", "install"}},
		OutputDirs: []string{"bin"},
	},
}

// packageManifest is the subset of package.json the analyzer reads.
type packageManifest struct {
	Name            string            `json:"name"`
	Version         string            `json:"version"`
	Description     string            `json:"description"`
	Main            string            `json:"main"`
	Bin             json.RawMessage   `json:"bin"`
	Scripts         map[string]string `json:"scripts"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

// Analysis is the outcome of inspecting a source tree.
type Analysis struct {
	ProjectType    ProjectType
	PackageManager string
	BuildSystem    *BuildSystem

	// Node-specific details from package.json.
	PackageName     string
	PackageVersion  string
	Description     string
	Main            string
	Scripts         map[string]string
	Dependencies    map[string]string
	DevDependencies map[string]string
	BinNames        []string
}

// Analyze detects project type, package manager, and build system from
// the files at the source root.
func Analyze(dir string) (Analysis, error) {
	a := Analysis{ProjectType: ProjectUnknown, PackageManager: "npm"}

	if data, err := os.ReadFile(filepath.Join(dir, "package.json")); err == nil {
		var manifest packageManifest
		if err := json.Unmarshal(data, &manifest); err != nil {
			return a, errors.Wrap(err, "parsing package.json")
		}
		a.ProjectType = ProjectNode
		a.PackageName = manifest.Name
		a.PackageVersion = manifest.Version
		a.Description = manifest.Description
		a.Main = manifest.Main
		a.Scripts = manifest.Scripts
		a.Dependencies = manifest.Dependencies
		a.DevDependencies = manifest.DevDependencies
		a.BinNames = binNames(manifest.Bin)
	} else {
		for _, sentinel := range []string{"requirements.txt", "setup.py", "pyproject.toml"} {
			if fileExists(filepath.Join(dir, sentinel)) {
				a.ProjectType = ProjectPython
				break
			}
		}
	}

	switch {
	case fileExists(filepath.Join(dir, "yarn.lock")):
		a.PackageManager = "yarn"
	case fileExists(filepath.Join(dir, "pnpm-lock.yaml")):
		a.PackageManager = "pnpm"
	case fileExists(filepath.Join(dir, "bun.lockb")):
		a.PackageManager = "bun"
	}

	for i := range buildSystems {
		for _, sentinel := range buildSystems[i].Sentinels {
			if fileExists(filepath.Join(dir, sentinel)) {
				a.BuildSystem = &buildSystems[i]
				break
			}
		}
		if a.BuildSystem != nil {
			break
		}
	}

	return a, nil
}

// binNames extracts the executable names from package.json's bin
// field, which is either a string or a name-to-path map.
func binNames(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var single string
	if json.Unmarshal(raw, &single) == nil {
		return []string{""}
	}
	var multi map[string]string
	if json.Unmarshal(raw, &multi) == nil {
		names := make([]string, 0, len(multi))
		for name := range multi {
			names = append(names, name)
		}
		return names
	}
	return nil
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

func dirExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}
