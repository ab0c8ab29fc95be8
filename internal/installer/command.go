package installer

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/thoreinstein/mcphost/internal/registry"
)

// standardEntries are the conventional server entry files, searched in
// order at the build output root.
var standardEntries = []string{"index.js", "main.js", "server.js", "app.js"}

// knownEntryPoints is the derivation ladder for projects without build
// output: conventional entry files at the source root and in the usual
// source and artifact directories.
var knownEntryPoints = []string{
	"index.js", "index.ts",
	"server.js", "server.ts",
	"main.js", "main.ts",
	"app.js", "app.ts",
	"src/index.js", "src/index.ts",
	"src/server.js", "src/server.ts",
	"src/main.js", "src/main.ts",
	"dist/index.js", "build/index.js", "lib/index.js",
}

// deriveInvocation turns analysis plus build output into the runnable
// invocation for the server.
func deriveInvocation(a Analysis, sourceDir, outputDir string, env map[string]string) registry.Invocation {
	// A built artifact under the output directory wins.
	if outputDir != "" {
		for _, entry := range standardEntries {
			p := filepath.Join(outputDir, entry)
			if fileExists(p) {
				rel, err := filepath.Rel(sourceDir, p)
				if err != nil {
					rel = p
				}
				return registry.Invocation{Command: "node", Args: []string{rel}, Cwd: sourceDir, Env: env}
			}
		}
	}

	if a.ProjectType == ProjectNode {
		if bin := firstBinName(a); bin != "" {
			return registry.Invocation{Command: "npx", Args: []string{bin}, Cwd: sourceDir, Env: env}
		}
		if _, ok := a.Scripts["start"]; ok {
			return registry.Invocation{Command: "npm", Args: []string{"start"}, Cwd: sourceDir, Env: env}
		}
		if strings.HasPrefix(a.PackageName, "@") {
			cwd, _ := os.Getwd()
			return registry.Invocation{Command: "npx", Args: []string{"-y", a.PackageName}, Cwd: cwd, Env: env}
		}
	}

	for _, entry := range knownEntryPoints {
		if fileExists(filepath.Join(sourceDir, filepath.FromSlash(entry))) {
			command := "node"
			if strings.HasSuffix(entry, ".ts") {
				command = "ts-node"
			}
			return registry.Invocation{Command: command, Args: []string{entry}, Cwd: sourceDir, Env: env}
		}
	}

	return registry.Invocation{Command: "node", Args: []string{"index.js"}, Cwd: sourceDir, Env: env}
}

// firstBinName resolves the executable name from package.json bin; a
// plain string bin takes the package's base name.
func firstBinName(a Analysis) string {
	for _, name := range a.BinNames {
		if name != "" {
			return name
		}
		base := a.PackageName
		if i := strings.LastIndex(base, "/"); i >= 0 {
			base = base[i+1:]
		}
		if base != "" {
			return base
		}
	}
	return ""
}
