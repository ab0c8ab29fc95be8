package commands

import (
	"github.com/thoreinstein/mcphost/internal/cli/prompt"
)

// resolveServerID picks the target server: the positional argument when
// given, otherwise an interactive selection over the catalog.
func resolveServerID(rt *runtime, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	rec, err := prompt.SelectServer(rt.mgr.List())
	if err != nil {
		return "", err
	}
	return rec.ID, nil
}
