// Package prompt provides interactive CLI prompts for user input.
package prompt

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/ktr0731/go-fuzzyfinder"

	"github.com/thoreinstein/mcphost/internal/registry"
)

// Sentinel errors for server selection.
var (
	ErrNoServers          = errors.New("no servers to select from")
	ErrSelectionCancelled = errors.New("selection cancelled")
)

// SelectServer lets the user pick one server interactively. A single
// candidate is auto-selected without prompting.
func SelectServer(servers []registry.ServerRecord) (registry.ServerRecord, error) {
	if len(servers) == 0 {
		return registry.ServerRecord{}, ErrNoServers
	}
	if len(servers) == 1 {
		return servers[0], nil
	}

	idx, err := fuzzyfinder.Find(
		servers,
		func(i int) string {
			return fmt.Sprintf("%s (%s)", servers[i].ID, servers[i].Name)
		},
		fuzzyfinder.WithPreviewWindow(func(i, w, h int) string {
			if i == -1 {
				return ""
			}
			s := servers[i]
			return fmt.Sprintf("ID: %s\nName: %s\nCommand: %s\nInstalled from: %s\n\n%s",
				s.ID,
				s.Name,
				s.Invocation.Command,
				s.InstallURL,
				s.Description,
			)
		}),
	)
	if err != nil {
		if errors.Is(err, fuzzyfinder.ErrAbort) {
			return registry.ServerRecord{}, ErrSelectionCancelled
		}
		return registry.ServerRecord{}, errors.Wrap(err, "interactive selection failed")
	}
	return servers[idx], nil
}
