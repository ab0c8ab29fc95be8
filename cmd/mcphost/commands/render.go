package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/thoreinstein/mcphost/internal/registry"
)

// renderValue writes v in the selected output format. Table rendering
// is caller-specific, so callers handle "table" themselves and use
// this for the structured formats.
func renderValue(w io.Writer, v any) error {
	switch outputFmt {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(v)
	case "toml":
		return toml.NewEncoder(w).Encode(v)
	default:
		return errors.Newf("unknown output format %q", outputFmt)
	}
}

// structured reports whether --output selected a structured format.
func structured() bool {
	return outputFmt != "table" && outputFmt != ""
}

// renderServerTable prints records in the default table form.
func renderServerTable(w io.Writer, records []registry.ServerRecord, status func(string) registry.ServerStatus) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSTATE\tCOMMAND\tINSTALLED FROM")
	for _, rec := range records {
		state := registry.StateStopped
		if status != nil {
			state = status(rec.ID).State
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			rec.ID, rec.Name, state, rec.Invocation.Command, rec.InstallURL)
	}
	tw.Flush()
}
