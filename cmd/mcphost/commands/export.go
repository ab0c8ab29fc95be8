package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/thoreinstein/mcphost/internal/registry"
)

var importOverwrite bool

func init() {
	importCmd.Flags().BoolVar(&importOverwrite, "overwrite", false, "replace existing servers with imported ones")
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export [id...]",
	Short: "Export server records as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime()
		if err != nil {
			return err
		}
		defer rt.close(cmd.Context())

		blob := rt.mgr.Export(args...)
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(blob)
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import server records from a JSON export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime()
		if err != nil {
			return err
		}
		defer rt.close(cmd.Context())

		data, err := os.ReadFile(args[0])
		if err != nil {
			return errors.Wrap(err, "reading import file")
		}
		var blob map[string]registry.ServerRecord
		if err := json.Unmarshal(data, &blob); err != nil {
			return errors.Wrap(err, "parsing import file")
		}

		sum := rt.mgr.Import(blob, importOverwrite)
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d, skipped %d, errors %d\n",
			sum.Imported, sum.Skipped, sum.Errors)
		return nil
	},
}
