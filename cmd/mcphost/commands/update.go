package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thoreinstein/mcphost/internal/manager"
)

func init() {
	rootCmd.AddCommand(updateCmd)
}

var updateCmd = &cobra.Command{
	Use:   "update [id]",
	Short: "Reinstall a server from its original source",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime()
		if err != nil {
			return err
		}
		defer rt.close(cmd.Context())

		id, err := resolveServerID(rt, args)
		if err != nil {
			return err
		}
		rec, err := rt.mgr.Update(cmd.Context(), id, manager.InstallOptions{})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated %s to %s\n", rec.ID, rec.Version)
		return nil
	},
}
