package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var stopAll bool

func init() {
	stopCmd.Flags().BoolVar(&stopAll, "all", false, "stop every running server")
	rootCmd.AddCommand(stopCmd)
}

var stopCmd = &cobra.Command{
	Use:   "stop [id]",
	Short: "Stop a running MCP server",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime()
		if err != nil {
			return err
		}
		defer rt.close(cmd.Context())

		if stopAll {
			rt.mgr.StopAll(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "Stopped all servers.")
			return nil
		}

		id, err := resolveServerID(rt, args)
		if err != nil {
			return err
		}
		if err := rt.mgr.Stop(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Stopped %s\n", id)
		return nil
	},
}
