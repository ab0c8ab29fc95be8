package commands

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(healthCmd)
}

var healthCmd = &cobra.Command{
	Use:   "health [id]",
	Short: "Probe a running server with a tools listing",
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
		if err := rt.mgr.Health(cmd.Context(), id); err != nil {
			color.New(color.FgRed).Fprintf(cmd.OutOrStdout(), "%s is unhealthy: %v\n", id, err)
			return err
		}
		color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "%s is healthy\n", id)
		return nil
	},
}
