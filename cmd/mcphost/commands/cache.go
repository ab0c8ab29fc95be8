package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the install cache",
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop all install cache metadata",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime()
		if err != nil {
			return err
		}
		defer rt.close(cmd.Context())

		if err := rt.mgr.ClearCache(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Install cache cleared.")
		return nil
	},
}
