package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(startCmd)
}

var startCmd = &cobra.Command{
	Use:   "start [id]",
	Short: "Start an MCP server and negotiate a protocol version",
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

		sess, err := rt.mgr.Start(cmd.Context(), id)
		if err != nil {
			return err
		}

		neg := sess.Negotiated()
		fmt.Fprintf(cmd.OutOrStdout(), "Started %s: %s (protocol %s)\n",
			id, sess.ServerInfo().Name, neg.Version)
		return nil
	},
}
