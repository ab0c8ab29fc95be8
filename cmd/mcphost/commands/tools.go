package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(toolsCmd)
}

var toolsCmd = &cobra.Command{
	Use:   "tools <id>",
	Short: "List the tools a running server exposes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime()
		if err != nil {
			return err
		}
		defer rt.close(cmd.Context())

		sess, err := startedSession(cmd, rt, args[0])
		if err != nil {
			return err
		}

		tools, err := sess.ListTools(cmd.Context())
		if err != nil {
			return err
		}
		if structured() {
			return renderValue(cmd.OutOrStdout(), tools)
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tDESCRIPTION")
		for _, tool := range tools {
			fmt.Fprintf(tw, "%s\t%s\n", tool.Name, tool.Description)
		}
		return tw.Flush()
	},
}
