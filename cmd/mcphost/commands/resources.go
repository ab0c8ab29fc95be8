package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(resourcesCmd)
	rootCmd.AddCommand(readCmd)
}

var resourcesCmd = &cobra.Command{
	Use:   "resources <id>",
	Short: "List the resources a running server exposes",
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

		resources, err := sess.ListResources(cmd.Context())
		if err != nil {
			return err
		}
		if structured() {
			return renderValue(cmd.OutOrStdout(), resources)
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "URI\tNAME\tTYPE")
		for _, res := range resources {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", res.URI, res.Name, res.MimeType)
		}
		return tw.Flush()
	},
}

var readCmd = &cobra.Command{
	Use:   "read <id> <uri>",
	Short: "Read a resource from a running server",
	Args:  cobra.ExactArgs(2),
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

		res, err := sess.ReadResource(cmd.Context(), args[1])
		if err != nil {
			return err
		}
		if structured() {
			return renderValue(cmd.OutOrStdout(), res)
		}
		for _, contents := range res.Contents {
			if contents.Text != "" {
				fmt.Fprintln(cmd.OutOrStdout(), contents.Text)
			}
		}
		return nil
	},
}
