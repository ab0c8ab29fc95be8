package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var promptArgs map[string]string

func init() {
	promptCmd.Flags().StringToStringVar(&promptArgs, "arg", nil, "prompt argument KEY=VALUE (repeatable)")
	rootCmd.AddCommand(promptsCmd)
	rootCmd.AddCommand(promptCmd)
}

var promptsCmd = &cobra.Command{
	Use:   "prompts <id>",
	Short: "List the prompts a running server exposes",
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

		prompts, err := sess.ListPrompts(cmd.Context())
		if err != nil {
			return err
		}
		if structured() {
			return renderValue(cmd.OutOrStdout(), prompts)
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tDESCRIPTION\tARGS")
		for _, p := range prompts {
			fmt.Fprintf(tw, "%s\t%s\t%d\n", p.Name, p.Description, len(p.Arguments))
		}
		return tw.Flush()
	},
}

var promptCmd = &cobra.Command{
	Use:   "prompt <id> <name>",
	Short: "Retrieve a prompt expansion from a running server",
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

		res, err := sess.GetPrompt(cmd.Context(), args[1], promptArgs)
		if err != nil {
			return err
		}
		if structured() {
			return renderValue(cmd.OutOrStdout(), res)
		}
		for _, msg := range res.Messages {
			fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s\n", msg.Role, msg.Content.Text)
		}
		return nil
	},
}
