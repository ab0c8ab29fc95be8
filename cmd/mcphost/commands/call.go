package commands

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/thoreinstein/mcphost/internal/session"
)

var (
	callArgs     map[string]string
	callJSONArgs string
)

func init() {
	callCmd.Flags().StringToStringVar(&callArgs, "arg", nil, "tool argument KEY=VALUE (repeatable)")
	callCmd.Flags().StringVar(&callJSONArgs, "json-args", "", "tool arguments as a JSON object")
	rootCmd.AddCommand(callCmd)
}

var callCmd = &cobra.Command{
	Use:   "call <id> <tool>",
	Short: "Call a tool on a running server",
	Example: `  mcphost call my-mcp echo --arg message=hi
  mcphost call my-mcp search --json-args '{"query":"go","limit":3}'`,
	Args: cobra.ExactArgs(2),
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

		toolArgs := map[string]any{}
		if callJSONArgs != "" {
			if err := json.Unmarshal([]byte(callJSONArgs), &toolArgs); err != nil {
				return errors.Wrap(err, "parsing --json-args")
			}
		}
		for k, v := range callArgs {
			toolArgs[k] = v
		}

		res, err := sess.CallTool(cmd.Context(), args[1], toolArgs)
		if err != nil {
			return err
		}
		if structured() {
			return renderValue(cmd.OutOrStdout(), res)
		}
		for _, content := range res.Content {
			if content.Text != "" {
				fmt.Fprintln(cmd.OutOrStdout(), content.Text)
			}
		}
		return nil
	},
}

// startedSession returns the live session for id, starting the server
// if necessary.
func startedSession(cmd *cobra.Command, rt *runtime, id string) (*session.Session, error) {
	if sess, err := rt.mgr.GetClient(id); err == nil {
		return sess, nil
	}
	return rt.mgr.Start(cmd.Context(), id)
}
