package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status [id]",
	Short: "Show a server's runtime status",
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
		if _, err := rt.mgr.Get(id); err != nil {
			return err
		}

		st := rt.mgr.Status(id)
		if structured() {
			return renderValue(cmd.OutOrStdout(), st)
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintf(tw, "State:\t%s\n", st.State)
		if st.PID != 0 {
			fmt.Fprintf(tw, "PID:\t%d\n", st.PID)
		}
		if st.ProtocolVersion != "" {
			fmt.Fprintf(tw, "Protocol:\t%s\n", st.ProtocolVersion)
		}
		if len(st.VersionCapabilities) > 0 {
			fmt.Fprintf(tw, "Capabilities:\t%v\n", st.VersionCapabilities)
		}
		if !st.LastStarted.IsZero() {
			fmt.Fprintf(tw, "Last started:\t%s\n", st.LastStarted.Format("2006-01-02 15:04:05"))
		}
		if !st.LastStopped.IsZero() {
			fmt.Fprintf(tw, "Last stopped:\t%s\n", st.LastStopped.Format("2006-01-02 15:04:05"))
		}
		fmt.Fprintf(tw, "Restarts:\t%d\n", st.RestartCount)
		fmt.Fprintf(tw, "Errors:\t%d\n", st.ErrorCount)
		if st.LastError != "" {
			fmt.Fprintf(tw, "Last error:\t%s\n", st.LastError)
		}
		return tw.Flush()
	},
}
