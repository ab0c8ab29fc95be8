package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thoreinstein/mcphost/internal/events"
	"github.com/thoreinstein/mcphost/internal/installer"
	"github.com/thoreinstein/mcphost/internal/manager"
)

var (
	installID        string
	installName      string
	installEnv       map[string]string
	installAutoStart bool
	installOverwrite bool
	installForce     bool
	installHighRisk  bool
)

func init() {
	installCmd.Flags().StringVar(&installID, "id", "", "server id (default: derived from the source)")
	installCmd.Flags().StringVar(&installName, "name", "", "human-readable server name")
	installCmd.Flags().StringToStringVar(&installEnv, "env", nil, "environment overlay KEY=VALUE")
	installCmd.Flags().BoolVar(&installAutoStart, "auto-start", false, "start the server after install and on startAutoStartServers")
	installCmd.Flags().BoolVar(&installOverwrite, "overwrite", false, "replace an existing server with the same id")
	installCmd.Flags().BoolVar(&installForce, "force", false, "reinstall even when cached")
	installCmd.Flags().BoolVar(&installHighRisk, "allow-high-risk", false, "proceed despite high-risk security findings")
	rootCmd.AddCommand(installCmd)
}

var installCmd = &cobra.Command{
	Use:   "install <source>",
	Short: "Install an MCP server from a source URL or package",
	Long: `Install fetches, builds, and registers an MCP server.

Sources are classified automatically: GitHub/GitLab/Bitbucket URLs
(optionally with /tree/<branch>/<path>), git+https URLs, npm packages
(name[@version], optionally npm:-prefixed), pip/pypi packages,
tarball URLs, and file:// paths. Bare names install from npm.`,
	Example: `  mcphost install https://github.com/example/my-mcp/tree/main
  mcphost install npm:@modelcontextprotocol/server-everything
  mcphost install pip:mcp-weather==0.4.0 --id weather --auto-start`,
	Args: cobra.ExactArgs(1),
	RunE: runInstall,
}

func runInstall(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime()
	if err != nil {
		return err
	}
	defer rt.close(cmd.Context())

	// Relay progress while the pipeline runs.
	sub := rt.mgr.Subscribe(events.WithBuffer(256))
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range sub.Events() {
			if ev.Kind != events.KindInstallProgress {
				continue
			}
			if p, ok := ev.Payload.(events.InstallPayload); ok && !quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s %s\n", p.Stage, p.Message)
			}
		}
	}()

	rec, err := rt.mgr.Install(cmd.Context(), args[0], manager.InstallOptions{
		InstallOptions: installer.InstallOptions{
			ID:             installID,
			Name:           installName,
			Env:            installEnv,
			AutoStart:      installAutoStart,
			ForceReinstall: installForce,
			AllowHighRisk:  installHighRisk,
			AutoRetry:      true,
		},
		Overwrite: installOverwrite,
		AutoStart: installAutoStart,
	})
	sub.Close()
	<-done
	if err != nil {
		return err
	}

	if structured() {
		return renderValue(cmd.OutOrStdout(), rec)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Installed %s (%s %v in %s)\n",
		rec.ID, rec.Invocation.Command, rec.Invocation.Args, rec.Invocation.Cwd)
	return nil
}
