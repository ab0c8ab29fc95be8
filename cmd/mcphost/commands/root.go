// Package commands implements the CLI commands for mcphost.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	buildinfo "github.com/thoreinstein/mcphost/cmd"

	"github.com/thoreinstein/mcphost/internal/config"
	"github.com/thoreinstein/mcphost/internal/events"
	"github.com/thoreinstein/mcphost/internal/installer"
	"github.com/thoreinstein/mcphost/internal/logging"
	"github.com/thoreinstein/mcphost/internal/manager"
	"github.com/thoreinstein/mcphost/internal/paths"
	"github.com/thoreinstein/mcphost/internal/protocol"
	"github.com/thoreinstein/mcphost/internal/registry"
	"github.com/thoreinstein/mcphost/internal/runner"
	"github.com/thoreinstein/mcphost/internal/store"
	"github.com/thoreinstein/mcphost/internal/version"
)

// cliVersion resolves the build-time version injected via ldflags.
var cliVersion = buildinfo.Version

var (
	verbosity   int
	quiet       bool
	logFormat   string
	logFile     string
	installRoot string
	outputFmt   string
)

func init() {
	cobra.OnInitialize(config.Init)

	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v",
		"increase verbosity level (e.g., -v, -vv)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false,
		"suppress non-error output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text",
		"log format: text, json")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "",
		"write logs to file in JSON format")
	rootCmd.PersistentFlags().StringVar(&installRoot, "install-root", "",
		"server installation root (default: ~/.vscode/mcp-servers)")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table",
		"output format: table, json, yaml, toml")

	rootCmd.Version = cliVersion
	rootCmd.SetVersionTemplate("mcphost version {{.Version}}\n")

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
}

var rootCmd = &cobra.Command{
	Use:   "mcphost",
	Short: "Install, supervise, and talk to MCP servers",
	Long: `mcphost installs MCP servers from GitHub, GitLab, Bitbucket, npm,
PyPI, tarballs, or local directories, supervises them as child
processes speaking JSON-RPC over stdio, and exposes their tools,
resources, and prompts.`,
	Example: `  # Install a server from GitHub
  mcphost install https://github.com/example/my-mcp

  # Start it and list its tools
  mcphost start my-mcp
  mcphost tools my-mcp

  # Call a tool
  mcphost call my-mcp echo --arg message=hi`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging(cmd)
	},
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

func setupLogging(cmd *cobra.Command) error {
	var level slog.Level
	if quiet {
		level = slog.LevelError
	} else {
		level = logging.LevelFromVerbosity(verbosity + 1)
	}

	opts := &slog.HandlerOptions{Level: level}
	var primaryHandler slog.Handler
	switch logging.Format(logFormat) {
	case logging.FormatJSON:
		primaryHandler = slog.NewJSONHandler(cmd.ErrOrStderr(), opts)
	default:
		primaryHandler = logging.NewHandler(cmd.ErrOrStderr(), opts)
	}

	handlers := []slog.Handler{primaryHandler}
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return errors.Wrap(err, "opening log file")
		}
		// File output uses JSON format.
		handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{
			Level: level,
		}))
	}

	var handler slog.Handler
	if len(handlers) > 1 {
		handler = logging.NewMultiHandler(handlers...)
	} else {
		handler = handlers[0]
	}

	slog.SetDefault(slog.New(handler))
	return nil
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.ExecuteContext(context.Background())
	if err != nil {
		color.New(color.FgRed, color.Bold).Fprint(os.Stderr, "error: ")
		fmt.Fprintln(os.Stderr, err)
	}
	return err
}

// runtime bundles everything a command needs.
type runtime struct {
	cfg *config.Config
	mgr *manager.Manager
	bus *events.Bus
}

// buildRuntime assembles the manager from configuration. Commands call
// this once in their RunE.
func buildRuntime() (*runtime, error) {
	cfg, err := config.Load("")
	if err != nil {
		return nil, err
	}

	root := installRoot
	if root == "" {
		root = cfg.InstallRoot
	}
	if root == "" {
		root, err = paths.DefaultInstallRoot()
		if err != nil {
			return nil, err
		}
	}

	st, err := store.NewFileStore("")
	if err != nil {
		return nil, err
	}

	bus := events.NewBus()
	logger := slog.Default()

	reg, err := registry.New(st, bus)
	if err != nil {
		bus.Close()
		return nil, err
	}

	inst := installer.New(root, runner.NewExecRunner(logger), bus, logger, installer.Options{
		CommandTimeout: cfg.Install.CommandTimeout,
		BuildTimeout:   cfg.Install.BuildTimeout,
		CacheTTL:       cfg.Install.CacheTTL,
		MaxRetries:     cfg.Install.MaxRetries,
		AllowHighRisk:  cfg.Install.AllowHighRisk,
	})

	mgr := manager.New(reg, inst, version.NewCatalog(), bus, logger, manager.Options{
		ClientInfo:           protocol.Info{Name: "mcphost", Version: cliVersion},
		CallTimeout:          cfg.Client.CallTimeout,
		ReconnectDelay:       cfg.Client.ReconnectDelay,
		MaxReconnectAttempts: cfg.Client.MaxReconnectAttempts,
	})

	return &runtime{cfg: cfg, mgr: mgr, bus: bus}, nil
}

// close disposes the runtime.
func (r *runtime) close(ctx context.Context) {
	r.mgr.Dispose(ctx)
}
