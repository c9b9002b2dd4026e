// Package cli implements the mcpconn command line.
package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/vikashloomba/mcp-connection-manager-go/internal/config"
	"github.com/vikashloomba/mcp-connection-manager-go/internal/logging"
	"github.com/vikashloomba/mcp-connection-manager-go/internal/store"
	"github.com/vikashloomba/mcp-connection-manager-go/pkg/mcpmgr"
)

// app carries what PersistentPreRunE resolves for the subcommands.
type app struct {
	version    string
	configPath string
	logLevel   string

	out    *Output
	cfg    *config.Config
	logger *slog.Logger

	// dialer overrides the go-sdk dialer in tests.
	dialer mcpmgr.Dialer
}

// NewRootCmd builds the mcpconn command tree.
func NewRootCmd(version string, out *Output) *cobra.Command {
	return newRootCmd(&app{version: version, out: out})
}

func newRootCmd(a *app) *cobra.Command {
	if a.out == nil {
		a.out = DefaultOutput()
	}
	root := &cobra.Command{
		Use:   "mcpconn",
		Short: "Connect to and manage MCP servers",
		Long: `mcpconn connects to Model Context Protocol servers over stdio, SSE or
streamable HTTP, discovers their tools, prompts and resources, and serves
them over an HTTP API.

  mcpconn serve                       Run the HTTP API
  mcpconn connect server.yaml         Connect once and list capabilities
  mcpconn call server.yaml echo '{}'  Invoke a tool
  mcpconn servers list                Show stored server configs`,
		Version:       a.version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default ./config.yaml or ~/.config/mcpconn/config.yaml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level override (error|warn|info|debug)")

	root.AddCommand(newServeCmd(a))
	root.AddCommand(newConnectCmd(a))
	root.AddCommand(newCallCmd(a))
	root.AddCommand(newPromptCmd(a))
	root.AddCommand(newReadCmd(a))
	root.AddCommand(newServersCmd(a))
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	logger, err := logging.New(logging.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  a.out.Err,
		Version: a.version,
	})
	if err != nil {
		return fmt.Errorf("invalid logging configuration: %w", err)
	}
	slog.SetDefault(logger)
	a.cfg = cfg
	a.logger = logger
	cmd.SetContext(logging.WithLogger(cmd.Context(), logger))
	if cfg.File != "" {
		logger.Debug("config loaded", slog.String("file", cfg.File))
	}
	return nil
}

func (a *app) newManager(metrics *mcpmgr.Metrics) *mcpmgr.Manager {
	return mcpmgr.NewManager(&mcpmgr.ManagerOptions{
		ClientName:     a.cfg.MCP.ClientName,
		ClientVersion:  a.cfg.MCP.ClientVersion,
		ConnectTimeout: a.cfg.MCP.ConnectTimeout,
		MaxRetries:     a.cfg.MCP.MaxRetries,
		LogJSONRPC:     a.cfg.Log.JSONRPC,
		Logger:         a.logger,
		Metrics:        metrics,
		Breaker:        a.cfg.BreakerSettings(),
		Dialer:         a.dialer,
	})
}

func (a *app) openStore() (*store.Store, error) {
	return store.Open(store.Options{
		Path:     a.cfg.Store.Path,
		InMemory: a.cfg.Store.InMemory,
		Logger:   a.logger,
	})
}
