package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vikashloomba/mcp-connection-manager-go/internal/logging"
	"github.com/vikashloomba/mcp-connection-manager-go/pkg/mcpmgr"
)

// loadServerFile reads one server config from a JSON or YAML file. A missing
// ID defaults to the file name without its extension.
func loadServerFile(path string) (mcpmgr.ServerConfig, error) {
	var cfg mcpmgr.ServerConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.ID == "" {
		cfg.ID = strings.TrimSuffix(filepath.Base(path), ext)
	}
	return cfg, nil
}

// withSession connects the server in path, runs fn and disconnects.
func (a *app) withSession(ctx context.Context, path string, fn func(*mcpmgr.Manager, mcpmgr.ServerSnapshot) error) error {
	cfg, err := loadServerFile(path)
	if err != nil {
		return err
	}
	logging.FromContext(ctx).Debug("server config loaded", slog.String("file", path), slog.Any("config", cfg))
	mgr := a.newManager(nil)
	defer mgr.DisconnectAll(context.WithoutCancel(ctx))

	snap := mgr.Connect(ctx, cfg)
	if !snap.IsConnected {
		return snap.Err
	}
	return fn(mgr, snap)
}

func newConnectCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "connect <file>",
		Short: "Connect to a server and list its capabilities",
		Long:  `Connect to the server described in a JSON or YAML file, print what it offers and disconnect.`,
		Example: `  mcpconn connect filesystem.yaml
  mcpconn connect remote.json --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd.Context(), args[0], func(_ *mcpmgr.Manager, snap mcpmgr.ServerSnapshot) error {
				if asJSON {
					return a.out.PrintJSON(snap)
				}
				a.out.printSnapshot(snap)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the snapshot as JSON")
	return cmd
}

func parseArgs(args []string) (map[string]any, error) {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(args[0]), &out); err != nil {
		return nil, fmt.Errorf("arguments must be a JSON object: %w", err)
	}
	return out, nil
}

func newCallCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "call <file> <tool> [json-args]",
		Short:   "Invoke a tool",
		Example: `  mcpconn call everything.yaml add '{"a": 1, "b": 2}'`,
		Args:    cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			toolArgs, err := parseArgs(args[2:])
			if err != nil {
				return err
			}
			return a.withSession(cmd.Context(), args[0], func(mgr *mcpmgr.Manager, snap mcpmgr.ServerSnapshot) error {
				res, err := mgr.CallTool(cmd.Context(), snap.Config.ID, args[1], toolArgs)
				if err != nil {
					return err
				}
				return a.printInvocation(res, asJSON)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func newPromptCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "prompt <file> <name> [json-args]",
		Short:   "Render a prompt",
		Example: `  mcpconn prompt everything.yaml simple_prompt`,
		Args:    cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			promptArgs, err := parseArgs(args[2:])
			if err != nil {
				return err
			}
			return a.withSession(cmd.Context(), args[0], func(mgr *mcpmgr.Manager, snap mcpmgr.ServerSnapshot) error {
				res, err := mgr.GetPrompt(cmd.Context(), snap.Config.ID, args[1], promptArgs)
				if err != nil {
					return err
				}
				return a.printInvocation(res, asJSON)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func newReadCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "read <file> <uri>",
		Short:   "Read a resource",
		Example: `  mcpconn read everything.yaml test://static/resource/1`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd.Context(), args[0], func(mgr *mcpmgr.Manager, snap mcpmgr.ServerSnapshot) error {
				res, err := mgr.ReadResource(cmd.Context(), snap.Config.ID, args[1])
				if err != nil {
					return err
				}
				return a.printInvocation(res, asJSON)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func (a *app) printInvocation(res *mcpmgr.ToolCallResult, asJSON bool) error {
	if asJSON {
		return a.out.PrintJSON(res)
	}
	a.out.printResult(res)
	return nil
}
