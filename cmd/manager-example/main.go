package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/vikashloomba/mcp-connection-manager-go/pkg/mcpmgr"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	manager := mcpmgr.NewManager(&mcpmgr.ManagerOptions{
		ClientName:     "manager-example",
		ConnectTimeout: 60 * time.Second,
		Logger:         logger,
	})

	ctx := context.Background()
	defer manager.DisconnectAll(ctx)

	snap := manager.Connect(ctx, mcpmgr.ServerConfig{
		ID:        "everything",
		Name:      "Everything",
		Transport: mcpmgr.TransportStdio,
		Command:   "npx",
		Args:      []string{"-y", "@modelcontextprotocol/server-everything"},
	})
	if !snap.IsConnected {
		fmt.Printf("connect failed: %s\n", snap.LastError)
		if snap.Hint != "" {
			fmt.Printf("hint: %s\n", snap.Hint)
		}
		os.Exit(1)
	}

	fmt.Printf("Connected to %s %s via %s\n", snap.Info.Name, snap.Info.Version, snap.ConnectedVia)
	for _, tool := range snap.Tools {
		fmt.Printf("  tool: %s\n", tool.Name)
	}

	res, err := manager.CallTool(ctx, "everything", "echo", map[string]any{"message": "hello"})
	if err != nil {
		fmt.Printf("call failed: %v\n", err)
		return
	}
	for _, item := range res.Content {
		fmt.Printf("echo -> %s\n", item.Text)
	}
}
