// Command mcpconn connects to MCP servers and serves them over HTTP.
package main

import (
	"os"

	"github.com/vikashloomba/mcp-connection-manager-go/internal/cli"
)

// Version information (set via ldflags during build).
var version = "dev"

func main() {
	out := cli.DefaultOutput()
	if err := cli.NewRootCmd(version, out).Execute(); err != nil {
		os.Exit(out.HandleError(err))
	}
}
