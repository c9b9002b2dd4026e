package mcpmgr

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Session is the part of *mcp.ClientSession the manager relies on.
type Session interface {
	ListTools(context.Context, *mcp.ListToolsParams) (*mcp.ListToolsResult, error)
	ListPrompts(context.Context, *mcp.ListPromptsParams) (*mcp.ListPromptsResult, error)
	ListResources(context.Context, *mcp.ListResourcesParams) (*mcp.ListResourcesResult, error)
	CallTool(context.Context, *mcp.CallToolParams) (*mcp.CallToolResult, error)
	GetPrompt(context.Context, *mcp.GetPromptParams) (*mcp.GetPromptResult, error)
	ReadResource(context.Context, *mcp.ReadResourceParams) (*mcp.ReadResourceResult, error)
	Ping(context.Context, *mcp.PingParams) error
	Close() error
}

// initializeResulter is implemented by sessions that expose the server's
// initialize response.
type initializeResulter interface {
	InitializeResult() *mcp.InitializeResult
}

var _ Session = (*mcp.ClientSession)(nil)

// Dialer opens a protocol session over a transport.
type Dialer interface {
	Dial(ctx context.Context, serverID string, t Transport) (Session, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, serverID string, t Transport) (Session, error)

func (f DialerFunc) Dial(ctx context.Context, serverID string, t Transport) (Session, error) {
	return f(ctx, serverID, t)
}

// SDKDialer dials with a fresh mcp.Client per attempt.
type SDKDialer struct {
	Implementation *mcp.Implementation
	ClientOptions  mcp.ClientOptions
	// OnListChanged, when set, receives the server's list_changed
	// notifications after any handler in ClientOptions has run.
	OnListChanged func(serverID string, method string)
}

func (d *SDKDialer) Dial(ctx context.Context, serverID string, t Transport) (Session, error) {
	impl := d.Implementation
	if impl == nil {
		impl = &mcp.Implementation{Name: "mcp-connection-manager", Version: "1.0.0"}
	}
	opts := d.clientOptions(serverID)
	client := mcp.NewClient(impl, &opts)
	session, err := client.Connect(ctx, t.MCP(), nil)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// clientOptions chains the list_changed handlers to OnListChanged.
func (d *SDKDialer) clientOptions(serverID string) mcp.ClientOptions {
	opts := d.ClientOptions
	if d.OnListChanged == nil {
		return opts
	}
	notify := d.OnListChanged

	tools := opts.ToolListChangedHandler
	opts.ToolListChangedHandler = func(ctx context.Context, req *mcp.ToolListChangedRequest) {
		if tools != nil {
			tools(ctx, req)
		}
		notify(serverID, NotifyToolsChanged)
	}
	prompts := opts.PromptListChangedHandler
	opts.PromptListChangedHandler = func(ctx context.Context, req *mcp.PromptListChangedRequest) {
		if prompts != nil {
			prompts(ctx, req)
		}
		notify(serverID, NotifyPromptsChanged)
	}
	resources := opts.ResourceListChangedHandler
	opts.ResourceListChangedHandler = func(ctx context.Context, req *mcp.ResourceListChangedRequest) {
		if resources != nil {
			resources(ctx, req)
		}
		notify(serverID, NotifyResourcesChanged)
	}
	return opts
}
