package mcpmgr

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type fakeSession struct {
	mu sync.Mutex

	tools     []*mcp.Tool
	prompts   []*mcp.Prompt
	resources []*mcp.Resource

	toolsErr, promptsErr, resourcesErr error
	pingErr                            error
	pings                              int

	callResult   *mcp.CallToolResult
	callErr      error
	promptResult *mcp.GetPromptResult
	promptErr    error
	readResult   *mcp.ReadResourceResult
	readErr      error

	lastCall   *mcp.CallToolParams
	lastPrompt *mcp.GetPromptParams
	calls      int
	closed     int

	init *mcp.InitializeResult
}

func (f *fakeSession) ListTools(context.Context, *mcp.ListToolsParams) (*mcp.ListToolsResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.toolsErr != nil {
		return nil, f.toolsErr
	}
	return &mcp.ListToolsResult{Tools: f.tools}, nil
}

func (f *fakeSession) ListPrompts(context.Context, *mcp.ListPromptsParams) (*mcp.ListPromptsResult, error) {
	if f.promptsErr != nil {
		return nil, f.promptsErr
	}
	return &mcp.ListPromptsResult{Prompts: f.prompts}, nil
}

func (f *fakeSession) ListResources(context.Context, *mcp.ListResourcesParams) (*mcp.ListResourcesResult, error) {
	if f.resourcesErr != nil {
		return nil, f.resourcesErr
	}
	return &mcp.ListResourcesResult{Resources: f.resources}, nil
}

func (f *fakeSession) CallTool(_ context.Context, p *mcp.CallToolParams) (*mcp.CallToolResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastCall = p
	f.calls++
	if f.callErr != nil {
		return nil, f.callErr
	}
	if f.callResult == nil {
		return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: "ok"}}}, nil
	}
	return f.callResult, nil
}

func (f *fakeSession) GetPrompt(_ context.Context, p *mcp.GetPromptParams) (*mcp.GetPromptResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastPrompt = p
	if f.promptErr != nil {
		return nil, f.promptErr
	}
	return f.promptResult, nil
}

func (f *fakeSession) ReadResource(context.Context, *mcp.ReadResourceParams) (*mcp.ReadResourceResult, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.readResult, nil
}

func (f *fakeSession) Ping(context.Context, *mcp.PingParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pings++
	return f.pingErr
}

func (f *fakeSession) setTools(tools ...*mcp.Tool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tools = tools
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeSession) InitializeResult() *mcp.InitializeResult { return f.init }

func (f *fakeSession) closedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// fakeDialer records the transport kinds it was asked to dial and delegates
// to fn.
type fakeDialer struct {
	mu    sync.Mutex
	kinds []TransportKind
	fn    func(ctx context.Context, serverID string, t Transport) (Session, error)
}

func (d *fakeDialer) Dial(ctx context.Context, serverID string, t Transport) (Session, error) {
	d.mu.Lock()
	d.kinds = append(d.kinds, t.Kind())
	d.mu.Unlock()
	return d.fn(ctx, serverID, t)
}

func (d *fakeDialer) dialed() []TransportKind {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]TransportKind(nil), d.kinds...)
}

func sessionDialer(s Session) *fakeDialer {
	return &fakeDialer{fn: func(context.Context, string, Transport) (Session, error) { return s, nil }}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(d Dialer, registry Registry) *Manager {
	return NewManager(&ManagerOptions{
		Dialer:   d,
		Registry: registry,
		Logger:   discardLogger(),
	})
}
