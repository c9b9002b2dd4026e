package catalog

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/vikashloomba/mcp-connection-manager-go/pkg/mcpmgr"
)

// FunctionCall is a model-issued call against a catalog function.
type FunctionCall struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// FunctionExecutionResult is the content returned to the model for one call.
type FunctionExecutionResult struct {
	Content []mcpmgr.ContentItem `json:"content"`
	IsError bool                 `json:"isError,omitempty"`
}

// Invoker is the part of *mcpmgr.Manager the executor calls tools through.
type Invoker interface {
	CallTool(ctx context.Context, serverID, name string, args map[string]any) (*mcpmgr.ToolCallResult, error)
}

// Executor routes function calls to the server that owns the tool.
type Executor struct {
	catalog *Catalog
	invoker Invoker
}

// NewExecutor binds a catalog to the invoker that runs its tools.
func NewExecutor(c *Catalog, inv Invoker) *Executor {
	return &Executor{catalog: c, invoker: inv}
}

// Execute runs call. A registered function name is routed to the server that
// owns it; any other name is a tool of serverID, or, when serverID is empty,
// is decoded with the catalog namespace. Transport failures are returned as
// errors, tool-level failures as a result with IsError set.
func (e *Executor) Execute(ctx context.Context, serverID string, call FunctionCall) (FunctionExecutionResult, error) {
	if call.Name == "" {
		return FunctionExecutionResult{}, fmt.Errorf("catalog: function name is required")
	}
	target, tool := serverID, call.Name
	if t, ok := e.catalog.Lookup(call.Name); ok {
		target, tool = t.ServerID, t.ToolName
	} else if serverID == "" {
		if t, ok := e.catalog.Resolve(call.Name); ok {
			target, tool = t.ServerID, t.ToolName
		}
	}
	if target == "" {
		return FunctionExecutionResult{}, fmt.Errorf("catalog: cannot route %q: no server id", call.Name)
	}
	res, err := e.invoker.CallTool(ctx, target, tool, call.Args)
	if err != nil {
		return FunctionExecutionResult{}, err
	}
	return FunctionExecutionResult{Content: res.Content, IsError: res.IsError}, nil
}

// ExecuteAll runs calls concurrently and keys the results by call ID, using
// "call-<index>" for calls without one. Calls with a non-namespaced name go to
// the first of enabledServers. Failures become error results; ExecuteAll
// itself never fails.
func (e *Executor) ExecuteAll(ctx context.Context, enabledServers []string, calls []FunctionCall) map[string]FunctionExecutionResult {
	var fallback string
	if len(enabledServers) > 0 {
		fallback = enabledServers[0]
	}

	var (
		mu      sync.Mutex
		results = make(map[string]FunctionExecutionResult, len(calls))
		g       errgroup.Group
	)
	for i, call := range calls {
		id := call.ID
		if id == "" {
			id = fmt.Sprintf("call-%d", i)
		}
		g.Go(func() error {
			res, err := e.Execute(ctx, fallback, call)
			if err != nil {
				res = FunctionExecutionResult{
					Content: []mcpmgr.ContentItem{mcpmgr.TextItem("function execution error: " + err.Error())},
					IsError: true,
				}
			}
			mu.Lock()
			results[id] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}
