package catalog

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vikashloomba/mcp-connection-manager-go/pkg/mcpmgr"
)

func TestServerPrefixNamespaceRoundTrip(t *testing.T) {
	ns := ServerPrefixNamespace{}
	name := ns.FunctionName("alpha", "read__file")
	assert.Equal(t, "alpha__read__file", name)

	serverID, tool, ok := ns.Split(name)
	require.True(t, ok)
	assert.Equal(t, "alpha", serverID)
	assert.Equal(t, "read__file", tool)

	for _, bad := range []string{"echo", "__echo", "alpha__"} {
		_, _, ok := ns.Split(bad)
		assert.False(t, ok, bad)
	}

	custom := ServerPrefixNamespace{Separator: "."}
	assert.Equal(t, "alpha.echo", custom.FunctionName("alpha", "echo"))
}

func TestCatalogUpdateTools(t *testing.T) {
	c := New(nil)
	removed, added := c.Update("alpha", []*mcp.Tool{{Name: "echo", Description: "Echo input"}, nil})
	assert.Empty(t, removed)
	require.Equal(t, []string{"alpha__echo"}, added)

	target, ok := c.Lookup("alpha__echo")
	require.True(t, ok)
	assert.Equal(t, Target{FunctionName: "alpha__echo", ServerID: "alpha", ToolName: "echo"}, target)

	tools := c.Tools()
	require.Len(t, tools, 1)
	assert.Equal(t, "alpha__echo", tools[0].Name)
	assert.Equal(t, "alpha", tools[0].Meta[metaKeyServerID])
	assert.Equal(t, "echo", tools[0].Meta[metaKeyNativeName])

	removed, added = c.Update("alpha", []*mcp.Tool{{Name: "add"}})
	assert.Equal(t, []string{"alpha__echo"}, removed)
	assert.Equal(t, []string{"alpha__add"}, added)
	_, ok = c.Lookup("alpha__echo")
	assert.False(t, ok)
}

func TestCatalogDoesNotMutateUpstreamTools(t *testing.T) {
	upstream := &mcp.Tool{Name: "echo", Meta: mcp.Meta{"origin": "server"}}
	c := New(nil)
	c.Update("alpha", []*mcp.Tool{upstream})

	assert.Equal(t, "echo", upstream.Name)
	assert.Len(t, upstream.Meta, 1)
	assert.Equal(t, "server", c.Tools()[0].Meta["origin"])
}

func TestCatalogFunctionsSortedAndFiltered(t *testing.T) {
	schema := map[string]any{"type": "object", "properties": map[string]any{"a": map[string]any{"type": "number"}}}
	c := New(nil)
	c.Update("bravo", []*mcp.Tool{{Name: "zeta"}, {Name: "add", InputSchema: schema}})
	c.Update("alpha", []*mcp.Tool{{Name: "echo"}})

	defs := c.Functions()
	require.Len(t, defs, 3)
	assert.Equal(t, "alpha__echo", defs[0].Name)
	assert.Equal(t, "bravo__add", defs[1].Name)
	assert.Equal(t, schema, defs[1].Parameters)
	assert.Equal(t, map[string]any{"type": "object", "properties": map[string]any{}}, defs[0].Parameters)

	only := c.Functions("bravo")
	require.Len(t, only, 2)
	assert.Equal(t, "bravo", only[0].ServerID)

	assert.Equal(t, []string{"alpha", "bravo"}, c.Servers())
	c.Remove("alpha")
	assert.Equal(t, []string{"bravo"}, c.Servers())
}

func TestCatalogResolveFallsBackToNamespace(t *testing.T) {
	c := New(nil)
	target, ok := c.Resolve("gamma__search")
	require.True(t, ok)
	assert.Equal(t, "gamma", target.ServerID)
	assert.Equal(t, "search", target.ToolName)

	_, ok = c.Resolve("search")
	assert.False(t, ok)
}

type fakeSource struct {
	snaps map[string]mcpmgr.ServerSnapshot
	dead  map[string]bool
}

func (f fakeSource) ListIDs() []string {
	ids := make([]string, 0, len(f.snaps))
	for id := range f.snaps {
		ids = append(ids, id)
	}
	return ids
}

func (f fakeSource) Describe(_ context.Context, id string) (mcpmgr.ServerSnapshot, bool) {
	if f.dead[id] {
		return mcpmgr.ServerSnapshot{}, false
	}
	snap, ok := f.snaps[id]
	return snap, ok
}

func TestCatalogSync(t *testing.T) {
	c := New(nil)
	c.Update("stale", []*mcp.Tool{{Name: "old"}})

	src := fakeSource{
		snaps: map[string]mcpmgr.ServerSnapshot{
			"alpha": {IsConnected: true, Tools: []*mcp.Tool{{Name: "echo"}}},
			"dead":  {IsConnected: true, Tools: []*mcp.Tool{{Name: "gone"}}},
		},
		dead: map[string]bool{"dead": true},
	}
	c.Update("dead", []*mcp.Tool{{Name: "gone"}})
	c.Sync(context.Background(), src)

	assert.Equal(t, []string{"alpha"}, c.Servers())
	_, ok := c.Lookup("alpha__echo")
	assert.True(t, ok)
}

func TestCatalogApply(t *testing.T) {
	c := New(nil)
	c.Apply(mcpmgr.ServerSnapshot{
		Config:      mcpmgr.ServerConfig{ID: "alpha"},
		IsConnected: true,
		Tools:       []*mcp.Tool{{Name: "echo"}},
	})
	assert.Equal(t, []string{"alpha"}, c.Servers())

	c.Apply(mcpmgr.ServerSnapshot{Config: mcpmgr.ServerConfig{ID: "alpha"}})
	assert.Empty(t, c.Servers())
}

type fakeInvoker struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
}

func (f *fakeInvoker) CallTool(_ context.Context, serverID, name string, args map[string]any) (*mcpmgr.ToolCallResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, serverID+"/"+name)
	f.mu.Unlock()
	if err := f.fail[name]; err != nil {
		return nil, err
	}
	return &mcpmgr.ToolCallResult{
		Content: []mcpmgr.ContentItem{mcpmgr.TextItem(serverID + ":" + name)},
		IsError: name == "flaky",
	}, nil
}

func TestExecuteRoutesRegisteredNames(t *testing.T) {
	c := New(nil)
	c.Update("alpha", []*mcp.Tool{{Name: "echo"}})
	inv := &fakeInvoker{}
	exec := NewExecutor(c, inv)

	res, err := exec.Execute(context.Background(), "other", FunctionCall{Name: "alpha__echo"})
	require.NoError(t, err)
	assert.Equal(t, "alpha:echo", res.Content[0].Text)

	res, err = exec.Execute(context.Background(), "bravo", FunctionCall{Name: "search"})
	require.NoError(t, err)
	assert.Equal(t, "bravo:search", res.Content[0].Text)

	res, err = exec.Execute(context.Background(), "", FunctionCall{Name: "gamma__find"})
	require.NoError(t, err)
	assert.Equal(t, "gamma:find", res.Content[0].Text)

	_, err = exec.Execute(context.Background(), "", FunctionCall{Name: "search"})
	assert.ErrorContains(t, err, "no server id")
	_, err = exec.Execute(context.Background(), "alpha", FunctionCall{})
	assert.ErrorContains(t, err, "function name is required")
}

func TestExecuteAllIsolatesFailures(t *testing.T) {
	inv := &fakeInvoker{fail: map[string]error{"broken": errors.New("server exploded")}}
	exec := NewExecutor(New(nil), inv)

	results := exec.ExecuteAll(context.Background(), []string{"alpha", "bravo"}, []FunctionCall{
		{ID: "first", Name: "echo"},
		{Name: "broken"},
		{Name: "flaky"},
	})
	require.Len(t, results, 3)

	assert.False(t, results["first"].IsError)
	assert.Equal(t, "alpha:echo", results["first"].Content[0].Text)

	broken := results["call-1"]
	assert.True(t, broken.IsError)
	assert.True(t, strings.HasPrefix(broken.Content[0].Text, "function execution error: "))
	assert.Contains(t, broken.Content[0].Text, "server exploded")

	assert.True(t, results["call-2"].IsError)
	assert.Len(t, inv.calls, 3)
}

func TestExecuteAllWithoutServers(t *testing.T) {
	exec := NewExecutor(New(nil), &fakeInvoker{})
	results := exec.ExecuteAll(context.Background(), nil, []FunctionCall{{Name: "echo"}})
	require.Contains(t, results, "call-0")
	assert.True(t, results["call-0"].IsError)
}
