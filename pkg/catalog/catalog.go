package catalog

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vikashloomba/mcp-connection-manager-go/pkg/mcpmgr"
)

const (
	metaKeyServerID   = "mcpconn.server_id"
	metaKeyNativeName = "mcpconn.native_name"
)

// Target identifies the server-local tool behind a function name.
type Target struct {
	FunctionName string `json:"functionName"`
	ServerID     string `json:"serverId"`
	ToolName     string `json:"toolName"`
}

// FunctionDefinition is the shape chat backends hand to a model as a callable
// function: the namespaced name, the tool description and its input schema.
type FunctionDefinition struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters"`
	ServerID    string `json:"serverId"`
}

type registration struct {
	Tool   *mcp.Tool
	Target Target
}

// Catalog indexes the tools of connected servers. It is safe for concurrent
// use.
type Catalog struct {
	ns Namespace

	mu          sync.RWMutex
	tools       map[string]registration
	serverTools map[string][]string
}

// New returns an empty catalog. A nil namespace selects ServerPrefixNamespace.
func New(ns Namespace) *Catalog {
	if ns == nil {
		ns = ServerPrefixNamespace{}
	}
	return &Catalog{
		ns:          ns,
		tools:       make(map[string]registration),
		serverTools: make(map[string][]string),
	}
}

// Namespace returns the naming strategy in use.
func (c *Catalog) Namespace() Namespace { return c.ns }

// Update replaces every tool registered for serverID with upstream and
// returns the function names that were dropped and added.
func (c *Catalog) Update(serverID string, upstream []*mcp.Tool) (removed, added []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed = c.removeLocked(serverID)
	names := make([]string, 0, len(upstream))
	for _, tool := range upstream {
		if tool == nil {
			continue
		}
		name := c.ns.FunctionName(serverID, tool.Name)
		c.tools[name] = registration{
			Tool:   cloneTool(tool, name, serverID),
			Target: Target{FunctionName: name, ServerID: serverID, ToolName: tool.Name},
		}
		names = append(names, name)
	}
	if len(names) > 0 {
		c.serverTools[serverID] = names
	}
	return removed, names
}

// Remove drops every tool of serverID.
func (c *Catalog) Remove(serverID string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.removeLocked(serverID)
}

func (c *Catalog) removeLocked(serverID string) []string {
	names := c.serverTools[serverID]
	if len(names) == 0 {
		return nil
	}
	for _, name := range names {
		delete(c.tools, name)
	}
	delete(c.serverTools, serverID)
	return append([]string(nil), names...)
}

// Lookup returns the target of a registered function name.
func (c *Catalog) Lookup(functionName string) (Target, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	reg, ok := c.tools[functionName]
	return reg.Target, ok
}

// Resolve is Lookup falling back to the namespace, so calls can be routed to
// servers the catalog has not synced yet.
func (c *Catalog) Resolve(functionName string) (Target, bool) {
	if t, ok := c.Lookup(functionName); ok {
		return t, true
	}
	serverID, toolName, ok := c.ns.Split(functionName)
	if !ok {
		return Target{}, false
	}
	return Target{FunctionName: functionName, ServerID: serverID, ToolName: toolName}, true
}

// Servers lists the server IDs with at least one registered tool.
func (c *Catalog) Servers() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Sorted(maps.Keys(c.serverTools))
}

// Tools returns the namespaced tool copies sorted by function name. When
// serverIDs is non-empty only those servers are included.
func (c *Catalog) Tools(serverIDs ...string) []*mcp.Tool {
	regs := c.registrations(serverIDs)
	out := make([]*mcp.Tool, 0, len(regs))
	for _, reg := range regs {
		out = append(out, reg.Tool)
	}
	return out
}

// Functions returns function definitions sorted by name. When serverIDs is
// non-empty only those servers are included.
func (c *Catalog) Functions(serverIDs ...string) []FunctionDefinition {
	regs := c.registrations(serverIDs)
	out := make([]FunctionDefinition, 0, len(regs))
	for _, reg := range regs {
		params := reg.Tool.InputSchema
		if params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out = append(out, FunctionDefinition{
			Name:        reg.Target.FunctionName,
			Description: reg.Tool.Description,
			Parameters:  params,
			ServerID:    reg.Target.ServerID,
		})
	}
	return out
}

func (c *Catalog) registrations(serverIDs []string) []registration {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var names []string
	if len(serverIDs) == 0 {
		names = slices.Collect(maps.Keys(c.tools))
	} else {
		for _, id := range serverIDs {
			names = append(names, c.serverTools[id]...)
		}
	}
	slices.Sort(names)
	out := make([]registration, 0, len(names))
	for _, name := range names {
		out = append(out, c.tools[name])
	}
	return out
}

// Source is the part of *mcpmgr.Manager that Sync reads from.
type Source interface {
	ListIDs() []string
	Describe(ctx context.Context, serverID string) (mcpmgr.ServerSnapshot, bool)
}

// Sync describes every connected server and rebuilds the catalog from the
// results. Servers that are gone, or whose describe reports them dead, are
// dropped.
func (c *Catalog) Sync(ctx context.Context, src Source) {
	live := make(map[string]struct{})
	for _, id := range src.ListIDs() {
		snap, ok := src.Describe(ctx, id)
		if !ok {
			c.Remove(id)
			continue
		}
		live[id] = struct{}{}
		c.Update(id, snap.Tools)
	}
	for _, id := range c.Servers() {
		if _, ok := live[id]; !ok {
			c.Remove(id)
		}
	}
}

// Apply records the tools of a snapshot returned by Connect or Describe. A
// disconnected snapshot removes the server.
func (c *Catalog) Apply(snap mcpmgr.ServerSnapshot) {
	if !snap.IsConnected {
		c.Remove(snap.Config.ID)
		return
	}
	c.Update(snap.Config.ID, snap.Tools)
}

func cloneTool(tool *mcp.Tool, functionName, serverID string) *mcp.Tool {
	clone := *tool
	clone.Name = functionName
	clone.Meta = withMeta(tool.Meta, map[string]any{
		metaKeyServerID:   serverID,
		metaKeyNativeName: tool.Name,
	})
	return &clone
}

func withMeta(base map[string]any, extras map[string]any) map[string]any {
	out := maps.Clone(base)
	if out == nil {
		out = make(map[string]any)
	}
	maps.Copy(out, extras)
	return out
}
