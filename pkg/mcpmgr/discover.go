package mcpmgr

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/errgroup"
)

// maxListPages stops a server that keeps returning cursors from pinning
// discovery forever.
const maxListPages = 100

const (
	methodListTools     = "tools/list"
	methodListPrompts   = "prompts/list"
	methodListResources = "resources/list"
)

type capabilities struct {
	tools     []*mcp.Tool
	prompts   []*mcp.Prompt
	resources []*mcp.Resource
	// errs holds the failure of each listing that failed, keyed by method.
	errs map[string]error
}

// allFailed reports whether every listing failed for a reason other than the
// server not implementing it, which is how a dead connection shows up.
func (c capabilities) allFailed() bool {
	if len(c.errs) < 3 {
		return false
	}
	for _, err := range c.errs {
		if isMethodUnavailableError(err) {
			return false
		}
	}
	return true
}

func (c capabilities) errorStrings() map[string]string {
	if len(c.errs) == 0 {
		return nil
	}
	out := make(map[string]string, len(c.errs))
	for method, err := range c.errs {
		out[method] = err.Error()
	}
	return out
}

// discover lists tools, prompts and resources concurrently. A failed listing
// yields an empty slice and never affects the other two.
func discover(ctx context.Context, s Session) capabilities {
	var g errgroup.Group
	var toolErr, promptErr, rscErr error
	var caps capabilities
	g.Go(func() error {
		caps.tools, toolErr = collectPages(ctx, func(ctx context.Context, cursor string) ([]*mcp.Tool, string, error) {
			res, err := s.ListTools(ctx, &mcp.ListToolsParams{Cursor: cursor})
			if err != nil {
				return nil, "", err
			}
			return res.Tools, res.NextCursor, nil
		})
		return nil
	})
	g.Go(func() error {
		caps.prompts, promptErr = collectPages(ctx, func(ctx context.Context, cursor string) ([]*mcp.Prompt, string, error) {
			res, err := s.ListPrompts(ctx, &mcp.ListPromptsParams{Cursor: cursor})
			if err != nil {
				return nil, "", err
			}
			return res.Prompts, res.NextCursor, nil
		})
		return nil
	})
	g.Go(func() error {
		caps.resources, rscErr = collectPages(ctx, func(ctx context.Context, cursor string) ([]*mcp.Resource, string, error) {
			res, err := s.ListResources(ctx, &mcp.ListResourcesParams{Cursor: cursor})
			if err != nil {
				return nil, "", err
			}
			return res.Resources, res.NextCursor, nil
		})
		return nil
	})
	_ = g.Wait()

	for method, err := range map[string]error{
		methodListTools:     toolErr,
		methodListPrompts:   promptErr,
		methodListResources: rscErr,
	} {
		if err == nil {
			continue
		}
		if caps.errs == nil {
			caps.errs = make(map[string]error, 3)
		}
		caps.errs[method] = err
	}
	return caps
}

// collectPages follows nextCursor until the server stops returning one. Any
// failure discards the partial result.
func collectPages[T any](ctx context.Context, fetch func(context.Context, string) ([]T, string, error)) ([]T, error) {
	out := []T{}
	cursor := ""
	for range maxListPages {
		items, next, err := fetch(ctx, cursor)
		if err != nil {
			return []T{}, err
		}
		out = append(out, items...)
		if next == "" {
			break
		}
		cursor = next
	}
	return out, nil
}
