package mcpmgr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/vikashloomba/mcp-connection-manager-go/pkg/mcpmgr")

// Manager supervises connections to MCP servers. Operations on different
// server IDs run concurrently; operations on the same ID must be serialized
// by the caller, otherwise the last one to finish wins.
type Manager struct {
	options  ManagerOptions
	registry Registry
	dialer   Dialer
	logger   *slog.Logger
	metrics  *Metrics
	breakers *breakerSet
	rpcLog   RPCLogger

	listeners listeners
}

// NewManager constructs a Manager. Callers can provide nil options to fall
// back to defaults.
func NewManager(opts *ManagerOptions) *Manager {
	options := opts.normalized()
	m := &Manager{
		options:  options,
		registry: options.Registry,
		dialer:   options.Dialer,
		logger:   options.Logger,
		metrics:  options.Metrics,
		breakers: newBreakerSet(options.Breaker, options.Logger),
	}
	if m.dialer == nil {
		m.dialer = &SDKDialer{
			Implementation: &mcp.Implementation{Name: options.ClientName, Version: options.ClientVersion},
			ClientOptions:  options.ClientOptions,
			OnListChanged:  m.NotifyListChanged,
		}
		m.options.Dialer = m.dialer
	}
	m.rpcLog = m.resolveRPCLogger()
	return m
}

func (m *Manager) resolveRPCLogger() RPCLogger {
	if m.options.RPCLogger != nil {
		return m.options.RPCLogger
	}
	if !m.options.LogJSONRPC {
		return nil
	}
	return func(ev RPCLogEvent) {
		m.logger.Debug("jsonrpc",
			slog.String("server", ev.ServerID),
			slog.String("direction", string(ev.Direction)),
			slog.String("message", string(ev.Message)))
	}
}

func (m *Manager) transportOptions() TransportOptions {
	return TransportOptions{
		HTTPClient: m.options.HTTPClient,
		MaxRetries: m.options.MaxRetries,
		RPCLogger:  m.rpcLog,
	}
}

// Connect dials cfg and returns a snapshot of the result. It never fails:
// errors are reported through the snapshot's IsConnected, LastError and Err.
// Any existing connection for cfg.ID is closed first.
func (m *Manager) Connect(ctx context.Context, cfg ServerConfig) ServerSnapshot {
	cfg = cfg.Clone()
	ctx, span := tracer.Start(ctx, "mcpmgr.Connect", trace.WithAttributes(
		attribute.String("mcp.server.id", cfg.ID),
		attribute.String("mcp.transport", string(cfg.Transport)),
	))
	defer span.End()

	logger := m.logger.With(slog.String("server", cfg.ID))
	logger.Info("connecting to MCP server", slog.Any("config", cfg))

	if cfg.ID != "" {
		m.supersede(cfg.ID, logger)
	}

	h, err := m.establish(ctx, cfg, logger)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("failed to connect to MCP server",
			slog.String("error", err.Error()),
			slog.String("kind", string(KindOf(err))))
		return failedSnapshot(cfg, err)
	}

	m.registry.Put(cfg.ID, h)
	m.breakers.reset(cfg.ID)
	m.metrics.setConnected(len(m.registry.ListIDs()))
	span.SetAttributes(attribute.String("mcp.connected_via", string(h.Via())))

	caps := m.discover(ctx, h)
	snap := connectedSnapshot(h, caps)
	logger.Info("connected to MCP server",
		slog.String("via", string(h.Via())),
		slog.String("serverName", snap.Info.Name),
		slog.Int("tools", len(snap.Tools)),
		slog.Int("prompts", len(snap.Prompts)),
		slog.Int("resources", len(snap.Resources)))
	return snap
}

// supersede closes and removes an existing handle for id.
func (m *Manager) supersede(id string, logger *slog.Logger) {
	prev, ok := m.registry.Remove(id)
	if !ok {
		return
	}
	logger.Info("closing existing connection before reconnecting")
	m.closeHandle(prev, logger)
}

// establish builds the primary transport, dials it and applies the HTTP to
// SSE fallback.
func (m *Manager) establish(ctx context.Context, cfg ServerConfig, logger *slog.Logger) (*Handle, error) {
	primary, err := BuildTransport(cfg, m.transportOptions())
	if err != nil {
		return nil, err
	}
	if cfg.IsRemote() && len(cfg.Headers) > 0 {
		logger.Debug("using request headers", slog.Any("headers", RedactHeaders(cfg.Headers)))
	}

	session, err := m.attempt(ctx, cfg.ID, primary)
	if err == nil {
		return newHandle(cfg, session, primary), nil
	}
	if cfg.Transport != TransportHTTP || errors.Is(err, ErrCanceled) {
		return nil, err
	}

	logger.Warn("streamable HTTP connect failed, retrying over SSE", slog.String("error", err.Error()))
	m.metrics.observeFallback()
	fallback := NewSSETransport(cfg, m.transportOptions())
	session, fbErr := m.attempt(ctx, cfg.ID, fallback)
	if fbErr == nil {
		return newHandle(cfg, session, fallback), nil
	}
	return nil, fallbackExhausted(cfg, err, fbErr)
}

func fallbackExhausted(cfg ServerConfig, primary, fallback error) *Error {
	hint := HintOf(primary)
	if hint == "" {
		hint = HintOf(fallback)
	}
	return &Error{
		Kind:     KindTransportFallbackExhausted,
		ServerID: cfg.ID,
		Message: fmt.Sprintf("could not connect to %s: streamable HTTP: %s; SSE fallback: %s",
			RedactURL(cfg.URL), describeCause(primary), describeCause(fallback)),
		Hint:           hint,
		Cause:          errors.Join(primary, fallback),
		causeInMessage: true,
	}
}

func newHandle(cfg ServerConfig, s Session, t Transport) *Handle {
	return &Handle{
		ServerID:    cfg.ID,
		Config:      cfg,
		Session:     s,
		Transport:   t,
		ConnectedAt: time.Now(),
	}
}

// attempt dials t once under the connect deadline and classifies failures.
func (m *Manager) attempt(ctx context.Context, serverID string, t Transport) (Session, error) {
	start := time.Now()
	session, err := m.dialWithDeadline(ctx, serverID, t)
	if err != nil {
		err = classifyConnectError(serverID, t.Kind(), t.Target(), m.options.ConnectTimeout, err)
	}
	m.metrics.observeConnect(t.Kind(), err, time.Since(start))
	return session, err
}

// dialWithDeadline runs the dial and returns whichever comes first: its
// result or the deadline. On any failure it owns closing t. A session that
// arrives after the deadline is closed as soon as it shows up.
func (m *Manager) dialWithDeadline(ctx context.Context, serverID string, t Transport) (Session, error) {
	ctx, cancel := context.WithTimeout(ctx, m.options.ConnectTimeout)
	defer cancel()

	type result struct {
		session Session
		err     error
	}
	done := make(chan result, 1)
	go func() {
		s, err := m.dialer.Dial(ctx, serverID, t)
		done <- result{s, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			m.closeTransport(t, serverID)
			return nil, r.err
		}
		return r.session, nil
	case <-ctx.Done():
		go func() {
			r := <-done
			if r.session != nil {
				_ = r.session.Close()
			}
			m.closeTransport(t, serverID)
		}()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, timeoutError(serverID, t.Target(), m.options.ConnectTimeout)
		}
		return nil, ctx.Err()
	}
}

func (m *Manager) closeTransport(t Transport, serverID string) {
	if err := t.Close(); err != nil {
		m.logger.Warn("failed to close transport",
			slog.String("server", serverID),
			slog.String("error", err.Error()))
	}
}

func (m *Manager) closeHandle(h *Handle, logger *slog.Logger) {
	sessionErr, transportErr := h.close()
	if sessionErr != nil {
		logger.Warn("failed to close MCP client", slog.String("error", sessionErr.Error()))
	}
	if transportErr != nil {
		logger.Warn("failed to close transport", slog.String("error", transportErr.Error()))
	}
}

// discover bounds capability listing by the connect timeout.
func (m *Manager) discover(ctx context.Context, h *Handle) capabilities {
	ctx, cancel := context.WithTimeout(ctx, m.options.ConnectTimeout)
	defer cancel()
	caps := discover(ctx, h.Session)
	for method, err := range caps.errs {
		m.logger.Debug("capability listing failed",
			slog.String("server", h.ServerID),
			slog.String("method", method),
			slog.String("error", err.Error()))
	}
	return caps
}

// Disconnect closes the session and transport for serverID. Close failures
// are logged; an unknown ID is a no-op.
func (m *Manager) Disconnect(ctx context.Context, serverID string) {
	_, span := tracer.Start(ctx, "mcpmgr.Disconnect", trace.WithAttributes(
		attribute.String("mcp.server.id", serverID)))
	defer span.End()

	logger := m.logger.With(slog.String("server", serverID))
	h, ok := m.registry.Remove(serverID)
	if !ok {
		logger.Warn("server is already disconnected")
		return
	}
	m.closeHandle(h, logger)
	m.breakers.reset(serverID)
	m.metrics.setConnected(len(m.registry.ListIDs()))
	logger.Info("disconnected from MCP server")
}

// DisconnectAll disconnects every connected server.
func (m *Manager) DisconnectAll(ctx context.Context) {
	for _, id := range m.ListIDs() {
		m.Disconnect(ctx, id)
	}
}

// Describe pings the server and re-runs capability discovery on a live
// connection. The connection is treated as dead when the ping fails, or when
// every listing fails, for a reason other than the server not implementing
// the method: it is closed, removed and Describe reports false. Failures
// caused by ctx ending leave the connection in place.
func (m *Manager) Describe(ctx context.Context, serverID string) (ServerSnapshot, bool) {
	ctx, span := tracer.Start(ctx, "mcpmgr.Describe", trace.WithAttributes(
		attribute.String("mcp.server.id", serverID)))
	defer span.End()

	h, ok := m.registry.Get(serverID)
	if !ok {
		return ServerSnapshot{}, false
	}
	if err := m.ping(ctx, h); err != nil {
		if ctx.Err() != nil {
			return ServerSnapshot{}, false
		}
		m.dropDead(h, slog.String("ping", err.Error()))
		span.SetStatus(codes.Error, "connection dead")
		return ServerSnapshot{}, false
	}
	caps := m.discover(ctx, h)
	if caps.allFailed() && ctx.Err() == nil {
		m.dropDead(h, slog.Any("errors", caps.errorStrings()))
		span.SetStatus(codes.Error, "connection dead")
		return ServerSnapshot{}, false
	}
	return connectedSnapshot(h, caps), true
}

// ping reports a liveness failure. A server that does not implement ping is
// not considered dead.
func (m *Manager) ping(ctx context.Context, h *Handle) error {
	ctx, cancel := context.WithTimeout(ctx, min(pingTimeout, m.options.ConnectTimeout))
	defer cancel()
	err := h.Session.Ping(ctx, nil)
	if err == nil || isMethodUnavailableError(err) {
		return nil
	}
	return err
}

// dropDead closes h and removes it unless a concurrent Connect already
// replaced it.
func (m *Manager) dropDead(h *Handle, reason slog.Attr) {
	logger := m.logger.With(slog.String("server", h.ServerID))
	logger.Warn("connection appears dead, removing it", reason)
	if cur, ok := m.registry.Remove(h.ServerID); ok && cur != h {
		m.registry.Put(h.ServerID, cur)
	}
	m.closeHandle(h, logger)
	m.metrics.setConnected(len(m.registry.ListIDs()))
}

// ListIDs returns the IDs of connected servers in sorted order.
func (m *Manager) ListIDs() []string {
	ids := m.registry.ListIDs()
	sort.Strings(ids)
	return ids
}

// IsConnected reports whether a live handle exists for serverID.
func (m *Manager) IsConnected(serverID string) bool {
	_, ok := m.registry.Get(serverID)
	return ok
}

// invoke looks up the handle and runs fn through the server's breaker.
// A missing handle is ErrNotConnected; any other failure is ErrToolCall.
func (m *Manager) invoke(ctx context.Context, serverID, op string, attrs []attribute.KeyValue, fn func(context.Context, Session) (*ToolCallResult, error)) (*ToolCallResult, error) {
	attrs = append(attrs, attribute.String("mcp.server.id", serverID), attribute.String("mcp.method", op))
	ctx, span := tracer.Start(ctx, "mcpmgr."+op, trace.WithAttributes(attrs...))
	defer span.End()

	start := time.Now()
	h, ok := m.registry.Get(serverID)
	if !ok {
		err := notConnected(serverID)
		span.SetStatus(codes.Error, err.Error())
		m.metrics.observeInvocation(op, err, 0)
		return nil, err
	}
	res, err := execute(m.breakers, serverID, func() (*ToolCallResult, error) {
		return fn(ctx, h.Session)
	})
	if err != nil {
		err = toolCallError(serverID, op, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.logger.Warn("MCP invocation failed",
			slog.String("server", serverID),
			slog.String("method", op),
			slog.String("error", err.Error()))
	}
	m.metrics.observeInvocation(op, err, time.Since(start))
	return res, err
}

// CallTool invokes a tool and normalizes its content. A result flagged
// isError by the server is returned without an error.
func (m *Manager) CallTool(ctx context.Context, serverID, name string, args map[string]any) (*ToolCallResult, error) {
	if args == nil {
		args = map[string]any{}
	}
	attrs := []attribute.KeyValue{attribute.String("mcp.tool", name)}
	return m.invoke(ctx, serverID, "tools/call", attrs, func(ctx context.Context, s Session) (*ToolCallResult, error) {
		res, err := s.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
		if err != nil {
			return nil, err
		}
		return &ToolCallResult{
			Content:           NormalizeContents(res.Content),
			IsError:           res.IsError,
			StructuredContent: res.StructuredContent,
		}, nil
	})
}

// GetPrompt renders a prompt. Argument values are coerced to strings and
// every message becomes one text item.
func (m *Manager) GetPrompt(ctx context.Context, serverID, name string, args map[string]any) (*ToolCallResult, error) {
	attrs := []attribute.KeyValue{attribute.String("mcp.prompt", name)}
	return m.invoke(ctx, serverID, "prompts/get", attrs, func(ctx context.Context, s Session) (*ToolCallResult, error) {
		res, err := s.GetPrompt(ctx, &mcp.GetPromptParams{Name: name, Arguments: coercePromptArgs(args)})
		if err != nil {
			return nil, err
		}
		out := &ToolCallResult{Content: make([]ContentItem, 0, len(res.Messages))}
		for _, msg := range res.Messages {
			out.Content = append(out.Content, promptMessageItem(msg))
		}
		return out, nil
	})
}

// ReadResource reads uri and returns one text item per content entry.
func (m *Manager) ReadResource(ctx context.Context, serverID, uri string) (*ToolCallResult, error) {
	attrs := []attribute.KeyValue{attribute.String("mcp.resource.uri", uri)}
	return m.invoke(ctx, serverID, "resources/read", attrs, func(ctx context.Context, s Session) (*ToolCallResult, error) {
		res, err := s.ReadResource(ctx, &mcp.ReadResourceParams{URI: uri})
		if err != nil {
			return nil, err
		}
		out := &ToolCallResult{Content: make([]ContentItem, 0, len(res.Contents))}
		for _, rc := range res.Contents {
			out.Content = append(out.Content, resourceContentsItem(rc))
		}
		return out, nil
	})
}

// BreakerState reports the circuit breaker state of serverID ("closed",
// "half-open" or "open").
func (m *Manager) BreakerState(serverID string) string {
	return m.breakers.state(serverID).String()
}
