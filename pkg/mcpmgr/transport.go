package mcpmgr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Transport is the closed set of transports the manager can dial:
// *StdioTransport, *SSETransport and *StreamableTransport. A Transport is
// single use; the supervisor builds a fresh one for every attempt.
type Transport interface {
	Kind() TransportKind
	// Target names the command or URL for error messages.
	Target() string
	// MCP returns the go-sdk transport to hand to mcp.Client.Connect.
	MCP() mcp.Transport
	// Close releases what the transport owns beyond the session: the child
	// process for stdio, pooled connections for HTTP.
	Close() error

	sealed()
}

// TransportOptions carries the manager-wide knobs the factory needs.
type TransportOptions struct {
	HTTPClient *http.Client
	MaxRetries int
	RPCLogger  RPCLogger
}

// BuildTransport validates cfg and constructs the transport for its kind.
// The http kind yields the streamable HTTP transport; the SSE fallback is
// built separately with NewSSETransport.
func BuildTransport(cfg ServerConfig, opts TransportOptions) (Transport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Transport {
	case TransportStdio:
		return NewStdioTransport(cfg, opts), nil
	case TransportSSE:
		return NewSSETransport(cfg, opts), nil
	case TransportHTTP:
		return NewStreamableTransport(cfg, opts), nil
	}
	// Validate rejects every other kind.
	return nil, &Error{Kind: KindUnsupportedTransport, ServerID: cfg.ID,
		Message: fmt.Sprintf("unsupported transport %q (supported: stdio, sse, http)", cfg.Transport)}
}

// StdioTransport launches the server as a child process.
type StdioTransport struct {
	serverID string
	command  string
	cmd      *exec.Cmd
	inner    mcp.Transport
}

// NewStdioTransport prepares cfg.Command without starting it. Env entries are
// appended to the current process environment.
func NewStdioTransport(cfg ServerConfig, opts TransportOptions) *StdioTransport {
	cmd := exec.Command(cfg.Command, cfg.Args...)
	if len(cfg.Env) > 0 {
		env := os.Environ()
		for k, v := range cfg.Env {
			env = append(env, fmt.Sprintf("%s=%s", k, v))
		}
		cmd.Env = env
	}
	var inner mcp.Transport = &mcp.CommandTransport{Command: cmd}
	if opts.RPCLogger != nil {
		inner = &loggingTransport{serverID: cfg.ID, delegate: inner, logger: opts.RPCLogger}
	}
	return &StdioTransport{serverID: cfg.ID, command: cfg.Command, cmd: cmd, inner: inner}
}

func (t *StdioTransport) Kind() TransportKind { return TransportStdio }
func (t *StdioTransport) Target() string      { return fmt.Sprintf("command %q", t.command) }
func (t *StdioTransport) MCP() mcp.Transport  { return t.inner }
func (t *StdioTransport) sealed()             {}

// Close kills the child process if it is still running.
func (t *StdioTransport) Close() error {
	p := t.cmd.Process
	if p == nil {
		return nil
	}
	if err := p.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("mcpmgr: kill %s: %w", t.Target(), err)
	}
	return nil
}

// httpTransport holds what SSE and streamable HTTP share: the endpoint and a
// client whose round tripper injects the configured headers.
type httpTransport struct {
	serverID string
	endpoint string
	client   *http.Client
}

func newHTTPTransport(cfg ServerConfig, opts TransportOptions) httpTransport {
	return httpTransport{
		serverID: cfg.ID,
		endpoint: cfg.URL,
		client:   decorateHTTPClient(opts.HTTPClient, toHTTPHeader(cfg.Headers)),
	}
}

func (t *httpTransport) Target() string { return RedactURL(t.endpoint) }

func (t *httpTransport) Close() error {
	t.client.CloseIdleConnections()
	return nil
}

func (t *httpTransport) wrap(inner mcp.Transport, logger RPCLogger) mcp.Transport {
	if logger == nil {
		return inner
	}
	return &loggingTransport{serverID: t.serverID, delegate: inner, logger: logger}
}

// SSETransport speaks the legacy HTTP+SSE transport.
type SSETransport struct {
	httpTransport
	inner mcp.Transport
}

// NewSSETransport builds an SSE transport from cfg.URL and cfg.Headers
// regardless of cfg.Transport, which is how the HTTP fallback reuses it.
func NewSSETransport(cfg ServerConfig, opts TransportOptions) *SSETransport {
	t := &SSETransport{httpTransport: newHTTPTransport(cfg, opts)}
	t.inner = t.wrap(&mcp.SSEClientTransport{Endpoint: t.endpoint, HTTPClient: t.client}, opts.RPCLogger)
	return t
}

func (t *SSETransport) Kind() TransportKind { return TransportSSE }
func (t *SSETransport) MCP() mcp.Transport  { return t.inner }
func (t *SSETransport) sealed()             {}

// StreamableTransport speaks the streamable HTTP transport.
type StreamableTransport struct {
	httpTransport
	inner mcp.Transport
}

// NewStreamableTransport builds the primary transport for the http kind.
func NewStreamableTransport(cfg ServerConfig, opts TransportOptions) *StreamableTransport {
	t := &StreamableTransport{httpTransport: newHTTPTransport(cfg, opts)}
	t.inner = t.wrap(&mcp.StreamableClientTransport{
		Endpoint:   t.endpoint,
		HTTPClient: t.client,
		MaxRetries: opts.MaxRetries,
	}, opts.RPCLogger)
	return t
}

func (t *StreamableTransport) Kind() TransportKind { return TransportHTTP }
func (t *StreamableTransport) MCP() mcp.Transport  { return t.inner }
func (t *StreamableTransport) sealed()             {}

// decorateHTTPClient copies base and layers the header injector over its
// round tripper. Without a base client each transport gets its own pool so
// Close does not disturb other connections.
func decorateHTTPClient(base *http.Client, headers http.Header) *http.Client {
	var clone http.Client
	next := http.RoundTripper(nil)
	if base != nil {
		clone = *base
		next = base.Transport
	}
	if next == nil {
		if dt, ok := http.DefaultTransport.(*http.Transport); ok {
			next = dt.Clone()
		} else {
			next = http.DefaultTransport
		}
	}
	clone.Transport = &headerDecorator{next: next, headers: headers}
	return &clone
}

type headerDecorator struct {
	next    http.RoundTripper
	headers http.Header
}

func (d *headerDecorator) RoundTrip(req *http.Request) (*http.Response, error) {
	if len(d.headers) == 0 {
		return d.next.RoundTrip(req)
	}
	// RoundTrippers must not modify the caller's request.
	req = req.Clone(req.Context())
	for k, values := range d.headers {
		req.Header.Del(k)
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	return d.next.RoundTrip(req)
}

func (d *headerDecorator) CloseIdleConnections() {
	if c, ok := d.next.(interface{ CloseIdleConnections() }); ok {
		c.CloseIdleConnections()
	}
}

type loggingTransport struct {
	serverID string
	delegate mcp.Transport
	logger   RPCLogger
}

func (t *loggingTransport) Connect(ctx context.Context) (mcp.Connection, error) {
	conn, err := t.delegate.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return &loggingConnection{serverID: t.serverID, delegate: conn, logger: t.logger}, nil
}

type loggingConnection struct {
	serverID string
	delegate mcp.Connection
	logger   RPCLogger
	mu       sync.Mutex
}

func (c *loggingConnection) SessionID() string { return c.delegate.SessionID() }

func (c *loggingConnection) Read(ctx context.Context) (jsonrpc.Message, error) {
	msg, err := c.delegate.Read(ctx)
	if err == nil {
		c.emit(RPCDirectionReceive, msg)
	}
	return msg, err
}

func (c *loggingConnection) Write(ctx context.Context, msg jsonrpc.Message) error {
	if err := c.delegate.Write(ctx, msg); err != nil {
		return err
	}
	c.emit(RPCDirectionSend, msg)
	return nil
}

func (c *loggingConnection) Close() error { return c.delegate.Close() }

func (c *loggingConnection) emit(direction RPCDirection, msg jsonrpc.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	encoded, err := json.Marshal(msg)
	if err != nil {
		encoded = []byte(err.Error())
	}
	c.logger(RPCLogEvent{Direction: direction, Message: encoded, ServerID: c.serverID})
}
