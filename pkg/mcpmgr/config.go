package mcpmgr

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// DefaultConnectTimeout bounds every connect attempt, primary and fallback.
const DefaultConnectTimeout = 30 * time.Second

const pingTimeout = 5 * time.Second

// TransportKind identifies the transport family a ServerConfig asks for.
type TransportKind string

const (
	TransportStdio TransportKind = "stdio"
	TransportSSE   TransportKind = "sse"
	TransportHTTP  TransportKind = "http"
)

// RPCDirection represents the direction of an observed JSON-RPC message.
type RPCDirection string

const (
	RPCDirectionSend    RPCDirection = "send"
	RPCDirectionReceive RPCDirection = "receive"
)

// RPCLogEvent encapsulates JSON-RPC traffic for custom logging.
type RPCLogEvent struct {
	Direction RPCDirection
	Message   []byte
	ServerID  string
}

// RPCLogger is invoked for each JSON-RPC message when logging is enabled.
type RPCLogger func(RPCLogEvent)

// ServerConfig describes one MCP server. Transport decides which of the
// remaining fields are required: Command for stdio, URL for sse and http.
type ServerConfig struct {
	ID        string            `json:"id" yaml:"id"`
	Name      string            `json:"name" yaml:"name"`
	Transport TransportKind     `json:"transport" yaml:"transport"`
	Command   string            `json:"command,omitempty" yaml:"command,omitempty"`
	Args      []string          `json:"args,omitempty" yaml:"args,omitempty"`
	Env       map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	URL       string            `json:"url,omitempty" yaml:"url,omitempty"`
	Headers   map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`

	// IsActive and the timestamps are owned by the config store; the manager
	// ignores them.
	IsActive  bool      `json:"isActive" yaml:"isActive"`
	CreatedAt time.Time `json:"createdAt,omitzero" yaml:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitzero" yaml:"updatedAt,omitempty"`
}

// ManagerOptions configures a Manager instance.
type ManagerOptions struct {
	// ClientName is advertised during initialization. Defaults to
	// "mcp-connection-manager".
	ClientName string
	// ClientVersion is the semantic version reported to servers.
	ClientVersion string
	// ConnectTimeout bounds each connect attempt. Defaults to
	// DefaultConnectTimeout.
	ConnectTimeout time.Duration
	// ClientOptions are passed to every mcp.Client the manager creates.
	ClientOptions mcp.ClientOptions
	// HTTPClient is the base client for sse and http transports. Configured
	// headers are layered on top of its transport.
	HTTPClient *http.Client
	// MaxRetries is handed to the streamable HTTP transport.
	MaxRetries int
	// LogJSONRPC logs every JSON-RPC message at debug level.
	LogJSONRPC bool
	// RPCLogger receives JSON-RPC traffic; it takes precedence over LogJSONRPC.
	RPCLogger RPCLogger
	// Registry stores live handles. Defaults to a fresh in-memory registry.
	Registry Registry
	// Dialer opens protocol sessions. Defaults to the go-sdk client.
	Dialer Dialer
	// Logger receives structured diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
	// Metrics records connect and invocation outcomes. Nil disables metrics.
	Metrics *Metrics
	// Breaker configures the per-server circuit breaker around invocations.
	Breaker BreakerSettings
}

func (o *ManagerOptions) normalized() ManagerOptions {
	if o == nil {
		o = &ManagerOptions{}
	}
	opts := *o
	if opts.ClientName == "" {
		opts.ClientName = "mcp-connection-manager"
	}
	if opts.ClientVersion == "" {
		opts.ClientVersion = "1.0.0"
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.Registry == nil {
		opts.Registry = NewMemoryRegistry()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return opts
}
