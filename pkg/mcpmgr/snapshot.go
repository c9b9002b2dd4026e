package mcpmgr

import (
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const unknownInfo = "Unknown"

// ServerInfo is what the server reported about itself during initialization.
type ServerInfo struct {
	Name            string                  `json:"name"`
	Version         string                  `json:"version"`
	Title           string                  `json:"title,omitempty"`
	ProtocolVersion string                  `json:"protocolVersion,omitempty"`
	Instructions    string                  `json:"instructions,omitempty"`
	Capabilities    *mcp.ServerCapabilities `json:"capabilities,omitempty"`
}

// ServerSnapshot is the point-in-time result of Connect and Describe. It is a
// value: later changes on the connection produce a new snapshot.
type ServerSnapshot struct {
	// Config is the originating config with credentials redacted.
	Config      ServerConfig    `json:"config"`
	Info        ServerInfo      `json:"info"`
	Tools       []*mcp.Tool     `json:"tools"`
	Prompts     []*mcp.Prompt   `json:"prompts"`
	Resources   []*mcp.Resource `json:"resources"`
	IsConnected bool            `json:"isConnected"`
	LastError   string          `json:"lastError,omitempty"`
	ErrorKind   ErrorKind       `json:"errorKind,omitempty"`
	Hint        string          `json:"hint,omitempty"`
	// ConnectedVia differs from Config.Transport after an HTTP to SSE fallback.
	ConnectedVia    TransportKind     `json:"connectedVia,omitempty"`
	ConnectedAt     time.Time         `json:"connectedAt,omitzero"`
	DiscoveryErrors map[string]string `json:"discoveryErrors,omitempty"`

	// Err is the typed failure behind LastError.
	Err error `json:"-"`
}

func failedSnapshot(cfg ServerConfig, err error) ServerSnapshot {
	return ServerSnapshot{
		Config:    cfg.Redacted(),
		Info:      ServerInfo{Name: unknownInfo, Version: unknownInfo},
		Tools:     []*mcp.Tool{},
		Prompts:   []*mcp.Prompt{},
		Resources: []*mcp.Resource{},
		LastError: err.Error(),
		ErrorKind: KindOf(err),
		Hint:      HintOf(err),
		Err:       err,
	}
}

func connectedSnapshot(h *Handle, caps capabilities) ServerSnapshot {
	return ServerSnapshot{
		Config:          h.Config.Redacted(),
		Info:            serverInfo(h.Session),
		Tools:           caps.tools,
		Prompts:         caps.prompts,
		Resources:       caps.resources,
		IsConnected:     true,
		ConnectedVia:    h.Via(),
		ConnectedAt:     h.ConnectedAt,
		DiscoveryErrors: caps.errorStrings(),
	}
}

func serverInfo(s Session) ServerInfo {
	info := ServerInfo{Name: unknownInfo, Version: unknownInfo}
	ir, ok := s.(initializeResulter)
	if !ok {
		return info
	}
	res := ir.InitializeResult()
	if res == nil {
		return info
	}
	info.ProtocolVersion = res.ProtocolVersion
	info.Instructions = res.Instructions
	info.Capabilities = res.Capabilities
	if impl := res.ServerInfo; impl != nil {
		if impl.Name != "" {
			info.Name = impl.Name
		}
		if impl.Version != "" {
			info.Version = impl.Version
		}
		info.Title = impl.Title
	}
	return info
}
