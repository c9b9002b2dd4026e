// Package mcpmgr supervises client connections to Model Context Protocol (MCP)
// servers on top of the modelcontextprotocol/go-sdk client. It validates
// server configurations, builds the stdio, SSE or streamable HTTP transport,
// bounds every connect attempt by a fixed deadline, falls back from
// streamable HTTP to SSE, and keeps live connections in an injected Registry.
//
// # Core entry points
//
//   - Manager is the long-lived orchestration type. Construct it with
//     NewManager, then call Connect, Describe and Disconnect. Connect never
//     returns an error; the returned ServerSnapshot carries IsConnected,
//     LastError and a typed Err.
//   - ServerConfig declares how a server is launched (stdio) or reached (sse,
//     http). Validate reports an ErrConfig error without doing any I/O.
//   - CallTool, GetPrompt and ReadResource dispatch against a connected server
//     and normalize the returned payloads into ContentItem values.
//   - OnListChanged subscribes to servers announcing new tools, prompts or
//     resources.
//
// Errors are *Error values; branch on them with errors.Is against the Err*
// sentinels or with KindOf. Hints on the errors are meant for end users.
//
// Credentials never reach logs, error messages or snapshots in full: see
// RedactHeaders, RedactURL and ServerConfig.LogValue.
package mcpmgr
