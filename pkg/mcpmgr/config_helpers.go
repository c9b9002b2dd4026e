package mcpmgr

import (
	"fmt"
	"log/slog"
	"maps"
	"net/url"
	"slices"
	"strings"
)

// Validate checks that the fields required by the transport kind are present
// and well formed. It performs no I/O.
func (c ServerConfig) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return configError("", "server id is required")
	}
	switch c.Transport {
	case TransportStdio:
		if strings.TrimSpace(c.Command) == "" {
			return configError(c.ID, "command is required for stdio transport")
		}
	case TransportSSE, TransportHTTP:
		if strings.TrimSpace(c.URL) == "" {
			return configError(c.ID, fmt.Sprintf("url is required for %s transport", c.Transport))
		}
		if _, err := parseEndpoint(c.URL); err != nil {
			return configError(c.ID, err.Error())
		}
	case "":
		return configError(c.ID, "transport is not specified")
	default:
		return &Error{
			Kind:     KindUnsupportedTransport,
			ServerID: c.ID,
			Message:  fmt.Sprintf("unsupported transport %q (supported: stdio, sse, http)", c.Transport),
		}
	}
	return nil
}

// IsStdio reports whether the config launches a local process.
func (c ServerConfig) IsStdio() bool { return c.Transport == TransportStdio }

// IsRemote reports whether the config dials a URL (sse or http).
func (c ServerConfig) IsRemote() bool {
	return c.Transport == TransportSSE || c.Transport == TransportHTTP
}

// Clone returns a deep copy so callers can hand configs across components
// without sharing maps or slices.
func (c ServerConfig) Clone() ServerConfig {
	out := c
	out.Args = slices.Clone(c.Args)
	out.Env = maps.Clone(c.Env)
	out.Headers = maps.Clone(c.Headers)
	return out
}

// Redacted returns a copy whose credential-bearing header values, env
// values and URL credentials are masked.
func (c ServerConfig) Redacted() ServerConfig {
	out := c.Clone()
	if c.URL != "" {
		out.URL = RedactURL(c.URL)
	}
	out.Headers = RedactHeaders(c.Headers)
	if len(c.Env) > 0 {
		out.Env = make(map[string]string, len(c.Env))
		for k := range c.Env {
			out.Env[k] = redactedValue
		}
	}
	return out
}

// LogValue keeps secrets out of logs: only env keys are emitted, header
// values and URL credentials are masked.
func (c ServerConfig) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("id", c.ID),
		slog.String("name", c.Name),
		slog.String("transport", string(c.Transport)),
	}
	switch c.Transport {
	case TransportStdio:
		attrs = append(attrs,
			slog.String("command", c.Command),
			slog.Any("args", c.Args),
			slog.Any("envKeys", slices.Sorted(maps.Keys(c.Env))),
		)
	default:
		attrs = append(attrs,
			slog.String("url", RedactURL(c.URL)),
			slog.Any("headers", RedactHeaders(c.Headers)),
		)
	}
	return slog.GroupValue(attrs...)
}

func parseEndpoint(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %v", raw, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("invalid URL %q: must be absolute", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid URL %q: scheme must be http or https", raw)
	}
	return u, nil
}
