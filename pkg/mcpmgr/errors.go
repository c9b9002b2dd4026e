package mcpmgr

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so callers can branch on them.
type ErrorKind string

const (
	KindConfig                     ErrorKind = "config"
	KindUnsupportedTransport       ErrorKind = "unsupported_transport"
	KindConnectionTimeout          ErrorKind = "connection_timeout"
	KindConnectionRefused          ErrorKind = "connection_refused"
	KindHostNotFound               ErrorKind = "host_not_found"
	KindTransportProtocol          ErrorKind = "transport_protocol"
	KindAuthentication             ErrorKind = "authentication"
	KindTransportFallbackExhausted ErrorKind = "transport_fallback_exhausted"
	KindNotConnected               ErrorKind = "not_connected"
	KindToolCall                   ErrorKind = "tool_call"
	KindCanceled                   ErrorKind = "canceled"
)

// Error is the error type returned by the manager. Hint carries actionable
// guidance for the user; it is never part of Error().
type Error struct {
	Kind     ErrorKind
	ServerID string
	Message  string
	Hint     string
	Cause    error

	// causeInMessage suppresses appending Cause when Message already
	// spells it out.
	causeInMessage bool
}

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrConfig                     = &Error{Kind: KindConfig}
	ErrUnsupportedTransport       = &Error{Kind: KindUnsupportedTransport}
	ErrConnectionTimeout          = &Error{Kind: KindConnectionTimeout}
	ErrConnectionRefused          = &Error{Kind: KindConnectionRefused}
	ErrHostNotFound               = &Error{Kind: KindHostNotFound}
	ErrTransportProtocol          = &Error{Kind: KindTransportProtocol}
	ErrAuthentication             = &Error{Kind: KindAuthentication}
	ErrTransportFallbackExhausted = &Error{Kind: KindTransportFallbackExhausted}
	ErrNotConnected               = &Error{Kind: KindNotConnected}
	ErrToolCall                   = &Error{Kind: KindToolCall}
	ErrCanceled                   = &Error{Kind: KindCanceled}
)

func (e *Error) Error() string {
	return "mcpmgr: " + e.detail()
}

// detail is the message without the package prefix.
func (e *Error) detail() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Cause != nil && !e.causeInMessage {
		return fmt.Sprintf("%s: %s", scrubURLs(msg), describeCause(e.Cause))
	}
	return scrubURLs(msg)
}

func describeCause(err error) string {
	if e, ok := err.(*Error); ok {
		return e.detail()
	}
	return scrubURLs(err.Error())
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches sentinels by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Cause == nil && t.Kind == e.Kind
}

// WithHint sets the hint and returns the error for chaining.
func (e *Error) WithHint(hint string) *Error {
	e.Hint = hint
	return e
}

// KindOf returns the kind of the first *Error in err's chain, or "" when
// there is none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// HintOf returns the hint of the first *Error in err's chain that has one.
func HintOf(err error) string {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Hint != "" {
			return e.Hint
		}
		err = errors.Unwrap(err)
	}
	return ""
}

func configError(serverID, msg string) *Error {
	return &Error{Kind: KindConfig, ServerID: serverID, Message: msg}
}

func notConnected(serverID string) *Error {
	return &Error{
		Kind:     KindNotConnected,
		ServerID: serverID,
		Message:  fmt.Sprintf("server %q is not connected", serverID),
		Hint:     "Connect the server before invoking tools, prompts or resources.",
	}
}

func toolCallError(serverID, op string, cause error) *Error {
	return &Error{
		Kind:     KindToolCall,
		ServerID: serverID,
		Message:  fmt.Sprintf("%s on %q failed", op, serverID),
		Cause:    cause,
	}
}
