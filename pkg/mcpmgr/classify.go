package mcpmgr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

const (
	hintTimeout = "Check that the server is running, the URL is correct and no firewall blocks the connection."
	hintRefused = "Nothing is listening at the configured address; start the server or fix the port."
	hintHost    = "The host name could not be resolved; check the URL for typos and your DNS/network settings."
	hintAuth    = "The server rejected the credentials. Add an Authorization header such as \"Authorization: Bearer <TOKEN>\"."
	hintToken   = "The access token is invalid or expired; issue a new token and update the Authorization header."
	hintCommand = "Check that the command exists, is executable and speaks MCP over stdio."
	hintProto   = "The server answered but the MCP handshake failed; check that the URL points at an MCP endpoint of the selected transport."
)

func timeoutError(serverID, target string, d time.Duration) *Error {
	return &Error{
		Kind:     KindConnectionTimeout,
		ServerID: serverID,
		Message:  fmt.Sprintf("connection to %s timed out after %s", target, d),
		Hint:     hintTimeout,
		Cause:    context.DeadlineExceeded,
	}
}

// classifyConnectError maps a failed connect attempt onto the error taxonomy.
// Typed causes win over text. Text matching runs on the message with every
// URL removed, so digits in a port or path never read as a status code.
func classifyConnectError(serverID string, kind TransportKind, target string, timeout time.Duration, err error) *Error {
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}
	switch {
	case errors.Is(err, context.Canceled):
		return canceledError(serverID, target, err)
	case errors.Is(err, context.DeadlineExceeded) || isNetTimeout(err):
		return timeoutCause(serverID, target, timeout, err)
	case errors.Is(err, syscall.ECONNREFUSED):
		return refusedError(serverID, target, err)
	case isDNSError(err):
		return hostNotFoundError(serverID, target, err)
	case errors.Is(err, exec.ErrNotFound):
		return protocolError(serverID, kind, target, hintCommand, err)
	}

	text := strings.ToLower(urlInText.ReplaceAllString(err.Error(), ""))
	switch {
	case containsAny(text, "invalid_token"):
		return authError(serverID, target, hintToken, err)
	case containsAny(text, "401 unauthorized", "403 forbidden", "status 401", "status 403",
		"status code 401", "status code 403", "unauthorized", "forbidden"):
		return authError(serverID, target, hintAuth, err)
	case containsAny(text, "504 gateway timeout", "status 504", "status code 504",
		"gateway timeout", "timed out", "i/o timeout", "deadline exceeded"):
		return timeoutCause(serverID, target, timeout, err)
	case containsAny(text, "connection refused", "econnrefused"):
		return refusedError(serverID, target, err)
	case containsAny(text, "no such host", "enotfound", "getaddrinfo"):
		return hostNotFoundError(serverID, target, err)
	}
	hint := hintProto
	if kind == TransportStdio {
		hint = hintCommand
	}
	return protocolError(serverID, kind, target, hint, err)
}

func containsAny(s string, markers ...string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

func canceledError(serverID, target string, cause error) *Error {
	return &Error{Kind: KindCanceled, ServerID: serverID,
		Message: fmt.Sprintf("connection to %s was canceled", target), Cause: cause}
}

func timeoutCause(serverID, target string, timeout time.Duration, cause error) *Error {
	e := timeoutError(serverID, target, timeout)
	e.Cause = cause
	return e
}

func refusedError(serverID, target string, cause error) *Error {
	return &Error{Kind: KindConnectionRefused, ServerID: serverID,
		Message: fmt.Sprintf("connection to %s refused", target), Hint: hintRefused, Cause: cause}
}

func hostNotFoundError(serverID, target string, cause error) *Error {
	return &Error{Kind: KindHostNotFound, ServerID: serverID,
		Message: fmt.Sprintf("host not found for %s", target), Hint: hintHost, Cause: cause}
}

func authError(serverID, target, hint string, cause error) *Error {
	return &Error{Kind: KindAuthentication, ServerID: serverID,
		Message: fmt.Sprintf("authentication to %s failed", target), Hint: hint, Cause: cause}
}

func protocolError(serverID string, kind TransportKind, target, hint string, cause error) *Error {
	return &Error{Kind: KindTransportProtocol, ServerID: serverID,
		Message: fmt.Sprintf("%s transport to %s failed", transportLabel(kind), target), Hint: hint, Cause: cause}
}

func isNetTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func isDNSError(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

func transportLabel(kind TransportKind) string {
	switch kind {
	case TransportHTTP:
		return "streamable HTTP"
	case TransportSSE:
		return "SSE"
	default:
		return string(kind)
	}
}

// isMethodUnavailableError reports whether err is a server saying it does not
// implement a method, as opposed to a broken connection.
func isMethodUnavailableError(err error) bool {
	if err == nil {
		return false
	}
	lower := strings.ToLower(err.Error())
	for _, marker := range []string{
		"method not found",
		"-32601",
		"not implemented",
		"unimplemented",
		"unsupported",
		"does not support",
	} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
