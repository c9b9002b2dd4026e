package catalog

import (
	"fmt"
	"strings"
)

// Namespace maps server-local tool names to catalog-wide function names and
// back. Implementations must be deterministic and collision-free for a given
// serverID/name pair.
type Namespace interface {
	FunctionName(serverID, toolName string) string
	// Split reverses FunctionName. It reports false for names the namespace
	// did not produce.
	Split(functionName string) (serverID, toolName string, ok bool)
}

// ServerPrefixNamespace prefixes every tool with the originating server ID,
// separating the two with a configurable delimiter (defaults to "__", which
// stays within the character set function-calling APIs accept).
type ServerPrefixNamespace struct {
	Separator string
}

func (s ServerPrefixNamespace) separator() string {
	if s.Separator == "" {
		return "__"
	}
	return s.Separator
}

func (s ServerPrefixNamespace) FunctionName(serverID, toolName string) string {
	return fmt.Sprintf("%s%s%s", serverID, s.separator(), toolName)
}

// Split cuts at the first separator, so server IDs must not contain it while
// tool names may.
func (s ServerPrefixNamespace) Split(functionName string) (string, string, bool) {
	serverID, toolName, ok := strings.Cut(functionName, s.separator())
	if !ok || serverID == "" || toolName == "" {
		return "", "", false
	}
	return serverID, toolName, true
}
