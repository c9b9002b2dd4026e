package mcpmgr

import (
	"log/slog"
	"sync"
)

// Notification methods a server sends when its capability lists change.
const (
	NotifyToolsChanged     = "notifications/tools/list_changed"
	NotifyPromptsChanged   = "notifications/prompts/list_changed"
	NotifyResourcesChanged = "notifications/resources/list_changed"
)

// ListChange reports that a connected server changed one of its lists.
type ListChange struct {
	ServerID string
	Method   string
}

type listeners struct {
	mu  sync.Mutex
	fns []func(ListChange)
}

func (l *listeners) add(fn func(ListChange)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fns = append(l.fns, fn)
}

func (l *listeners) snapshot() []func(ListChange) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append(([]func(ListChange))(nil), l.fns...)
}

// OnListChanged registers fn to run whenever a connected server reports a
// tools, prompts or resources list change. Listeners run off the session's
// read loop, so they may call back into the Manager.
func (m *Manager) OnListChanged(fn func(ListChange)) {
	m.listeners.add(fn)
}

// NotifyListChanged delivers a list change for serverID to the registered
// listeners. The default dialer calls it from the session's notification
// handlers; custom dialers may call it too. Changes for servers that are no
// longer connected are dropped.
func (m *Manager) NotifyListChanged(serverID, method string) {
	if !m.IsConnected(serverID) {
		return
	}
	fns := m.listeners.snapshot()
	if len(fns) == 0 {
		return
	}
	m.logger.Debug("server list changed",
		slog.String("server", serverID),
		slog.String("method", method))
	change := ListChange{ServerID: serverID, Method: method}
	go func() {
		for _, fn := range fns {
			fn(change)
		}
	}()
}
