package mcpmgr

import (
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerSettings tunes the per-server circuit breaker wrapped around tool,
// prompt and resource calls. Only transport and protocol failures count;
// a tool result flagged isError is a successful call.
type BreakerSettings struct {
	Disabled bool
	// MaxRequests allowed through while half-open.
	MaxRequests uint32
	// Interval is the closed-state window after which counts reset.
	Interval time.Duration
	// Timeout is how long the breaker stays open before probing again.
	Timeout time.Duration
	// MinRequests and FailureRatio decide when to trip.
	MinRequests  uint32
	FailureRatio float64
}

func (s BreakerSettings) withDefaults() BreakerSettings {
	if s.MaxRequests == 0 {
		s.MaxRequests = 3
	}
	if s.Interval <= 0 {
		s.Interval = 10 * time.Second
	}
	if s.Timeout <= 0 {
		s.Timeout = 30 * time.Second
	}
	if s.MinRequests == 0 {
		s.MinRequests = 5
	}
	if s.FailureRatio <= 0 {
		s.FailureRatio = 0.6
	}
	return s
}

type breakerSet struct {
	settings BreakerSettings
	logger   *slog.Logger

	mu       sync.RWMutex
	breakers map[string]*gobreaker.CircuitBreaker
}

func newBreakerSet(settings BreakerSettings, logger *slog.Logger) *breakerSet {
	return &breakerSet{
		settings: settings.withDefaults(),
		logger:   logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (b *breakerSet) get(serverID string) *gobreaker.CircuitBreaker {
	b.mu.RLock()
	cb, ok := b.breakers[serverID]
	b.mu.RUnlock()
	if ok {
		return cb
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if cb, ok := b.breakers[serverID]; ok {
		return cb
	}
	s := b.settings
	cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        serverID,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= s.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.logger.Warn("circuit breaker state changed",
				slog.String("server", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})
	b.breakers[serverID] = cb
	return cb
}

// execute runs fn through the server's breaker. With the breaker disabled fn
// runs directly.
func execute[T any](b *breakerSet, serverID string, fn func() (T, error)) (T, error) {
	if b == nil || b.settings.Disabled {
		return fn()
	}
	out, err := b.get(serverID).Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out.(T), nil
}

// reset forgets the breaker of a server so a fresh connection starts closed.
func (b *breakerSet) reset(serverID string) {
	if b == nil {
		return
	}
	b.mu.Lock()
	delete(b.breakers, serverID)
	b.mu.Unlock()
}

// state reports the breaker state for diagnostics.
func (b *breakerSet) state(serverID string) gobreaker.State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if cb, ok := b.breakers[serverID]; ok {
		return cb.State()
	}
	return gobreaker.StateClosed
}
