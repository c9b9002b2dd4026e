package mcpmgr

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors the manager updates. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	connectAttempts    *prometheus.CounterVec
	connectDuration    *prometheus.HistogramVec
	fallbacks          prometheus.Counter
	invocations        *prometheus.CounterVec
	invocationDuration *prometheus.HistogramVec
	connected          prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg. Collectors
// that are already registered (a second Manager in the same process) are
// reused.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		connectAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mcpconn_connect_attempts_total",
				Help: "Connect attempts by transport and outcome",
			},
			[]string{"transport", "outcome"},
		),
		connectDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mcpconn_connect_duration_seconds",
				Help:    "Duration of connect attempts",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"transport"},
		),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mcpconn_transport_fallbacks_total",
			Help: "HTTP connects that were retried over SSE",
		}),
		invocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mcpconn_invocations_total",
				Help: "Tool, prompt and resource invocations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		invocationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mcpconn_invocation_duration_seconds",
				Help:    "Duration of tool, prompt and resource invocations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mcpconn_connected_servers",
			Help: "Servers with a live connection",
		}),
	}
	if reg == nil {
		return m
	}
	m.connectAttempts = register(reg, m.connectAttempts)
	m.connectDuration = register(reg, m.connectDuration)
	m.fallbacks = register(reg, m.fallbacks)
	m.invocations = register(reg, m.invocations)
	m.invocationDuration = register(reg, m.invocationDuration)
	m.connected = register(reg, m.connected)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

func (m *Metrics) observeConnect(kind TransportKind, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.connectAttempts.WithLabelValues(string(kind), outcomeOf(err)).Inc()
	m.connectDuration.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
}

func (m *Metrics) observeFallback() {
	if m == nil {
		return
	}
	m.fallbacks.Inc()
}

func (m *Metrics) observeInvocation(op string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.invocations.WithLabelValues(op, outcomeOf(err)).Inc()
	m.invocationDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (m *Metrics) setConnected(n int) {
	if m == nil {
		return
	}
	m.connected.Set(float64(n))
}

func outcomeOf(err error) string {
	if err == nil {
		return "success"
	}
	if kind := KindOf(err); kind != "" {
		return string(kind)
	}
	return "error"
}
