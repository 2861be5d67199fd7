package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the agent. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	ActiveSessions   prometheus.Gauge
	SessionEvents    *prometheus.CounterVec
	ChatMessages     *prometheus.CounterVec
	BridgeCalls      *prometheus.CounterVec
	BridgeRetries    *prometheus.CounterVec
	BridgeLatency    *prometheus.HistogramVec
	CompletionErrors *prometheus.CounterVec
	PollResults      *prometheus.CounterVec
}

// NewMetrics registers instruments with the default Prometheus registry.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWith(namespace, prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

func NewMetricsWith(namespace string, reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		gatherer: gatherer,
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of open chat sessions.",
		}),
		SessionEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session events by type.",
		}, []string{"event"}),
		ChatMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_messages_total",
			Help:      "Chat protocol messages by direction and type.",
		}, []string{"direction", "type"}),
		BridgeCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bridge_calls_total",
			Help:      "Ledger bridge invocations by method and outcome.",
		}, []string{"method", "outcome"}),
		BridgeRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bridge_retries_total",
			Help:      "Ledger bridge retries by method.",
		}, []string{"method"}),
		BridgeLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bridge_call_duration_ms",
			Help:      "Ledger bridge invocation latency in milliseconds.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 15000},
		}, []string{"method"}),
		CompletionErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completion_errors_total",
			Help:      "Completion collaborator failures replaced by the apology reply.",
		}, []string{"mode"}),
		PollResults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_results_total",
			Help:      "Periodic quest checks by result.",
		}, []string{"result"}),
	}
}

func (m *Metrics) ObserveBridgeCall(method, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.BridgeCalls.WithLabelValues(method, outcome).Inc()
	m.BridgeLatency.WithLabelValues(method).Observe(float64(d.Milliseconds()))
}

func (m *Metrics) ObserveBridgeRetry(method string) {
	if m == nil {
		return
	}
	m.BridgeRetries.WithLabelValues(method).Inc()
}

func (m *Metrics) ObserveSessionEvent(event string, active int) {
	if m == nil {
		return
	}
	m.SessionEvents.WithLabelValues(event).Inc()
	m.ActiveSessions.Set(float64(active))
}

// ObserveConnection counts transport-level events that do not change the session count.
func (m *Metrics) ObserveConnection(event string) {
	if m == nil {
		return
	}
	m.SessionEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) ObserveChatMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.ChatMessages.WithLabelValues(direction, msgType).Inc()
}

func (m *Metrics) ObserveCompletionError(mode string) {
	if m == nil {
		return
	}
	m.CompletionErrors.WithLabelValues(mode).Inc()
}

func (m *Metrics) ObservePollResult(result string) {
	if m == nil {
		return
	}
	m.PollResults.WithLabelValues(result).Inc()
}

// Handler serves the registry the metrics were registered with.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
