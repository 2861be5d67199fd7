package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	return NewMetricsWith("test", reg, reg)
}

func TestObserveBridgeCall(t *testing.T) {
	m := newTestMetrics()
	m.ObserveBridgeCall("getNextQuest", "ok", 120*time.Millisecond)
	m.ObserveBridgeCall("getNextQuest", "timeout", 15*time.Second)
	m.ObserveBridgeCall("getNextQuest", "ok", 80*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.BridgeCalls.WithLabelValues("getNextQuest", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BridgeCalls.WithLabelValues("getNextQuest", "timeout")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveBridgeCall("getAllQuests", "ok", time.Millisecond)
		m.ObserveBridgeRetry("getAllQuests")
		m.ObserveSessionEvent("created", 1)
		m.ObserveChatMessage("inbound", "chat_message")
		m.ObserveCompletionError("openai")
		m.ObservePollResult("quest")
		m.ObserveConnection("ws_connected")
	})
}

func TestHandlerServesRegisteredFamilies(t *testing.T) {
	m := newTestMetrics()
	m.ObservePollResult("no_quest")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `test_poll_results_total{result="no_quest"} 1`))
}
