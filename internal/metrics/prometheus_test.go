package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/T9Tuco/NexusBD/internal/logger"
	"github.com/T9Tuco/NexusBD/internal/types"
)

func newTestManager() *Manager {
	return NewManager(logger.NewNop(), &types.MetricsConfig{
		Enabled: true,
		Path:    "/metrics",
		Prefix:  "test",
	})
}

func TestCounterIncrements(t *testing.T) {
	m := newTestManager()

	counter := m.Counter("actions_total", map[string]string{"action": "fetchGuilds"})
	counter.Inc()
	counter.Inc()
	counter.Add(3)

	assert.Equal(t, float64(5), counter.Get())
}

func TestCounterLabelsPartition(t *testing.T) {
	m := newTestManager()

	ok := m.Counter("actions_total", map[string]string{"action": "authenticate"})
	failed := m.Counter("actions_total", map[string]string{"action": "sendMessage"})

	ok.Inc()
	ok.Inc()
	failed.Inc()

	assert.Equal(t, float64(2), ok.Get())
	assert.Equal(t, float64(1), failed.Get())
}

func TestCounterVectorIsReused(t *testing.T) {
	m := newTestManager()

	// Asking twice for the same metric name must not re-register it,
	// which would panic inside the prometheus registry.
	assert.NotPanics(t, func() {
		m.Counter("reused_total", map[string]string{"result": "a"}).Inc()
		m.Counter("reused_total", map[string]string{"result": "b"}).Inc()
	})
}

func TestGauge(t *testing.T) {
	m := newTestManager()

	gauge := m.Gauge("active_sessions", map[string]string{"store": "memory"})
	assert.NotPanics(t, func() {
		gauge.Set(10)
		gauge.Inc()
		gauge.Dec()
	})
}

func TestHistogram(t *testing.T) {
	m := newTestManager()

	histogram := m.Histogram("request_seconds", []float64{0.1, 1, 10}, map[string]string{"path": "/api"})
	assert.NotPanics(t, func() {
		histogram.Observe(0.25)
		histogram.Observe(2.5)
	})
}

func TestHandlerRendersExposition(t *testing.T) {
	m := newTestManager()
	m.Counter("rendered_total", map[string]string{"result": "ok"}).Inc()

	var ctx fasthttp.RequestCtx
	ctx.Request.SetRequestURI("/metrics")
	m.Handler()(&ctx)

	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Contains(t, string(ctx.Response.Body()), "test_rendered_total")
}
