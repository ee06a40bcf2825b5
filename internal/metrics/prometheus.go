package metrics

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/T9Tuco/NexusBD/internal/types"
)

type Counter interface {
	Inc()
	Add(value float64)
	Get() float64
}

type Gauge interface {
	Set(value float64)
	Inc()
	Dec()
}

type Histogram interface {
	Observe(value float64)
}

// Manager owns a dedicated prometheus registry and hands out lazily
// created vectors keyed by metric name.
type Manager struct {
	logger     types.Logger
	config     *types.MetricsConfig
	registry   *prometheus.Registry
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
	mu         sync.RWMutex
}

func NewManager(logger types.Logger, config *types.MetricsConfig) *Manager {
	if config == nil {
		config = &types.MetricsConfig{Enabled: true, Path: "/metrics", Prefix: "nexusbd"}
	}

	registry := prometheus.NewRegistry()
	if config.Collectors.Go {
		registry.MustRegister(collectors.NewGoCollector())
	}
	if config.Collectors.Process {
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	m := &Manager{
		logger:     logger,
		config:     config,
		registry:   registry,
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}

	logger.Info("Prometheus metrics initialized",
		zap.String("prefix", config.Prefix),
		zap.Bool("go_metrics", config.Collectors.Go))

	return m
}

func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Manager) Counter(name string, labels map[string]string) Counter {
	m.mu.Lock()
	defer m.mu.Unlock()

	if counter, exists := m.counters[name]; exists {
		return &promCounter{logger: m.logger, counter: counter, labels: labels}
	}

	counter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.config.Prefix,
			Name:        name,
			Help:        fmt.Sprintf("Counter metric %s", name),
			ConstLabels: m.config.Labels,
		},
		labelNames(labels),
	)

	m.registry.MustRegister(counter)
	m.counters[name] = counter

	return &promCounter{logger: m.logger, counter: counter, labels: labels}
}

func (m *Manager) Gauge(name string, labels map[string]string) Gauge {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gauge, exists := m.gauges[name]; exists {
		return &promGauge{gauge: gauge, labels: labels}
	}

	gauge := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   m.config.Prefix,
			Name:        name,
			Help:        fmt.Sprintf("Gauge metric %s", name),
			ConstLabels: m.config.Labels,
		},
		labelNames(labels),
	)

	m.registry.MustRegister(gauge)
	m.gauges[name] = gauge

	return &promGauge{gauge: gauge, labels: labels}
}

func (m *Manager) Histogram(name string, buckets []float64, labels map[string]string) Histogram {
	m.mu.Lock()
	defer m.mu.Unlock()

	if histogram, exists := m.histograms[name]; exists {
		return &promHistogram{histogram: histogram, labels: labels}
	}

	histogram := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   m.config.Prefix,
			Name:        name,
			Help:        fmt.Sprintf("Histogram metric %s", name),
			Buckets:     buckets,
			ConstLabels: m.config.Labels,
		},
		labelNames(labels),
	)

	m.registry.MustRegister(histogram)
	m.histograms[name] = histogram

	return &promHistogram{histogram: histogram, labels: labels}
}

// Handler renders the registry in the text exposition format through the
// net/http promhttp handler bridged onto fasthttp.
func (m *Manager) Handler() fasthttp.RequestHandler {
	promHandler := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})

	return func(ctx *fasthttp.RequestCtx) {
		ctx.SetContentType("text/plain; version=0.0.4; charset=utf-8")
		req, err := http.NewRequest("GET", string(ctx.RequestURI()), nil)
		if err != nil {
			ctx.SetStatusCode(fasthttp.StatusInternalServerError)
			return
		}
		promHandler.ServeHTTP(newFastResponseWriter(ctx), req)
	}
}

func labelNames(labels map[string]string) []string {
	names := make([]string, 0, len(labels))
	for name := range labels {
		names = append(names, name)
	}
	return names
}

type promCounter struct {
	logger  types.Logger
	counter *prometheus.CounterVec
	labels  map[string]string
}

func (c *promCounter) Inc() {
	c.counter.With(c.labels).Inc()
}

func (c *promCounter) Add(value float64) {
	c.counter.With(c.labels).Add(value)
}

func (c *promCounter) Get() float64 {
	metric := &dto.Metric{}
	if err := c.counter.With(c.labels).Write(metric); err != nil {
		c.logger.Error("Failed to read counter", zap.Error(err))
	}
	return metric.GetCounter().GetValue()
}

type promGauge struct {
	gauge  *prometheus.GaugeVec
	labels map[string]string
}

func (g *promGauge) Set(value float64) {
	g.gauge.With(g.labels).Set(value)
}

func (g *promGauge) Inc() {
	g.gauge.With(g.labels).Inc()
}

func (g *promGauge) Dec() {
	g.gauge.With(g.labels).Dec()
}

type promHistogram struct {
	histogram *prometheus.HistogramVec
	labels    map[string]string
}

func (h *promHistogram) Observe(value float64) {
	h.histogram.With(h.labels).Observe(value)
}

type fastResponseWriter struct {
	ctx        *fasthttp.RequestCtx
	statusCode int
}

func newFastResponseWriter(ctx *fasthttp.RequestCtx) *fastResponseWriter {
	return &fastResponseWriter{ctx: ctx, statusCode: 200}
}

func (w *fastResponseWriter) Header() http.Header {
	header := make(http.Header)
	w.ctx.Response.Header.VisitAll(func(key, value []byte) {
		header.Set(string(key), string(value))
	})
	return header
}

func (w *fastResponseWriter) Write(data []byte) (int, error) {
	return w.ctx.Write(data)
}

func (w *fastResponseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ctx.SetStatusCode(statusCode)
}
