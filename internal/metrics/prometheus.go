package metrics

import (
	"context"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics exposes metrics through a dedicated Prometheus registry.
// Metrics are created on first use under the configured namespace.
type PrometheusMetrics struct {
	namespace string
	registry  *prometheus.Registry
	factory   promauto.Factory

	mu         sync.Mutex
	counters   map[string]prometheus.Counter
	gauges     map[string]prometheus.Gauge
	histograms map[string]prometheus.Histogram
}

// NewPrometheusMetrics creates a backend with its own registry, including the
// Go runtime and process collectors.
func NewPrometheusMetrics(namespace string) *PrometheusMetrics {
	if namespace == "" {
		namespace = "swapforge"
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &PrometheusMetrics{
		namespace:  namespace,
		registry:   registry,
		factory:    promauto.With(registry),
		counters:   make(map[string]prometheus.Counter),
		gauges:     make(map[string]prometheus.Gauge),
		histograms: make(map[string]prometheus.Histogram),
	}
}

// Handler returns the HTTP handler serving the registry.
func (p *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Registry returns the underlying registry.
func (p *PrometheusMetrics) Registry() *prometheus.Registry {
	return p.registry
}

func (p *PrometheusMetrics) Initialize(ctx context.Context) error { return nil }
func (p *PrometheusMetrics) Flush(ctx context.Context) error      { return nil }
func (p *PrometheusMetrics) Shutdown(ctx context.Context) error   { return nil }

// UpdateGauge sets a gauge.
func (p *PrometheusMetrics) UpdateGauge(ctx context.Context, name string, value float64) error {
	p.mu.Lock()
	g, ok := p.gauges[name]
	if !ok {
		g = p.factory.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Name:      name,
			Help:      name,
		})
		p.gauges[name] = g
	}
	p.mu.Unlock()

	g.Set(value)
	return nil
}

// IncrementCounter adds to a counter.
func (p *PrometheusMetrics) IncrementCounter(ctx context.Context, name string, value uint64) error {
	p.mu.Lock()
	c, ok := p.counters[name]
	if !ok {
		c = p.factory.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Name:      name,
			Help:      name,
		})
		p.counters[name] = c
	}
	p.mu.Unlock()

	c.Add(float64(value))
	return nil
}

// RecordHistogram observes a value with the default buckets.
func (p *PrometheusMetrics) RecordHistogram(ctx context.Context, name string, value float64) error {
	p.mu.Lock()
	h, ok := p.histograms[name]
	if !ok {
		h = p.factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Name:      name,
			Help:      name,
			Buckets:   prometheus.DefBuckets,
		})
		p.histograms[name] = h
	}
	p.mu.Unlock()

	h.Observe(value)
	return nil
}
