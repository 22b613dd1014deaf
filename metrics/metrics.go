// Package metrics provides Prometheus metrics for the array bridge.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the bridge.
type Metrics struct {
	// Physical source metrics
	BranchReads    prometheus.Counter
	PartitionsOpen prometheus.Gauge
	OpenFailures   prometheus.Counter

	// Cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	// Resolution metrics
	RolesResolved       prometheus.Counter
	ResolveLatency      prometheus.Histogram
	InvariantViolations prometheus.Counter

	// Store metrics
	StoreOps *prometheus.CounterVec
}

// NewMetrics creates metrics under namespace and registers them with reg.
// A nil reg leaves the metrics unregistered.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		BranchReads: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "branch_reads_total",
			Help:      "Total number of branches read from a physical source",
		}),
		PartitionsOpen: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "partitions_open",
			Help:      "Number of partition handles currently open",
		}),
		OpenFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "partition_open_failures_total",
			Help:      "Total number of partitions that failed to open",
		}),

		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "branch_cache_hits_total",
			Help:      "Total number of branch lookups served from cache",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "branch_cache_misses_total",
			Help:      "Total number of branch lookups that went to the source",
		}),

		RolesResolved: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "roles_resolved_total",
			Help:      "Total number of roles resolved to arrays",
		}),
		ResolveLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resolve_latency_seconds",
			Help:      "Latency of one GetAll call in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}),
		InvariantViolations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invariant_violations_total",
			Help:      "Total number of roles the physical source could not satisfy",
		}),

		StoreOps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Array store operations by operation and result",
		}, []string{"op", "result"}),
	}
}

// RecordResolve records one GetAll call.
func (m *Metrics) RecordResolve(roles int, duration time.Duration, err error) {
	m.ResolveLatency.Observe(duration.Seconds())
	if err == nil {
		m.RolesResolved.Add(float64(roles))
	}
}

// RecordCache records cache hit and miss deltas.
func (m *Metrics) RecordCache(hits, misses int64) {
	m.CacheHits.Add(float64(hits))
	m.CacheMisses.Add(float64(misses))
}

// RecordStoreOp records one array store operation.
func (m *Metrics) RecordStoreOp(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.StoreOps.WithLabelValues(op, result).Inc()
}

// MetricsServer runs an HTTP server exposing /metrics endpoint.
type MetricsServer struct {
	server *http.Server
}

// NewMetricsServer creates a metrics server on addr serving g.
func NewMetricsServer(addr string, g prometheus.Gatherer) *MetricsServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &MetricsServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Handler returns the server's HTTP handler.
func (s *MetricsServer) Handler() http.Handler {
	return s.server.Handler
}

// StartAsync starts the metrics server in a goroutine.
func (s *MetricsServer) StartAsync() {
	go func() {
		_ = s.server.ListenAndServe()
	}()
}

// Stop stops the metrics server.
func (s *MetricsServer) Stop() error {
	return s.server.Close()
}
