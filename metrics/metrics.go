// Package metrics exposes the server's Prometheus surface: query counts,
// handling latency, and malformed-connection counts, via a process-wide
// registry and a promhttp handler.
package metrics

import (
	"net"
	"net/http"
	"runtime"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/drand/labeled-psi/log"
)

var (
	// Registry is the process-wide collector registry.
	Registry = prometheus.NewRegistry()

	// QueriesServed counts completed PSI queries, by outcome.
	QueriesServed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "psi_queries_served_total",
		Help: "Number of PSI queries the server has completed, by outcome.",
	}, []string{"outcome"})

	// QueryLatency measures wall-clock time to answer one query.
	QueryLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "psi_query_duration_seconds",
		Help:    "Histogram of PSI query handling latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})

	// MalformedConnections counts connections closed due to a malformed
	// or truncated wire message.
	MalformedConnections = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "psi_malformed_connections_total",
		Help: "Number of connections closed due to a malformed or short wire message.",
	})

	// ActiveConnections tracks the number of connections currently being
	// served.
	ActiveConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "psi_active_connections",
		Help: "Number of connections currently being handled by the server.",
	})

	// DatasetSize tracks the number of (item, label) pairs currently
	// inserted in the server's Db.
	DatasetSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "psi_dataset_size",
		Help: "Number of item/label pairs currently loaded in the server.",
	})

	bound = false
)

func bindMetrics() error {
	if bound {
		return nil
	}
	bound = true

	if err := Registry.Register(collectors.NewGoCollector()); err != nil {
		return err
	}
	if err := Registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return err
	}

	toRegister := []prometheus.Collector{
		QueriesServed,
		QueryLatency,
		MalformedConnections,
		ActiveConnections,
		DatasetSize,
	}
	for _, c := range toRegister {
		if err := Registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Start binds the collectors and serves /metrics and /debug/gc on bind,
// returning the listener so the caller controls its lifetime.
func Start(bind string) net.Listener {
	log.DefaultLogger().Debugw("", "metrics", "listener starting", "at", bind)
	if err := bindMetrics(); err != nil {
		log.DefaultLogger().Warnw("", "metrics", "metric setup failed", "err", err)
		return nil
	}

	if !strings.Contains(bind, ":") {
		bind = "localhost:" + bind
	}
	l, err := net.Listen("tcp", bind)
	if err != nil {
		log.DefaultLogger().Warnw("", "metrics", "listen failed", "err", err)
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry}))
	mux.HandleFunc("/debug/gc", func(w http.ResponseWriter, _ *http.Request) {
		runtime.GC()
		w.Write([]byte("gc complete"))
	})

	srv := &http.Server{Addr: l.Addr().String(), Handler: mux}
	go func() {
		log.DefaultLogger().Warnw("", "metrics", "listener finished", "err", srv.Serve(l))
	}()
	return l
}
