// Package metrics exposes a Prometheus-compatible metrics endpoint backed by
// VictoriaMetrics' client library.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/VictoriaMetrics/metrics"
)

// MetricsServer serves the /metrics endpoint on its own listener.
type MetricsServer struct {
	namespace string
	srv       *http.Server
}

// New creates a metrics server for the given namespace on listenAddr.
func New(namespace, listenAddr string) (*MetricsServer, error) {
	if listenAddr == "" {
		return nil, fmt.Errorf("metrics: empty listen address")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w, true)
	})

	return &MetricsServer{
		// Prometheus metric names cannot carry dashes.
		namespace: strings.ReplaceAll(namespace, "-", "_"),
		srv: &http.Server{
			Addr:    listenAddr,
			Handler: mux,
		},
	}, nil
}

func (m *MetricsServer) ListenAndServe() error {
	return m.srv.ListenAndServe()
}

func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}

// Counter returns a namespaced counter, creating it on first use.
func (m *MetricsServer) Counter(name string) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf("%s_%s", m.namespace, name))
}
