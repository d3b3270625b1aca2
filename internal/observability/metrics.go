// File: internal/observability/metrics.go
package observability

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics groups the collectors recorded during one pipeline run. Each run owns
// its own registry so a cron invocation pushes exactly what it observed.
type Metrics struct {
	Registry *prometheus.Registry

	CatalogRequests    *prometheus.CounterVec
	CatalogRetries     *prometheus.CounterVec
	CatalogFailures    *prometheus.CounterVec
	BatchDuration      *prometheus.HistogramVec
	AssembledNodes     prometheus.Gauge
	IncompleteRecords  prometheus.Counter
	GraphNodes         prometheus.Gauge
	GraphEdges         prometheus.Gauge
	StoreRebuilds      prometheus.Counter
	LastSuccessSeconds prometheus.Gauge
}

// NewMetrics creates and registers all collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		CatalogRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "navitron",
			Subsystem: "catalog",
			Name:      "requests_total",
			Help:      "Catalog requests dispatched, by resource and outcome.",
		}, []string{"resource", "outcome"}),
		CatalogRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "navitron",
			Subsystem: "catalog",
			Name:      "retries_total",
			Help:      "Catalog request attempts that were retried.",
		}, []string{"resource"}),
		CatalogFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "navitron",
			Subsystem: "catalog",
			Name:      "fatal_failures_total",
			Help:      "Catalog requests that exhausted their retries.",
		}, []string{"resource"}),
		BatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "navitron",
			Subsystem: "catalog",
			Name:      "batch_duration_seconds",
			Help:      "Wall time of one bulk fetch batch.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		}, []string{"resource"}),
		AssembledNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "navitron",
			Subsystem: "topology",
			Name:      "assembled_nodes",
			Help:      "Rows in the most recently assembled topology table.",
		}),
		IncompleteRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "navitron",
			Subsystem: "topology",
			Name:      "incomplete_records_total",
			Help:      "Fetched records skipped for edge generation.",
		}),
		GraphNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "navitron",
			Subsystem: "graph",
			Name:      "nodes",
			Help:      "Nodes in the most recently built graph.",
		}),
		GraphEdges: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "navitron",
			Subsystem: "graph",
			Name:      "edges",
			Help:      "Directed edges in the most recently built graph.",
		}),
		StoreRebuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "navitron",
			Subsystem: "store",
			Name:      "rebuilds_total",
			Help:      "Full replace operations written to the backing store.",
		}),
		LastSuccessSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "navitron",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
	}

	m.Registry.MustRegister(
		m.CatalogRequests,
		m.CatalogRetries,
		m.CatalogFailures,
		m.BatchDuration,
		m.AssembledNodes,
		m.IncompleteRecords,
		m.GraphNodes,
		m.GraphEdges,
		m.StoreRebuilds,
		m.LastSuccessSeconds,
	)
	return m
}

// Push sends the registry to a Prometheus Pushgateway. An empty URL is a no-op.
// Each push replaces the previous group for the job.
func (m *Metrics) Push(ctx context.Context, gatewayURL, job string) error {
	if gatewayURL == "" {
		return nil
	}
	pusher := push.New(gatewayURL, job).Gatherer(m.Registry)
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", gatewayURL, err)
	}
	return nil
}
