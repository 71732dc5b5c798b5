package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics is the one home the pack's otherwise-unwired
// prometheus/client_golang dependency finds in this repo: a counter of
// queries by kind (stat/ls/cat) and outcome (ok/not_found/invalid/error), the
// ambient observability a long-running server process carries even though
// the core library itself is metrics-free.
type metrics struct {
	queries *prometheus.CounterVec
}

func newMetrics() *metrics {
	return &metrics{
		queries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tartreed",
			Name:      "queries_total",
			Help:      "Number of tree queries served, by kind and outcome.",
		}, []string{"kind", "outcome"}),
	}
}

func (m *metrics) observe(kind, outcome string) {
	m.queries.WithLabelValues(kind, outcome).Inc()
}
