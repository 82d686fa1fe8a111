package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Operation outcomes recorded in operationsTotal.
const (
	resultHit   = "hit"
	resultMiss  = "miss"
	resultOK    = "ok"
	resultError = "error"
)

var operationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "articles_cache_operations_total",
		Help: "Article cache operations by operation and outcome.",
	},
	[]string{"op", "result"},
)

func record(op, result string) {
	operationsTotal.WithLabelValues(op, result).Inc()
}
