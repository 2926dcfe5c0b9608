package run

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	nodeExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowgrid_node_executions_total",
		Help: "Number of node executions by terminal status.",
	}, []string{"status"})

	layerDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "flowgrid_layer_duration_seconds",
		Help:    "Wall-clock duration of executed plan layers.",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
	})
)
