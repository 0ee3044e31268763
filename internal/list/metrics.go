package list

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reorderOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "demonboard_list_reorder_ops_total",
		Help: "Completed reorder transactions by operation type.",
	}, []string{"op", "list"})

	reorderFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "demonboard_list_reorder_failures_total",
		Help: "Reorder transactions rolled back, by operation type.",
	}, []string{"op", "list"})

	capacityTruncationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "demonboard_list_capacity_truncations_total",
		Help: "Levels deleted because an insert or move pushed them past the list capacity.",
	})

	reconstructDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "demonboard_list_reconstruct_duration_seconds",
		Help:    "Wall time of historic list reconstruction.",
		Buckets: prometheus.DefBuckets,
	})

	reconstructReplayedEntries = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "demonboard_list_reconstruct_replayed_entries",
		Help:    "Changelog entries replayed per reconstruction.",
		Buckets: []float64{1, 5, 25, 100, 500, 2500},
	})
)
