package storage

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var storeOperationDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "store_operation_duration_seconds",
		Help:    "Document store operation duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
	},
	[]string{"operation", "collection", "outcome"},
)

// observe records the duration of a store call started at start. It is meant
// to be deferred with a pointer to the caller's named error result.
func observe(operation, collection string, start time.Time, err *error) {
	outcome := "ok"
	if err != nil && *err != nil {
		outcome = "error"
	}
	storeOperationDuration.WithLabelValues(operation, collection, outcome).Observe(time.Since(start).Seconds())
}
