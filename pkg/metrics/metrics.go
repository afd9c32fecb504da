package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	UserOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "users_api", Name: "operations_total", Help: "Number of user operations by operation and outcome."},
		[]string{"operation", "outcome"},
	)
	UserOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: "users_api", Name: "operation_duration_seconds", Help: "Latency of user operations.", Buckets: prometheus.DefBuckets},
		[]string{"operation"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(UserOperations)
	reg.MustRegister(UserOperationDuration)
}
