package batching

import "github.com/prometheus/client_golang/prometheus"

var (
	batchSizes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "caikit",
			Subsystem: "batching",
			Name:      "batch_size",
			Help:      "Number of pending calls dispatched together",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64, 128},
		},
		[]string{"model"},
	)

	dispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "caikit",
			Subsystem: "batching",
			Name:      "dispatch_duration_seconds",
			Help:      "Duration of the underlying batched module call",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"model"},
	)

	canceledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "caikit",
			Subsystem: "batching",
			Name:      "canceled_before_dispatch_total",
			Help:      "Pending calls dropped because their context ended before dispatch",
		},
		[]string{"model"},
	)
)

func init() {
	prometheus.MustRegister(batchSizes, dispatchDuration, canceledTotal)
}
