package modelmgmt

import "github.com/prometheus/client_golang/prometheus"

var (
	loadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "caikit",
			Subsystem: "loader",
			Name:      "loads_total",
			Help:      "Model load attempts by outcome",
		},
		[]string{"outcome"},
	)

	loadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "caikit",
			Subsystem: "loader",
			Name:      "load_duration_seconds",
			Help:      "Duration of successful model loads",
			Buckets:   prometheus.DefBuckets,
		},
	)

	loadedModels = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "caikit",
			Subsystem: "manager",
			Name:      "loaded_models",
			Help:      "Number of currently loaded models",
		},
	)
)

func init() {
	prometheus.MustRegister(loadsTotal, loadDuration, loadedModels)
}
