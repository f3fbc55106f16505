package mempool

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/emberchain/embernode/util"
)

var (
	prometheusMempoolSize     prometheus.Gauge
	prometheusMempoolAdmitted prometheus.Counter
	prometheusMempoolRejected prometheus.Counter
	prometheusMempoolEvicted  prometheus.Counter
	prometheusMempoolAdmit    prometheus.Histogram
)

var (
	prometheusMetricsInitOnce sync.Once
)

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusMempoolSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "embernode",
			Subsystem: "mempool",
			Name:      "size",
			Help:      "Number of transactions currently in the mempool",
		},
	)

	prometheusMempoolAdmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "embernode",
			Subsystem: "mempool",
			Name:      "admitted",
			Help:      "Number of transactions admitted to the mempool",
		},
	)

	prometheusMempoolRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "embernode",
			Subsystem: "mempool",
			Name:      "rejected",
			Help:      "Number of transactions rejected by the mempool",
		},
	)

	prometheusMempoolEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "embernode",
			Subsystem: "mempool",
			Name:      "evicted",
			Help:      "Number of transactions evicted because a block spent their inputs",
		},
	)

	prometheusMempoolAdmit = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "embernode",
			Subsystem: "mempool",
			Name:      "admit",
			Help:      "Histogram of Admit in the mempool service",
			Buckets:   util.MetricsBucketsMicroSeconds,
		},
	)
}
