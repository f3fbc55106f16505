package miner

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/emberchain/embernode/util"
)

var (
	prometheusMinerBlocksMined prometheus.Counter
	prometheusMinerBlockMined  prometheus.Histogram
)

var (
	prometheusMetricsInitOnce sync.Once
)

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusMinerBlocksMined = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "embernode",
			Subsystem: "miner",
			Name:      "blocks_mined",
			Help:      "Number of blocks mined and accepted by the chain",
		},
	)

	prometheusMinerBlockMined = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "embernode",
			Subsystem: "miner",
			Name:      "block_mined",
			Help:      "Histogram of block mining",
			Buckets:   util.MetricsBucketsSeconds,
		},
	)
}
