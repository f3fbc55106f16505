package blockchain

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/emberchain/embernode/util"
)

var (
	prometheusBlockchainBestHeight     prometheus.Gauge
	prometheusBlockchainBlocksAccepted prometheus.Counter
	prometheusBlockchainBlocksRejected prometheus.Counter
	prometheusBlockchainReorgs         prometheus.Counter
	prometheusBlockchainReorgDepth     prometheus.Histogram
	prometheusBlockchainAcceptBlock    prometheus.Histogram
)

var (
	prometheusMetricsInitOnce sync.Once
)

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusBlockchainBestHeight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "embernode",
			Subsystem: "blockchain",
			Name:      "best_height",
			Help:      "Height of the current best block",
		},
	)

	prometheusBlockchainBlocksAccepted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "embernode",
			Subsystem: "blockchain",
			Name:      "blocks_accepted",
			Help:      "Number of blocks accepted into the chain",
		},
	)

	prometheusBlockchainBlocksRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "embernode",
			Subsystem: "blockchain",
			Name:      "blocks_rejected",
			Help:      "Number of blocks rejected by the validation pipeline",
		},
	)

	prometheusBlockchainReorgs = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "embernode",
			Subsystem: "blockchain",
			Name:      "reorgs",
			Help:      "Number of chain reorganizations",
		},
	)

	prometheusBlockchainReorgDepth = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "embernode",
			Subsystem: "blockchain",
			Name:      "reorg_depth",
			Help:      "Histogram of blocks reverted per reorganization",
			Buckets:   util.MetricsBucketsSizeSmall,
		},
	)

	prometheusBlockchainAcceptBlock = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "embernode",
			Subsystem: "blockchain",
			Name:      "accept_block",
			Help:      "Histogram of AcceptBlock in the blockchain service",
			Buckets:   util.MetricsBucketsMilliSeconds,
		},
	)
}
