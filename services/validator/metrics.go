package validator

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/emberchain/embernode/util"
)

var (
	// prometheusValidTransactions counts transactions that passed validation
	prometheusValidTransactions prometheus.Counter

	// prometheusInvalidTransactions counts transactions found invalid
	prometheusInvalidTransactions prometheus.Counter

	// prometheusTransactionValidate measures transaction validation time
	prometheusTransactionValidate prometheus.Histogram
)

var prometheusMetricsInitOnce sync.Once

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusValidTransactions = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "embernode",
			Subsystem: "validator",
			Name:      "valid_transactions",
			Help:      "Number of transactions that passed validation",
		},
	)

	prometheusInvalidTransactions = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "embernode",
			Subsystem: "validator",
			Name:      "invalid_transactions",
			Help:      "Number of transactions found invalid by the validator service",
		},
	)

	prometheusTransactionValidate = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "embernode",
			Subsystem: "validator",
			Name:      "transactions_validate",
			Help:      "Histogram of transaction validation",
			Buckets:   util.MetricsBucketsMicroSeconds,
		},
	)
}
