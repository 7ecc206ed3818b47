package core

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics for monitoring service.
var (
	//receiptsExecuted prometheus metric.
	receiptsExecuted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of receipts executed by the shard",
			Name:      "receipts_executed",
			Namespace: "mintgate",
		},
	)
	//receiptsFailed prometheus metric.
	receiptsFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of receipts that faulted",
			Name:      "receipts_failed",
			Namespace: "mintgate",
		},
	)
	//externalCalls prometheus metric.
	externalCalls = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of external calls submitted to the shard",
			Name:      "external_calls",
			Namespace: "mintgate",
		},
	)
)

func init() {
	prometheus.MustRegister(
		receiptsExecuted,
		receiptsFailed,
		externalCalls,
	)
}
