package bridge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricMessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "warfront",
		Subsystem: "bridge",
		Name:      "messages_sent_total",
		Help:      "Messages written to the hub connection.",
	})

	metricBatchesFlushed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "warfront",
		Subsystem: "bridge",
		Name:      "batches_flushed_total",
		Help:      "Batches flushed by size or time trigger.",
	})

	metricBatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "warfront",
		Subsystem: "bridge",
		Name:      "batch_size",
		Help:      "Observed flush batch sizes.",
		Buckets:   prometheus.LinearBuckets(1, 1, 10),
	})

	metricLatency = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "warfront",
		Subsystem: "bridge",
		Name:      "avg_latency_ms",
		Help:      "Exponential moving average of ping round trips.",
	})

	metricReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "warfront",
		Subsystem: "bridge",
		Name:      "reconnect_attempts_total",
		Help:      "Failed connection attempts.",
	})

	metricState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "warfront",
		Subsystem: "bridge",
		Name:      "state",
		Help:      "Current connection state (one-hot).",
	}, []string{"state"})
)
