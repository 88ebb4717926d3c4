package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "warfront",
		Subsystem: "hub",
		Name:      "connected_clients",
		Help:      "Number of currently connected websocket clients.",
	})

	metricMessagesIn = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "warfront",
		Subsystem: "hub",
		Name:      "messages_in_total",
		Help:      "Inbound client messages accepted by the hub.",
	})

	metricMessagesOut = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "warfront",
		Subsystem: "hub",
		Name:      "messages_out_total",
		Help:      "Messages delivered to client send buffers.",
	})

	metricPrunedClients = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "warfront",
		Subsystem: "hub",
		Name:      "pruned_clients_total",
		Help:      "Clients dropped because their send buffer was full.",
	})

	metricPollCycles = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "warfront",
		Subsystem: "poller",
		Name:      "cycles_total",
		Help:      "Completed poll cycles.",
	})

	metricPollFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "warfront",
		Subsystem: "poller",
		Name:      "failures_total",
		Help:      "Poll cycles that failed and held their watermark.",
	})

	metricEventsBroadcast = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "warfront",
		Subsystem: "poller",
		Name:      "events_broadcast_total",
		Help:      "Territorial events turned into broadcasts by the poller.",
	})
)
