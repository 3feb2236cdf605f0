package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	wsConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "twidder_ws_connections",
		Help: "Currently open websocket connections.",
	})

	pushDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "twidder_push_delivered_total",
		Help: "Message pushes enqueued to a recipient connection.",
	})

	pushDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "twidder_push_dropped_total",
		Help: "Message pushes dropped due to a full queue or closing connection.",
	})
)
