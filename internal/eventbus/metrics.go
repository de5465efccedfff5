package eventbus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	publishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agency_events_published_total",
			Help: "Events handed to the broker by routing key and status (ok, failed, dropped).",
		},
		[]string{"key", "status"},
	)
	consumedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agency_events_consumed_total",
			Help: "Deliveries processed by routing key and status (ok, failed, invalid).",
		},
		[]string{"key", "status"},
	)
	outboundDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "agency_publisher_outbound_depth",
		Help: "Events waiting in the publisher's outbound buffer.",
	})
)
