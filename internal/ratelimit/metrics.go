package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var decisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "agency_ratelimit_decisions_total",
		Help: "Rate limiter decisions by outcome (allowed, limited, unavailable).",
	},
	[]string{"decision"},
)
