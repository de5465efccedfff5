package email

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agency_emails_sent_total",
			Help: "Emails handed to the transport by template and status (sent, failed).",
		},
		[]string{"template", "status"},
	)
	sendDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "agency_email_send_duration_seconds",
		Help:    "Time spent in the email transport.",
		Buckets: prometheus.DefBuckets,
	})
)
