package event

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	outboxPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_outbox_events_published_total",
			Help: "Outbox events relayed to Kafka",
		},
		[]string{"topic"},
	)

	outboxFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_outbox_relay_failures_total",
			Help: "Outbox relay failures by stage",
		},
		[]string{"stage"},
	)
)
