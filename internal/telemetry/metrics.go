package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "moviequiz"

var (
	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upstream_requests_total",
		Help:      "Requests sent to the movie database APIs, by host and outcome.",
	}, []string{"host", "outcome"})

	// Prefetch counts speculative question syntheses by result: ready, failed, claimed.
	Prefetch = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "prefetch_total",
		Help:      "Speculative question syntheses by result.",
	}, []string{"result"})

	// QuestionsDelivered counts delivered questions by source: buffer, inflight, fresh.
	QuestionsDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "questions_delivered_total",
		Help:      "Questions delivered to the player by source.",
	}, []string{"source"})

	RoundsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rounds_recorded_total",
		Help:      "Rounds written to the statistics store.",
	})
)
