package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SubmissionsEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "txnwatch_submissions_enqueued_total",
		Help: "Total number of submissions placed on the processing queue.",
	})

	SubmissionsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "txnwatch_submissions_dropped_total",
		Help: "Total number of submissions rejected due to a full queue.",
	})

	EventsAdmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "txnwatch_events_admitted_total",
		Help: "Total number of events that passed admission and were persisted.",
	})

	EventsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "txnwatch_events_rejected_total",
		Help: "Total number of rejected submissions, labelled by reason.",
	}, []string{"reason"})

	AlertsFired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "txnwatch_alerts_fired_total",
		Help: "Total number of alert codes fired, labelled by code.",
	}, []string{"code"})

	SubmissionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "txnwatch_submission_duration_ms",
		Help:    "End-to-end admission and evaluation latency in milliseconds.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	})

	QueueUtilization = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "txnwatch_queue_utilization_ratio",
		Help: "Current submission queue utilization (0–1).",
	})
)
