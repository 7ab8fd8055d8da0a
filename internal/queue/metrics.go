package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsflow_queue_enqueued_total",
		Help: "Tasks enqueued, by task type.",
	}, []string{"type"})

	metricClaimed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsflow_queue_claimed_total",
		Help: "Tasks successfully claimed by a worker, by task type.",
	}, []string{"type"})

	metricCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsflow_queue_completed_total",
		Help: "Tasks completed.",
	})

	metricRetried = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsflow_queue_retried_total",
		Help: "Task failures returned to pending for retry.",
	})

	metricFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsflow_queue_failed_total",
		Help: "Tasks exhausted into terminal failure, by error category.",
	}, []string{"category"})

	metricAssigned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsflow_queue_assigned_total",
		Help: "Pending tasks assigned to an agent by the distributor.",
	})
)
