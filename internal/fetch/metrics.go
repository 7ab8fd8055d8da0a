package fetch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsflow_fetch_total",
		Help: "Fetch executions by source type and outcome.",
	}, []string{"source_type", "outcome"})

	fetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsflow_fetch_errors_total",
		Help: "Fetch failures by error category.",
	}, []string{"category"})

	rateLimitedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsflow_fetch_rate_limited_total",
		Help: "Fetch attempts denied by the per-key rate limiter.",
	}, []string{"key"})
)
