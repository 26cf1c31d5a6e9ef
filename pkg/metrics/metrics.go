// Package metrics exposes Prometheus instrumentation for chain
// execution. Registered on the default registry via promauto; the
// serve package mounts them at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ChainsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "weft_chains_started_total",
		Help: "Total number of chain executions started.",
	})

	ChainsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "weft_chains_finished_total",
		Help: "Total number of chain executions finished, labelled by terminal status.",
	}, []string{"status"})

	ChainsSuspended = promauto.NewCounter(prometheus.CounterOpts{
		Name: "weft_chains_suspended_total",
		Help: "Total number of chain executions suspended at a confirmation gate.",
	})

	ActionsExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "weft_actions_executed_total",
		Help: "Total number of actions executed, labelled by kind and status.",
	}, []string{"kind", "status"})

	ConfirmationsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "weft_confirmations_resolved_total",
		Help: "Total number of confirmation gates settled, labelled by resolution.",
	}, []string{"resolution"})

	ActionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "weft_action_duration_ms",
		Help:    "Single action handler latency in milliseconds.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	})

	PendingConfirmations = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "weft_pending_confirmations",
		Help: "Confirmation gates currently awaiting settlement.",
	})
)
