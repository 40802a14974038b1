// Package metrics declares the Prometheus counters/gauges the launcher and
// API expose under /metrics: ticks processed, agents infected (by status),
// queue depth, and run lifecycle counts, mirroring the counter-per-event
// style of the teacher pack's pkg/monitoring client. No usage example of
// promauto-style registration appears in the retrieved pack, so this
// package follows the standard client_golang idiom directly.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunsStarted counts every run submitted to the launcher.
	RunsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "epidemsim_runs_started_total",
		Help: "Number of simulation runs started.",
	})

	// RunsSucceeded counts runs that reached the SUCCESS status.
	RunsSucceeded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "epidemsim_runs_succeeded_total",
		Help: "Number of simulation runs that completed successfully.",
	})

	// RunsFailed counts runs that reached the FAILURE status.
	RunsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "epidemsim_runs_failed_total",
		Help: "Number of simulation runs that failed.",
	})

	// TicksProcessed counts recorded iterations (Model.Step calls) across
	// every run, single-run and batch alike.
	TicksProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "epidemsim_ticks_processed_total",
		Help: "Number of recorded simulation iterations processed.",
	})

	// AgentsByStatus tracks the live per-status agent count of the
	// currently running single-run pipeline, labeled by run id.
	AgentsByStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "epidemsim_agents_by_status",
		Help: "Current agent count by SIR status, labeled by run id.",
	}, []string{"run_id", "status"})

	// QueueDepth tracks the depth of the single-run pipeline's bounded
	// simulation-to-publisher channel.
	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "epidemsim_pipeline_queue_depth",
		Help: "Depth of the single-run pipeline's simulation-to-publisher queue.",
	}, []string{"run_id"})
)

// ObserveAgentStatuses updates AgentsByStatus for one run from a
// status-name to count map.
func ObserveAgentStatuses(runID string, counts map[string]int) {
	for status, n := range counts {
		AgentsByStatus.WithLabelValues(runID, status).Set(float64(n))
	}
}
