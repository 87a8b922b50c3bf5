// Package metrics exposes Prometheus instrumentation for a cord run.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/corddev/cord/internal/graph"
)

// Metrics holds the gauges and counters the engine updates once per tick.
type Metrics struct {
	NodesByStatus  *prometheus.GaugeVec
	ActiveAgents   prometheus.Gauge
	TickDuration   prometheus.Histogram
	SynthesisRuns  prometheus.Counter
	AgentFailures  prometheus.Counter
}

// New registers and returns a fresh Metrics set against reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		NodesByStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "cord",
			Name:      "nodes_by_status",
			Help:      "Current number of graph nodes in each status.",
		}, []string{"status"}),
		ActiveAgents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cord",
			Name:      "active_agents",
			Help:      "Number of agent subprocesses currently running.",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cord",
			Name:      "tick_duration_seconds",
			Help:      "Wall-clock duration of one engine control-loop tick.",
			Buckets:   prometheus.DefBuckets,
		}),
		SynthesisRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cord",
			Name:      "synthesis_runs_total",
			Help:      "Number of times a parent node was relaunched for synthesis.",
		}),
		AgentFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cord",
			Name:      "agent_failures_total",
			Help:      "Number of nodes the engine failed: dispatch failures, non-zero agent exits, and synthesis dead ends.",
		}),
	}

	reg.MustRegister(m.NodesByStatus, m.ActiveAgents, m.TickDuration, m.SynthesisRuns, m.AgentFailures)
	return m
}

// allStatuses lists every status tracked by NodesByStatus, so a status
// with zero current nodes is still reported as 0 rather than omitted.
var allStatuses = []graph.Status{
	graph.StatusPending,
	graph.StatusActive,
	graph.StatusPaused,
	graph.StatusComplete,
	graph.StatusFailed,
	graph.StatusCancelled,
}

// SetNodeCounts updates NodesByStatus from a full count-by-status map,
// zeroing any status absent from counts.
func (m *Metrics) SetNodeCounts(counts map[graph.Status]int) {
	for _, status := range allStatuses {
		m.NodesByStatus.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
}
