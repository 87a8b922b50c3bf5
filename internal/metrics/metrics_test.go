package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/corddev/cord/internal/graph"
)

func TestSetNodeCountsZeroesAbsentStatuses(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.SetNodeCounts(map[graph.Status]int{
		graph.StatusActive:   2,
		graph.StatusComplete: 5,
	})

	var metric dto.Metric
	if err := m.NodesByStatus.WithLabelValues(string(graph.StatusFailed)).Write(&metric); err != nil {
		t.Fatalf("write: %v", err)
	}
	if metric.Gauge.GetValue() != 0 {
		t.Fatalf("expected failed count 0, got %v", metric.Gauge.GetValue())
	}

	if err := m.NodesByStatus.WithLabelValues(string(graph.StatusComplete)).Write(&metric); err != nil {
		t.Fatalf("write: %v", err)
	}
	if metric.Gauge.GetValue() != 5 {
		t.Fatalf("expected complete count 5, got %v", metric.Gauge.GetValue())
	}
}
