package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/corddev/cord/internal/graph"
)

func sampleTree() *graph.TreeNode {
	return &graph.TreeNode{
		Node: graph.Node{ID: 1, Kind: graph.KindGoal, Objective: "root goal", Status: graph.StatusActive},
		Children: []*graph.TreeNode{
			{Node: graph.Node{ID: 2, Kind: graph.KindSpawn, Objective: "child", Status: graph.StatusComplete}},
		},
	}
}

func TestDrawRendersEveryNode(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf)
	r.Draw(sampleTree())
	out := buf.String()
	if !strings.Contains(out, "root goal") || !strings.Contains(out, "child") {
		t.Fatalf("expected both nodes rendered, got %q", out)
	}
}

func TestDrawSkipsIdenticalFrame(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf)
	tree := sampleTree()
	r.Draw(tree)
	firstLen := buf.Len()
	r.Draw(tree)
	if buf.Len() != firstLen {
		t.Fatalf("expected an identical tree to not be redrawn, buffer grew from %d to %d", firstLen, buf.Len())
	}
}

func TestDrawRedrawsOnChange(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf)
	tree := sampleTree()
	r.Draw(tree)
	firstLen := buf.Len()

	tree.Children[0].Status = graph.StatusFailed
	r.Draw(tree)
	if buf.Len() <= firstLen {
		t.Fatalf("expected a changed tree to be redrawn")
	}
}
