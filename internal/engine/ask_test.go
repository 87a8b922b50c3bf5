package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/corddev/cord/internal/graph"
)

func TestTerminalAskReturnsTypedAnswer(t *testing.T) {
	in := strings.NewReader("yes please\n")
	var out strings.Builder
	handler := TerminalAsk(in, &out)

	node := &graph.Node{ID: 1, Objective: "should we proceed?", Prompt: `["yes","no"]`}
	answer, err := handler(context.Background(), node)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if answer != "yes please" {
		t.Fatalf("expected typed answer, got %q", answer)
	}
	if !strings.Contains(out.String(), "should we proceed?") {
		t.Fatalf("expected question to be printed, got %q", out.String())
	}
	if !strings.Contains(out.String(), "default: yes") {
		t.Fatalf("expected default option to be printed, got %q", out.String())
	}
}

func TestTerminalAskFallsBackToDefaultOnEmptyAnswer(t *testing.T) {
	in := strings.NewReader("\n")
	var out strings.Builder
	handler := TerminalAsk(in, &out)

	node := &graph.Node{ID: 1, Objective: "continue?", Prompt: `["continue","stop"]`}
	answer, err := handler(context.Background(), node)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if answer != "continue" {
		t.Fatalf("expected default fallback, got %q", answer)
	}
}

func TestTerminalAskNoOptionsNoDefault(t *testing.T) {
	in := strings.NewReader("")
	var out strings.Builder
	handler := TerminalAsk(in, &out)

	node := &graph.Node{ID: 1, Objective: "anything else?"}
	if _, err := handler(context.Background(), node); err == nil {
		t.Fatalf("expected an error when there is no answer and no default")
	}
}
