package runtime

import (
	"context"
	"testing"

	"github.com/corddev/cord/internal/graph"
)

func TestClaudeAdapterPlanIncludesMCPConfig(t *testing.T) {
	a := NewClaudeAdapter()
	plan, err := a.Plan(context.Background(), AgentLaunchRequest{
		NodeID:  graph.ID(42),
		Prompt:  "do the thing",
		WorkDir: t.TempDir(),
		DBPath:  "/tmp/cord.db",
	})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if plan.Command != "claude" {
		t.Fatalf("expected command claude, got %q", plan.Command)
	}
	foundMCP := false
	foundPrompt := false
	foundAllowedTools := false
	for i, arg := range plan.Args {
		if arg == "--mcp-config" && i+1 < len(plan.Args) {
			foundMCP = true
		}
		if arg == "do the thing" {
			foundPrompt = true
		}
		if arg == "--allowedTools" && i+1 < len(plan.Args) && plan.Args[i+1] != "" {
			foundAllowedTools = true
		}
	}
	if !foundMCP {
		t.Fatalf("expected --mcp-config in args: %v", plan.Args)
	}
	if !foundPrompt {
		t.Fatalf("expected the prompt to be passed as an argument: %v", plan.Args)
	}
	if !foundAllowedTools {
		t.Fatalf("expected --allowedTools restricting the agent to the tool catalogue: %v", plan.Args)
	}
}

func TestCodexAdapterPlanUsesStdinForPrompt(t *testing.T) {
	a := NewCodexAdapter()
	plan, err := a.Plan(context.Background(), AgentLaunchRequest{
		NodeID:  graph.ID(1),
		Prompt:  "analyze this",
		WorkDir: t.TempDir(),
		DBPath:  "/tmp/cord.db",
		Budget:  2.5,
	})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if plan.Stdin != "analyze this" {
		t.Fatalf("expected prompt on stdin, got %q", plan.Stdin)
	}
	foundBudget := false
	for i, arg := range plan.Args {
		if arg == "--budget" && i+1 < len(plan.Args) && plan.Args[i+1] == "2.50" {
			foundBudget = true
		}
	}
	if !foundBudget {
		t.Fatalf("expected --budget 2.50 in args: %v", plan.Args)
	}
}
