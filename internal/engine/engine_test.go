package engine

import (
	"context"
	"testing"
	"time"

	"github.com/corddev/cord/internal/graph"
	"github.com/corddev/cord/internal/runtime"
	"github.com/corddev/cord/internal/supervisor"
)

// shellAdapter is a test double that runs req.Prompt as a literal shell
// script instead of invoking a real agent CLI, so engine tests exercise
// real subprocess launch/exit plumbing without depending on `claude`.
type shellAdapter struct{}

func (shellAdapter) Name() string                        { return "shell" }
func (shellAdapter) Capabilities() runtime.Capabilities   { return runtime.Capabilities{} }
func (shellAdapter) Preflight(ctx context.Context) error { return nil }
func (shellAdapter) Plan(ctx context.Context, req runtime.AgentLaunchRequest) (runtime.LaunchPlan, error) {
	return runtime.LaunchPlan{Command: "sh", Args: []string{"-c", req.Prompt}}, nil
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	store, err := graph.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	reg := runtime.NewRegistry()
	reg.Register(shellAdapter{})

	return &Engine{
		Store:          store,
		Supervisor:     supervisor.New(nil),
		Registry:       reg,
		DefaultRuntime: "shell",
		PollInterval:   10 * time.Millisecond,
		WorkDir:        t.TempDir(),
		DBPath:         ":memory:",
	}
}

func TestRunReachesQuiescenceForASingleNodeGoal(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	e := newTestEngine(t)
	_, err := e.Store.CreateNode(ctx, graph.CreateInput{
		Kind:      graph.KindGoal,
		Objective: "say hi",
		Prompt:    "echo hello",
	})
	if err != nil {
		t.Fatalf("create root: %v", err)
	}

	if err := e.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	q, err := e.Store.IsQuiescent(ctx)
	if err != nil {
		t.Fatalf("is quiescent: %v", err)
	}
	if !q {
		t.Fatalf("expected the store to be quiescent after Run returns")
	}
}

func TestRunFailsNodeOnNonZeroExit(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	e := newTestEngine(t)
	root, err := e.Store.CreateNode(ctx, graph.CreateInput{
		Kind:      graph.KindGoal,
		Objective: "fail",
		Prompt:    "exit 1",
	})
	if err != nil {
		t.Fatalf("create root: %v", err)
	}

	if err := e.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	node, err := e.Store.Get(ctx, root)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if node.Status != graph.StatusFailed {
		t.Fatalf("expected root to be failed, got %s", node.Status)
	}
}

func TestCheckSynthesisFailsParentWhenNoChildCompletes(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	root, err := e.Store.CreateNode(ctx, graph.CreateInput{Kind: graph.KindGoal, Objective: "root"})
	if err != nil {
		t.Fatalf("create root: %v", err)
	}
	child, err := e.Store.CreateNode(ctx, graph.CreateInput{Kind: graph.KindSpawn, Objective: "child", Parent: &root})
	if err != nil {
		t.Fatalf("create child: %v", err)
	}
	if err := e.Store.SetStatus(ctx, root, graph.StatusActive); err != nil {
		t.Fatalf("activate root: %v", err)
	}
	if err := e.Store.SetStatus(ctx, child, graph.StatusActive); err != nil {
		t.Fatalf("activate child: %v", err)
	}
	if err := e.Store.Fail(ctx, child, "didn't work out"); err != nil {
		t.Fatalf("fail child: %v", err)
	}

	progressed, err := e.checkSynthesis(ctx)
	if err != nil {
		t.Fatalf("check synthesis: %v", err)
	}
	if !progressed {
		t.Fatalf("expected checkSynthesis to report progress")
	}

	node, err := e.Store.Get(ctx, root)
	if err != nil {
		t.Fatalf("get root: %v", err)
	}
	if node.Status != graph.StatusFailed {
		t.Fatalf("expected root to fail when no child completed, got %s", node.Status)
	}
}

func TestCheckSynthesisRelaunchesParentWhenAChildCompletes(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	e := newTestEngine(t)
	root, err := e.Store.CreateNode(ctx, graph.CreateInput{Kind: graph.KindGoal, Objective: "root", Prompt: "sleep 5"})
	if err != nil {
		t.Fatalf("create root: %v", err)
	}
	child, err := e.Store.CreateNode(ctx, graph.CreateInput{Kind: graph.KindSpawn, Objective: "child", Parent: &root})
	if err != nil {
		t.Fatalf("create child: %v", err)
	}
	if err := e.Store.SetStatus(ctx, root, graph.StatusActive); err != nil {
		t.Fatalf("activate root: %v", err)
	}
	if err := e.Store.SetStatus(ctx, child, graph.StatusActive); err != nil {
		t.Fatalf("activate child: %v", err)
	}
	if err := e.Store.Complete(ctx, child, "good result"); err != nil {
		t.Fatalf("complete child: %v", err)
	}

	progressed, err := e.checkSynthesis(ctx)
	if err != nil {
		t.Fatalf("check synthesis: %v", err)
	}
	if !progressed {
		t.Fatalf("expected checkSynthesis to relaunch the parent")
	}
	if !e.synthesized[root] {
		t.Fatalf("expected root to be marked synthesized")
	}
	if e.Supervisor.ActiveCount() != 1 {
		t.Fatalf("expected a synthesis process to be registered, got %d active", e.Supervisor.ActiveCount())
	}

	// Simulate the synthesis agent finishing via its own complete() tool
	// call before its process exits.
	if err := e.Store.Complete(ctx, root, "synthesized"); err != nil {
		t.Fatalf("complete root: %v", err)
	}
	e.Supervisor.CancelAll()

	node, err := e.Store.Get(ctx, root)
	if err != nil {
		t.Fatalf("get root: %v", err)
	}
	if node.Status != graph.StatusComplete || node.Result != "synthesized" {
		t.Fatalf("expected root to be complete with the synthesized result, got %s %q", node.Status, node.Result)
	}
}

func TestRunDetectsStuckRun(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	e := newTestEngine(t)
	root, err := e.Store.CreateNode(ctx, graph.CreateInput{Kind: graph.KindGoal, Objective: "root"})
	if err != nil {
		t.Fatalf("create root: %v", err)
	}
	// Force the node active with no process and no children: nothing will
	// ever make it ready or terminal again, so the loop must detect stuck.
	if err := e.Store.SetStatus(ctx, root, graph.StatusActive); err != nil {
		t.Fatalf("activate root: %v", err)
	}

	err = e.Run(ctx)
	if err != ErrStuck {
		t.Fatalf("expected ErrStuck, got %v", err)
	}
}
