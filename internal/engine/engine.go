// Package engine implements the Scheduler/Engine of spec section 4.5: the
// single cooperative control loop that drives a run from its goal node to
// quiescence, dispatching ready nodes as subprocess agents and handling
// their exits, ask nodes, and parent synthesis.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/corddev/cord/internal/graph"
	"github.com/corddev/cord/internal/metrics"
	"github.com/corddev/cord/internal/prompt"
	"github.com/corddev/cord/internal/runtime"
	"github.com/corddev/cord/internal/supervisor"
	"github.com/corddev/cord/internal/telemetry"
)

// ErrStuck is returned by Run when a tick finds no ready nodes and no
// active agents, yet the store is not quiescent (spec section 4.5, step
// 5: declared on the first such tick, not after a grace period). Per the
// decided Open Question, a stuck run halts the engine with a clean exit
// rather than failing any node: something in the graph is unreachable
// and needs a human to look at it.
var ErrStuck = errors.New("engine: stuck — no ready nodes, no active agents, run is not complete")

// AskHandler is invoked synchronously, once per ask node, to obtain an
// answer from the human operator (section 4.6). It is given the node so
// it can render the question and any suggested options.
type AskHandler func(ctx context.Context, node *graph.Node) (string, error)

// TreeObserver is notified after each tick with the current tree, for a
// renderer to redraw (section 4.5's status display).
type TreeObserver func(tree *graph.TreeNode)

// Engine owns the control loop for a single run.
type Engine struct {
	Store      graph.Store
	Supervisor *supervisor.Supervisor
	Registry   *runtime.Registry

	RunID          string
	DefaultRuntime string
	DefaultModel   string
	Budget         float64
	DBPath         string
	WorkDir        string

	PollInterval time.Duration
	AskHandler   AskHandler
	OnTick       TreeObserver

	Log *slog.Logger

	// Tracer and Metrics are both optional: nil means tracing/metrics are
	// disabled for this run (the zero value used by every unit test).
	Tracer  trace.Tracer
	Metrics *metrics.Metrics

	synthesized map[graph.ID]bool
}

// Run drives the control loop until the store is quiescent, the context
// is cancelled, or the run is stuck. On cancellation it cancels every
// active subprocess before returning (orderly shutdown, section 7's
// Interrupted condition).
func (e *Engine) Run(ctx context.Context) error {
	if e.PollInterval <= 0 {
		e.PollInterval = 500 * time.Millisecond
	}
	if e.Log == nil {
		e.Log = slog.Default()
	}
	if e.synthesized == nil {
		e.synthesized = make(map[graph.ID]bool)
	}

	for {
		select {
		case <-ctx.Done():
			e.Supervisor.CancelAll()
			return ctx.Err()
		default:
		}

		quiescent, err := e.tick(ctx)
		if err != nil {
			return err
		}
		if quiescent {
			return nil
		}

		select {
		case <-ctx.Done():
			e.Supervisor.CancelAll()
			return ctx.Err()
		case <-time.After(e.PollInterval):
		}
	}
}

// tick runs one iteration of the loop: drain exits, kill the processes of
// nodes that were cancelled, dispatch ready nodes, check for synthesis,
// and report whether the store is now quiescent.
func (e *Engine) tick(ctx context.Context) (bool, error) {
	start := time.Now()
	if e.Tracer != nil {
		var span trace.Span
		ctx, span = telemetry.StartTick(ctx, e.Tracer)
		defer span.End()
	}
	defer func() {
		if e.Metrics != nil {
			e.Metrics.TickDuration.Observe(time.Since(start).Seconds())
		}
	}()

	for _, exit := range e.Supervisor.PollExits() {
		if err := e.handleExit(ctx, exit); err != nil {
			e.Log.Warn("failed to process agent exit", "node", exit.NodeID.Display(), "error", err)
		}
	}

	for _, id := range e.Supervisor.ActiveIDs() {
		if n, err := e.Store.Get(ctx, id); err == nil && n != nil && n.Status == graph.StatusCancelled {
			_ = e.Supervisor.Cancel(id)
		}
	}

	ready, err := e.Store.FindReady(ctx)
	if err != nil {
		return false, fmt.Errorf("engine: find ready: %w", err)
	}
	for _, node := range ready {
		if node.Kind == graph.KindAsk {
			if err := e.handleAsk(ctx, node); err != nil {
				e.Log.Warn("failed to handle ask node", "node", node.ID.Display(), "error", err)
			}
			continue
		}
		if err := e.dispatch(ctx, node, prompt.BuildPrompt); err != nil {
			e.Log.Warn("failed to dispatch node", "node", node.ID.Display(), "error", err)
			if failErr := e.Store.Fail(ctx, node.ID, fmt.Sprintf("dispatch failed: %v", err)); failErr != nil {
				e.Log.Warn("failed to mark dispatch failure", "node", node.ID.Display(), "error", failErr)
			}
			if e.Metrics != nil {
				e.Metrics.AgentFailures.Inc()
			}
		}
	}

	if _, err := e.checkSynthesis(ctx); err != nil {
		return false, err
	}

	if e.Metrics != nil {
		e.Metrics.ActiveAgents.Set(float64(e.Supervisor.ActiveCount()))
		if all, err := e.Store.All(ctx); err == nil {
			counts := make(map[graph.Status]int, len(all))
			for _, n := range all {
				counts[n.Status]++
			}
			e.Metrics.SetNodeCounts(counts)
		}
	}

	if e.OnTick != nil {
		if tree, err := e.Store.Tree(ctx); err == nil {
			e.OnTick(tree)
		}
	}

	quiescent, err := e.Store.IsQuiescent(ctx)
	if err != nil {
		return false, fmt.Errorf("engine: is quiescent: %w", err)
	}
	if quiescent {
		return true, nil
	}

	if len(ready) == 0 && e.Supervisor.ActiveCount() == 0 {
		return false, ErrStuck
	}
	return false, nil
}

type promptBuilder func(ctx context.Context, store graph.Store, id graph.ID) (string, error)

func (e *Engine) dispatch(ctx context.Context, node *graph.Node, build promptBuilder) error {
	text, err := build(ctx, e.Store, node.ID)
	if err != nil {
		return fmt.Errorf("build prompt: %w", err)
	}
	if err := e.Store.SetStatus(ctx, node.ID, graph.StatusActive); err != nil {
		return fmt.Errorf("activate: %w", err)
	}
	return e.launch(ctx, node.ID, text)
}

func (e *Engine) launch(ctx context.Context, id graph.ID, promptText string) error {
	adapter, err := e.Registry.Get(e.DefaultRuntime)
	if err != nil {
		return err
	}
	if err := adapter.Preflight(ctx); err != nil {
		return fmt.Errorf("preflight %s: %w", adapter.Name(), err)
	}

	plan, err := adapter.Plan(ctx, runtime.AgentLaunchRequest{
		NodeID:  id,
		Prompt:  promptText,
		RunID:   e.RunID,
		WorkDir: e.WorkDir,
		DBPath:  e.DBPath,
		Budget:  e.Budget,
		Model:   e.DefaultModel,
	})
	if err != nil {
		return fmt.Errorf("plan: %w", err)
	}

	cmd := exec.CommandContext(ctx, plan.Command, plan.Args...)
	cmd.Dir = e.WorkDir
	cmd.Env = append(cmd.Environ(), plan.Env...)
	if plan.Stdin != "" {
		cmd.Stdin = strings.NewReader(plan.Stdin)
	}

	return e.Supervisor.Register(id, cmd)
}

// handleExit reconciles a finished subprocess with the node it was
// running. An agent that exits 0 after already calling complete needs no
// action. One that exits 0 without completing but has children is
// presumed to be waiting on synthesis. One that exits 0 with neither is
// treated as a silent success, using its truncated stdout as the result
// so the run doesn't hang forever on a well-behaved but forgetful agent.
// A non-zero exit fails the node, with stdout/stderr truncated to 500
// characters as the stored reason.
func (e *Engine) handleExit(ctx context.Context, exit supervisor.ExitEvent) error {
	node, err := e.Store.Get(ctx, exit.NodeID)
	if err != nil {
		return err
	}
	if node == nil || node.Status.Terminal() {
		return nil
	}

	if exit.ExitCode != 0 {
		reason := fmt.Sprintf("agent exited %d: %s", exit.ExitCode, truncate(exit.Stderr+exit.Stdout, 500))
		if e.Metrics != nil {
			e.Metrics.AgentFailures.Inc()
		}
		return e.Store.Fail(ctx, exit.NodeID, reason)
	}

	children, err := e.Store.Children(ctx, exit.NodeID)
	if err != nil {
		return err
	}
	if len(children) > 0 {
		// Waiting on synthesis; leave status as active.
		return nil
	}
	if e.synthesized[exit.NodeID] {
		if e.Metrics != nil {
			e.Metrics.AgentFailures.Inc()
		}
		return e.Store.Fail(ctx, exit.NodeID, "synthesis agent exited without completing")
	}
	result := strings.TrimSpace(exit.Stdout)
	if r := []rune(result); len(r) > 500 {
		result = string(r[:500])
	}
	return e.Store.Complete(ctx, exit.NodeID, result)
}

// checkSynthesis relaunches any active node whose children have all
// reached a terminal status, or fails it outright if none of them
// completed, per section 4.5.
func (e *Engine) checkSynthesis(ctx context.Context) (bool, error) {
	all, err := e.Store.All(ctx)
	if err != nil {
		return false, err
	}
	active := e.Supervisor.ActiveIDs()
	activeSet := make(map[graph.ID]bool, len(active))
	for _, id := range active {
		activeSet[id] = true
	}

	progressed := false
	for _, node := range all {
		if node.Status != graph.StatusActive || activeSet[node.ID] {
			continue
		}
		children, err := e.Store.Children(ctx, node.ID)
		if err != nil {
			return false, err
		}
		if len(children) == 0 {
			continue
		}
		if !allTerminal(children) {
			continue
		}

		completed := 0
		for _, c := range children {
			if c.Status == graph.StatusComplete {
				completed++
			}
		}
		if completed == 0 {
			if err := e.Store.Fail(ctx, node.ID, "all child tasks failed or were cancelled"); err != nil {
				return false, err
			}
			if e.Metrics != nil {
				e.Metrics.AgentFailures.Inc()
			}
			progressed = true
			continue
		}
		if e.synthesized[node.ID] {
			// Already relaunched once for this child set; a second
			// silent exit without completing is a dead end.
			if err := e.Store.Fail(ctx, node.ID, "synthesis did not converge"); err != nil {
				return false, err
			}
			if e.Metrics != nil {
				e.Metrics.AgentFailures.Inc()
			}
			progressed = true
			continue
		}

		text, err := prompt.BuildSynthesisPrompt(ctx, e.Store, node.ID)
		if err != nil {
			return false, err
		}
		if err := e.launch(ctx, node.ID, text); err != nil {
			e.Log.Warn("failed to launch synthesis agent", "node", node.ID.Display(), "error", err)
			if failErr := e.Store.Fail(ctx, node.ID, fmt.Sprintf("synthesis dispatch failed: %v", err)); failErr != nil {
				return false, failErr
			}
			if e.Metrics != nil {
				e.Metrics.AgentFailures.Inc()
			}
			progressed = true
			continue
		}
		e.synthesized[node.ID] = true
		if e.Metrics != nil {
			e.Metrics.SynthesisRuns.Inc()
		}
		progressed = true
	}
	return progressed, nil
}

func (e *Engine) handleAsk(ctx context.Context, node *graph.Node) error {
	if err := e.Store.SetStatus(ctx, node.ID, graph.StatusActive); err != nil {
		return err
	}
	if e.AskHandler == nil {
		return e.Store.Fail(ctx, node.ID, "no ask handler configured")
	}
	answer, err := e.AskHandler(ctx, node)
	if err != nil {
		return e.Store.Fail(ctx, node.ID, fmt.Sprintf("ask failed: %v", err))
	}
	return e.Store.Complete(ctx, node.ID, answer)
}

func allTerminal(nodes []*graph.Node) bool {
	for _, n := range nodes {
		if !n.Status.Terminal() {
			return false
		}
	}
	return true
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
