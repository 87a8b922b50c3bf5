// Package runtime implements the Runtime Adapter Interface of spec
// section 4.7: a tagged registry of value types, one per supported agent
// CLI, each turning an AgentLaunchRequest into a concrete LaunchPlan.
package runtime

import (
	"context"
	"fmt"

	"github.com/corddev/cord/internal/graph"
)

// Capabilities describes what an adapter's underlying CLI can do, so the
// Engine can decide whether a feature (MCP tool access, a budget flag) is
// available before it relies on it.
type Capabilities struct {
	// SupportsMCP means the CLI can be configured to talk to a tool
	// server over stdio via a generated MCP config file.
	SupportsMCP bool
	// SupportsBudget means the CLI accepts a cost/turn budget flag of its
	// own; Cord never enforces budgets itself (spec's explicit Non-goal).
	SupportsBudget bool
	// SupportsModel means the CLI accepts a --model flag selecting which
	// underlying model to run.
	SupportsModel bool
	// SupportsAllowedTools means the CLI accepts an explicit whitelist of
	// tool names, which Plan uses to restrict the agent to exactly the
	// tool server's catalogue (internal/toolserver.Catalogue) instead of
	// whatever else the CLI exposes by default.
	SupportsAllowedTools bool
}

// AgentLaunchRequest is everything an adapter needs to plan a launch for
// one node.
type AgentLaunchRequest struct {
	NodeID graph.ID
	Prompt string
	// RunID tags which invocation of `cord run` this launch belongs to,
	// so side files from concurrent runs sharing a work dir never
	// collide and log lines from different runs stay distinguishable.
	RunID   string
	WorkDir string
	DBPath  string
	Budget  float64
	Model   string
}

// LaunchPlan is the concrete subprocess an adapter wants started: a
// command, its arguments, environment additions, and (for CLIs that read
// their task from stdin rather than an argument) optional stdin content.
type LaunchPlan struct {
	Command string
	Args    []string
	Env     []string
	Stdin   string
}

// Adapter is the interface every supported agent CLI implements. Cord
// treats adapters as plain values in a registry, not as a class
// hierarchy: new CLIs are added by writing a new Adapter and registering
// it, never by modifying the Engine.
type Adapter interface {
	// Name is the adapter's registry key, also accepted as the --runtime
	// flag value and the cord.yaml default_runtime setting.
	Name() string
	Capabilities() Capabilities
	// Preflight checks that the CLI this adapter wraps is actually
	// installed and runnable, returning a descriptive error if not.
	Preflight(ctx context.Context) error
	// Plan turns req into a LaunchPlan, including generating any MCP
	// config side-file the CLI needs to reach the tool server.
	Plan(ctx context.Context, req AgentLaunchRequest) (LaunchPlan, error)
}

// ErrBinaryNotFound is wrapped by a Preflight failure when the adapter's
// underlying CLI binary is not on PATH.
type ErrBinaryNotFound struct {
	Binary string
}

func (e *ErrBinaryNotFound) Error() string {
	return fmt.Sprintf("required binary %q not found on PATH", e.Binary)
}
