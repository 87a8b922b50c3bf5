package graph

import "context"

// CreateInput holds the fields accepted by Store.CreateNode. Kind and
// Objective are required; everything else is optional.
type CreateInput struct {
	Kind          Kind
	Objective     string
	Parent        *ID
	Prompt        string
	Returns       Returns
	InitialStatus Status // defaults to StatusPending if empty
	DependsOn     []ID
}

// Store is the Graph Store of spec section 4.1: a persistent, concurrent,
// process-safe record of every node and dependency edge in a run. Every
// method must provide serializable semantics even when many Tool Server
// instances and the Engine call it concurrently — single-writer-per-row
// discipline is the implementation's job, not the caller's.
type Store interface {
	// CreateNode atomically inserts a node and its dependency edges. It
	// rejects with a *Error{Code: CodeEdgeCycle} if any supplied
	// dependency would close a cycle.
	CreateNode(ctx context.Context, in CreateInput) (ID, error)

	// SetStatus transitions a node to status. Setting the same status
	// twice in a row is idempotent. An illegal transition (section 4.5)
	// fails with CodeBadTransition.
	SetStatus(ctx context.Context, id ID, status Status) error

	// Modify partially updates objective and/or prompt. At least one of
	// objective/prompt must be non-nil, or the call is a silent no-op
	// (see SPEC_FULL.md's edge case clarifications) — BadArgs is enforced
	// one layer up, at the tool server. Fails with CodeBadState unless the
	// node's current status is pending or paused.
	Modify(ctx context.Context, id ID, objective, prompt *string) error

	// Complete is a single atomic transition to StatusComplete with
	// result. It is idempotent once the node is already complete: it
	// silently overwrites the stored result (spec section 9, decided in
	// SPEC_FULL.md). A failed or cancelled node is not completed: the call
	// fails with CodeBadTransition.
	Complete(ctx context.Context, id ID, result string) error

	// Fail transitions a node straight to StatusFailed with reason stored
	// as its result, for the engine's exit-code and synthesis handling
	// (section 4.5). A no-op if the node is already terminal.
	Fail(ctx context.Context, id ID, reason string) error

	// Get returns a node by id, or (nil, nil) if it does not exist.
	Get(ctx context.Context, id ID) (*Node, error)

	// Children returns a node's direct children in id order.
	Children(ctx context.Context, id ID) ([]*Node, error)

	// Dependencies returns the ids a node depends on.
	Dependencies(ctx context.Context, id ID) ([]ID, error)

	// Tree returns the full tree rooted at the run's single root node, or
	// nil if no node has been created yet.
	Tree(ctx context.Context) (*TreeNode, error)

	// All returns every node in id order.
	All(ctx context.Context) ([]*Node, error)

	// FindReady returns every pending node whose dependencies are all
	// complete, in id order.
	FindReady(ctx context.Context) ([]*Node, error)

	// IsQuiescent reports whether every node is in a terminal status. A
	// store with no nodes at all is vacuously quiescent.
	IsQuiescent(ctx context.Context) (bool, error)

	// GoalChain returns the root-to-id path as (id, objective) pairs, with
	// the root first and id itself last.
	GoalChain(ctx context.Context, id ID) ([]ChainEntry, error)

	// CompletedResults returns the result of each id in ids that is
	// currently complete and has a non-empty result. Ids that are missing,
	// not complete, or have an empty result are simply absent from the map.
	CompletedResults(ctx context.Context, ids []ID) (map[ID]string, error)

	// Close releases the store's resources.
	Close() error
}

// ChainEntry is one hop of a GoalChain result.
type ChainEntry struct {
	ID        ID
	Objective string
}
