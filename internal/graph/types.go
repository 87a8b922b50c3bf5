// Package graph implements the persistent task graph that coordination
// state for a cord run lives in: nodes, dependency edges, and the
// transactional operations that keep both acyclic.
package graph

import (
	"strconv"
	"time"
)

// Kind distinguishes how a node was created and what context it receives.
type Kind string

const (
	// KindGoal marks the root node of a run.
	KindGoal Kind = "goal"
	// KindSpawn marks a child that receives no sibling context.
	KindSpawn Kind = "spawn"
	// KindFork marks a child that inherits completed siblings' results.
	KindFork Kind = "fork"
	// KindAsk marks a node answered by a human rather than an agent.
	KindAsk Kind = "ask"
)

// Valid reports whether k is one of the known node kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindGoal, KindSpawn, KindFork, KindAsk:
		return true
	default:
		return false
	}
}

// Status is a node's position in the automaton of section 4.5.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusComplete  Status = "complete"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether s is one of the run's terminal statuses.
func (s Status) Terminal() bool {
	switch s {
	case StatusComplete, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusPaused, StatusComplete, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// transitions enumerates the allowed status automaton edges. A status not
// present as a key has no outgoing edges (it is terminal).
var transitions = map[Status]map[Status]bool{
	StatusPending: {StatusActive: true, StatusCancelled: true},
	StatusActive:  {StatusComplete: true, StatusFailed: true, StatusPaused: true, StatusCancelled: true},
	StatusPaused:  {StatusPending: true, StatusCancelled: true},
}

// CanTransition reports whether the automaton allows from -> to. A
// same-status "transition" is treated as idempotent and always allowed,
// except for terminal statuses which never allow re-entry.
func CanTransition(from, to Status) bool {
	if from == to {
		return !from.Terminal()
	}
	edges, ok := transitions[from]
	if !ok {
		return false
	}
	return edges[to]
}

// Returns is the advisory output-format tag attached to a node. It has no
// fixed enumeration in storage — the well-known values below only change
// prompt assembly (section 4.3); any other string is accepted as a free tag.
type Returns string

const (
	ReturnsText       Returns = "text"
	ReturnsList       Returns = "list"
	ReturnsStructured Returns = "structured"
	ReturnsFile       Returns = "file"
	ReturnsBoolean    Returns = "boolean"
	ReturnsApproval   Returns = "approval"
)

// ID identifies a node. The integer is the source of truth; #N is only a
// display/wire convention (section 6, "Node-id textual form").
type ID int64

// Node is a single vertex of the coordination tree.
type Node struct {
	ID        ID
	Kind      Kind
	Objective string
	Status    Status
	Parent    *ID
	Prompt    string
	Returns   Returns
	Result    string
	CreatedAt time.Time
	UpdatedAt time.Time

	// DependsOn holds the ids this node depends on. Populated by readers
	// that need it (Get, Tree); callers that only need status transitions
	// don't pay for it.
	DependsOn []ID
}

// Display renders a node id in its external #N form.
func (id ID) Display() string {
	return "#" + strconv.FormatInt(int64(id), 10)
}

// TreeNode is a Node plus its materialized children, as returned by Tree.
type TreeNode struct {
	Node
	Children []*TreeNode
}
