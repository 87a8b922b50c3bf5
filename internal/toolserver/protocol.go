// Package toolserver implements the per-agent tool protocol of spec
// section 4.2: a small JSON-RPC-over-stdio server that an agent's CLI
// talks to via its generated MCP config, backed directly by the shared
// Graph Store.
package toolserver

import "encoding/json"

// Request is one line of the stdio protocol: a JSON-RPC-shaped call.
type Request struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response is the corresponding reply. Result and Error are mutually
// exclusive; a tool failure always produces a Response, never a crash
// (section 7: taxonomy errors are returned to the caller, never fatal).
type Response struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Result any             `json:"result,omitempty"`
	Error  *RPCError       `json:"error,omitempty"`
}

// RPCError is the wire form of a failed call.
type RPCError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Catalogue enumerates the tool names the server dispatches. These are
// exactly the operations agents see in their prompt's workflow block
// (section 4.3).
const (
	MethodReadTree  = "read_tree"
	MethodReadNode  = "read_node"
	MethodSpawn     = "spawn"
	MethodFork      = "fork"
	MethodAsk       = "ask"
	MethodComplete  = "complete"
	MethodStop      = "stop"
	MethodPause     = "pause"
	MethodResume    = "resume"
	MethodModify    = "modify"
)

// Catalogue lists every method name the server accepts, in the order
// they're presented in the prompt's tool catalogue.
var Catalogue = []string{
	MethodReadTree,
	MethodReadNode,
	MethodSpawn,
	MethodFork,
	MethodAsk,
	MethodComplete,
	MethodStop,
	MethodPause,
	MethodResume,
	MethodModify,
}

// SpawnParams creates an isolated child node with no sibling context.
type SpawnParams struct {
	Objective string   `json:"objective" jsonschema:"required,description=What the child agent must accomplish"`
	Prompt    string   `json:"prompt,omitempty" jsonschema:"description=Additional instructions injected into the child's prompt"`
	Returns   string   `json:"returns,omitempty" jsonschema:"description=Expected output shape: text, list, structured, file, boolean, or approval"`
	DependsOn []int64  `json:"depends_on,omitempty" jsonschema:"description=Node ids that must complete before this child becomes ready"`
}

// ForkParams creates a child that inherits its completed siblings' results.
type ForkParams struct {
	Objective string  `json:"objective" jsonschema:"required"`
	Prompt    string  `json:"prompt,omitempty"`
	Returns   string  `json:"returns,omitempty"`
	DependsOn []int64 `json:"depends_on,omitempty"`
}

// AskParams creates a node answered by a human instead of an agent.
type AskParams struct {
	Question string   `json:"question" jsonschema:"required,description=The question to put to the human operator"`
	Options  []string `json:"options,omitempty" jsonschema:"description=Suggested answers; the first is the default"`
}

// CompleteParams finishes the calling node with a result.
type CompleteParams struct {
	Result string `json:"result" jsonschema:"required"`
}

// NodeRefParams targets stop/pause/resume at a node.
type NodeRefParams struct {
	NodeID int64 `json:"node_id" jsonschema:"required"`
}

// ModifyParams updates a pending or paused node's objective and/or prompt.
type ModifyParams struct {
	NodeID    int64   `json:"node_id" jsonschema:"required"`
	Objective *string `json:"objective,omitempty"`
	Prompt    *string `json:"prompt,omitempty"`
}

// ReadNodeParams targets a single node for inspection.
type ReadNodeParams struct {
	NodeID int64 `json:"node_id" jsonschema:"required"`
}
