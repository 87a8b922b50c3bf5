// Package prompt assembles the text an agent process receives on launch,
// per spec section 4.3. BuildPrompt is a pure function of the Graph
// Store's current state and a node id: it never mutates the store.
package prompt

import (
	"context"
	"fmt"
	"strings"

	"github.com/corddev/cord/internal/graph"
)

// BuildPrompt composes the full prompt for node id, in the fixed section
// order: Identity, GoalChain (when depth > 1), injected dependency
// results, fork context (for kind=fork), the node's own objective and
// prompt, the tool catalogue/workflow block, and output-format
// instructions derived from the node's Returns tag.
func BuildPrompt(ctx context.Context, store graph.Store, id graph.ID) (string, error) {
	node, err := store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if node == nil {
		return "", &graph.Error{Code: graph.CodeNotFound, Msg: fmt.Sprintf("node %s not found", id.Display())}
	}

	var b strings.Builder

	writeIdentity(&b, node)

	chain, err := store.GoalChain(ctx, id)
	if err != nil {
		return "", err
	}
	if len(chain) > 1 {
		writeGoalChain(&b, chain)
	}

	if len(node.DependsOn) > 0 {
		results, err := store.CompletedResults(ctx, node.DependsOn)
		if err != nil {
			return "", err
		}
		writeDependencyResults(&b, node.DependsOn, results)
	}

	if node.Kind == graph.KindFork && node.Parent != nil {
		siblings, err := store.Children(ctx, *node.Parent)
		if err != nil {
			return "", err
		}
		writeForkContext(&b, node.ID, siblings)
	}

	writeObjective(&b, node)
	writeToolCatalogue(&b)
	writeOutputInstructions(&b, node.Returns)

	return b.String(), nil
}

// BuildSynthesisPrompt composes the prompt for relaunching parent once
// every child has reached a terminal status and at least one completed
// (section 4.5's synthesis step). It surfaces each child's outcome so the
// parent agent can reconcile them into a final result.
func BuildSynthesisPrompt(ctx context.Context, store graph.Store, parent graph.ID) (string, error) {
	node, err := store.Get(ctx, parent)
	if err != nil {
		return "", err
	}
	if node == nil {
		return "", &graph.Error{Code: graph.CodeNotFound, Msg: fmt.Sprintf("node %s not found", parent.Display())}
	}
	children, err := store.Children(ctx, parent)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	writeIdentity(&b, node)

	chain, err := store.GoalChain(ctx, parent)
	if err != nil {
		return "", err
	}
	if len(chain) > 1 {
		writeGoalChain(&b, chain)
	}

	fmt.Fprintf(&b, "Every child task you spawned has finished. Synthesize their outcomes into your own result.\n\n")
	for _, c := range children {
		fmt.Fprintf(&b, "- %s [%s] %s\n", c.ID.Display(), c.Status, c.Objective)
		if c.Status == graph.StatusComplete && c.Result != "" {
			fmt.Fprintf(&b, "  result: %s\n", indent(c.Result))
		}
	}
	b.WriteString("\n")

	writeObjective(&b, node)
	writeToolCatalogue(&b)
	writeOutputInstructions(&b, node.Returns)

	return b.String(), nil
}

func writeIdentity(b *strings.Builder, node *graph.Node) {
	fmt.Fprintf(b, "You are agent %s, a %s task in a larger coordinated effort.\n\n", node.ID.Display(), node.Kind)
}

func writeGoalChain(b *strings.Builder, chain []graph.ChainEntry) {
	b.WriteString("Goal chain (root to your task):\n")
	for _, entry := range chain {
		fmt.Fprintf(b, "  %s %s\n", entry.ID.Display(), entry.Objective)
	}
	b.WriteString("\n")
}

func writeDependencyResults(b *strings.Builder, dependsOn []graph.ID, results map[graph.ID]string) {
	b.WriteString("Results from tasks you depend on:\n")
	for _, id := range dependsOn {
		result, ok := results[id]
		if !ok {
			continue
		}
		fmt.Fprintf(b, "  %s: %s\n", id.Display(), indent(result))
	}
	b.WriteString("\n")
}

func writeForkContext(b *strings.Builder, self graph.ID, siblings []*graph.Node) {
	var completed []*graph.Node
	for _, s := range siblings {
		if s.ID != self && s.Status == graph.StatusComplete && s.Result != "" {
			completed = append(completed, s)
		}
	}
	if len(completed) == 0 {
		return
	}
	b.WriteString("Context from sibling tasks that already completed:\n")
	for _, s := range completed {
		fmt.Fprintf(b, "  %s %s -> %s\n", s.ID.Display(), s.Objective, indent(s.Result))
	}
	b.WriteString("\n")
}

func writeObjective(b *strings.Builder, node *graph.Node) {
	fmt.Fprintf(b, "Your task: %s\n", node.Objective)
	if node.Prompt != "" {
		fmt.Fprintf(b, "\n%s\n", node.Prompt)
	}
	b.WriteString("\n")
}

func writeToolCatalogue(b *strings.Builder) {
	b.WriteString(`Tools available to you (via the cord MCP server):
  read_tree             - view the entire coordination tree
  read_node(node_id)    - inspect a single node
  spawn(objective, ...)  - create an isolated child task
  fork(objective, ...)   - create a child task that inherits sibling context
  ask(question, options) - ask the human operator a question
  complete(result)       - finish your own task with a result
  stop(node_id)          - cancel a descendant task
  pause(node_id)         - pause a descendant task
  resume(node_id)        - resume a paused descendant task
  modify(node_id, ...)    - update a pending or paused descendant's objective/prompt

You may only stop, pause, resume, or modify tasks that are proper
descendants of your own node. You must eventually call complete.

`)
}

func writeOutputInstructions(b *strings.Builder, returns graph.Returns) {
	switch returns {
	case graph.ReturnsList:
		b.WriteString("Return your result as a newline-separated list of items.\n")
	case graph.ReturnsStructured:
		b.WriteString("Return your result as structured JSON matching the shape implied by your task.\n")
	case graph.ReturnsFile:
		b.WriteString("Return your result as a path to a file you produced.\n")
	case graph.ReturnsBoolean:
		b.WriteString("Return your result as exactly \"true\" or \"false\".\n")
	case graph.ReturnsApproval:
		b.WriteString("Return your result as \"approved\" or \"rejected\", with a brief reason.\n")
	default:
		b.WriteString("Return your result as plain text.\n")
	}
}

func indent(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "\n", "\n    ")
}
