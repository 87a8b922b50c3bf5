package toolserver

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/corddev/cord/internal/graph"
	"github.com/corddev/cord/internal/telemetry"
)

// Server is one agent's view of the Graph Store: every call it dispatches
// is scoped to AgentID, the node id of the agent process that owns this
// server instance (section 4.2).
type Server struct {
	Store   graph.Store
	AgentID graph.ID
	Log     *slog.Logger

	// AskSink, if set, is called with the id of every ask node this server
	// creates. The internal-tool-server command leaves it nil; the engine
	// finds ask nodes through FindReady instead.
	AskSink func(id graph.ID)

	// Tracer, if set, wraps every dispatched call in a span. Left nil in
	// tests and by callers that don't want tracing.
	Tracer trace.Tracer
}

// Serve reads newline-delimited Request objects from r and writes the
// corresponding Response objects to w until r is exhausted. Every error
// is turned into a Response.Error; Serve itself only returns on an I/O
// failure of the transport, never because a tool call failed.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	enc := json.NewEncoder(w)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			if encErr := enc.Encode(Response{Error: &RPCError{Code: string(graph.CodeBadArgs), Message: err.Error()}}); encErr != nil {
				return encErr
			}
			continue
		}
		resp := s.dispatch(ctx, req)
		if err := enc.Encode(resp); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func (s *Server) dispatch(ctx context.Context, req Request) Response {
	if s.Tracer != nil {
		var span trace.Span
		ctx, span = telemetry.StartToolCall(ctx, s.Tracer, req.Method)
		defer span.End()
	}

	resp := Response{ID: req.ID}

	if err := ValidateParams(req.Method, req.Params); err != nil {
		resp.Error = &RPCError{Code: string(graph.CodeBadArgs), Message: err.Error()}
		return resp
	}

	result, err := s.call(ctx, req.Method, req.Params)
	if err != nil {
		code, ok := graph.CodeOf(err)
		if !ok {
			code = graph.CodeBadArgs
		}
		s.Log.Warn("tool call failed", "method", req.Method, "agent", s.AgentID.Display(), "error", err)
		resp.Error = &RPCError{Code: string(code), Message: err.Error()}
		return resp
	}
	resp.Result = result
	return resp
}

func (s *Server) call(ctx context.Context, method string, raw json.RawMessage) (any, error) {
	switch method {
	case MethodReadTree:
		return s.Store.Tree(ctx)

	case MethodReadNode:
		var p ReadNodeParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return s.Store.Get(ctx, graph.ID(p.NodeID))

	case MethodSpawn:
		var p SpawnParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return s.createChild(ctx, graph.KindSpawn, p.Objective, p.Prompt, p.Returns, p.DependsOn)

	case MethodFork:
		var p ForkParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return s.createChild(ctx, graph.KindFork, p.Objective, p.Prompt, p.Returns, p.DependsOn)

	case MethodAsk:
		var p AskParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		id, err := s.Store.CreateNode(ctx, graph.CreateInput{
			Kind:      graph.KindAsk,
			Objective: p.Question,
			Parent:    &s.AgentID,
			Prompt:    encodeOptions(p.Options),
		})
		if err != nil {
			return nil, err
		}
		if s.AskSink != nil {
			s.AskSink(id)
		}
		return map[string]any{"node_id": int64(id)}, nil

	case MethodComplete:
		var p CompleteParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		if err := s.Store.Complete(ctx, s.AgentID, p.Result); err != nil {
			return nil, err
		}
		return map[string]any{"ok": true}, nil

	case MethodStop:
		return s.mutateDescendant(ctx, raw, "", graph.StatusCancelled)

	case MethodPause:
		return s.mutateDescendant(ctx, raw, graph.StatusActive, graph.StatusPaused)

	case MethodResume:
		return s.mutateDescendant(ctx, raw, graph.StatusPaused, graph.StatusPending)

	case MethodModify:
		var p ModifyParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		target := graph.ID(p.NodeID)
		if p.Objective == nil && p.Prompt == nil {
			return nil, &graph.Error{Code: graph.CodeBadArgs, Msg: "modify requires at least one of objective or prompt"}
		}
		if err := RequireDescendant(ctx, s.Store, s.AgentID, target); err != nil {
			return nil, &graph.Error{Code: graph.CodeBadArgs, Msg: err.Error()}
		}
		if err := s.Store.Modify(ctx, target, p.Objective, p.Prompt); err != nil {
			return nil, err
		}
		return map[string]any{"ok": true}, nil

	default:
		return nil, &graph.Error{Code: graph.CodeBadArgs, Msg: fmt.Sprintf("unknown method %q", method)}
	}
}

func (s *Server) createChild(ctx context.Context, kind graph.Kind, objective, prompt, returns string, dependsOn []int64) (any, error) {
	deps := make([]graph.ID, len(dependsOn))
	for i, d := range dependsOn {
		deps[i] = graph.ID(d)
	}
	id, err := s.Store.CreateNode(ctx, graph.CreateInput{
		Kind:      kind,
		Objective: objective,
		Parent:    &s.AgentID,
		Prompt:    prompt,
		Returns:   graph.Returns(returns),
		DependsOn: deps,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"node_id": int64(id)}, nil
}

// mutateDescendant transitions target to newStatus, first checking that
// target is a proper descendant of the calling agent and, if
// requireCurrent is non-empty, that target's current status matches it
// exactly — stop has no such requirement (the automaton already permits
// cancelling from pending, active, or paused), but pause requires active
// and resume requires paused, per section 8's BadState scenarios. This is
// deliberately stricter than the automaton's same-status idempotence
// (graph.CanTransition), which would otherwise let pause-on-paused and
// resume-on-pending through as silent no-ops.
func (s *Server) mutateDescendant(ctx context.Context, raw json.RawMessage, requireCurrent, newStatus graph.Status) (any, error) {
	var p NodeRefParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	target := graph.ID(p.NodeID)
	if err := RequireDescendant(ctx, s.Store, s.AgentID, target); err != nil {
		return nil, &graph.Error{Code: graph.CodeBadArgs, Msg: err.Error()}
	}
	if requireCurrent != "" {
		node, err := s.Store.Get(ctx, target)
		if err != nil {
			return nil, err
		}
		if node == nil {
			return nil, &graph.Error{Code: graph.CodeNotFound, Msg: fmt.Sprintf("node %s not found", target.Display())}
		}
		if node.Status != requireCurrent {
			return nil, &graph.Error{Code: graph.CodeBadState, Msg: fmt.Sprintf("%s is %s, not %s", target.Display(), node.Status, requireCurrent)}
		}
	}
	if err := s.Store.SetStatus(ctx, target, newStatus); err != nil {
		return nil, err
	}
	return map[string]any{"ok": true}, nil
}

func encodeOptions(options []string) string {
	if len(options) == 0 {
		return ""
	}
	raw, err := json.Marshal(options)
	if err != nil {
		return ""
	}
	return string(raw)
}
