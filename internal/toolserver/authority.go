package toolserver

import (
	"context"
	"fmt"

	"github.com/corddev/cord/internal/graph"
)

// NotInSubtree reports whether target is NOT a proper descendant of
// caller. stop/pause/resume/modify are only authorized against a proper
// descendant of the calling agent's own node (section 4.2's authority
// rule); spawn/fork/ask/complete act on the caller's own node and need no
// check at all.
func NotInSubtree(ctx context.Context, store graph.Store, caller, target graph.ID) (bool, error) {
	if caller == target {
		return true, nil
	}
	cur := target
	for {
		n, err := store.Get(ctx, cur)
		if err != nil {
			return false, err
		}
		if n == nil {
			return true, nil
		}
		if n.Parent == nil {
			return true, nil
		}
		if *n.Parent == caller {
			return false, nil
		}
		cur = *n.Parent
	}
}

// RequireDescendant returns a BadArgs-flavored error if target is not a
// proper descendant of caller, for use by the stop/pause/resume/modify
// handlers.
func RequireDescendant(ctx context.Context, store graph.Store, caller, target graph.ID) error {
	outside, err := NotInSubtree(ctx, store, caller, target)
	if err != nil {
		return err
	}
	if outside {
		return fmt.Errorf("%s is not a descendant of the calling node %s", target.Display(), caller.Display())
	}
	return nil
}
