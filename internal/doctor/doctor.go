// Package doctor implements `cord doctor`: a preflight sweep over every
// registered runtime adapter, reporting whether its underlying CLI binary
// is actually reachable before a run tries to rely on it.
package doctor

import (
	"context"
	"sort"

	"github.com/corddev/cord/internal/runtime"
)

// Result is one adapter's preflight outcome.
type Result struct {
	Adapter string
	OK      bool
	Err     error
}

// Check runs Preflight against every adapter in reg, in name order for a
// stable report.
func Check(ctx context.Context, reg *runtime.Registry) []Result {
	names := reg.Names()
	sort.Strings(names)

	results := make([]Result, 0, len(names))
	for _, name := range names {
		adapter, err := reg.Get(name)
		if err != nil {
			results = append(results, Result{Adapter: name, OK: false, Err: err})
			continue
		}
		err = adapter.Preflight(ctx)
		results = append(results, Result{Adapter: name, OK: err == nil, Err: err})
	}
	return results
}

// AllOK reports whether every result succeeded.
func AllOK(results []Result) bool {
	for _, r := range results {
		if !r.OK {
			return false
		}
	}
	return true
}
