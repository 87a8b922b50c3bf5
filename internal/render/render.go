// Package render draws the live status tree the engine prints to the
// terminal each tick (spec section 4.5's status display).
package render

import (
	"crypto/sha256"
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/corddev/cord/internal/graph"
)

const (
	colorReset  = "\x1b[0m"
	colorDim    = "\x1b[2m"
	colorGreen  = "\x1b[32m"
	colorRed    = "\x1b[31m"
	colorYellow = "\x1b[33m"
	colorCyan   = "\x1b[36m"
	colorGray   = "\x1b[90m"
)

// Renderer draws a graph.TreeNode to an io.Writer with a plain ASCII
// status icon per node, adding color only when the writer is a real
// terminal. It skips
// redrawing a tree whose rendered content is unchanged from the last
// call, to avoid flooding a pipe or log file with identical frames.
type Renderer struct {
	w        io.Writer
	color    bool
	lastHash [32]byte
	hasDrawn bool
}

// New creates a Renderer writing to w. Color is enabled only if w is
// attached to a terminal, detected via go-isatty the same way CLIs in
// this codebase decide whether to colorize output.
func New(w io.Writer) *Renderer {
	color := false
	if f, ok := w.(interface{ Fd() uintptr }); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Renderer{w: w, color: color}
}

// Draw renders tree, skipping the write entirely if it is byte-for-byte
// identical to the last tree drawn.
func (r *Renderer) Draw(tree *graph.TreeNode) {
	if tree == nil {
		return
	}
	var b strings.Builder
	r.renderNode(&b, tree, "", true)
	out := b.String()

	hash := sha256.Sum256([]byte(out))
	if r.hasDrawn && hash == r.lastHash {
		return
	}
	r.lastHash = hash
	r.hasDrawn = true

	fmt.Fprint(r.w, out)
}

func (r *Renderer) renderNode(b *strings.Builder, n *graph.TreeNode, prefix string, root bool) {
	icon, color := statusStyle(n.Status)
	line := fmt.Sprintf("%s %s %s %s", icon, n.ID.Display(), n.Kind, n.Objective)
	if r.color {
		b.WriteString(prefix + color + line + colorReset + "\n")
	} else {
		b.WriteString(prefix + line + "\n")
	}

	childPrefix := prefix + "  "
	for _, child := range n.Children {
		r.renderNode(b, child, childPrefix, false)
	}
}

func statusStyle(s graph.Status) (icon, color string) {
	switch s {
	case graph.StatusPending:
		return "o", colorGray
	case graph.StatusActive:
		return "*", colorCyan
	case graph.StatusPaused:
		return "=", colorYellow
	case graph.StatusComplete:
		return "v", colorGreen
	case graph.StatusFailed:
		return "x", colorRed
	case graph.StatusCancelled:
		return "-", colorDim
	default:
		return "?", colorReset
	}
}
