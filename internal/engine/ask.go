package engine

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/corddev/cord/internal/graph"
)

const (
	ansiBold = "\x1b[1m"
	ansiCyan = "\x1b[36m"
	ansiDim  = "\x1b[2m"
	ansiOff  = "\x1b[0m"
)

// TerminalAsk builds an AskHandler that prints the question to out in
// bold cyan, its suggested options dimmed below it, and reads a line of
// answer from in. An empty answer falls back to the first option, if
// any — the "default" per section 4.6.
func TerminalAsk(in io.Reader, out io.Writer) AskHandler {
	scanner := bufio.NewScanner(in)
	return func(ctx context.Context, node *graph.Node) (string, error) {
		options := decodeOptions(node.Prompt)

		fmt.Fprintf(out, "%s%s? %s%s\n", ansiBold, ansiCyan, node.Objective, ansiOff)
		for _, opt := range options {
			fmt.Fprintf(out, "%s  - %s%s\n", ansiDim, opt, ansiOff)
		}
		if len(options) > 0 {
			fmt.Fprintf(out, "%s(default: %s)%s\n", ansiDim, options[0], ansiOff)
		}
		fmt.Fprintf(out, "%s%s> %s", ansiBold, ansiCyan, ansiOff)

		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return "", err
			}
			if len(options) > 0 {
				return options[0], nil
			}
			return "", fmt.Errorf("no answer given and no default option")
		}

		answer := strings.TrimSpace(scanner.Text())
		if answer == "" && len(options) > 0 {
			return options[0], nil
		}
		return answer, nil
	}
}

func decodeOptions(prompt string) []string {
	if prompt == "" {
		return nil
	}
	var options []string
	if err := json.Unmarshal([]byte(prompt), &options); err != nil {
		return nil
	}
	return options
}
