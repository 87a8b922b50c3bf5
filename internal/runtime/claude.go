package runtime

import (
	"context"
	"os/exec"
	"strings"

	"github.com/corddev/cord/internal/toolserver"
)

// ClaudeAdapter wraps the `claude` CLI in non-interactive print mode with
// an MCP config pointing back at the tool server.
type ClaudeAdapter struct{}

func NewClaudeAdapter() *ClaudeAdapter { return &ClaudeAdapter{} }

func (a *ClaudeAdapter) Name() string { return "claude" }

func (a *ClaudeAdapter) Capabilities() Capabilities {
	return Capabilities{SupportsMCP: true, SupportsBudget: false, SupportsModel: true, SupportsAllowedTools: true}
}

func (a *ClaudeAdapter) Preflight(ctx context.Context) error {
	if _, err := exec.LookPath("claude"); err != nil {
		return &ErrBinaryNotFound{Binary: "claude"}
	}
	return nil
}

func (a *ClaudeAdapter) Plan(ctx context.Context, req AgentLaunchRequest) (LaunchPlan, error) {
	mcpPath, err := writeMCPConfig(req.WorkDir, req.RunID, req.NodeID, req.DBPath)
	if err != nil {
		return LaunchPlan{}, err
	}

	args := []string{
		"--print",
		"--output-format", "text",
		"--mcp-config", mcpPath,
		"--permission-mode", "bypassPermissions",
		"--allowedTools", strings.Join(toolserver.Catalogue, ","),
	}
	if req.Model != "" {
		args = append(args, "--model", req.Model)
	}
	args = append(args, req.Prompt)

	return LaunchPlan{
		Command: "claude",
		Args:    args,
	}, nil
}
