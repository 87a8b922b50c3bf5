package runtime

import (
	"context"
	"os/exec"
)

// AmpAdapter wraps Sourcegraph's amp CLI. amp has no budget flag; tool
// access is declared through the generated MCP config file passed with
// --mcp-config.
type AmpAdapter struct{}

func NewAmpAdapter() *AmpAdapter { return &AmpAdapter{} }

func (a *AmpAdapter) Name() string { return "amp" }

func (a *AmpAdapter) Capabilities() Capabilities {
	return Capabilities{SupportsMCP: true, SupportsBudget: false}
}

func (a *AmpAdapter) Preflight(ctx context.Context) error {
	if _, err := exec.LookPath("amp"); err != nil {
		return &ErrBinaryNotFound{Binary: "amp"}
	}
	return nil
}

func (a *AmpAdapter) Plan(ctx context.Context, req AgentLaunchRequest) (LaunchPlan, error) {
	mcpPath, err := writeMCPConfig(req.WorkDir, req.RunID, req.NodeID, req.DBPath)
	if err != nil {
		return LaunchPlan{}, err
	}

	args := []string{
		"--execute",
		"--mcp-config", mcpPath,
		"--dangerously-allow-all",
	}
	args = append(args, req.Prompt)

	return LaunchPlan{
		Command: "amp",
		Args:    args,
	}, nil
}
