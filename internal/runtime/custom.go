package runtime

import (
	"context"
	"os/exec"
)

// CustomAdapter wraps an operator-declared CLI from cord.yaml's adapters
// section: a command plus fixed arguments, with the assembled prompt
// appended and an MCP config generated the same way as the built-ins.
type CustomAdapter struct {
	AdapterName string
	Command     string
	FixedArgs   []string
}

func NewCustomAdapter(name, command string, fixedArgs []string) *CustomAdapter {
	return &CustomAdapter{AdapterName: name, Command: command, FixedArgs: fixedArgs}
}

func (a *CustomAdapter) Name() string { return a.AdapterName }

func (a *CustomAdapter) Capabilities() Capabilities {
	return Capabilities{SupportsMCP: true, SupportsBudget: false}
}

func (a *CustomAdapter) Preflight(ctx context.Context) error {
	if _, err := exec.LookPath(a.Command); err != nil {
		return &ErrBinaryNotFound{Binary: a.Command}
	}
	return nil
}

func (a *CustomAdapter) Plan(ctx context.Context, req AgentLaunchRequest) (LaunchPlan, error) {
	mcpPath, err := writeMCPConfig(req.WorkDir, req.RunID, req.NodeID, req.DBPath)
	if err != nil {
		return LaunchPlan{}, err
	}

	args := make([]string, 0, len(a.FixedArgs)+3)
	args = append(args, a.FixedArgs...)
	args = append(args, "--mcp-config", mcpPath, req.Prompt)

	return LaunchPlan{Command: a.Command, Args: args}, nil
}
