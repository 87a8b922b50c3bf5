package runtime

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/corddev/cord/internal/graph"
)

// mcpServerConfig is the shape every adapter's CLI expects for a stdio
// MCP server entry: a command plus arguments to launch it.
type mcpServerConfig struct {
	Command string   `json:"command"`
	Args    []string `json:"args"`
}

type mcpConfigFile struct {
	MCPServers map[string]mcpServerConfig `json:"mcpServers"`
}

// writeMCPConfig writes the stdio MCP config that points the launched
// CLI back at this same cord binary, running as a tool server scoped to
// nodeID against dbPath (section 4.2's companion-process design: the MCP
// server isn't a long-lived daemon, it's spawned fresh per agent by the
// agent's own CLI, exactly as its MCP config instructs).
func writeMCPConfig(workDir string, runID string, nodeID graph.ID, dbPath string) (string, error) {
	self, err := os.Executable()
	if err != nil {
		self = "cord"
	}

	cfg := mcpConfigFile{
		MCPServers: map[string]mcpServerConfig{
			"cord": {
				Command: self,
				Args: []string{
					"internal-tool-server",
					"--db", dbPath,
					"--agent-id", fmt.Sprintf("%d", int64(nodeID)),
				},
			},
		},
	}

	if runID == "" {
		runID = "default"
	}
	dir := filepath.Join(workDir, ".cord", runID, fmt.Sprintf("node-%d", int64(nodeID)))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("runtime: create mcp config dir: %w", err)
	}
	path := filepath.Join(dir, "mcp.json")

	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("runtime: marshal mcp config: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", fmt.Errorf("runtime: write mcp config: %w", err)
	}
	return path, nil
}
