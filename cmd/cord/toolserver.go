package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/corddev/cord/internal/graph"
	"github.com/corddev/cord/internal/telemetry"
	"github.com/corddev/cord/internal/toolserver"
)

// newToolServerCmd implements the stdio MCP server a launched agent's CLI
// talks to, per spec section 4.2. Runtime adapters generate an MCP
// config that reinvokes this same binary with this subcommand, scoped to
// one node id against the run's shared graph store file.
func newToolServerCmd() *cobra.Command {
	var (
		dbPath  string
		agentID int64
	)

	cmd := &cobra.Command{
		Use:    "internal-tool-server",
		Short:  "Serve the agent tool protocol over stdio (invoked by agent CLIs, not users)",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := graph.Open(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			tracer, shutdownTelemetry := telemetry.Setup(cmd.Context())
			defer shutdownTelemetry(cmd.Context())

			srv := &toolserver.Server{
				Store:   store,
				AgentID: graph.ID(agentID),
				Log:     slog.Default(),
				Tracer:  tracer,
			}
			return srv.Serve(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "path to the shared graph store file")
	cmd.Flags().Int64Var(&agentID, "agent-id", 0, "node id this server instance is scoped to")

	return cmd
}
