package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/corddev/cord/internal/cordconfig"
	"github.com/corddev/cord/internal/engine"
	"github.com/corddev/cord/internal/graph"
	"github.com/corddev/cord/internal/metrics"
	"github.com/corddev/cord/internal/render"
	"github.com/corddev/cord/internal/runtime"
	"github.com/corddev/cord/internal/supervisor"
	"github.com/corddev/cord/internal/telemetry"
)

func newRunCmd() *cobra.Command {
	var (
		configPath  string
		dbPath      string
		workDir     string
		budget      float64
		model       string
		runtimeName string
		useClaude   bool
		useAmp      bool
		useCodex    bool
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "run <goal | path-to-goal-file>",
		Short: "Run a goal to completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			goal, err := resolveGoal(args[0])
			if err != nil {
				return err
			}

			cfg, err := cordconfig.Load(configPath)
			if err != nil {
				return err
			}
			if runtimeName == "" {
				runtimeName = cfg.DefaultRuntime
			}
			if useClaude {
				runtimeName = "claude"
			}
			if useAmp {
				runtimeName = "amp"
			}
			if useCodex {
				runtimeName = "codex-app-server"
			}
			if model == "" {
				model = cfg.DefaultModel
			}
			if budget <= 0 {
				budget = cfg.Budget
			}
			if dbPath == "" {
				cordDir := filepath.Join(workDir, ".cord")
				if err := os.MkdirAll(cordDir, 0o755); err != nil {
					return fmt.Errorf("create %s: %w", cordDir, err)
				}
				dbPath = filepath.Join(cordDir, "cord.db")
			}

			runID := uuid.NewString()
			slog.Default().Info("starting run", "run_id", runID, "runtime", runtimeName, "db", dbPath)

			store, err := graph.Open(dbPath)
			if err != nil {
				return fmt.Errorf("open graph store: %w", err)
			}
			defer store.Close()

			if _, err := store.CreateNode(cmd.Context(), graph.CreateInput{
				Kind:      graph.KindGoal,
				Objective: goal,
			}); err != nil {
				return fmt.Errorf("create goal node: %w", err)
			}

			reg := runtime.NewRegistry()
			for name, ac := range cfg.Adapters {
				reg.Register(runtime.NewCustomAdapter(name, ac.Command, ac.Args))
			}

			renderer := render.New(cmd.OutOrStdout())

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			tracer, shutdownTelemetry := telemetry.Setup(ctx)
			defer shutdownTelemetry(ctx)

			metricsReg := prometheus.NewRegistry()
			m := metrics.New(metricsReg)
			if metricsAddr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.HandlerFor(metricsReg, promhttp.HandlerOpts{}))
				metricsSrv := &http.Server{Addr: metricsAddr, Handler: mux}
				go func() {
					if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						slog.Default().Warn("metrics server stopped", "error", err)
					}
				}()
				go func() {
					<-ctx.Done()
					metricsSrv.Close()
				}()
				slog.Default().Info("serving metrics", "addr", metricsAddr)
			}

			e := &engine.Engine{
				Store:          store,
				Supervisor:     supervisor.New(nil),
				Registry:       reg,
				RunID:          runID,
				DefaultRuntime: runtimeName,
				DefaultModel:   model,
				Budget:         budget,
				DBPath:         dbPath,
				WorkDir:        workDir,
				PollInterval:   cfg.PollInterval,
				AskHandler:     engine.TerminalAsk(cmd.InOrStdin(), cmd.OutOrStdout()),
				OnTick:         renderer.Draw,
				Tracer:         tracer,
				Metrics:        m,
			}

			runErr := e.Run(ctx)
			if runErr == engine.ErrStuck {
				fmt.Fprintln(cmd.OutOrStdout(), "run is stuck: no progress is possible, stopping")
				return nil
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "cord.yaml", "path to cord.yaml")
	cmd.Flags().StringVar(&dbPath, "db", "", "path to the graph store file (default: <work-dir>/.cord/cord.db)")
	cmd.Flags().StringVar(&workDir, "work-dir", ".", "working directory for agent processes and side files")
	cmd.Flags().Float64Var(&budget, "budget", 0, "per-agent budget passed to adapters that support it (default from cord.yaml, else 2.0)")
	cmd.Flags().StringVar(&model, "model", "", "model name passed to the agent CLI")
	cmd.Flags().StringVar(&runtimeName, "runtime", "", "runtime adapter to use (claude, codex-app-server, amp, or a custom name)")
	cmd.Flags().BoolVar(&useClaude, "claude", false, "shorthand for --runtime claude")
	cmd.Flags().BoolVar(&useAmp, "amp", false, "shorthand for --runtime amp")
	cmd.Flags().BoolVar(&useCodex, "codex", false, "shorthand for --runtime codex-app-server")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "if set, serve Prometheus metrics at this address (e.g. :9090)")

	return cmd
}

// resolveGoal treats arg as a path to a goal file when it names an
// existing regular file on disk, and as the goal text itself otherwise —
// matching the original CLI's existence-based detection rather than
// requiring an explicit prefix.
func resolveGoal(arg string) (string, error) {
	info, err := os.Stat(arg)
	if err != nil || !info.Mode().IsRegular() {
		return arg, nil
	}
	data, err := os.ReadFile(arg)
	if err != nil {
		return "", fmt.Errorf("read goal file %s: %w", arg, err)
	}
	return strings.TrimSpace(string(data)), nil
}
