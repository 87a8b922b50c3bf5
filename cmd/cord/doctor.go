package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corddev/cord/internal/cordconfig"
	"github.com/corddev/cord/internal/doctor"
	"github.com/corddev/cord/internal/runtime"
)

func newDoctorCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that every configured runtime adapter's CLI is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cordconfig.Load(configPath)
			if err != nil {
				return err
			}

			reg := runtime.NewRegistry()
			for name, ac := range cfg.Adapters {
				reg.Register(runtime.NewCustomAdapter(name, ac.Command, ac.Args))
			}

			results := doctor.Check(cmd.Context(), reg)
			for _, r := range results {
				status := "ok"
				if !r.OK {
					status = fmt.Sprintf("FAIL: %v", r.Err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s %s\n", r.Adapter, status)
			}

			if !doctor.AllOK(results) {
				return fmt.Errorf("one or more runtime adapters failed preflight")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "cord.yaml", "path to cord.yaml")
	return cmd
}
