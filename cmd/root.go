// Package cmd implements the planner's CLI surface: a single-shot "solve"
// (the default root command) plus the fixture-replay tooling
// (record-scenario, refresh-baseline, scenario-report). Actuation,
// scheduling, and live data fetching are out of scope; every command here
// operates against a fixture document.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/emsplanner/app"
	"github.com/kilianp07/emsplanner/config"
	"github.com/kilianp07/emsplanner/infra/logger"
)

var (
	cfgPath     string
	fixturePath string
)

var rootCmd = &cobra.Command{
	Use:   "emsplanner",
	Short: "Receding-horizon MILP planner for a residential energy management system",
	RunE:  runSolve,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
	rootCmd.Flags().StringVar(&fixturePath, "fixture", "fixture.json", "fixture document to resolve realtime scalars and forecasts from")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

// runSolve implements the "solve" default command: a single planning
// cycle, writing its plan to ${server.data_dir}/ems_plan.json.
func runSolve(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()

	result, err := svc.Solve(ctx, fixturePath)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "plan generated: status=%s objective=%.3f slots=%d\n", result.Status, result.Objective, len(result.Slots))
	return nil
}
