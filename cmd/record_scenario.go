package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/emsplanner/app"
	"github.com/kilianp07/emsplanner/config"
)

var recordScenarioCmd = &cobra.Command{
	Use:   "record-scenario",
	Short: "Solve a fixture and store its resolved inputs and plan under fixtures/<fixture>/<name>/",
	RunE:  runRecordScenario,
}

var recordScenarioName string

func init() {
	recordScenarioCmd.Flags().StringVar(&fixturePath, "fixture", "fixture.json", "fixture document to solve")
	recordScenarioCmd.Flags().StringVar(&recordScenarioName, "name", "", "scenario name to record under")
	_ = recordScenarioCmd.MarkFlagRequired("name")
	rootCmd.AddCommand(recordScenarioCmd)
}

func runRecordScenario(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := svc.RecordScenario(cmd.Context(), fixturePath, recordScenarioName); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "recorded scenario %s\n", recordScenarioName)
	return nil
}
