package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/emsplanner/app"
)

var reportFixture string

var scenarioReportCmd = &cobra.Command{
	Use:   "scenario-report",
	Short: "Print an aggregate report of every recorded scenario's stored plan",
	RunE:  runScenarioReport,
}

func init() {
	scenarioReportCmd.Flags().StringVar(&reportFixture, "fixture", "", "only report scenarios under this fixture name")
	rootCmd.AddCommand(scenarioReportCmd)
}

func runScenarioReport(cmd *cobra.Command, args []string) error {
	entries, err := app.ScenarioReport(reportFixture)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no recorded scenarios found")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(cmd.OutOrStdout(), "%-20s %-20s status=%-12s objective=%10.3f slots=%d\n",
			e.Fixture, e.Scenario, e.Status, e.Objective, e.Slots)
	}
	return nil
}
