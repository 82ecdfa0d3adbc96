package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/emsplanner/app"
	"github.com/kilianp07/emsplanner/config"
)

var (
	refreshFixture  string
	refreshScenario string
)

var refreshBaselineCmd = &cobra.Command{
	Use:   "refresh-baseline",
	Short: "Re-solve recorded scenarios and overwrite their stored baseline plans",
	RunE:  runRefreshBaseline,
}

func init() {
	refreshBaselineCmd.Flags().StringVar(&refreshFixture, "fixture", "", "only refresh scenarios under this fixture name")
	refreshBaselineCmd.Flags().StringVar(&refreshScenario, "scenario", "", "only refresh scenarios with this name")
	rootCmd.AddCommand(refreshBaselineCmd)
}

func runRefreshBaseline(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	n, err := svc.RefreshBaseline(cmd.Context(), refreshFixture, refreshScenario)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "refreshed %d scenario(s)\n", n)
	return nil
}
