package main

import (
	"fmt"

	"codspeed/internal/benchmark"
	"codspeed/internal/stats"
	"codspeed/internal/ui"

	"github.com/spf13/cobra"
)

func newCompareCmd() *cobra.Command {
	var threshold float64
	var failOnRegression bool

	cmd := &cobra.Command{
		Use:   "compare BASE HEAD",
		Short: "Compare two walltime result files",
		Long: `Compare the median time of every benchmark present in both walltime
result files, as written by 'run -m walltime'.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := stats.LoadReport(args[0])
			if err != nil {
				return err
			}
			head, err := stats.LoadReport(args[1])
			if err != nil {
				return err
			}

			comparisons := benchmark.Compare(base, head)
			if len(comparisons) == 0 {
				ui.Warning(cmd.ErrOrStderr(), "No benchmark is present in both result files")
				return nil
			}
			if err := benchmark.WriteTable(cmd.OutOrStdout(), comparisons); err != nil {
				return err
			}

			regressions := benchmark.Regressions(comparisons, threshold)
			for _, r := range regressions {
				ui.Warning(cmd.ErrOrStderr(), "regression: "+r.String())
			}
			if failOnRegression && len(regressions) > 0 {
				return fmt.Errorf("%d benchmark(s) regressed by more than %.1f%%", len(regressions), threshold)
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&threshold, "threshold", 10.0, "Percentage slowdown reported as a regression")
	cmd.Flags().BoolVar(&failOnRegression, "fail-on-regression", false, "Exit non-zero when a regression is found")
	return cmd
}

func init() {
	rootCmd.AddCommand(newCompareCmd())
}
