package main

import (
	"codspeed/internal/config"
	cserrors "codspeed/internal/errors"
	"codspeed/internal/mode"
	"codspeed/internal/run"

	"github.com/spf13/cobra"
)

type runFlags struct {
	packageFlags
	mode    string
	details bool
}

func newRunCmd() *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run [BENCHNAME]...",
		Short: "Run the previously built benchmarks",
		Long: `Run every benchmark suite built for the measurement mode, one process at a
time. Positional arguments keep only the suites whose name contains one of
them; each must match at least one suite.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, f, args)
		},
	}

	fs := cmd.Flags()
	f.register(fs)
	fs.StringVarP(&f.mode, "measurement-mode", "m", "", "Measurement mode to run: simulation, walltime, memory [env: CODSPEED_RUNNER_MODE]")
	fs.BoolVar(&f.details, "details", false, "Print per-benchmark details and count the benchmarks run [env: CODSPEED_SHOW_DETAILS]")
	return cmd
}

func init() {
	rootCmd.AddCommand(newRunCmd())
}

func runRun(cmd *cobra.Command, f *runFlags, names []string) error {
	rt := config.CurrentRuntime()

	m := mode.Default(rt.CIPresent)
	if f.mode != "" || rt.RunnerMode != "" {
		value := f.mode
		if value == "" {
			value = rt.RunnerMode
		}
		parsed, err := mode.Parse(value)
		if err != nil {
			return cserrors.NewConfigurationError("%v", err)
		}
		m = parsed
	}

	meta, err := loadMetadata(cmd.Context(), "")
	if err != nil {
		return err
	}

	opts := run.Options{
		Mode:          m,
		Filters:       f.filters(),
		Benches:       f.benches,
		Names:         names,
		Details:       f.details || rt.ShowDetails,
		ProfileFolder: rt.ProfileFolder,
	}
	_, err = newRunner(meta, cmd.OutOrStdout(), cmd.ErrOrStderr()).Run(cmd.Context(), opts)
	return err
}
