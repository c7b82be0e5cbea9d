package main

import (
	"codspeed/internal/build"
	"codspeed/internal/cargo"
	"codspeed/internal/config"
	cserrors "codspeed/internal/errors"
	"codspeed/internal/mode"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// packageFlags are the cargo package selection flags shared by build and run.
type packageFlags struct {
	workspace bool
	exclude   []string
	packages  []string
	benches   []string
}

func (p *packageFlags) register(fs *pflag.FlagSet) {
	fs.StringSliceVarP(&p.packages, "package", "p", nil, "Package to select (can be repeated)")
	fs.BoolVar(&p.workspace, "workspace", false, "Select all packages in the workspace")
	fs.StringSliceVar(&p.exclude, "exclude", nil, "Exclude packages from the workspace (requires --workspace)")
	fs.StringSliceVar(&p.benches, "bench", nil, "Select only the specified benchmark target (can be repeated)")
}

func (p *packageFlags) filters() cargo.PackageFilters {
	return cargo.PackageFilters{Workspace: p.workspace, Exclude: p.exclude, Package: p.packages}
}

type buildFlags struct {
	packageFlags
	modes             []string
	features          []string
	allFeatures       bool
	noDefaultFeatures bool
	locked            bool
	offline           bool
	frozen            bool
	jobs              int
	profile           string
	quiet             bool
}

func newBuildCmd() *cobra.Command {
	f := &buildFlags{}
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the benchmarks",
		Long: `Compile the benchmark targets once per required build variant and stage
the executables under <target>/codspeed/<mode>/<package>/.

Benchmark targets must disable the default harness (harness = false).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, f)
		},
	}

	fs := cmd.Flags()
	f.register(fs)
	fs.StringSliceVarP(&f.modes, "measurement-mode", "m", nil, "Measurement mode(s): simulation, walltime, memory (repeatable or comma separated) [env: CODSPEED_RUNNER_MODE]")
	fs.StringSliceVar(&f.features, "features", nil, "Comma separated list of features to activate (can be repeated)")
	fs.BoolVar(&f.allFeatures, "all-features", false, "Activate all available features")
	fs.BoolVar(&f.noDefaultFeatures, "no-default-features", false, "Do not activate the default feature")
	fs.BoolVar(&f.locked, "locked", false, "Require Cargo.lock is up to date")
	fs.BoolVar(&f.offline, "offline", false, "Run without accessing the network")
	fs.BoolVar(&f.frozen, "frozen", false, "Equivalent to specifying both --locked and --offline")
	fs.IntVarP(&f.jobs, "jobs", "j", 0, "Number of parallel jobs, defaults to # of CPUs")
	fs.StringVar(&f.profile, "profile", "bench", "Build artifacts with the specified profile")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "Do not print cargo log messages")
	return cmd
}

func init() {
	rootCmd.AddCommand(newBuildCmd())
}

// measurementModes reads --measurement-mode, falling back to the runner mode
// from the environment or config.
func measurementModes(flagValues []string) ([]mode.MeasurementMode, error) {
	values := flagValues
	if len(values) == 0 {
		if env := viper.GetString("runner_mode"); env != "" {
			values = []string{env}
		}
	}
	modes, err := mode.ParseList(values)
	if err != nil {
		return nil, cserrors.NewConfigurationError("%v", err)
	}
	return modes, nil
}

func runBuild(cmd *cobra.Command, f *buildFlags) error {
	modes, err := measurementModes(f.modes)
	if err != nil {
		return err
	}
	filters := f.filters()
	if err := filters.Validate(); err != nil {
		return err
	}

	meta, err := loadMetadata(cmd.Context(), "")
	if err != nil {
		return err
	}

	rt := config.CurrentRuntime()
	opts := build.Options{
		Modes:             modes,
		Filters:           filters,
		Benches:           f.benches,
		Features:          f.features,
		AllFeatures:       f.allFeatures,
		NoDefaultFeatures: f.noDefaultFeatures,
		Locked:            f.locked,
		Offline:           f.offline,
		Frozen:            f.frozen,
		Jobs:              f.jobs,
		Profile:           f.profile,
		Quiet:             f.quiet,
		CIPresent:         rt.CIPresent,
	}
	_, err = newOrchestrator(meta, cmd.OutOrStdout(), cmd.ErrOrStderr()).Build(cmd.Context(), opts)
	return err
}
