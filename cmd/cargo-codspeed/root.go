package main

import (
	"context"
	"io"
	"os"

	"codspeed/internal/build"
	"codspeed/internal/cargo"
	"codspeed/internal/config"
	cserrors "codspeed/internal/errors"
	"codspeed/internal/metrics"
	"codspeed/internal/run"
	"codspeed/internal/telemetry"
	"codspeed/internal/ui"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var exit = os.Exit
var cfgFile string

// cliMetrics collects the metrics of this invocation. It stays nil unless
// --metrics-file is set.
var cliMetrics *metrics.Metrics

// Seams replaced in tests.
var (
	loadMetadata    = cargo.LoadMetadata
	newOrchestrator = func(meta *cargo.Metadata, stdout, stderr io.Writer) builder {
		o := build.New(meta)
		o.Stdout, o.Stderr, o.Metrics = stdout, stderr, cliMetrics
		return o
	}
	newRunner = func(meta *cargo.Metadata, stdout, stderr io.Writer) suiteRunner {
		r := run.New(meta)
		r.Stdout, r.Stderr, r.Metrics = stdout, stderr, cliMetrics
		return r
	}
)

type builder interface {
	Build(ctx context.Context, opts build.Options) ([]build.ArtifactSet, error)
}

type suiteRunner interface {
	Run(ctx context.Context, opts run.Options) (*run.Summary, error)
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cargo-codspeed",
	Short: "Build and run benchmark suites for CodSpeed",
	Long: `cargo-codspeed compiles the benchmark targets of a cargo workspace for a
measurement mode, runs them one at a time and collects walltime results.

It is usually invoked as the cargo subcommand: cargo codspeed <command>.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command and exits with the status mapped from the
// returned error.
func Execute() {
	defer func() {
		if r := recover(); r != nil {
			ui.Error(os.Stderr, "command execution panic, attempting graceful shutdown")
			exit(1)
		}
	}()

	err := rootCmd.Execute()
	if werr := cliMetrics.WriteTextfile(viper.GetString("metrics_file")); werr != nil {
		telemetry.LogWarn("Failed to write metrics file", "error", werr)
	}
	if err != nil {
		ui.Error(rootCmd.ErrOrStderr(), err.Error())
		exit(cserrors.ExitCode(err))
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./codspeed.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose/debug logging")
	rootCmd.PersistentFlags().String("log-file", "", "Also write JSON logs to this file")
	rootCmd.PersistentFlags().String("metrics-file", "", "Write Prometheus metrics to this file when done")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("log_file", rootCmd.PersistentFlags().Lookup("log-file"))
	viper.BindPFlag("metrics_file", rootCmd.PersistentFlags().Lookup("metrics-file"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	config.Load(cfgFile)

	if err := config.ValidateConfig(); err != nil {
		ui.Error(os.Stderr, err.Error())
		exit(1)
	}

	telemetry.InitLogger(viper.GetBool("verbose"), viper.GetString("log_file"))

	if viper.GetString("metrics_file") != "" {
		cliMetrics = metrics.NewMetrics()
	}
}
