package config

import (
	"strings"

	"codspeed/internal/telemetry"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load initializes the global configuration from an optional .env file, an
// optional codspeed.yaml (or cfgFile) and CODSPEED_* environment variables.
func Load(cfgFile string) {
	// A missing .env is not an error.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("codspeed")
	}

	configure(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		telemetry.LogDebug("Using config file", "path", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
		telemetry.LogError("Failed to read config file", err, "path", cfgFile)
	}
}

// configure binds the CODSPEED_* environment and the defaults on v.
func configure(v *viper.Viper) {
	v.SetEnvPrefix("CODSPEED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("runner_mode", "")
	v.SetDefault("env", "")
	v.SetDefault("cargo_workspace_root", "")
	v.SetDefault("profile_folder", "")
	v.SetDefault("show_details", false)
	v.SetDefault("verbose", false)
	v.SetDefault("log_file", "")
	v.SetDefault("metrics_file", "")
}

// Runtime is the environment contract between the runner and a benchmark
// process.
type Runtime struct {
	// RunnerMode is the raw CODSPEED_RUNNER_MODE value.
	RunnerMode string
	// CIPresent is true when running under the CodSpeed runner (CODSPEED_ENV).
	CIPresent     bool
	WorkspaceRoot string
	ProfileFolder string
	ShowDetails   bool
}

// CurrentRuntime reads the runtime view from the global configuration.
func CurrentRuntime() Runtime {
	return runtimeFrom(viper.GetViper())
}

// RuntimeFromEnv reads the runtime view from the environment only, on a
// private viper instance so library users never touch global state.
func RuntimeFromEnv() Runtime {
	v := viper.New()
	configure(v)
	return runtimeFrom(v)
}

func runtimeFrom(v *viper.Viper) Runtime {
	return Runtime{
		RunnerMode:    v.GetString("runner_mode"),
		CIPresent:     v.GetString("env") != "",
		WorkspaceRoot: v.GetString("cargo_workspace_root"),
		ProfileFolder: v.GetString("profile_folder"),
		ShowDetails:   v.GetBool("show_details"),
	}
}

// Environment variable names shared with child benchmark processes.
const (
	EnvRunnerMode    = "CODSPEED_RUNNER_MODE"
	EnvCI            = "CODSPEED_ENV"
	EnvWorkspaceRoot = "CODSPEED_CARGO_WORKSPACE_ROOT"
	EnvProfileFolder = "CODSPEED_PROFILE_FOLDER"
	EnvShowDetails   = "CODSPEED_SHOW_DETAILS"
)
