package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	cserrors "codspeed/internal/errors"
	"codspeed/internal/mode"

	"github.com/spf13/viper"
)

// ValidateConfig validates configuration values and returns an error if any are invalid.
// This function should be called after viper has loaded the configuration.
func ValidateConfig() error {
	var errors []string

	if s := viper.GetString("runner_mode"); s != "" {
		if _, err := mode.ParseList([]string{s}); err != nil {
			errors = append(errors, fmt.Sprintf("runner_mode: %v", err))
		}
	}

	if root := viper.GetString("cargo_workspace_root"); root != "" && !filepath.IsAbs(root) {
		errors = append(errors, fmt.Sprintf("cargo_workspace_root must be an absolute path, got: %s", root))
	}

	if folder := viper.GetString("profile_folder"); folder != "" {
		if info, err := os.Stat(folder); err == nil && !info.IsDir() {
			errors = append(errors, fmt.Sprintf("profile_folder must be a directory, got file: %s", folder))
		}
	}

	if path := viper.GetString("metrics_file"); path != "" {
		if info, err := os.Stat(filepath.Dir(path)); err != nil || !info.IsDir() {
			errors = append(errors, fmt.Sprintf("metrics_file directory does not exist: %s", filepath.Dir(path)))
		}
	}

	if len(errors) > 0 {
		return cserrors.NewConfigurationError("configuration validation failed:\n  %s", strings.Join(errors, "\n  "))
	}

	return nil
}
