package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	defer viper.Reset()

	t.Run("Defaults", func(t *testing.T) {
		viper.Reset()
		Load("")

		assert.Equal(t, "", viper.GetString("runner_mode"))
		assert.False(t, viper.GetBool("show_details"))
	})

	t.Run("Load From Env", func(t *testing.T) {
		viper.Reset()
		t.Setenv("CODSPEED_RUNNER_MODE", "memory")
		t.Setenv("CODSPEED_CARGO_WORKSPACE_ROOT", "/ws")

		Load("")
		rt := CurrentRuntime()
		assert.Equal(t, "memory", rt.RunnerMode)
		assert.Equal(t, "/ws", rt.WorkspaceRoot)
	})

	t.Run("Load From File", func(t *testing.T) {
		viper.Reset()
		path := filepath.Join(t.TempDir(), "codspeed.yaml")
		require.NoError(t, os.WriteFile(path, []byte("profile_folder: /tmp/profiles\nshow_details: true\n"), 0644))

		Load(path)
		rt := CurrentRuntime()
		assert.Equal(t, "/tmp/profiles", rt.ProfileFolder)
		assert.True(t, rt.ShowDetails)
	})
}

func TestRuntimeFromEnv(t *testing.T) {
	t.Setenv(EnvRunnerMode, "simulation")
	t.Setenv(EnvCI, "github")
	t.Setenv(EnvShowDetails, "true")
	t.Setenv(EnvProfileFolder, "/profiles")

	rt := RuntimeFromEnv()
	assert.Equal(t, "simulation", rt.RunnerMode)
	assert.True(t, rt.CIPresent)
	assert.True(t, rt.ShowDetails)
	assert.Equal(t, "/profiles", rt.ProfileFolder)

	t.Setenv(EnvCI, "")
	assert.False(t, RuntimeFromEnv().CIPresent)
}
