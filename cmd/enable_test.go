package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gopro-tools/gopro-webcam/config"
	"github.com/gopro-tools/gopro-webcam/internal/webcam"
)

func TestBuildConfigUsesConfiguredStreamPort(t *testing.T) {
	cfg, err := buildConfig(&EnableOptions{})
	require.NoError(t, err)
	assert.Equal(t, config.GetStreamPort(), cfg.Port)

	// Viper binds the port to the environment; a configured value must
	// reach the stream locator.
	t.Setenv("GOPRO_WEBCAM_PORT", "9100")
	cfg, err = buildConfig(&EnableOptions{})
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Port)

	// The flag overrides the configured value.
	cfg, err = buildConfig(&EnableOptions{Port: 9200})
	require.NoError(t, err)
	assert.Equal(t, 9200, cfg.Port)
}

func TestBuildConfigPresetAndOverrides(t *testing.T) {
	cfg, err := buildConfig(&EnableOptions{Preset: "quality", FOV: "wide"})
	require.NoError(t, err)
	assert.Equal(t, webcam.Res1080p, cfg.Resolution)
	assert.Equal(t, webcam.FOVWide, cfg.FieldOfView)

	_, err = buildConfig(&EnableOptions{Preset: "turbo"})
	assert.Error(t, err)

	_, err = buildConfig(&EnableOptions{Resolution: "8k"})
	assert.Error(t, err)

	cfg, err = buildConfig(&EnableOptions{NoOptimization: true})
	require.NoError(t, err)
	assert.False(t, cfg.DisableStabilization)
	assert.False(t, cfg.DisableHorizonLeveling)
}
