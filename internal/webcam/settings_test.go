package webcam

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func settingByID(s Settings, id SettingID) (Setting, bool) {
	for _, entry := range s {
		if entry.ID == id {
			return entry, true
		}
	}
	return Setting{}, false
}

func TestDeviceSettingsBalanced(t *testing.T) {
	settings := BalancedPreset().DeviceSettings()

	fov, ok := settingByID(settings, SettingDigitalLens)
	require.True(t, ok)
	assert.Equal(t, 2, fov.Value) // narrow

	bitRate, ok := settingByID(settings, SettingBitRate)
	require.True(t, ok)
	assert.Equal(t, 0, bitRate.Value) // standard

	stab, ok := settingByID(settings, SettingHyperSmooth)
	require.True(t, ok)
	assert.Equal(t, 0, stab.Value)

	horizon, ok := settingByID(settings, SettingHorizonLeveling)
	require.True(t, ok)
	assert.Equal(t, 0, horizon.Value)

	perf, ok := settingByID(settings, SettingVideoPerformance)
	require.True(t, ok)
	assert.Equal(t, 0, perf.Value)
}

// Every preset carries the latency-priority invariant: stabilization and
// horizon leveling are always written off.
func TestPresetsDisableHeavyProcessing(t *testing.T) {
	for _, p := range Presets() {
		settings := p.Config.DeviceSettings()

		stab, ok := settingByID(settings, SettingHyperSmooth)
		require.True(t, ok, "preset %s must write stabilization", p.Name)
		assert.Equal(t, 0, stab.Value, "preset %s must disable stabilization", p.Name)

		horizon, ok := settingByID(settings, SettingHorizonLeveling)
		require.True(t, ok, "preset %s must write horizon leveling", p.Name)
		assert.Equal(t, 0, horizon.Value, "preset %s must disable horizon leveling", p.Name)
	}
}

// DeviceSettings is a pure function: equal configs yield equal output for
// every enum combination, with every field mapped to a defined value.
func TestDeviceSettingsDeterministicOverAllCombinations(t *testing.T) {
	resolutions := []Resolution{Res480p, Res720p, Res1080p}
	fovs := []FieldOfView{FOVWide, FOVNarrow, FOVSuperview, FOVLinear}
	bitRates := []BitRate{BitRateStandard, BitRateHigh}
	bools := []bool{false, true}

	count := 0
	for _, res := range resolutions {
		for _, fov := range fovs {
			for _, br := range bitRates {
				for _, stab := range bools {
					for _, horizon := range bools {
						for _, perf := range bools {
							cfg := Default()
							cfg.Resolution = res
							cfg.FieldOfView = fov
							cfg.BitRate = br
							cfg.DisableStabilization = stab
							cfg.DisableHorizonLeveling = horizon
							cfg.MaxPerformance = perf

							first := cfg.DeviceSettings()
							second := cfg.DeviceSettings()
							assert.Equal(t, first, second)

							// FOV and bit rate are always written.
							_, ok := settingByID(first, SettingDigitalLens)
							assert.True(t, ok)
							_, ok = settingByID(first, SettingBitRate)
							assert.True(t, ok)

							assert.NotZero(t, cfg.StreamResolution())
							count++
						}
					}
				}
			}
		}
	}
	assert.Equal(t, 3*4*2*2*2*2, count)
}

func TestStreamResolutionParams(t *testing.T) {
	cases := map[Resolution]int{
		Res480p:  4,
		Res720p:  7,
		Res1080p: 12,
	}
	for res, want := range cases {
		cfg := Default()
		cfg.Resolution = res
		assert.Equal(t, want, cfg.StreamResolution())
	}
}

func TestFieldOfViewOption(t *testing.T) {
	cases := map[FieldOfView]int{
		FOVWide:      0,
		FOVNarrow:    2,
		FOVSuperview: 3,
		FOVLinear:    4,
	}
	for fov, want := range cases {
		cfg := Default()
		cfg.FieldOfView = fov
		assert.Equal(t, want, cfg.FieldOfViewOption())
	}
}
