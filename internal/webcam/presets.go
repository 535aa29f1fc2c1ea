package webcam

import "fmt"

// Preset names accepted by the CLI and the coordinating layer.
const (
	PresetLowLatency = "low-latency"
	PresetBalanced   = "balanced"
	PresetQuality    = "quality"
)

// PresetInfo summarizes a preset for display.
type PresetInfo struct {
	Name    string
	Summary string
	Config  Config
}

// LowLatencyPreset trades everything for latency: minimum resolution,
// cropped lens, and the preview stream path instead of the webcam encoder.
func LowLatencyPreset() Config {
	c := Default()
	c.Resolution = Res480p
	c.FieldOfView = FOVNarrow
	c.LowLatencyStream = true
	return c
}

// BalancedPreset is the default: 720p on the webcam path with every
// latency optimization enabled.
func BalancedPreset() Config {
	return Default()
}

// QualityPreset maximizes quality while keeping the latency-critical
// optimizations (stabilization and horizon leveling stay off).
func QualityPreset() Config {
	c := Default()
	c.Resolution = Res1080p
	c.FieldOfView = FOVLinear
	return c
}

// PresetByName resolves a preset name, failing closed on unknown names.
func PresetByName(name string) (Config, error) {
	switch name {
	case PresetLowLatency:
		return LowLatencyPreset(), nil
	case PresetBalanced:
		return BalancedPreset(), nil
	case PresetQuality:
		return QualityPreset(), nil
	}
	return Config{}, fmt.Errorf("unknown preset %q", name)
}

// Presets lists all presets with their tradeoff summaries.
func Presets() []PresetInfo {
	return []PresetInfo{
		{
			Name:    PresetLowLatency,
			Summary: "480p narrow, preview stream path, all processing off - minimum latency",
			Config:  LowLatencyPreset(),
		},
		{
			Name:    PresetBalanced,
			Summary: "720p narrow, webcam path, all processing off - latency/quality balance",
			Config:  BalancedPreset(),
		},
		{
			Name:    PresetQuality,
			Summary: "1080p linear, webcam path, stabilization still off - best quality",
			Config:  QualityPreset(),
		},
	}
}
