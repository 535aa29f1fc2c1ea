package webcam

// SettingID is a vendor-defined numeric setting identifier from the Open
// GoPro HTTP API. The IDs below are the only ones this tool writes; keep the
// table here so a firmware revision is a one-place change.
type SettingID int

const (
	SettingDigitalLens      SettingID = 43  // webcam field of view
	SettingHyperSmooth      SettingID = 135 // stabilization
	SettingHorizonLeveling  SettingID = 150
	SettingVideoPerformance SettingID = 173
	SettingBitRate          SettingID = 182
)

// Option values for the settings above.
const (
	hyperSmoothOff     = 0
	horizonLevelingOff = 0
	performanceMax     = 0
	performanceDefault = 1
)

var fovOptions = map[FieldOfView]int{
	FOVWide:      0,
	FOVNarrow:    2,
	FOVSuperview: 3,
	FOVLinear:    4,
}

var bitRateOptions = map[BitRate]int{
	BitRateStandard: 0,
	BitRateHigh:     1,
}

// Webcam start endpoint resolution parameter (not a setting ID).
var streamResolutionParams = map[Resolution]int{
	Res480p:  4,
	Res720p:  7,
	Res1080p: 12,
}

// Settings is the ordered list of setting writes to issue before entering
// streaming mode. Each entry is independent; the camera may reject
// individual entries on some firmware without affecting the rest.
type Settings []Setting

// Setting is a single device setting write.
type Setting struct {
	Name  string
	ID    SettingID
	Value int
}

// DeviceSettings derives the vendor setting writes for this configuration.
// Pure: equal configs always produce equal output, and every enum value has
// a defined mapping.
func (c Config) DeviceSettings() Settings {
	settings := Settings{
		{Name: "field_of_view", ID: SettingDigitalLens, Value: fovOptions[c.FieldOfView]},
		{Name: "bit_rate", ID: SettingBitRate, Value: bitRateOptions[c.BitRate]},
	}

	if c.DisableStabilization {
		settings = append(settings, Setting{Name: "stabilization", ID: SettingHyperSmooth, Value: hyperSmoothOff})
	}
	if c.DisableHorizonLeveling {
		settings = append(settings, Setting{Name: "horizon_leveling", ID: SettingHorizonLeveling, Value: horizonLevelingOff})
	}
	if c.MaxPerformance {
		settings = append(settings, Setting{Name: "performance_mode", ID: SettingVideoPerformance, Value: performanceMax})
	}

	return settings
}

// FieldOfViewOption returns the digital lens option value for the webcam
// start command.
func (c Config) FieldOfViewOption() int {
	return fovOptions[c.FieldOfView]
}

// StreamResolution returns the resolution parameter for the webcam start
// command. The start endpoint takes resolution directly rather than via a
// setting ID.
func (c Config) StreamResolution() int {
	return streamResolutionParams[c.Resolution]
}
