// Package webcam holds the configuration model for GoPro webcam streaming.
//
// A Config is an immutable value describing the desired stream quality and
// latency tradeoff. It is built once per session (from a preset or explicit
// fields), validated up front, and converted to vendor setting IDs via
// DeviceSettings. Nothing in this package talks to a camera.
package webcam

import "fmt"

// Resolution is the webcam stream resolution.
type Resolution string

const (
	Res480p  Resolution = "480p"
	Res720p  Resolution = "720p"
	Res1080p Resolution = "1080p"
)

// FieldOfView is the digital lens setting. Narrower lenses process fewer
// pixels and encode measurably faster than wide or superview.
type FieldOfView string

const (
	FOVWide      FieldOfView = "wide"
	FOVNarrow    FieldOfView = "narrow"
	FOVSuperview FieldOfView = "superview"
	FOVLinear    FieldOfView = "linear"
)

// BitRate selects the encoder bit rate class.
type BitRate string

const (
	BitRateStandard BitRate = "standard"
	BitRateHigh     BitRate = "high"
)

// Protocol is the network transport for the stream.
type Protocol string

const (
	ProtocolUDP  Protocol = "udp"
	ProtocolRTSP Protocol = "rtsp"
)

// ValidationError reports a Config field that failed validation. It is
// raised before any camera interaction.
type ValidationError struct {
	Field string
	Value interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid webcam configuration: field %q has invalid value %v", e.Field, e.Value)
}

// ParseResolution converts a user-supplied string, rejecting unknown values.
func ParseResolution(s string) (Resolution, error) {
	switch Resolution(s) {
	case Res480p, Res720p, Res1080p:
		return Resolution(s), nil
	}
	return "", &ValidationError{Field: "resolution", Value: s}
}

// ParseFieldOfView converts a user-supplied string, rejecting unknown values.
func ParseFieldOfView(s string) (FieldOfView, error) {
	switch FieldOfView(s) {
	case FOVWide, FOVNarrow, FOVSuperview, FOVLinear:
		return FieldOfView(s), nil
	}
	return "", &ValidationError{Field: "field_of_view", Value: s}
}

// ParseBitRate converts a user-supplied string, rejecting unknown values.
func ParseBitRate(s string) (BitRate, error) {
	switch BitRate(s) {
	case BitRateStandard, BitRateHigh:
		return BitRate(s), nil
	}
	return "", &ValidationError{Field: "bit_rate", Value: s}
}

// ParseProtocol converts a user-supplied string, rejecting unknown values.
func ParseProtocol(s string) (Protocol, error) {
	switch Protocol(s) {
	case ProtocolUDP, ProtocolRTSP:
		return Protocol(s), nil
	}
	return "", &ValidationError{Field: "protocol", Value: s}
}

// Config describes a webcam session. Treat it as immutable: build a new one
// for each reconfiguration instead of mutating in place.
//
// The latency-relevant defaults come from measuring actual GoPro behavior:
// HyperSmooth stabilization alone adds on the order of a second of delay, so
// every preset ships with it disabled.
type Config struct {
	Resolution  Resolution
	FieldOfView FieldOfView
	BitRate     BitRate
	Protocol    Protocol

	// DisableStabilization removes the single largest latency contributor
	// (~1000ms when left on).
	DisableStabilization bool
	// DisableHorizonLeveling removes a secondary processing stage.
	DisableHorizonLeveling bool
	// MaxPerformance switches the camera to its maximum video performance mode.
	MaxPerformance bool
	// LowLatencyStream selects the preview stream entry point instead of the
	// webcam encode path: lower resolution ceiling, lower latency floor.
	LowLatencyStream bool

	// Port is the local port the camera streams to, 1-65535.
	Port int
}

// Default returns the balanced configuration: valid and connectable with no
// further input.
func Default() Config {
	return Config{
		Resolution:             Res720p,
		FieldOfView:            FOVNarrow,
		BitRate:                BitRateStandard,
		Protocol:               ProtocolUDP,
		DisableStabilization:   true,
		DisableHorizonLeveling: true,
		MaxPerformance:         true,
		LowLatencyStream:       false,
		Port:                   8554,
	}
}

// Validate checks every field, failing closed on unknown enum values and
// out-of-range ports.
func (c Config) Validate() error {
	if _, err := ParseResolution(string(c.Resolution)); err != nil {
		return err
	}
	if _, err := ParseFieldOfView(string(c.FieldOfView)); err != nil {
		return err
	}
	if _, err := ParseBitRate(string(c.BitRate)); err != nil {
		return err
	}
	if _, err := ParseProtocol(string(c.Protocol)); err != nil {
		return err
	}
	if c.Port < 1 || c.Port > 65535 {
		return &ValidationError{Field: "port", Value: c.Port}
	}
	return nil
}
