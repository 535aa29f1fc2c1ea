// Package gopro owns the camera session: connecting to a device, applying
// webcam settings, entering and leaving streaming mode, and guaranteeing
// teardown on every exit path.
package gopro

import (
	"context"
	"errors"
	"fmt"

	"github.com/gopro-tools/gopro-webcam/internal/webcam"
)

// ConnectionMode is how the camera is reached.
type ConnectionMode string

const (
	ModeWired    ConnectionMode = "wired"
	ModeWireless ConnectionMode = "wireless"
)

// ConnectReason classifies a failed connect so the caller can pick the right
// remediation (camera absent vs camera present but refusing).
type ConnectReason string

const (
	ReasonNotFound       ConnectReason = "not_found"
	ReasonTimeout        ConnectReason = "timeout"
	ReasonPermission     ConnectReason = "permission"
	ReasonTransportError ConnectReason = "transport_error"
)

// ConnectionError reports a failed connect attempt.
type ConnectionError struct {
	Reason ConnectReason
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("camera connection failed (%s): %v", e.Reason, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// StartReason classifies a failed stream start.
type StartReason string

const (
	StartDeviceBusy      StartReason = "device_busy"
	StartUnsupportedMode StartReason = "unsupported_mode"
	StartTransportError  StartReason = "transport_error"
)

// StreamStartError reports a camera that connected and configured but would
// not enter streaming mode. The session stays connected and queryable.
type StreamStartError struct {
	Reason StartReason
	Err    error
}

func (e *StreamStartError) Error() string {
	return fmt.Sprintf("failed to start webcam stream (%s): %v", e.Reason, e.Err)
}

func (e *StreamStartError) Unwrap() error { return e.Err }

// ErrAlreadyConnected is returned by Connect while a session is active.
var ErrAlreadyConnected = errors.New("already connected to a camera")

// ErrNotConnected is returned by operations that require an open session.
var ErrNotConnected = errors.New("not connected to a camera")

// StreamOptions are the parameters for the streaming-mode start command.
type StreamOptions struct {
	Resolution  int // webcam endpoint resolution parameter (4/7/12)
	FieldOfView int // digital lens option value
	Port        int
	Protocol    webcam.Protocol
	// LowLatency selects the preview stream entry point instead of the
	// webcam encode path.
	LowLatency bool
}

// DeviceStatus is a point-in-time health snapshot from the camera.
type DeviceStatus struct {
	BatteryPercent int
	Encoding       bool
	Busy           bool
}

// Device is the opaque handle to a connected camera. Implementations own the
// wire protocol; the controller only sequences calls. Every method must
// honor the context deadline.
type Device interface {
	// ApplySetting writes one numeric setting. Failures are expected to be
	// non-fatal: firmware across camera generations rejects individual
	// settings.
	ApplySetting(ctx context.Context, id webcam.SettingID, value int) error

	// StartWebcam enters streaming mode and returns the stream locator.
	StartWebcam(ctx context.Context, opts StreamOptions) (string, error)

	// StopWebcam leaves streaming mode.
	StopWebcam(ctx context.Context) error

	// Status fetches camera health. An error here means the device is
	// unreachable, not merely busy.
	Status(ctx context.Context) (DeviceStatus, error)

	// Close releases the handle. Idempotent.
	Close(ctx context.Context) error
}

// KeepAliver is implemented by devices whose transport drops without
// periodic keep-alive traffic (the wireless AP link does).
type KeepAliver interface {
	KeepAlive(ctx context.Context) error
}

// Opener establishes a device handle. It is the boundary to the transport:
// discovery, addressing, and the wire protocol all live behind it.
type Opener interface {
	Open(ctx context.Context, identifier string, mode ConnectionMode) (Device, error)
}
