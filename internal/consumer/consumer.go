// Package consumer defines the stream consumer contract: pluggable backends
// that take a live camera stream locator and expose it as an OS-visible
// virtual camera. The coordinating layer selects a backend by Kind and never
// needs to know which implementation it got.
package consumer

import (
	"context"
	"fmt"

	"github.com/gopro-tools/gopro-webcam/config"
)

// Kind tags a consumer backend.
type Kind string

const (
	// KindV4L2 transcodes the stream into a v4l2loopback device with ffmpeg.
	KindV4L2 Kind = "v4l2"
	// KindPipeWire feeds the stream into a PipeWire source node with
	// gst-launch.
	KindPipeWire Kind = "pipewire"
)

// ParseKind converts a user-supplied string, rejecting unknown backends.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindV4L2, KindPipeWire:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown consumer backend %q", s)
}

// Descriptor says where a consumer exposes its virtual camera.
type Descriptor struct {
	Kind    Kind
	Target  string // device path or service node name
	Label   string
	Running bool
}

// AlreadyRunningError is returned by Start when the consumer is already
// consuming a stream.
type AlreadyRunningError struct {
	Kind   Kind
	Target string
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("%s consumer already running on %s", e.Kind, e.Target)
}

// Consumer is the capability every virtual-camera backend implements.
type Consumer interface {
	// ValidateRequirements inspects the host for required tools, kernel
	// modules, and services. Pure inspection, no side effects; an empty
	// result means the backend is ready to Start.
	ValidateRequirements() []string

	// Start begins consuming the stream at streamURL. A second Start
	// without an intervening Stop returns AlreadyRunningError.
	Start(ctx context.Context, streamURL string) error

	// Stop terminates consumption and releases the virtual device.
	// Idempotent.
	Stop() error

	// OutputInfo reports where the virtual camera is exposed.
	OutputInfo() Descriptor

	// IsRunning is recomputed from live process state on each call. A
	// consumer whose external process died out-of-band reports false and
	// is not resurrected; restart policy belongs to the caller.
	IsRunning() bool
}

// New builds a consumer of the given kind with configured defaults. target
// overrides the default device path or node name when non-empty.
func New(kind Kind, target string) (Consumer, error) {
	switch kind {
	case KindV4L2:
		if target == "" {
			target = config.GetV4L2Device()
		}
		return NewV4L2Consumer(target), nil
	case KindPipeWire:
		if target == "" {
			target = config.GetPipeWireNodeName()
		}
		return NewPipeWireConsumer(target), nil
	}
	return nil, fmt.Errorf("unknown consumer backend %q", kind)
}

// ListTargets enumerates the places a backend of the given kind could
// attach: loopback device paths for v4l2, the configured node for pipewire.
func ListTargets(kind Kind) ([]Descriptor, error) {
	switch kind {
	case KindV4L2:
		devices, err := ListLoopbackDevices()
		if err != nil {
			return nil, err
		}
		out := make([]Descriptor, 0, len(devices))
		for _, d := range devices {
			out = append(out, Descriptor{Kind: KindV4L2, Target: d.Path, Label: d.Label})
		}
		return out, nil
	case KindPipeWire:
		return []Descriptor{{Kind: KindPipeWire, Target: config.GetPipeWireNodeName()}}, nil
	}
	return nil, fmt.Errorf("unknown consumer backend %q", kind)
}
