package consumer

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/pkg/errors"

	"github.com/gopro-tools/gopro-webcam/config"
	"github.com/gopro-tools/gopro-webcam/internal/util"
)

// claimedDevices tracks which loopback device paths are owned by a running
// consumer in this process. A loopback node is shared OS state; double
// attaching two transcoders to one node corrupts both outputs.
var (
	claimMu        sync.Mutex
	claimedDevices = map[string]*V4L2Consumer{}
)

func claimDevice(path string, c *V4L2Consumer) error {
	claimMu.Lock()
	defer claimMu.Unlock()
	if owner, ok := claimedDevices[path]; ok && owner.IsRunning() {
		return errors.Errorf("loopback device %s is already claimed", path)
	}
	claimedDevices[path] = c
	return nil
}

func releaseDevice(path string, c *V4L2Consumer) {
	claimMu.Lock()
	defer claimMu.Unlock()
	if claimedDevices[path] == c {
		delete(claimedDevices, path)
	}
}

// V4L2Consumer transcodes the camera stream into a v4l2loopback device with
// ffmpeg, making the camera appear as a standard webcam.
//
// The ffmpeg flags matter: the camera-side settings remove roughly a second
// of latency, and a default ffmpeg invocation would buffer most of it right
// back. Input buffering is disabled, I/O is direct, and the raw frames go
// straight to the device without an encode queue.
type V4L2Consumer struct {
	devicePath string
	framerate  int
	proc       *process
}

// NewV4L2Consumer creates a consumer writing to the given loopback device.
func NewV4L2Consumer(devicePath string) *V4L2Consumer {
	return &V4L2Consumer{
		devicePath: devicePath,
		framerate:  config.GetV4L2Framerate(),
		proc:       newProcess("v4l2-consumer"),
	}
}

// ValidateRequirements checks for ffmpeg, the v4l2loopback module, and the
// target device node. No side effects: provisioning is a separate,
// deliberate step.
func (c *V4L2Consumer) ValidateRequirements() []string {
	var missing []string
	if !commandAvailable("ffmpeg") {
		missing = append(missing, "ffmpeg not found in PATH")
	}
	if !LoopbackModuleLoaded() {
		missing = append(missing, "v4l2loopback kernel module not loaded (run: gopro-webcam loopback setup)")
	}
	if _, err := os.Stat(c.devicePath); err != nil {
		missing = append(missing, fmt.Sprintf("loopback device %s does not exist", c.devicePath))
	}
	return missing
}

// Start claims the device node and spawns the transcode process.
func (c *V4L2Consumer) Start(ctx context.Context, streamURL string) error {
	if c.IsRunning() {
		return &AlreadyRunningError{Kind: KindV4L2, Target: c.devicePath}
	}
	if missing := c.ValidateRequirements(); len(missing) > 0 {
		return errors.Errorf("v4l2 consumer requirements not met: %v", missing)
	}
	if err := claimDevice(c.devicePath, c); err != nil {
		return err
	}

	args := c.ffmpegArgs(streamURL)
	if err := c.proc.start(ctx, "ffmpeg", args); err != nil {
		releaseDevice(c.devicePath, c)
		return err
	}
	util.GetLogger().Info("Virtual camera exposed", "device", c.devicePath, "source", streamURL)
	return nil
}

// ffmpegArgs builds the low-latency transcode command.
func (c *V4L2Consumer) ffmpegArgs(streamURL string) []string {
	args := []string{
		"-hide_banner",
		// No input buffering: frames are forwarded as they arrive.
		"-fflags", "nobuffer",
		"-flags", "low_delay",
		"-avioflags", "direct",
		"-i", streamURL,
		// Raw frames to the loopback node; no encoder, no GOP queue.
		"-vf", "format=yuv420p",
		"-an",
	}
	if c.framerate > 0 {
		args = append(args, "-r", strconv.Itoa(c.framerate))
	}
	args = append(args, "-f", "v4l2", c.devicePath)
	return args
}

// Stop terminates the transcode process and releases the device claim.
func (c *V4L2Consumer) Stop() error {
	err := c.proc.stop()
	releaseDevice(c.devicePath, c)
	return err
}

// OutputInfo reports the loopback device this consumer writes to.
func (c *V4L2Consumer) OutputInfo() Descriptor {
	return Descriptor{
		Kind:    KindV4L2,
		Target:  c.devicePath,
		Label:   config.GetV4L2Label(),
		Running: c.IsRunning(),
	}
}

// IsRunning reflects the actual ffmpeg process state.
func (c *V4L2Consumer) IsRunning() bool {
	return c.proc.alive()
}
