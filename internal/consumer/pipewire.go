package consumer

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/gopro-tools/gopro-webcam/internal/util"
)

// PipeWireConsumer exposes the camera stream as a native PipeWire video
// source node via gst-launch. Applications on a PipeWire desktop see it as a
// camera without any kernel module.
type PipeWireConsumer struct {
	nodeName string
	proc     *process
}

// NewPipeWireConsumer creates a consumer publishing under the given node name.
func NewPipeWireConsumer(nodeName string) *PipeWireConsumer {
	return &PipeWireConsumer{
		nodeName: nodeName,
		proc:     newProcess("pipewire-consumer"),
	}
}

// ValidateRequirements checks for the GStreamer launcher and a reachable
// PipeWire service.
func (c *PipeWireConsumer) ValidateRequirements() []string {
	var missing []string
	if !commandAvailable("gst-launch-1.0") {
		missing = append(missing, "gst-launch-1.0 not found in PATH (install gstreamer)")
	}
	if !commandAvailable("pw-cli") {
		missing = append(missing, "pw-cli not found in PATH (is PipeWire installed?)")
	}
	return missing
}

// Start spawns the GStreamer pipeline feeding the PipeWire node.
func (c *PipeWireConsumer) Start(ctx context.Context, streamURL string) error {
	if c.IsRunning() {
		return &AlreadyRunningError{Kind: KindPipeWire, Target: c.nodeName}
	}
	if missing := c.ValidateRequirements(); len(missing) > 0 {
		return errors.Errorf("pipewire consumer requirements not met: %v", missing)
	}

	args, err := c.gstArgs(streamURL)
	if err != nil {
		return err
	}
	if err := c.proc.start(ctx, "gst-launch-1.0", args); err != nil {
		return err
	}
	util.GetLogger().Info("PipeWire source node exposed", "node", c.nodeName, "source", streamURL)
	return nil
}

// gstArgs builds the MPEG-TS over UDP decode pipeline. Sync is disabled on
// the sink: clocking the output against the stream timestamps would add the
// latency the camera settings just removed.
func (c *PipeWireConsumer) gstArgs(streamURL string) ([]string, error) {
	uri, err := udpURI(streamURL)
	if err != nil {
		return nil, err
	}
	return []string{
		"-q",
		"udpsrc", "uri=" + uri, "buffer-size=0",
		"!", "tsdemux",
		"!", "h264parse",
		"!", "decodebin",
		"!", "videoconvert",
		"!", "pipewiresink",
		"mode=provide",
		"stream-properties=props,media.class=Video/Source,node.name=" + gstQuote(c.nodeName),
		"sync=false",
	}, nil
}

// gstQuote quotes a value for a GstStructure string. Only backslash and the
// quote character itself are escaped; Go's %q would also escape non-ASCII,
// which GStreamer does not understand.
func gstQuote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		if s[i] == '"' || s[i] == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	b.WriteByte('"')
	return b.String()
}

// udpURI normalizes the locator's any-interface form (udp://@:port) to the
// udpsrc form (udp://0.0.0.0:port).
func udpURI(streamURL string) (string, error) {
	const anyPrefix = "udp://@:"
	if len(streamURL) > len(anyPrefix) && streamURL[:len(anyPrefix)] == anyPrefix {
		return "udp://0.0.0.0:" + streamURL[len(anyPrefix):], nil
	}
	if len(streamURL) >= 6 && streamURL[:6] == "udp://" {
		return streamURL, nil
	}
	return "", errors.Errorf("pipewire consumer only supports udp stream locators, got %q", streamURL)
}

// Stop terminates the GStreamer pipeline.
func (c *PipeWireConsumer) Stop() error {
	return c.proc.stop()
}

// OutputInfo reports the PipeWire node this consumer publishes.
func (c *PipeWireConsumer) OutputInfo() Descriptor {
	return Descriptor{
		Kind:    KindPipeWire,
		Target:  c.nodeName,
		Label:   c.nodeName,
		Running: c.IsRunning(),
	}
}

// IsRunning reflects the actual pipeline process state.
func (c *PipeWireConsumer) IsRunning() bool {
	return c.proc.alive()
}
