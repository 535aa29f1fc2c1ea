package consumer

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/gopro-tools/gopro-webcam/internal/util"
)

// LoopbackDevice is one provisioned virtual video device node.
type LoopbackDevice struct {
	Path  string
	Label string
}

// LoopbackModuleLoaded reports whether the v4l2loopback kernel module is
// present, falling back to probing for device nodes when /proc is not
// readable.
func LoopbackModuleLoaded() bool {
	data, err := os.ReadFile("/proc/modules")
	if err == nil {
		return strings.Contains(string(data), "v4l2loopback")
	}
	matches, _ := filepath.Glob("/dev/video*")
	return len(matches) > 0
}

// ProvisionLoopback loads the v4l2loopback module with one device at the
// given number. Idempotent: a module that is already loaded is left alone.
func ProvisionLoopback(deviceNumber int, label string) error {
	if LoopbackModuleLoaded() {
		util.GetLogger().Debug("v4l2loopback already loaded")
		return nil
	}

	cmd := exec.Command("sudo", "modprobe", "v4l2loopback",
		fmt.Sprintf("video_nr=%d", deviceNumber),
		fmt.Sprintf("card_label=%s", label),
		"exclusive_caps=1",
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return errors.Wrapf(err, "modprobe v4l2loopback failed: %s", strings.TrimSpace(string(out)))
	}
	util.GetLogger().Info("Loopback device provisioned", "device", fmt.Sprintf("/dev/video%d", deviceNumber), "label", label)
	return nil
}

// DeprovisionLoopback unloads the v4l2loopback module. Idempotent.
func DeprovisionLoopback() error {
	if !LoopbackModuleLoaded() {
		return nil
	}
	out, err := exec.Command("sudo", "modprobe", "-r", "v4l2loopback").CombinedOutput()
	if err != nil {
		return errors.Wrapf(err, "modprobe -r v4l2loopback failed: %s", strings.TrimSpace(string(out)))
	}
	return nil
}

// ListLoopbackDevices enumerates video device nodes with their labels, via
// v4l2-ctl when available and a plain /dev scan otherwise.
func ListLoopbackDevices() ([]LoopbackDevice, error) {
	if commandAvailable("v4l2-ctl") {
		out, err := exec.Command("v4l2-ctl", "--list-devices").Output()
		if err == nil {
			return parseV4L2CtlOutput(string(out)), nil
		}
		// Fall through to the /dev scan; v4l2-ctl exits non-zero on some
		// systems with no capture devices even when loopback nodes exist.
	}

	matches, err := filepath.Glob("/dev/video*")
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	devices := make([]LoopbackDevice, 0, len(matches))
	for _, m := range matches {
		devices = append(devices, LoopbackDevice{Path: m, Label: filepath.Base(m)})
	}
	return devices, nil
}

// parseV4L2CtlOutput parses `v4l2-ctl --list-devices`: a label line followed
// by indented device paths.
func parseV4L2CtlOutput(out string) []LoopbackDevice {
	var devices []LoopbackDevice
	var label string
	for _, line := range strings.Split(out, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "/dev/video") {
			devices = append(devices, LoopbackDevice{Path: trimmed, Label: label})
			continue
		}
		if !strings.HasPrefix(line, "\t") && !strings.HasPrefix(line, " ") {
			label = strings.TrimSuffix(trimmed, ":")
		}
	}
	return devices
}
