// Package manager is the coordinating layer between the session controller
// and an optional stream consumer. CLI and any future GUI talk to this
// surface only.
package manager

import (
	"context"
	"errors"

	"github.com/gopro-tools/gopro-webcam/internal/consumer"
	"github.com/gopro-tools/gopro-webcam/internal/gopro"
	"github.com/gopro-tools/gopro-webcam/internal/util"
	"github.com/gopro-tools/gopro-webcam/internal/webcam"
)

// EnableResult is what a successful Enable hands back to the user interface.
type EnableResult struct {
	StreamURL string
	Warnings  []gopro.SettingWarning
	Consumer  *consumer.Descriptor // nil when no consumer was attached
}

// Manager sequences the controller and at most one consumer.
type Manager struct {
	ctrl        *gopro.Controller
	consumer    consumer.Consumer
	newConsumer func(consumer.Kind, string) (consumer.Consumer, error)
}

// New creates a manager around an existing controller.
func New(ctrl *gopro.Controller) *Manager {
	return &Manager{ctrl: ctrl, newConsumer: consumer.New}
}

// Controller exposes the underlying session controller.
func (m *Manager) Controller() *gopro.Controller {
	return m.ctrl
}

// Enable validates cfg, connects, starts streaming, and attaches the
// requested consumer. Any failure unwinds everything already done: a failed
// Enable never leaves the camera streaming with no way to stop it.
func (m *Manager) Enable(ctx context.Context, cfg webcam.Config, kind consumer.Kind, target string) (EnableResult, error) {
	// Reject bad configuration before any device traffic.
	if err := cfg.Validate(); err != nil {
		return EnableResult{}, err
	}

	var cons consumer.Consumer
	if kind != "" {
		c, err := m.newConsumer(kind, target)
		if err != nil {
			return EnableResult{}, err
		}
		// Surface missing requirements before touching the camera so the
		// user gets remediation steps instead of a half-built session.
		if missing := c.ValidateRequirements(); len(missing) > 0 {
			return EnableResult{}, &ConsumerUnavailableError{Kind: kind, Missing: missing}
		}
		cons = c
	}

	session, err := m.ctrl.Acquire(ctx)
	if err != nil {
		return EnableResult{}, err
	}

	streamURL, err := m.ctrl.ConfigureAndStart(ctx, cfg)
	if err != nil {
		var serr *gopro.StreamStartError
		if errors.As(err, &serr) {
			// Camera refused streaming mode but is still connected and
			// queryable; a subsequent Disable cleans up. Tearing down
			// here would hide the device state the user needs to inspect.
			return EnableResult{}, err
		}
		session.Close()
		return EnableResult{}, err
	}

	result := EnableResult{
		StreamURL: streamURL,
		Warnings:  m.ctrl.Warnings(),
	}

	if cons != nil {
		if err := cons.Start(ctx, streamURL); err != nil {
			session.Close()
			return EnableResult{}, err
		}
		m.consumer = cons
		info := cons.OutputInfo()
		result.Consumer = &info
	}

	return result, nil
}

// Disable detaches the consumer and tears the session down. Safe to call
// when nothing is enabled.
func (m *Manager) Disable(ctx context.Context) error {
	if m.consumer != nil {
		if err := m.consumer.Stop(); err != nil {
			util.GetLogger().Warn("Consumer stop returned error", "err", err)
		}
		m.consumer = nil
	}
	if err := m.ctrl.Stop(ctx); err != nil {
		return err
	}
	return m.ctrl.Disconnect(ctx)
}

// Status returns the session snapshot plus consumer liveness.
func (m *Manager) Status(ctx context.Context) (gopro.Snapshot, *consumer.Descriptor) {
	snap := m.ctrl.Status(ctx)
	if m.consumer == nil {
		return snap, nil
	}
	info := m.consumer.OutputInfo()
	return snap, &info
}

// ConsumerRunning reports whether an attached consumer's process is alive.
// A consumer that died out-of-band is reported dead, not restarted; restart
// is a user decision.
func (m *Manager) ConsumerRunning() bool {
	return m.consumer != nil && m.consumer.IsRunning()
}

// ListPresets returns the preset catalog.
func (m *Manager) ListPresets() []webcam.PresetInfo {
	return webcam.Presets()
}

// ListConsumerTargets enumerates attach points for a backend kind.
func (m *Manager) ListConsumerTargets(kind consumer.Kind) ([]consumer.Descriptor, error) {
	return consumer.ListTargets(kind)
}

// CheckConsumerAvailability reports the missing requirements for a backend,
// empty when it is ready to use.
func (m *Manager) CheckConsumerAvailability(kind consumer.Kind, target string) ([]string, error) {
	c, err := m.newConsumer(kind, target)
	if err != nil {
		return nil, err
	}
	return c.ValidateRequirements(), nil
}
