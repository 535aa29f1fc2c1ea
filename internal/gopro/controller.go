package gopro

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gopro-tools/gopro-webcam/internal/util"
	"github.com/gopro-tools/gopro-webcam/internal/webcam"
)

// State is the session lifecycle state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateConfiguring  State = "configuring"
	StateStreaming    State = "streaming"
	StateStopping     State = "stopping"
)

// Snapshot is a non-blocking view of the session. Stale marks a snapshot
// returned after the camera stopped responding.
type Snapshot struct {
	SessionID      string
	State          State
	StreamURL      string
	BatteryPercent int
	Encoding       bool
	Stale          bool
	CapturedAt     time.Time
}

// SettingWarning records a single rejected setting write. The batch is
// deliberately non-transactional: one rejection never aborts the rest.
type SettingWarning struct {
	Setting webcam.Setting
	Err     error
}

const keepAliveInterval = 3 * time.Second

// Controller drives exactly one camera session through
// disconnected -> connected -> streaming and back. All methods are safe for
// concurrent use; blocking device calls are issued outside the state lock so
// a status poll and a user-initiated stop can interleave.
type Controller struct {
	opener     Opener
	identifier string
	mode       ConnectionMode

	mu        sync.Mutex
	dev       Device
	sessionID string
	state     State
	config    *webcam.Config
	streamURL string
	warnings  []SettingWarning

	keepAliveCancel context.CancelFunc
}

// NewController creates a controller for the camera selected by identifier
// (last digits of the serial number, empty for the only camera) and mode.
func NewController(opener Opener, identifier string, mode ConnectionMode) *Controller {
	return &Controller{
		opener:     opener,
		identifier: identifier,
		mode:       mode,
		state:      StateDisconnected,
	}
}

// State returns the current session state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// StreamURL returns the stream locator, empty unless streaming.
func (c *Controller) StreamURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streamURL
}

// Warnings returns the setting rejections collected by the last
// ConfigureAndStart.
func (c *Controller) Warnings() []SettingWarning {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]SettingWarning, len(c.warnings))
	copy(out, c.warnings)
	return out
}

// Connect opens the device handle. A second Connect while any session is
// active fails fast with ErrAlreadyConnected and leaves the live session
// untouched.
func (c *Controller) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.state = StateConnecting
	c.mu.Unlock()

	dev, err := c.opener.Open(ctx, c.identifier, c.mode)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = StateDisconnected
		if cerr, ok := err.(*ConnectionError); ok {
			return cerr
		}
		return &ConnectionError{Reason: ReasonTransportError, Err: err}
	}

	c.dev = dev
	c.sessionID = uuid.NewString()
	c.state = StateConnected
	util.GetLogger().Info("Connected to camera", "mode", c.mode, "session", c.sessionID)
	return nil
}

// ConfigureAndStart applies the configuration's device settings and enters
// streaming mode. Individual setting rejections are collected as warnings
// and do not abort the sequence; a stream-start failure returns the session
// to connected.
func (c *Controller) ConfigureAndStart(ctx context.Context, cfg webcam.Config) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	c.mu.Lock()
	if c.state != StateConnected {
		state := c.state
		c.mu.Unlock()
		if state == StateDisconnected || state == StateConnecting {
			return "", ErrNotConnected
		}
		return "", &StreamStartError{Reason: StartDeviceBusy, Err: ErrAlreadyConnected}
	}
	c.state = StateConfiguring
	c.warnings = nil
	dev := c.dev
	c.mu.Unlock()

	log := util.GetLogger()
	var warnings []SettingWarning
	for _, s := range cfg.DeviceSettings() {
		if err := ctx.Err(); err != nil {
			c.restoreConnected()
			return "", err
		}
		if err := dev.ApplySetting(ctx, s.ID, s.Value); err != nil {
			// Firmware variance: a rejected setting is recoverable.
			log.Warn("Setting rejected by camera", "setting", s.Name, "id", int(s.ID), "err", err)
			warnings = append(warnings, SettingWarning{Setting: s, Err: err})
			continue
		}
		log.Debug("Setting applied", "setting", s.Name, "id", int(s.ID), "value", s.Value)
	}

	opts := StreamOptions{
		Resolution:  cfg.StreamResolution(),
		FieldOfView: cfg.FieldOfViewOption(),
		Port:        cfg.Port,
		Protocol:    cfg.Protocol,
		LowLatency:  cfg.LowLatencyStream,
	}

	locator, err := dev.StartWebcam(ctx, opts)

	c.mu.Lock()
	if c.state != StateConfiguring {
		// The session was torn down while the start call was in flight;
		// the late result must not resurrect it. If the start succeeded
		// the camera is streaming with nobody watching, so stop it.
		c.mu.Unlock()
		if err == nil {
			stopCtx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
			defer cancel()
			if serr := dev.StopWebcam(stopCtx); serr != nil {
				log.Warn("Stop after torn-down start returned error", "err", serr)
			}
		}
		return "", ErrNotConnected
	}
	defer c.mu.Unlock()
	c.warnings = warnings
	if err != nil {
		c.state = StateConnected
		if serr, ok := err.(*StreamStartError); ok {
			return "", serr
		}
		return "", &StreamStartError{Reason: StartTransportError, Err: err}
	}

	c.config = &cfg
	c.streamURL = locator
	c.state = StateStreaming
	c.startKeepAliveLocked(dev)
	log.Info("Webcam stream started", "url", locator, "warnings", len(warnings))
	return locator, nil
}

// Stop leaves streaming mode and clears the locator. Calling it in any other
// state is a successful no-op.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateStreaming {
		c.mu.Unlock()
		return nil
	}
	c.state = StateStopping
	c.stopKeepAliveLocked()
	dev := c.dev
	c.mu.Unlock()

	err := dev.StopWebcam(ctx)
	if err != nil {
		// Best effort: the session still returns to connected so the
		// caller can retry or disconnect.
		util.GetLogger().Warn("Webcam stop returned error", "err", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// A disconnect may have completed while the stop call was in flight;
	// its state wins.
	if c.state == StateStopping {
		c.streamURL = ""
		c.state = StateConnected
	}
	return nil
}

// StopDevice issues the streaming-mode stop command even when this session
// never started streaming itself. Recovers a camera left streaming by an
// earlier process.
func (c *Controller) StopDevice(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateStreaming {
		c.mu.Unlock()
		return c.Stop(ctx)
	}
	dev := c.dev
	c.mu.Unlock()

	if dev == nil {
		return ErrNotConnected
	}
	return dev.StopWebcam(ctx)
}

// Disconnect stops streaming if needed, releases the device handle, and
// returns the session to disconnected. Idempotent and valid from any state.
func (c *Controller) Disconnect(ctx context.Context) error {
	if err := c.Stop(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	dev := c.dev
	c.dev = nil
	c.streamURL = ""
	c.config = nil
	c.stopKeepAliveLocked()
	c.state = StateDisconnected
	c.mu.Unlock()

	if dev == nil {
		return nil
	}
	if err := dev.Close(ctx); err != nil {
		util.GetLogger().Warn("Device close returned error", "err", err)
	}
	util.GetLogger().Info("Disconnected from camera")
	return nil
}

// Status returns a snapshot without ever failing. A cancelled poll returns
// the last known snapshot marked stale without touching session state; an
// unresponsive camera downgrades the session to disconnected.
func (c *Controller) Status(ctx context.Context) Snapshot {
	c.mu.Lock()
	snap := Snapshot{
		SessionID:  c.sessionID,
		State:      c.state,
		StreamURL:  c.streamURL,
		CapturedAt: time.Now(),
	}
	dev := c.dev
	c.mu.Unlock()

	if dev == nil {
		return snap
	}

	status, err := dev.Status(ctx)
	if err != nil {
		if ctx.Err() != nil {
			// Cancelled in flight: report staleness, do not mutate state.
			snap.Stale = true
			return snap
		}
		// Camera went away. Best-effort cleanup back to disconnected, and
		// return the last-known view annotated as stale.
		util.GetLogger().Warn("Camera unresponsive, releasing session", "err", err)
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		c.Disconnect(cleanupCtx)
		snap.Stale = true
		return snap
	}

	snap.BatteryPercent = status.BatteryPercent
	snap.Encoding = status.Encoding
	return snap
}

// Watch polls Status every interval until ctx is cancelled, closing the
// returned channel on exit.
func (c *Controller) Watch(ctx context.Context, interval time.Duration) <-chan Snapshot {
	out := make(chan Snapshot)
	go func() {
		defer close(out)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				snap := c.Status(ctx)
				select {
				case out <- snap:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// restoreConnected returns an interrupted configure to connected, unless a
// concurrent disconnect already moved the session on.
func (c *Controller) restoreConnected() {
	c.mu.Lock()
	if c.state == StateConfiguring {
		c.state = StateConnected
	}
	c.mu.Unlock()
}

// startKeepAliveLocked begins periodic keep-alive traffic for transports
// that need it. Caller holds c.mu.
func (c *Controller) startKeepAliveLocked(dev Device) {
	ka, ok := dev.(KeepAliver)
	if !ok {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.keepAliveCancel = cancel
	go func() {
		ticker := time.NewTicker(keepAliveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := ka.KeepAlive(ctx); err != nil && ctx.Err() == nil {
					util.GetLogger().Debug("Keep-alive failed", "err", err)
				}
			}
		}
	}()
}

// stopKeepAliveLocked cancels the keep-alive loop. Caller holds c.mu.
func (c *Controller) stopKeepAliveLocked() {
	if c.keepAliveCancel != nil {
		c.keepAliveCancel()
		c.keepAliveCancel = nil
	}
}
