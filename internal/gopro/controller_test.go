package gopro

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gopro-tools/gopro-webcam/internal/webcam"
)

type appliedSetting struct {
	ID    webcam.SettingID
	Value int
}

// fakeDevice is a scriptable camera that records every call. The optional
// gate channels let a test park a call mid-flight.
type fakeDevice struct {
	mu sync.Mutex

	applied    []appliedSetting
	applyErrs  map[webcam.SettingID]error
	startErr   error
	startCalls int
	stopCalls  int
	statusErr  error
	status     DeviceStatus
	closeCalls int

	startEntered chan struct{}
	startGate    chan struct{}
	stopEntered  chan struct{}
	stopGate     chan struct{}
}

func (d *fakeDevice) ApplySetting(ctx context.Context, id webcam.SettingID, value int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err, ok := d.applyErrs[id]; ok {
		return err
	}
	d.applied = append(d.applied, appliedSetting{ID: id, Value: value})
	return nil
}

func (d *fakeDevice) StartWebcam(ctx context.Context, opts StreamOptions) (string, error) {
	if d.startEntered != nil {
		d.startEntered <- struct{}{}
	}
	if d.startGate != nil {
		<-d.startGate
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.startCalls++
	if d.startErr != nil {
		return "", d.startErr
	}
	return fmt.Sprintf("udp://@:%d", opts.Port), nil
}

func (d *fakeDevice) StopWebcam(ctx context.Context) error {
	if d.stopEntered != nil {
		d.stopEntered <- struct{}{}
	}
	if d.stopGate != nil {
		<-d.stopGate
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopCalls++
	return nil
}

func (d *fakeDevice) Status(ctx context.Context) (DeviceStatus, error) {
	if err := ctx.Err(); err != nil {
		return DeviceStatus{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.statusErr != nil {
		return DeviceStatus{}, d.statusErr
	}
	return d.status, nil
}

func (d *fakeDevice) Close(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closeCalls++
	return nil
}

func (d *fakeDevice) calls(id webcam.SettingID) []appliedSetting {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []appliedSetting
	for _, a := range d.applied {
		if a.ID == id {
			out = append(out, a)
		}
	}
	return out
}

type fakeOpener struct {
	dev       *fakeDevice
	openErr   error
	openCalls int
}

func (o *fakeOpener) Open(ctx context.Context, identifier string, mode ConnectionMode) (Device, error) {
	o.openCalls++
	if o.openErr != nil {
		return nil, o.openErr
	}
	return o.dev, nil
}

func newTestController(dev *fakeDevice) (*Controller, *fakeOpener) {
	opener := &fakeOpener{dev: dev}
	return NewController(opener, "0123", ModeWired), opener
}

func TestConnectTransitions(t *testing.T) {
	ctrl, _ := newTestController(&fakeDevice{})

	assert.Equal(t, StateDisconnected, ctrl.State())
	require.NoError(t, ctrl.Connect(context.Background()))
	assert.Equal(t, StateConnected, ctrl.State())
}

func TestConnectFailureReturnsDisconnected(t *testing.T) {
	opener := &fakeOpener{openErr: &ConnectionError{Reason: ReasonTimeout, Err: errors.New("no route")}}
	ctrl := NewController(opener, "", ModeWireless)

	err := ctrl.Connect(context.Background())
	require.Error(t, err)
	var cerr *ConnectionError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, ReasonTimeout, cerr.Reason)
	assert.Equal(t, StateDisconnected, ctrl.State())
}

func TestSecondConnectFailsFast(t *testing.T) {
	dev := &fakeDevice{}
	ctrl, opener := newTestController(dev)
	ctx := context.Background()

	require.NoError(t, ctrl.Connect(ctx))
	err := ctrl.Connect(ctx)
	assert.ErrorIs(t, err, ErrAlreadyConnected)
	// The live session is untouched.
	assert.Equal(t, StateConnected, ctrl.State())
	assert.Equal(t, 1, opener.openCalls)
}

func TestConfigureAndStart(t *testing.T) {
	dev := &fakeDevice{}
	ctrl, _ := newTestController(dev)
	ctx := context.Background()

	require.NoError(t, ctrl.Connect(ctx))
	locator, err := ctrl.ConfigureAndStart(ctx, webcam.BalancedPreset())
	require.NoError(t, err)

	assert.Equal(t, StateStreaming, ctrl.State())
	assert.Equal(t, "udp://@:8554", locator)
	assert.Equal(t, locator, ctrl.StreamURL())

	// Every latency setting reached the device before the start command.
	for _, id := range []webcam.SettingID{
		webcam.SettingDigitalLens,
		webcam.SettingBitRate,
		webcam.SettingHyperSmooth,
		webcam.SettingHorizonLeveling,
		webcam.SettingVideoPerformance,
	} {
		assert.Len(t, dev.calls(id), 1, "setting %d should be applied once", id)
	}
	assert.Equal(t, 1, dev.startCalls)
	assert.Empty(t, ctrl.Warnings())
}

func TestInvalidConfigNeverReachesDevice(t *testing.T) {
	dev := &fakeDevice{}
	ctrl, _ := newTestController(dev)
	ctx := context.Background()

	require.NoError(t, ctrl.Connect(ctx))
	bad := webcam.BalancedPreset()
	bad.Port = 70000

	_, err := ctrl.ConfigureAndStart(ctx, bad)
	require.Error(t, err)
	var verr *webcam.ValidationError
	assert.ErrorAs(t, err, &verr)

	assert.Empty(t, dev.applied)
	assert.Zero(t, dev.startCalls)
	assert.Equal(t, StateConnected, ctrl.State())
}

func TestSettingRejectionIsNonFatal(t *testing.T) {
	dev := &fakeDevice{applyErrs: map[webcam.SettingID]error{
		webcam.SettingHorizonLeveling: errors.New("unsupported on this firmware"),
	}}
	ctrl, _ := newTestController(dev)
	ctx := context.Background()

	require.NoError(t, ctrl.Connect(ctx))
	_, err := ctrl.ConfigureAndStart(ctx, webcam.BalancedPreset())
	require.NoError(t, err)

	assert.Equal(t, StateStreaming, ctrl.State())
	warnings := ctrl.Warnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, webcam.SettingHorizonLeveling, warnings[0].Setting.ID)
	// The rejected setting did not stop the others being attempted.
	assert.Len(t, dev.calls(webcam.SettingHyperSmooth), 1)
	assert.Equal(t, 1, dev.startCalls)
}

func TestStartStreamFailureReturnsToConnected(t *testing.T) {
	dev := &fakeDevice{startErr: &StreamStartError{Reason: StartDeviceBusy, Err: errors.New("busy")}}
	ctrl, _ := newTestController(dev)
	ctx := context.Background()

	require.NoError(t, ctrl.Connect(ctx))
	_, err := ctrl.ConfigureAndStart(ctx, webcam.BalancedPreset())
	require.Error(t, err)
	var serr *StreamStartError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, StartDeviceBusy, serr.Reason)

	assert.Equal(t, StateConnected, ctrl.State())
	assert.Empty(t, ctrl.StreamURL())

	// A subsequent stop is a safe no-op.
	assert.NoError(t, ctrl.Stop(ctx))
	assert.Equal(t, StateConnected, ctrl.State())
}

func TestStopIdempotent(t *testing.T) {
	dev := &fakeDevice{}
	ctrl, _ := newTestController(dev)
	ctx := context.Background()

	require.NoError(t, ctrl.Connect(ctx))
	_, err := ctrl.ConfigureAndStart(ctx, webcam.BalancedPreset())
	require.NoError(t, err)

	require.NoError(t, ctrl.Stop(ctx))
	assert.Equal(t, StateConnected, ctrl.State())
	assert.Empty(t, ctrl.StreamURL())
	assert.Equal(t, 1, dev.stopCalls)

	// Second stop changes nothing and is still a success.
	require.NoError(t, ctrl.Stop(ctx))
	assert.Equal(t, StateConnected, ctrl.State())
	assert.Equal(t, 1, dev.stopCalls)
}

func TestDisconnectIdempotent(t *testing.T) {
	dev := &fakeDevice{}
	ctrl, _ := newTestController(dev)
	ctx := context.Background()

	require.NoError(t, ctrl.Connect(ctx))
	require.NoError(t, ctrl.Disconnect(ctx))
	assert.Equal(t, StateDisconnected, ctrl.State())
	assert.Equal(t, 1, dev.closeCalls)

	require.NoError(t, ctrl.Disconnect(ctx))
	assert.Equal(t, StateDisconnected, ctrl.State())
	assert.Equal(t, 1, dev.closeCalls)
}

func TestDisconnectWhileStreamingStopsFirst(t *testing.T) {
	dev := &fakeDevice{}
	ctrl, _ := newTestController(dev)
	ctx := context.Background()

	require.NoError(t, ctrl.Connect(ctx))
	_, err := ctrl.ConfigureAndStart(ctx, webcam.BalancedPreset())
	require.NoError(t, err)

	require.NoError(t, ctrl.Disconnect(ctx))
	assert.Equal(t, StateDisconnected, ctrl.State())
	assert.Equal(t, 1, dev.stopCalls)
	assert.Equal(t, 1, dev.closeCalls)
	assert.Empty(t, ctrl.StreamURL())
}

// Interruption while streaming: the scoped session still runs the full
// stop-then-disconnect teardown even though the caller's context is gone.
func TestScopedSessionTeardownOnCancellation(t *testing.T) {
	dev := &fakeDevice{}
	ctrl, _ := newTestController(dev)

	ctx, cancel := context.WithCancel(context.Background())
	session, err := ctrl.Acquire(ctx)
	require.NoError(t, err)

	_, err = ctrl.ConfigureAndStart(ctx, webcam.BalancedPreset())
	require.NoError(t, err)
	assert.Equal(t, StateStreaming, ctrl.State())

	cancel() // simulated interrupt mid-stream
	require.NoError(t, session.Close())

	assert.Equal(t, StateDisconnected, ctrl.State())
	assert.Equal(t, 1, dev.stopCalls)
	assert.Equal(t, 1, dev.closeCalls)

	// Close is once-only: a second call does not re-run teardown.
	require.NoError(t, session.Close())
	assert.Equal(t, 1, dev.stopCalls)
}

func TestStatusSnapshot(t *testing.T) {
	dev := &fakeDevice{status: DeviceStatus{BatteryPercent: 73, Encoding: true}}
	ctrl, _ := newTestController(dev)
	ctx := context.Background()

	require.NoError(t, ctrl.Connect(ctx))
	snap := ctrl.Status(ctx)

	assert.Equal(t, StateConnected, snap.State)
	assert.Equal(t, 73, snap.BatteryPercent)
	assert.True(t, snap.Encoding)
	assert.False(t, snap.Stale)
}

func TestStatusOnDeadDeviceDowngradesSession(t *testing.T) {
	dev := &fakeDevice{}
	ctrl, _ := newTestController(dev)
	ctx := context.Background()

	require.NoError(t, ctrl.Connect(ctx))
	dev.mu.Lock()
	dev.statusErr = errors.New("connection refused")
	dev.mu.Unlock()

	snap := ctrl.Status(ctx)
	assert.True(t, snap.Stale)
	assert.Equal(t, StateDisconnected, ctrl.State())
	assert.Equal(t, 1, dev.closeCalls)
}

func TestCancelledPollDoesNotMutateState(t *testing.T) {
	dev := &fakeDevice{}
	ctrl, _ := newTestController(dev)

	require.NoError(t, ctrl.Connect(context.Background()))
	_, err := ctrl.ConfigureAndStart(context.Background(), webcam.BalancedPreset())
	require.NoError(t, err)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	snap := ctrl.Status(cancelled)

	assert.True(t, snap.Stale)
	assert.Equal(t, StateStreaming, ctrl.State(), "cancelled poll must not change session state")
	assert.Zero(t, dev.closeCalls)
}

// The locator is never observable outside the streaming state.
func TestStreamURLOnlyWhileStreaming(t *testing.T) {
	dev := &fakeDevice{}
	ctrl, _ := newTestController(dev)
	ctx := context.Background()

	assert.Empty(t, ctrl.StreamURL())
	require.NoError(t, ctrl.Connect(ctx))
	assert.Empty(t, ctrl.StreamURL())

	locator, err := ctrl.ConfigureAndStart(ctx, webcam.BalancedPreset())
	require.NoError(t, err)
	assert.NotEmpty(t, locator)

	require.NoError(t, ctrl.Stop(ctx))
	assert.Empty(t, ctrl.StreamURL())
}

// A disconnect racing an in-flight stream start must win: the late success
// is not allowed to flip a torn-down session to streaming, and the camera
// (which did start) is told to stop again.
func TestDisconnectDuringStartStreamWins(t *testing.T) {
	dev := &fakeDevice{
		startEntered: make(chan struct{}),
		startGate:    make(chan struct{}),
	}
	ctrl, _ := newTestController(dev)
	ctx := context.Background()

	require.NoError(t, ctrl.Connect(ctx))

	done := make(chan error, 1)
	go func() {
		_, err := ctrl.ConfigureAndStart(ctx, webcam.BalancedPreset())
		done <- err
	}()

	<-dev.startEntered // start call is now parked in flight
	require.NoError(t, ctrl.Disconnect(ctx))
	assert.Equal(t, StateDisconnected, ctrl.State())
	close(dev.startGate)

	err := <-done
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Equal(t, StateDisconnected, ctrl.State())
	assert.Empty(t, ctrl.StreamURL())

	// The camera entered streaming mode before the teardown, so a
	// compensating stop was issued.
	dev.mu.Lock()
	stops := dev.stopCalls
	dev.mu.Unlock()
	assert.Equal(t, 1, stops)

	// And further lifecycle calls on the dead session stay safe no-ops.
	assert.NoError(t, ctrl.Stop(ctx))
	assert.NoError(t, ctrl.Disconnect(ctx))
}

// A disconnect completing while a stop call is in flight must not be undone
// by the stop's commit.
func TestDisconnectDuringStopStaysDisconnected(t *testing.T) {
	dev := &fakeDevice{
		stopEntered: make(chan struct{}),
		stopGate:    make(chan struct{}),
	}
	ctrl, _ := newTestController(dev)
	ctx := context.Background()

	require.NoError(t, ctrl.Connect(ctx))
	_, err := ctrl.ConfigureAndStart(ctx, webcam.BalancedPreset())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- ctrl.Stop(ctx) }()

	<-dev.stopEntered // stop call is now parked in flight
	require.NoError(t, ctrl.Disconnect(ctx))
	assert.Equal(t, StateDisconnected, ctrl.State())
	close(dev.stopGate)

	require.NoError(t, <-done)
	assert.Equal(t, StateDisconnected, ctrl.State())
	assert.Empty(t, ctrl.StreamURL())
}

func TestStopDeviceRecoversForeignStream(t *testing.T) {
	dev := &fakeDevice{}
	ctrl, _ := newTestController(dev)
	ctx := context.Background()

	// Not connected yet: nothing to stop.
	assert.ErrorIs(t, ctrl.StopDevice(ctx), ErrNotConnected)

	require.NoError(t, ctrl.Connect(ctx))
	require.NoError(t, ctrl.StopDevice(ctx))
	assert.Equal(t, 1, dev.stopCalls)
	assert.Equal(t, StateConnected, ctrl.State())
}
