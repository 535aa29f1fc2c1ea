package gopro

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"
	probing "github.com/prometheus-community/pro-bing"

	"github.com/gopro-tools/gopro-webcam/config"
	"github.com/gopro-tools/gopro-webcam/internal/util"
	"github.com/gopro-tools/gopro-webcam/internal/webcam"
)

// Open GoPro camera status IDs used by the status snapshot.
const (
	statusIDBusy     = "8"
	statusIDEncoding = "10"
	statusIDBattery  = "70"
)

// HTTPOpener opens cameras over the Open GoPro HTTP API. Wired cameras are
// reached at the USB network address derived from the serial number;
// wireless cameras at the fixed AP address.
type HTTPOpener struct{}

// Open resolves the camera address, verifies reachability, and confirms the
// HTTP API responds before handing out the device.
func (HTTPOpener) Open(ctx context.Context, identifier string, mode ConnectionMode) (Device, error) {
	// The whole handshake (probe plus API verification) shares one deadline.
	ctx, cancel := context.WithTimeout(ctx, config.GetConnectTimeout())
	defer cancel()

	host, err := resolveHost(identifier, mode)
	if err != nil {
		return nil, &ConnectionError{Reason: ReasonNotFound, Err: err}
	}

	if mode == ModeWireless {
		// ICMP probe first: distinguishes "camera AP not joined" from a
		// camera that answers ping but refuses HTTP.
		if err := pingHost(ctx, host); err != nil {
			return nil, &ConnectionError{Reason: ReasonNotFound, Err: err}
		}
	}

	dev := &HTTPDevice{
		host: host,
		mode: mode,
		base: fmt.Sprintf("http://%s", net.JoinHostPort(host, strconv.Itoa(config.GetHTTPPort()))),
		client: &http.Client{
			Timeout: config.GetCommandTimeout(),
		},
	}

	// Confirm the API is actually up.
	if _, err := dev.Status(ctx); err != nil {
		return nil, classifyConnectError(err)
	}

	util.GetLogger().Debug("Camera HTTP API reachable", "host", host, "mode", mode)
	return dev, nil
}

// resolveHost maps (identifier, mode) to the camera's IP address. Wired
// cameras use the documented 172.2X.1YZ.51 scheme where X, Y, Z are the last
// three digits of the serial number.
func resolveHost(identifier string, mode ConnectionMode) (string, error) {
	if mode == ModeWireless {
		return config.GetWirelessHost(), nil
	}

	if override := config.GetWiredHost(); override != "" {
		return override, nil
	}

	if len(identifier) < 3 {
		return "", errors.New("wired connection needs the camera serial suffix (at least 3 digits) or a configured wired host")
	}
	suffix := identifier[len(identifier)-3:]
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return "", errors.Errorf("serial suffix %q is not numeric", suffix)
		}
	}
	return fmt.Sprintf("172.2%c.1%c%c.51", suffix[0], suffix[1], suffix[2]), nil
}

func pingHost(ctx context.Context, host string) error {
	pinger, err := probing.NewPinger(host)
	if err != nil {
		return err
	}
	pinger.Count = 1
	pinger.Timeout = 3 * time.Second
	pinger.SetPrivileged(false)
	if err := pinger.RunWithContext(ctx); err != nil {
		return errors.Wrapf(err, "camera at %s is unreachable", host)
	}
	if pinger.Statistics().PacketsRecv == 0 {
		return errors.Errorf("camera at %s did not answer ping", host)
	}
	return nil
}

func classifyConnectError(err error) *ConnectionError {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return &ConnectionError{Reason: ReasonTimeout, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &ConnectionError{Reason: ReasonTimeout, Err: err}
	}
	var herr *httpStatusError
	if errors.As(err, &herr) && (herr.code == http.StatusForbidden || herr.code == http.StatusUnauthorized) {
		return &ConnectionError{Reason: ReasonPermission, Err: err}
	}
	return &ConnectionError{Reason: ReasonTransportError, Err: err}
}

// HTTPDevice talks the Open GoPro HTTP API. All commands are GETs with query
// parameters; the camera answers 200 with an empty JSON object on success.
type HTTPDevice struct {
	host   string
	mode   ConnectionMode
	base   string
	client *http.Client
}

type httpStatusError struct {
	code int
	path string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("camera returned HTTP %d for %s", e.code, e.path)
}

func (d *HTTPDevice) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	u := d.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &httpStatusError{code: resp.StatusCode, path: path}
	}
	return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
}

// ApplySetting writes one numeric setting via /gopro/camera/setting.
func (d *HTTPDevice) ApplySetting(ctx context.Context, id webcam.SettingID, value int) error {
	q := url.Values{}
	q.Set("setting", strconv.Itoa(int(id)))
	q.Set("option", strconv.Itoa(value))
	_, err := d.get(ctx, "/gopro/camera/setting", q)
	return err
}

// StartWebcam enters streaming mode. The standard path uses /gopro/webcam/start;
// the low-latency variant uses the preview stream entry point instead.
func (d *HTTPDevice) StartWebcam(ctx context.Context, opts StreamOptions) (string, error) {
	q := url.Values{}
	q.Set("port", strconv.Itoa(opts.Port))

	var path string
	if opts.LowLatency {
		path = "/gopro/camera/stream/start"
	} else {
		path = "/gopro/webcam/start"
		q.Set("res", strconv.Itoa(opts.Resolution))
		q.Set("fov", strconv.Itoa(opts.FieldOfView))
		if opts.Protocol == webcam.ProtocolRTSP {
			q.Set("protocol", "RTSP")
		}
	}

	if _, err := d.get(ctx, path, q); err != nil {
		return "", classifyStartError(err)
	}

	if opts.Protocol == webcam.ProtocolRTSP {
		return fmt.Sprintf("rtsp://%s:%d/live", d.host, opts.Port), nil
	}
	return fmt.Sprintf("udp://@:%d", opts.Port), nil
}

func classifyStartError(err error) *StreamStartError {
	var herr *httpStatusError
	if errors.As(err, &herr) {
		switch herr.code {
		case http.StatusConflict:
			return &StreamStartError{Reason: StartDeviceBusy, Err: err}
		case http.StatusBadRequest, http.StatusNotFound:
			return &StreamStartError{Reason: StartUnsupportedMode, Err: err}
		}
	}
	return &StreamStartError{Reason: StartTransportError, Err: err}
}

// StopWebcam leaves streaming mode. Both stop and exit are issued so the
// camera returns to idle rather than staying in webcam preview.
func (d *HTTPDevice) StopWebcam(ctx context.Context) error {
	if _, err := d.get(ctx, "/gopro/webcam/stop", nil); err != nil {
		return err
	}
	if _, err := d.get(ctx, "/gopro/webcam/exit", nil); err != nil {
		// Some firmware answers stop but not exit; the stream is down
		// either way.
		util.GetLogger().Debug("Webcam exit returned error", "err", err)
	}
	if _, err := d.get(ctx, "/gopro/camera/stream/stop", nil); err != nil {
		util.GetLogger().Debug("Preview stream stop returned error", "err", err)
	}
	return nil
}

// Status fetches /gopro/camera/state and extracts the handful of status IDs
// the session cares about.
func (d *HTTPDevice) Status(ctx context.Context) (DeviceStatus, error) {
	body, err := d.get(ctx, "/gopro/camera/state", nil)
	if err != nil {
		return DeviceStatus{}, err
	}

	var state struct {
		Status map[string]json.Number `json:"status"`
	}
	if err := json.Unmarshal(body, &state); err != nil {
		return DeviceStatus{}, errors.Wrap(err, "malformed camera state")
	}

	var status DeviceStatus
	if v, ok := state.Status[statusIDBattery]; ok {
		if n, err := v.Int64(); err == nil {
			status.BatteryPercent = int(n)
		}
	}
	if v, ok := state.Status[statusIDEncoding]; ok {
		n, _ := v.Int64()
		status.Encoding = n == 1
	}
	if v, ok := state.Status[statusIDBusy]; ok {
		n, _ := v.Int64()
		status.Busy = n == 1
	}
	return status, nil
}

// KeepAlive issues the periodic keep-alive the wireless link needs.
func (d *HTTPDevice) KeepAlive(ctx context.Context) error {
	if d.mode != ModeWireless {
		return nil
	}
	_, err := d.get(ctx, "/gopro/camera/keep_alive", nil)
	return err
}

// Close releases the handle. The HTTP API is stateless, so there is nothing
// to tear down beyond idle connections.
func (d *HTTPDevice) Close(ctx context.Context) error {
	d.client.CloseIdleConnections()
	return nil
}
