package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

var v *viper.Viper

func init() {
	v = viper.New()

	// Set default values
	v.SetDefault("webcam.port", 8554)
	v.SetDefault("webcam.preset", "balanced")

	v.SetDefault("gopro.wired_host", "") // derived from serial when empty
	v.SetDefault("gopro.wireless_host", "10.5.5.9")
	v.SetDefault("gopro.http_port", 8080)
	v.SetDefault("gopro.command_timeout", 10*time.Second)
	v.SetDefault("gopro.connect_timeout", 30*time.Second)

	v.SetDefault("v4l2.device", "/dev/video42")
	v.SetDefault("v4l2.label", "GoPro Webcam")
	v.SetDefault("v4l2.framerate", 30)

	v.SetDefault("pipewire.node_name", "GoPro Camera")

	// Default home directory for logs and state
	v.SetDefault("home", filepath.Join(xdg.Home, ".gopro-webcam"))

	// Environment variables
	v.SetEnvPrefix("GOPRO_WEBCAM")
	v.AutomaticEnv()
	v.BindEnv("webcam.port", "GOPRO_WEBCAM_PORT")
	v.BindEnv("gopro.wired_host", "GOPRO_WIRED_HOST")
	v.BindEnv("gopro.wireless_host", "GOPRO_WIRELESS_HOST")
	v.BindEnv("v4l2.device", "GOPRO_WEBCAM_V4L2_DEVICE")
	v.BindEnv("home", "GOPRO_WEBCAM_HOME")

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	configPaths := []string{
		".",
		"$HOME/.gopro-webcam",
		"/etc/gopro-webcam",
	}

	for _, path := range configPaths {
		v.AddConfigPath(os.ExpandEnv(path))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file was found but another error was produced
			panic(fmt.Sprintf("Fatal error reading config file: %s", err))
		}
		// Config file not found; ignore and use defaults
	}
}

// GetStreamPort returns the default UDP/RTSP port for the webcam stream
func GetStreamPort() int {
	return v.GetInt("webcam.port")
}

// GetDefaultPreset returns the preset used when none is specified
func GetDefaultPreset() string {
	return v.GetString("webcam.preset")
}

// GetWiredHost returns a fixed wired host override, empty when the address
// should be derived from the camera serial number
func GetWiredHost() string {
	return v.GetString("gopro.wired_host")
}

// GetWirelessHost returns the camera address when connected to its AP
func GetWirelessHost() string {
	return v.GetString("gopro.wireless_host")
}

// GetHTTPPort returns the camera HTTP API port
func GetHTTPPort() int {
	return v.GetInt("gopro.http_port")
}

// GetCommandTimeout bounds a single camera HTTP call
func GetCommandTimeout() time.Duration {
	return v.GetDuration("gopro.command_timeout")
}

// GetConnectTimeout bounds the whole connect handshake
func GetConnectTimeout() time.Duration {
	return v.GetDuration("gopro.connect_timeout")
}

// GetV4L2Device returns the default loopback device path
func GetV4L2Device() string {
	return v.GetString("v4l2.device")
}

// GetV4L2Label returns the card label used when provisioning the loopback device
func GetV4L2Label() string {
	return v.GetString("v4l2.label")
}

// GetV4L2Framerate returns the output framerate for the transcode backend
func GetV4L2Framerate() int {
	return v.GetInt("v4l2.framerate")
}

// GetPipeWireNodeName returns the node name for the desktop media backend
func GetPipeWireNodeName() string {
	return v.GetString("pipewire.node_name")
}

// GetHome returns the application home directory, creating it if needed
func GetHome() string {
	home := v.GetString("home")
	os.MkdirAll(home, 0o755)
	return home
}

// GetLogDir returns the directory for consumer process logs
func GetLogDir() string {
	dir := filepath.Join(GetHome(), "logs")
	os.MkdirAll(dir, 0o755)
	return dir
}
