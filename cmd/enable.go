package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gopro-tools/gopro-webcam/config"
	"github.com/gopro-tools/gopro-webcam/internal/consumer"
	"github.com/gopro-tools/gopro-webcam/internal/manager"
	"github.com/gopro-tools/gopro-webcam/internal/util"
	"github.com/gopro-tools/gopro-webcam/internal/webcam"
)

type EnableOptions struct {
	Preset         string
	Resolution     string
	FOV            string
	BitRate        string
	Protocol       string
	Port           int
	NoOptimization bool
	LowLatency     bool
	Output         string
	V4L2Device     string
	SetupV4L2      bool
	PipeWireNode   string
}

func NewEnableCommand() *cobra.Command {
	opts := &EnableOptions{}

	cmd := &cobra.Command{
		Use:   "enable",
		Short: "Start webcam streaming and optionally expose a virtual camera",
		Long: `Connect to the camera, apply latency-tuned settings, and start the webcam
stream. With --output, the stream is also attached to a virtual-camera
backend and stays up until interrupted (Ctrl+C tears everything down).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnable(cmd.Context(), opts)
		},
		Example: `  # Balanced preset, stream only
  gopro-webcam enable

  # Minimum latency into a v4l2 virtual camera
  gopro-webcam enable --preset low-latency --output v4l2

  # Quality preset with a field-of-view override, wired camera
  gopro-webcam --wired enable --preset quality --fov wide

  # Provision the loopback device first, then expose it
  gopro-webcam enable --output v4l2 --setup-v4l2`,
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.Preset, "preset", "p", "", "Configuration preset: low-latency, balanced, quality")
	flags.StringVar(&opts.Resolution, "resolution", "", "Override resolution: 480p, 720p, 1080p")
	flags.StringVar(&opts.FOV, "fov", "", "Override field of view: wide, narrow, superview, linear")
	flags.StringVar(&opts.BitRate, "bit-rate", "", "Override bit rate: standard, high")
	flags.StringVar(&opts.Protocol, "protocol", "", "Override protocol: udp, rtsp")
	flags.IntVar(&opts.Port, "port", 0, "Override the stream port")
	flags.BoolVar(&opts.NoOptimization, "no-optimization", false, "Keep stabilization and horizon leveling on (adds latency)")
	flags.BoolVar(&opts.LowLatency, "low-latency-stream", false, "Use the preview stream path instead of the webcam encoder")
	flags.StringVarP(&opts.Output, "output", "o", "", "Virtual camera backend: v4l2, pipewire")
	flags.StringVar(&opts.V4L2Device, "v4l2-device", "", "Loopback device path (default from config)")
	flags.BoolVar(&opts.SetupV4L2, "setup-v4l2", false, "Provision the v4l2loopback device before starting")
	flags.StringVar(&opts.PipeWireNode, "pipewire-node", "", "PipeWire node name (default from config)")

	return cmd
}

func runEnable(ctx context.Context, opts *EnableOptions) error {
	cfg, err := buildConfig(opts)
	if err != nil {
		return err
	}

	var kind consumer.Kind
	var target string
	if opts.Output != "" {
		if kind, err = consumer.ParseKind(opts.Output); err != nil {
			return err
		}
		if kind == consumer.KindV4L2 {
			target = opts.V4L2Device
			if opts.SetupV4L2 {
				if err := setupLoopbackTarget(target); err != nil {
					return err
				}
			}
		} else {
			target = opts.PipeWireNode
		}
	}

	// Ctrl+C during streaming must run the full teardown, not an abrupt exit.
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := manager.New(newController())
	sp := util.NewUISpinner(flagVerbose, "Connecting to camera...")
	result, err := m.Enable(ctx, cfg, kind, target)
	if err != nil {
		sp.Fail("Failed to enable webcam")
		return err
	}
	sp.Success("Webcam streaming")
	defer func() {
		teardownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := m.Disable(teardownCtx); err != nil {
			util.GetLogger().Warn("Teardown returned error", "err", err)
		}
	}()

	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("\nStream:  %s\n", green(result.StreamURL))
	if result.Consumer != nil {
		fmt.Printf("Camera:  %s (%s)\n", green(result.Consumer.Target), result.Consumer.Kind)
	}
	if len(result.Warnings) > 0 {
		yellow := color.New(color.FgYellow).SprintFunc()
		var names []string
		for _, w := range result.Warnings {
			names = append(names, w.Setting.Name)
		}
		fmt.Printf("Note:    camera rejected settings: %s\n", yellow(strings.Join(names, ", ")))
	}

	fmt.Println("\nPress Ctrl+C to stop.")

	watch := m.Controller().Watch(ctx, 5*time.Second)
	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nShutting down...")
			return nil
		case snap, ok := <-watch:
			if !ok {
				return nil
			}
			if snap.Stale {
				return fmt.Errorf("camera stopped responding")
			}
			if result.Consumer != nil && !m.ConsumerRunning() {
				return fmt.Errorf("consumer process for %s exited unexpectedly, check logs in %s",
					result.Consumer.Target, config.GetLogDir())
			}
		}
	}
}

func buildConfig(opts *EnableOptions) (webcam.Config, error) {
	preset := opts.Preset
	if preset == "" {
		preset = config.GetDefaultPreset()
	}
	cfg, err := webcam.PresetByName(preset)
	if err != nil {
		return webcam.Config{}, err
	}
	cfg.Port = config.GetStreamPort()

	if opts.Resolution != "" {
		if cfg.Resolution, err = webcam.ParseResolution(opts.Resolution); err != nil {
			return webcam.Config{}, err
		}
	}
	if opts.FOV != "" {
		if cfg.FieldOfView, err = webcam.ParseFieldOfView(opts.FOV); err != nil {
			return webcam.Config{}, err
		}
	}
	if opts.BitRate != "" {
		if cfg.BitRate, err = webcam.ParseBitRate(opts.BitRate); err != nil {
			return webcam.Config{}, err
		}
	}
	if opts.Protocol != "" {
		if cfg.Protocol, err = webcam.ParseProtocol(opts.Protocol); err != nil {
			return webcam.Config{}, err
		}
	}
	if opts.Port != 0 {
		cfg.Port = opts.Port
	}
	if opts.NoOptimization {
		cfg.DisableStabilization = false
		cfg.DisableHorizonLeveling = false
		cfg.MaxPerformance = false
	}
	if opts.LowLatency {
		cfg.LowLatencyStream = true
	}

	return cfg, cfg.Validate()
}
