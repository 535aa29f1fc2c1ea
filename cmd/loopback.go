package cmd

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gopro-tools/gopro-webcam/config"
	"github.com/gopro-tools/gopro-webcam/internal/consumer"
	"github.com/gopro-tools/gopro-webcam/internal/util"
)

func NewLoopbackCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loopback",
		Short: "Manage the v4l2loopback virtual video device",
	}

	cmd.AddCommand(
		newLoopbackSetupCommand(),
		newLoopbackListCommand(),
		newLoopbackRemoveCommand(),
	)

	return cmd
}

func newLoopbackSetupCommand() *cobra.Command {
	var number int
	var label string

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Load the v4l2loopback module and create the device node",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := consumer.ProvisionLoopback(number, label); err != nil {
				return err
			}
			fmt.Printf("Loopback device ready: /dev/video%d (%s)\n", number, label)
			return nil
		},
	}

	cmd.Flags().IntVar(&number, "number", defaultLoopbackNumber(), "Video device number to create")
	cmd.Flags().StringVar(&label, "label", config.GetV4L2Label(), "Card label shown to applications")
	return cmd
}

func newLoopbackListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List video devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := consumer.ListLoopbackDevices()
			if err != nil {
				return err
			}

			columns := []util.TableColumn{
				{Header: "PATH", Key: "path"},
				{Header: "LABEL", Key: "label"},
			}
			var data []map[string]interface{}
			for _, d := range devices {
				data = append(data, map[string]interface{}{
					"path":  d.Path,
					"label": d.Label,
				})
			}
			util.RenderTable(columns, data)
			return nil
		},
	}
}

func newLoopbackRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove",
		Short: "Unload the v4l2loopback module",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := consumer.DeprovisionLoopback(); err != nil {
				return err
			}
			fmt.Println("v4l2loopback removed")
			return nil
		},
	}
}

// defaultLoopbackNumber derives the device number from the configured device
// path, e.g. /dev/video42 -> 42.
func defaultLoopbackNumber() int {
	return loopbackNumberFromPath(config.GetV4L2Device())
}

func loopbackNumberFromPath(path string) int {
	digits := strings.TrimPrefix(filepath.Base(path), "video")
	if n, err := strconv.Atoi(digits); err == nil {
		return n
	}
	return 42
}

// setupLoopbackTarget provisions the loopback module for the given device
// path (or the configured default when empty).
func setupLoopbackTarget(target string) error {
	if target == "" {
		target = config.GetV4L2Device()
	}
	return consumer.ProvisionLoopback(loopbackNumberFromPath(target), config.GetV4L2Label())
}
