package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gopro-tools/gopro-webcam/internal/manager"
)

func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show camera connection and streaming status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m := manager.New(newController())

			session, err := m.Controller().Acquire(ctx)
			if err != nil {
				return err
			}
			defer session.Close()

			snap, _ := m.Status(ctx)

			green := color.New(color.FgGreen).SprintFunc()
			fmt.Printf("State:    %s\n", green(string(snap.State)))
			if snap.BatteryPercent > 0 {
				fmt.Printf("Battery:  %d%%\n", snap.BatteryPercent)
			}
			fmt.Printf("Encoding: %v\n", snap.Encoding)
			if snap.StreamURL != "" {
				fmt.Printf("Stream:   %s\n", snap.StreamURL)
			}
			if snap.Stale {
				fmt.Println(color.YellowString("(stale: camera stopped responding)"))
			}
			return nil
		},
	}
}
