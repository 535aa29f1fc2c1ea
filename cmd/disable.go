package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gopro-tools/gopro-webcam/internal/manager"
	"github.com/gopro-tools/gopro-webcam/internal/util"
)

func NewDisableCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "disable",
		Short: "Stop webcam streaming and disconnect",
		Long: `Connect to the camera and take it out of webcam mode. Safe to run when the
camera is not streaming; useful when a previous session left the camera
streaming (for example after a crash on the host side).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m := manager.New(newController())

			sp := util.NewUISpinner(flagVerbose, "Connecting to camera...")
			session, err := m.Controller().Acquire(ctx)
			if err != nil {
				sp.Fail("Could not reach camera")
				return err
			}
			defer session.Close()

			// The camera may be streaming from an earlier session this
			// process knows nothing about; issue the stop regardless.
			sp.Update("Stopping webcam...")
			if err := m.Controller().StopDevice(ctx); err != nil {
				sp.Fail("Failed to stop webcam")
				return err
			}
			sp.Success("Webcam disabled")
			fmt.Println("Camera returned to idle.")
			return nil
		},
	}
}
