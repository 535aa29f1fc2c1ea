package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gopro-tools/gopro-webcam/internal/consumer"
	"github.com/gopro-tools/gopro-webcam/internal/manager"
)

func NewCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check [backend]",
		Short: "Check whether a virtual camera backend is ready to use",
		Long: `Inspect the host for the tools, kernel modules, and services a backend
needs. With no argument, every backend is checked.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds := []consumer.Kind{consumer.KindV4L2, consumer.KindPipeWire}
			if len(args) == 1 {
				kind, err := consumer.ParseKind(args[0])
				if err != nil {
					return err
				}
				kinds = []consumer.Kind{kind}
			}

			m := manager.New(newController())
			for _, kind := range kinds {
				missing, err := m.CheckConsumerAvailability(kind, "")
				if err != nil {
					return err
				}
				if len(missing) == 0 {
					fmt.Printf("%s %s\n", color.GreenString("✓"), kind)
					continue
				}
				fmt.Printf("%s %s\n", color.RedString("✗"), kind)
				for _, req := range missing {
					fmt.Printf("    - %s\n", req)
				}
			}
			return nil
		},
	}
}
