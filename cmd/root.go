package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gopro-tools/gopro-webcam/internal/gopro"
	"github.com/gopro-tools/gopro-webcam/internal/util"
	"github.com/gopro-tools/gopro-webcam/internal/version"
)

var (
	flagVerbose    bool
	flagIdentifier string
	flagWired      bool

	rootCmd = &cobra.Command{
		Use:   "gopro-webcam",
		Short: "Use a GoPro as a low-latency webcam",
		Long: `gopro-webcam drives a GoPro into webcam streaming mode with settings tuned
for latency, and can expose the resulting stream as a virtual camera device
that video applications open like any physical webcam.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			util.InitLogger(flagVerbose)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flag("version").Changed {
				info := version.Info()
				fmt.Printf("gopro-webcam version %s, build %s\n", info["Version"], info["GitCommit"])
				return nil
			}
			return cmd.Help()
		},
	}
)

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.Flags().Bool("version", false, "Print version information and exit")

	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "Enable verbose logging")
	pf.StringVarP(&flagIdentifier, "identifier", "i", "", "Last digits of the camera serial number")
	pf.BoolVar(&flagWired, "wired", false, "Use the wired (USB) connection instead of wireless")

	rootCmd.AddCommand(NewEnableCommand())
	rootCmd.AddCommand(NewDisableCommand())
	rootCmd.AddCommand(NewStatusCommand())
	rootCmd.AddCommand(NewPresetsCommand())
	rootCmd.AddCommand(NewLoopbackCommand())
	rootCmd.AddCommand(NewCheckCommand())
	rootCmd.AddCommand(NewVersionCommand())
}

// newController builds the session controller from the persistent flags.
func newController() *gopro.Controller {
	mode := gopro.ModeWireless
	if flagWired {
		mode = gopro.ModeWired
	}
	return gopro.NewController(gopro.HTTPOpener{}, flagIdentifier, mode)
}
