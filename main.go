package main

import (
	"os"

	"github.com/gopro-tools/gopro-webcam/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
