package util

import (
	"fmt"
	"time"

	"github.com/briandowns/spinner"
)

// UISpinner shows progress while the camera handshake or teardown is in
// flight. In verbose mode the spinner is replaced with plain log lines so it
// does not fight the logger output.
type UISpinner struct {
	sp      *spinner.Spinner
	verbose bool
}

// NewUISpinner creates a new spinner with the given message
func NewUISpinner(verbose bool, message string) *UISpinner {
	s := &UISpinner{verbose: verbose}

	if !verbose {
		// Dots spinner style (CharSet 14)
		s.sp = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		s.sp.Prefix = "  "
		s.sp.Suffix = " " + message
		s.sp.Start()
	} else {
		fmt.Printf("[DEBUG] %s\n", message)
	}

	return s
}

// Success stops the spinner and prints a success message
func (s *UISpinner) Success(message string) {
	if !s.verbose && s.sp != nil {
		s.sp.Stop()
		fmt.Printf("\r\033[K  ✓ %s\n", message) // \033[K clears the line
	} else if s.verbose {
		fmt.Printf("[DEBUG] OK: %s\n", message)
	}
}

// Fail stops the spinner and prints a failure message
func (s *UISpinner) Fail(message string) {
	if !s.verbose && s.sp != nil {
		s.sp.Stop()
		fmt.Printf("\r\033[K  ✗ %s\n", message)
	} else if s.verbose {
		fmt.Printf("[DEBUG] FAIL: %s\n", message)
	}
}

// Update changes the spinner message while it is running
func (s *UISpinner) Update(message string) {
	if !s.verbose && s.sp != nil {
		s.sp.Suffix = " " + message
	} else if s.verbose {
		fmt.Printf("[DEBUG] %s\n", message)
	}
}
