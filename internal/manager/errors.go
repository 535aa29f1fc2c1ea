package manager

import (
	"fmt"
	"strings"

	"github.com/gopro-tools/gopro-webcam/internal/consumer"
)

// ConsumerUnavailableError reports a backend that cannot run on this host,
// with the concrete missing requirements so the caller can print remediation
// steps instead of a bare failure.
type ConsumerUnavailableError struct {
	Kind    consumer.Kind
	Missing []string
}

func (e *ConsumerUnavailableError) Error() string {
	return fmt.Sprintf("%s consumer unavailable: %s", e.Kind, strings.Join(e.Missing, "; "))
}
