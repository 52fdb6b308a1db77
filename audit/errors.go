package audit

import (
	"errors"
	"fmt"
)

var (
	ErrMissingServiceName = errors.New("audit: serviceName is required")
	ErrMissingEndpoint    = errors.New("audit: endpoint is required")

	// ErrClosed is reported to the Observer for entries logged after Close.
	ErrClosed = errors.New("audit: logger is closed")
)

// StatusError is reported when the collector answers with a non-2xx status.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("audit: collector responded with status %d", e.StatusCode)
}
