package transport

import (
	"errors"
	"fmt"
)

// ErrNoEndpoint is returned by New when the endpoint is empty.
var ErrNoEndpoint = errors.New("transport: endpoint is required")

// TransportError is a network or HTTP-layer failure. It is never retried.
type TransportError struct {
	// Op is the failed step: "marshal", "request", "send", "status" or "decode".
	Op string
	// StatusCode is set for non-2xx responses and decode failures.
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport: %s (HTTP %d): %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
