package events

import (
	"net/http"
	"time"
)

// HTTPStart is published by the profile server before it routes a request.
type HTTPStart struct {
	Request *http.Request
}

// HTTPFinish is published once the response has been written.
type HTTPFinish struct {
	Request *http.Request
	Status  int
	// HandleState is the state of the profile handle the response was
	// rendered from, or empty when no handle was read.
	HandleState string
	Duration    time.Duration
}
