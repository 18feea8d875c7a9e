package events

import "time"

// FetchStart is emitted when the query environment starts a network fetch
// for a new handle. Cache hits emit nothing.
type FetchStart struct {
	Key           string
	OperationName string
}

// FetchFinish is emitted once the handle has reached a terminal state.
type FetchFinish struct {
	Key           string
	OperationName string
	// State is "resolved" or "failed".
	State    string
	Err      error
	Records  int
	Duration time.Duration
}

// TransportStart is emitted before a GraphQL request is sent.
type TransportStart struct {
	OperationName string
	Endpoint      string
}

// TransportFinish is emitted after the response was read or the request
// failed.
type TransportFinish struct {
	OperationName string
	Endpoint      string
	Status        int
	Err           error
	Duration      time.Duration
}
