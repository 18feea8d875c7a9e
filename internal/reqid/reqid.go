// Package reqid tags contexts with a random id so that start and finish
// events from the same request or fetch can be paired.
package reqid

import (
	"context"
	"math/rand/v2"
)

// key is the context key for the request ID.
type key struct{}

// NewContext returns a copy of parent with a new random non-zero ID stored.
// It also returns the generated ID.
func NewContext(parent context.Context) (context.Context, int64) {
	id := rand.Int64N(1<<63-1) + 1
	return context.WithValue(parent, key{}, id), id
}

// FromContext extracts the ID from ctx.
// It returns the ID and whether it was present.
func FromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(key{}).(int64)
	return id, ok
}
