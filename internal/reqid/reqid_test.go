package reqid

import (
	"context"
	"testing"
)

func TestContextRoundTrip(t *testing.T) {
	ctx, id := NewContext(context.Background())
	got, ok := FromContext(ctx)
	if !ok || got != id {
		t.Fatalf("expected %d from context, got %d ok=%v", id, got, ok)
	}
	if id == 0 {
		t.Fatalf("id must be non-zero")
	}
	if _, ok := FromContext(context.Background()); ok {
		t.Fatalf("unexpected id in empty context")
	}
}

func TestNestedContextGetsNewID(t *testing.T) {
	outer, a := NewContext(context.Background())
	inner, b := NewContext(outer)
	if a == b {
		t.Fatalf("expected distinct ids, got %d twice", a)
	}
	if got, _ := FromContext(inner); got != b {
		t.Fatalf("inner context returned %d, want %d", got, b)
	}
}
