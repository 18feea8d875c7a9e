package eventbus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type ping struct{ N int }
type pong struct{}

func TestBusDispatchesByType(t *testing.T) {
	b := New()
	var got []int
	On(b, func(_ context.Context, p ping) { got = append(got, p.N) })
	On(b, func(_ context.Context, p ping) { got = append(got, p.N*10) })
	pongs := 0
	On(b, func(context.Context, pong) { pongs++ })

	Emit(context.Background(), b, ping{N: 1})
	require.Equal(t, []int{1, 10}, got)
	require.Zero(t, pongs)
}

func TestUnsubscribeRemovesOnlyThatHandler(t *testing.T) {
	b := New()
	var a, c int
	unA := On(b, func(context.Context, ping) { a++ })
	On(b, func(context.Context, ping) { c++ })

	unA()
	unA()
	Emit(context.Background(), b, ping{})
	require.Zero(t, a)
	require.Equal(t, 1, c)
}

func TestGlobalBus(t *testing.T) {
	Use(nil)
	calls := 0
	Subscribe(func(context.Context, ping) { calls++ })()
	Publish(context.Background(), ping{})
	require.Zero(t, calls)

	Use(New())
	t.Cleanup(func() { Use(nil) })
	un := Subscribe(func(context.Context, ping) { calls++ })
	Publish(context.Background(), ping{})
	un()
	Publish(context.Background(), ping{})
	require.Equal(t, 1, calls)
}

func TestNilBusEmitIsNoop(t *testing.T) {
	var b *Bus
	require.NotPanics(t, func() { b.emit(context.Background(), ping{}) })
}
