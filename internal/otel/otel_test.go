package otel

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	eventbus "github.com/hanpama/ghcard/internal/eventbus"
	events "github.com/hanpama/ghcard/internal/events"
	reqid "github.com/hanpama/ghcard/internal/reqid"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	eventbus.Use(eventbus.New())
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	unsubscribe := register(tp.Tracer("test"))
	t.Cleanup(func() {
		unsubscribe()
		eventbus.Use(nil)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func byName(spans []sdktrace.ReadOnlySpan) map[string]sdktrace.ReadOnlySpan {
	out := make(map[string]sdktrace.ReadOnlySpan, len(spans))
	for _, s := range spans {
		out[s.Name()] = s
	}
	return out
}

func attr(s sdktrace.ReadOnlySpan, key string) attribute.Value {
	for _, kv := range s.Attributes() {
		if string(kv.Key) == key {
			return kv.Value
		}
	}
	return attribute.Value{}
}

func TestFetchAndTransportSpans(t *testing.T) {
	sr := setupRecorder(t)
	ctx, _ := reqid.NewContext(context.Background())

	eventbus.Publish(ctx, events.FetchStart{Key: "UserProfileQuery{}", OperationName: "UserProfileQuery"})
	eventbus.Publish(ctx, events.TransportStart{OperationName: "UserProfileQuery", Endpoint: "https://api.github.com/graphql"})
	eventbus.Publish(ctx, events.TransportFinish{OperationName: "UserProfileQuery", Status: 200})
	eventbus.Publish(ctx, events.FetchFinish{Key: "UserProfileQuery{}", OperationName: "UserProfileQuery", State: "resolved", Records: 6})

	spans := byName(sr.Ended())
	require.Len(t, spans, 2)
	fetch, transport := spans["graphql.fetch"], spans["graphql.transport"]
	require.NotNil(t, fetch)
	require.NotNil(t, transport)

	require.Equal(t, fetch.SpanContext().SpanID(), transport.Parent().SpanID())
	require.Equal(t, fetch.SpanContext().TraceID(), transport.SpanContext().TraceID())
	require.Equal(t, "resolved", attr(fetch, "ghcard.fetch.state").AsString())
	require.Equal(t, int64(6), attr(fetch, "ghcard.store.records").AsInt64())
	require.Equal(t, int64(200), attr(transport, "http.status_code").AsInt64())
	require.Equal(t, "https://api.github.com/graphql", attr(transport, "http.url").AsString())
	require.Equal(t, codes.Unset, fetch.Status().Code)
}

func TestFailedFetchRecordsError(t *testing.T) {
	sr := setupRecorder(t)
	ctx, _ := reqid.NewContext(context.Background())

	boom := errors.New("connection refused")
	eventbus.Publish(ctx, events.FetchStart{OperationName: "UserProfileQuery"})
	eventbus.Publish(ctx, events.TransportStart{OperationName: "UserProfileQuery"})
	eventbus.Publish(ctx, events.TransportFinish{OperationName: "UserProfileQuery", Err: boom})
	eventbus.Publish(ctx, events.FetchFinish{OperationName: "UserProfileQuery", State: "failed", Err: boom})

	spans := byName(sr.Ended())
	for _, name := range []string{"graphql.fetch", "graphql.transport"} {
		s := spans[name]
		require.NotNil(t, s, name)
		require.Equal(t, codes.Error, s.Status().Code, name)
		require.Equal(t, "connection refused", s.Status().Description, name)
		require.Len(t, s.Events(), 1, name)
	}
	require.Equal(t, attribute.INVALID, attr(spans["graphql.transport"], "http.status_code").Type())
}

func TestHTTPSpan(t *testing.T) {
	sr := setupRecorder(t)
	ctx, _ := reqid.NewContext(context.Background())
	req := httptest.NewRequest("GET", "/profile.json", nil)

	eventbus.Publish(ctx, events.HTTPStart{Request: req})
	require.Empty(t, sr.Ended())
	eventbus.Publish(ctx, events.HTTPFinish{Request: req, Status: 202, HandleState: "pending"})

	spans := sr.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, "http.request", spans[0].Name())
	require.Equal(t, "GET", attr(spans[0], "http.method").AsString())
	require.Equal(t, "/profile.json", attr(spans[0], "http.target").AsString())
	require.Equal(t, int64(202), attr(spans[0], "http.status_code").AsInt64())
	require.Equal(t, "pending", attr(spans[0], "ghcard.handle.state").AsString())
}

func TestSpansPairByRequestID(t *testing.T) {
	sr := setupRecorder(t)
	a, _ := reqid.NewContext(context.Background())
	b, _ := reqid.NewContext(context.Background())

	eventbus.Publish(a, events.FetchStart{OperationName: "A"})
	eventbus.Publish(b, events.FetchStart{OperationName: "B"})
	eventbus.Publish(b, events.FetchFinish{OperationName: "B", State: "resolved"})
	require.Len(t, sr.Ended(), 1)
	require.Equal(t, "B", attr(sr.Ended()[0], "graphql.operation.name").AsString())

	// a finish without a start is ignored
	c, _ := reqid.NewContext(context.Background())
	eventbus.Publish(c, events.FetchFinish{OperationName: "C"})
	require.Len(t, sr.Ended(), 1)
}

func TestSetupWithoutEndpoint(t *testing.T) {
	shutdown, err := Setup("", "ghcard")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
