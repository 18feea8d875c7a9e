package otel

import (
	"context"
	"sync"

	eventbus "github.com/hanpama/ghcard/internal/eventbus"
	events "github.com/hanpama/ghcard/internal/events"
	reqid "github.com/hanpama/ghcard/internal/reqid"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Setup configures OpenTelemetry and attaches eventbus subscribers.
// If endpoint is empty, no telemetry is configured.
func Setup(endpoint, service string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
		)),
	)
	otel.SetTracerProvider(tp)

	unsubscribe := register(otel.Tracer("ghcard"))
	return func(ctx context.Context) error {
		unsubscribe()
		return tp.Shutdown(ctx)
	}, nil
}

type subscriber struct {
	tracer         trace.Tracer
	httpSpans      sync.Map // rid -> trace.Span
	fetchSpans     sync.Map // rid -> trace.Span
	transportSpans sync.Map // rid -> trace.Span
}

// register subscribes span handlers to the global bus.
func register(tracer trace.Tracer) (unsubscribe func()) {
	s := &subscriber{tracer: tracer}
	subs := []func(){
		eventbus.Subscribe(func(ctx context.Context, e events.HTTPStart) {
			rid, _ := reqid.FromContext(ctx)
			_, span := s.tracer.Start(ctx, "http.request")
			span.SetAttributes(
				semconv.HTTPMethodKey.String(e.Request.Method),
				attribute.String("http.target", e.Request.URL.Path),
			)
			s.httpSpans.Store(rid, span)
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.HTTPFinish) {
			span, ok := s.take(ctx, &s.httpSpans)
			if !ok {
				return
			}
			span.SetAttributes(semconv.HTTPStatusCodeKey.Int(e.Status))
			if e.HandleState != "" {
				span.SetAttributes(attribute.String("ghcard.handle.state", e.HandleState))
			}
			span.End()
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.FetchStart) {
			rid, _ := reqid.FromContext(ctx)
			_, span := s.tracer.Start(ctx, "graphql.fetch")
			span.SetAttributes(
				attribute.String("graphql.operation.name", e.OperationName),
				attribute.String("ghcard.fetch.key", e.Key),
			)
			s.fetchSpans.Store(rid, span)
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.FetchFinish) {
			span, ok := s.take(ctx, &s.fetchSpans)
			if !ok {
				return
			}
			span.SetAttributes(
				attribute.String("ghcard.fetch.state", e.State),
				attribute.Int("ghcard.store.records", e.Records),
			)
			fail(span, e.Err)
			span.End()
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.TransportStart) {
			rid, _ := reqid.FromContext(ctx)
			parent := ctx
			if v, ok := s.fetchSpans.Load(rid); ok {
				parent = trace.ContextWithSpan(ctx, v.(trace.Span))
			}
			_, span := s.tracer.Start(parent, "graphql.transport", trace.WithSpanKind(trace.SpanKindClient))
			span.SetAttributes(
				attribute.String("graphql.operation.name", e.OperationName),
				semconv.HTTPURLKey.String(e.Endpoint),
			)
			s.transportSpans.Store(rid, span)
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.TransportFinish) {
			span, ok := s.take(ctx, &s.transportSpans)
			if !ok {
				return
			}
			if e.Status != 0 {
				span.SetAttributes(semconv.HTTPStatusCodeKey.Int(e.Status))
			}
			fail(span, e.Err)
			span.End()
		}),
	}
	return func() {
		for _, u := range subs {
			u()
		}
	}
}

func (s *subscriber) take(ctx context.Context, m *sync.Map) (trace.Span, bool) {
	rid, _ := reqid.FromContext(ctx)
	v, ok := m.LoadAndDelete(rid)
	if !ok {
		return nil, false
	}
	return v.(trace.Span), true
}

func fail(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
