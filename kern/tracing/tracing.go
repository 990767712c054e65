// Package tracing records scheduler activity as OpenTelemetry spans: one span
// per task lifetime, with an event on every dispatch.
package tracing

import (
	"context"
	"fmt"
	"io"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/joshuapare/kernkit/kern/frame"
	"github.com/joshuapare/kernkit/kern/task"
)

const instrumentation = "github.com/joshuapare/kernkit/kern/tracing"

// NewProvider returns a tracer provider exporting synchronously to w through
// the stdout exporter. Shut it down to flush.
func NewProvider(w io.Writer, serviceName, serviceVersion string, bootID string) (*sdktrace.TracerProvider, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, err
	}
	return NewProviderWithExporter(exporter, serviceName, serviceVersion, bootID)
}

// NewProviderWithExporter is NewProvider for any span exporter.
func NewProviderWithExporter(exporter sdktrace.SpanExporter, serviceName, serviceVersion, bootID string) (*sdktrace.TracerProvider, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", serviceName),
			attribute.String("service.version", serviceVersion),
			attribute.String("kern.boot_id", bootID),
		),
	)
	if err != nil {
		return nil, err
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
		sdktrace.WithResource(res),
	), nil
}

// Observer is a task.Observer emitting spans.
type Observer struct {
	tracer trace.Tracer
	ctx    context.Context

	mu    sync.Mutex
	spans map[task.ID]trace.Span
}

var _ task.Observer = (*Observer)(nil)

// NewObserver creates an observer using tp.
func NewObserver(tp trace.TracerProvider) *Observer {
	return &Observer{
		tracer: tp.Tracer(instrumentation),
		ctx:    context.Background(),
		spans:  make(map[task.ID]trace.Span),
	}
}

// TaskCreated starts the task's span.
func (o *Observer) TaskCreated(id task.ID, f frame.Frame) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.start(id,
		attribute.String("task.eip", fmt.Sprintf("%x", f.EIP)),
		attribute.String("task.esp", fmt.Sprintf("%x", f.ESP)),
		attribute.String("task.eflags", fmt.Sprintf("%x", f.EFLAGS)),
	)
}

// TaskSwitched adds a dispatch event to the incoming task and a suspend event
// to the outgoing one. Tasks never seen being created (the boot task) get a
// span on their first dispatch.
func (o *Observer) TaskSwitched(from, to task.ID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if from != task.None {
		o.span(from).AddEvent("suspend", trace.WithAttributes(attribute.Int64("task.next", int64(to))))
	}
	prev := int64(-1)
	if from != task.None {
		prev = int64(from)
	}
	o.span(to).AddEvent("dispatch", trace.WithAttributes(attribute.Int64("task.prev", prev)))
}

// TaskExited ends the task's span.
func (o *Observer) TaskExited(id task.ID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	sp := o.span(id)
	sp.SetStatus(codes.Ok, "")
	sp.End()
	delete(o.spans, id)
}

// Close ends the spans of tasks still alive, marking them unfinished.
func (o *Observer) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for id, sp := range o.spans {
		sp.SetAttributes(attribute.Bool("task.unfinished", true))
		sp.End()
		delete(o.spans, id)
	}
}

func (o *Observer) span(id task.ID) trace.Span {
	if sp, ok := o.spans[id]; ok {
		return sp
	}
	return o.start(id)
}

func (o *Observer) start(id task.ID, attrs ...attribute.KeyValue) trace.Span {
	attrs = append(attrs, attribute.Int64("task.id", int64(id)))
	_, sp := o.tracer.Start(o.ctx, fmt.Sprintf("task %d", id),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal))
	o.spans[id] = sp
	return sp
}
