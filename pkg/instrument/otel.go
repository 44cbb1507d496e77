package instrument

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Default tracer name for pulse runtimes.
const defaultTracerName = "pulse"

// TracerConfig configures the OpenTelemetry exporter.
type TracerConfig struct {
	// TracerName is the name of the tracer (default: "pulse").
	TracerName string

	// Filter determines which flush waves to trace.
	// Return true to trace the wave, false to skip. If nil, all waves
	// are traced.
	Filter func(wave, queued int) bool

	// EffectEvents records each effect run as a span event.
	// Off by default: large graphs produce many runs per wave.
	EffectEvents bool

	// Attributes are added to every flush span.
	Attributes []attribute.KeyValue

	// tracer is the resolved tracer instance.
	tracer trace.Tracer
}

// TracerOption configures the OpenTelemetry exporter.
type TracerOption func(*TracerConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) TracerOption {
	return func(c *TracerConfig) {
		c.TracerName = name
	}
}

// WithFlushFilter sets a filter for which flush waves get a span.
func WithFlushFilter(filter func(wave, queued int) bool) TracerOption {
	return func(c *TracerConfig) {
		c.Filter = filter
	}
}

// WithEffectEvents records individual effect runs as span events.
func WithEffectEvents(enabled bool) TracerOption {
	return func(c *TracerConfig) {
		c.EffectEvents = enabled
	}
}

// WithAttributes adds constant attributes to every flush span.
func WithAttributes(attrs ...attribute.KeyValue) TracerOption {
	return func(c *TracerConfig) {
		c.Attributes = attrs
	}
}

func defaultTracerConfig() TracerConfig {
	return TracerConfig{
		TracerName: defaultTracerName,
	}
}

// Tracer wraps each flush wave in an OpenTelemetry span. Attach with
// pulse.AddObserver.
//
// The tracer uses the global OpenTelemetry tracer provider. Configure it in
// your main() before creating the Tracer:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
//	pulse.AddObserver(instrument.NewTracer())
type Tracer struct {
	config TracerConfig

	// span is the wave currently in flight. Flush waves are serialized by
	// the runtime, so a single slot suffices; the mutex only guards
	// against observer calls racing a slow span exporter.
	span   trace.Span
	spanMu sync.Mutex
}

// NewTracer creates the OpenTelemetry exporter.
func NewTracer(opts ...TracerOption) *Tracer {
	config := defaultTracerConfig()
	for _, opt := range opts {
		opt(&config)
	}
	config.tracer = otel.Tracer(config.TracerName)

	return &Tracer{config: config}
}

// SignalWrite implements pulse.Observer.
func (t *Tracer) SignalWrite(id, version uint64) {}

// ComputedRecomputed implements pulse.Observer.
func (t *Tracer) ComputedRecomputed(id uint64) {}

// EffectRan implements pulse.Observer.
func (t *Tracer) EffectRan(id uint64) {
	if !t.config.EffectEvents {
		return
	}

	t.spanMu.Lock()
	defer t.spanMu.Unlock()
	if t.span != nil {
		t.span.AddEvent("effect.run",
			trace.WithAttributes(attribute.Int64("pulse.effect_id", int64(id))))
	}
}

// FlushStart implements pulse.Observer.
func (t *Tracer) FlushStart(wave, queued int) {
	if t.config.Filter != nil && !t.config.Filter(wave, queued) {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.Int("pulse.wave", wave),
		attribute.Int("pulse.queued", queued),
	}
	attrs = append(attrs, t.config.Attributes...)

	_, span := t.config.tracer.Start(
		context.Background(),
		fmt.Sprintf("pulse.flush.%d", wave),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)

	t.spanMu.Lock()
	t.span = span
	t.spanMu.Unlock()
}

// FlushEnd implements pulse.Observer.
func (t *Tracer) FlushEnd(wave, ran int, elapsed time.Duration) {
	t.spanMu.Lock()
	span := t.span
	t.span = nil
	t.spanMu.Unlock()

	if span == nil {
		return
	}
	span.SetAttributes(attribute.Int("pulse.ran", ran))
	span.End()
}

// EffectPanicked implements pulse.Observer.
func (t *Tracer) EffectPanicked(id uint64, err error) {
	t.spanMu.Lock()
	defer t.spanMu.Unlock()
	if t.span == nil {
		return
	}
	t.span.RecordError(err)
	t.span.SetStatus(codes.Error, err.Error())
}
