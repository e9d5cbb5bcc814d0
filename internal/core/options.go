package core

import (
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/comalice/adlayers/internal/primitives"
)

// Option configures an Engine, and through it the Dispatcher built on it.
type Option func(*Engine)

// WithLogger configures the zap logger. A nil logger keeps the no-op default.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithTracerProvider configures the tracer used for redispatch spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) {
		e.tracer = tp.Tracer(tracerName)
	}
}

// WithMetrics configures Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithAliasFacts configures the alias-fact table.
func WithAliasFacts(f AliasFacts) Option {
	return func(e *Engine) {
		e.aliasFacts = f
	}
}

// WithAlwaysWrap replaces the operators whose outputs are always wrapped.
func WithAlwaysWrap(names ...string) Option {
	return func(e *Engine) {
		e.setAlwaysWrap(names)
	}
}

// WithTransformLayer installs the bookkeeping layer run for every level of kind.
func WithTransformLayer(kind primitives.TransformKind, l TransformLayer) Option {
	return func(e *Engine) {
		e.layers[kind] = l
	}
}

// WithPublisher configures the EventPublisher for dispatch events.
func WithPublisher(p EventPublisher) Option {
	return func(e *Engine) {
		e.publisher = p
	}
}

// WithConfig applies a Config document.
func WithConfig(c Config) Option {
	return func(e *Engine) {
		e.setAlwaysWrap(c.AlwaysWrap)
	}
}
