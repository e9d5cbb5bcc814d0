package core

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/comalice/adlayers/internal/primitives"
)

// Metrics holds the dispatch counters. A nil *Metrics records nothing.
type Metrics struct {
	Dispatches        *prometheus.CounterVec
	CapturedMutations *prometheus.CounterVec
	InvariantFailures prometheus.Counter
	WrappedOutputs    *prometheus.CounterVec
	PassthroughOutput *prometheus.CounterVec
}

// NewMetrics registers the dispatch counters with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Dispatches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "adlayers_dispatch_total",
			Help: "Protocol steps run by transform interpreters, by kind and phase",
		}, []string{"kind", "phase"}),
		CapturedMutations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "adlayers_captured_mutation_total",
			Help: "In-place operators rejected for mutating a captured value",
		}, []string{"op"}),
		InvariantFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "adlayers_invariant_failures_total",
			Help: "Internal invariant failures detected during dispatch",
		}),
		WrappedOutputs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "adlayers_wrapped_outputs_total",
			Help: "Returns wrapped at the interpreter level",
		}, []string{"kind"}),
		PassthroughOutput: f.NewCounterVec(prometheus.CounterOpts{
			Name: "adlayers_passthrough_outputs_total",
			Help: "Returns left unwrapped because they alias an unwrapped input",
		}, []string{"kind"}),
	}
}

func (m *Metrics) dispatched(kind primitives.TransformKind, phase string) {
	if m == nil {
		return
	}
	m.Dispatches.WithLabelValues(string(kind), phase).Inc()
}

func (m *Metrics) capturedMutation(op string) {
	if m == nil {
		return
	}
	m.CapturedMutations.WithLabelValues(op).Inc()
}

func (m *Metrics) invariantFailure() {
	if m == nil {
		return
	}
	m.InvariantFailures.Inc()
}

func (m *Metrics) outputs(kind primitives.TransformKind, wrapped, passthrough int) {
	if m == nil {
		return
	}
	m.WrappedOutputs.WithLabelValues(string(kind)).Add(float64(wrapped))
	m.PassthroughOutput.WithLabelValues(string(kind)).Add(float64(passthrough))
}
