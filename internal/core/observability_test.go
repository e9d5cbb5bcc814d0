package core_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/comalice/adlayers/internal/core"
	"github.com/comalice/adlayers/internal/primitives"
)

func TestMetrics_CountDispatchSteps(t *testing.T) {
	m := core.NewMetrics(prometheus.NewRegistry())
	d := newDispatcher(core.WithMetrics(m))
	ec := primitives.NewContext()

	transform(t, d, ec, primitives.Grad, func(level int) {
		_, err := call(t, d, ec, "aten::add.Tensor", arr(vec(1)), arr(vec(2)), one())
		require.NoError(t, err)
		_, err = call(t, d, ec, "aten::view", arr(vec(1)), primitives.ScalarValue([]int{1}))
		require.NoError(t, err)
		_, err = call(t, d, ec, "aten::add_.Tensor", arr(vec(1)), arr(vec(2)), one())
		require.Error(t, err)
	})

	assert.Equal(t, 3.0, testutil.ToFloat64(m.Dispatches.WithLabelValues("grad", "process")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Dispatches.WithLabelValues("grad", "send_to_next")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CapturedMutations.WithLabelValues("aten::add_.Tensor")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WrappedOutputs.WithLabelValues("grad")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PassthroughOutput.WithLabelValues("grad")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.InvariantFailures))
}

func TestMetrics_InvariantFailure(t *testing.T) {
	m := core.NewMetrics(prometheus.NewRegistry())
	d := newDispatcher(core.WithMetrics(m))
	require.NoError(t, d.Push(core.NewGradInterpreter(d.Engine(), 1, nil)))

	_, err := call(t, d, primitives.NewContext(), "aten::clone", arr(vec(1)))
	require.ErrorIs(t, err, primitives.ErrInvariant)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InvariantFailures))
}

func TestTracing_SpanPerRedispatch(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	d := newDispatcher(core.WithTracerProvider(tp))
	ec := primitives.NewContext()

	transform(t, d, ec, primitives.Grad, func(int) {
		transform(t, d, ec, primitives.Jvp, func(int) {
			_, err := call(t, d, ec, "aten::mul.Tensor", arr(vec(1)), arr(vec(2)))
			require.NoError(t, err)
		})
	})

	spans := rec.Ended()
	require.Len(t, spans, 2)
	levels := map[int64]bool{}
	for _, s := range spans {
		assert.Equal(t, "adlayers.sendToNext", s.Name())
		assert.Equal(t, codes.Ok, s.Status().Code)
		for _, kv := range s.Attributes() {
			switch kv.Key {
			case "op":
				assert.Equal(t, "aten::mul.Tensor", kv.Value.AsString())
			case "level":
				levels[kv.Value.AsInt64()] = true
			}
		}
	}
	assert.Equal(t, map[int64]bool{1: true, 2: true}, levels)
}

func TestTracing_RecordsErrors(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	d := newDispatcher(core.WithTracerProvider(tp))
	require.NoError(t, d.Push(core.NewJvpInterpreter(d.Engine(), 1, nil)))

	_, err := call(t, d, primitives.NewContext(), "aten::clone", arr(vec(1)))
	require.Error(t, err)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}

func TestLogging_CapturedMutation(t *testing.T) {
	zc, logs := observer.New(zapcore.DebugLevel)
	d := newDispatcher(core.WithLogger(zap.New(zc)))
	ec := primitives.NewContext()

	transform(t, d, ec, primitives.Grad, func(int) {
		_, err := call(t, d, ec, "aten::add_.Tensor", arr(vec(1)), arr(vec(2)), one())
		require.Error(t, err)
	})

	rejected := logs.FilterMessage("rejected in-place mutation of captured value").All()
	require.Len(t, rejected, 1)
	assert.Equal(t, "aten::add_.Tensor", rejected[0].ContextMap()["op"])
	assert.Equal(t, 2, logs.FilterMessageSnippet("level").Len())
}
