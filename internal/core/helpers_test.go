package core_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/comalice/adlayers/internal/core"
	"github.com/comalice/adlayers/internal/extensibility"
	"github.com/comalice/adlayers/internal/primitives"
)

var reference = extensibility.ReferenceCatalog()

func schema(t *testing.T, name string) primitives.OperatorSchema {
	t.Helper()
	s, ok := reference.Lookup(name)
	require.True(t, ok, "unknown operator %s", name)
	return s
}

func newDispatcher(opts ...core.Option) *core.Dispatcher {
	return core.NewDispatcher(extensibility.ReferenceKernels(), opts...)
}

// call runs op on args and returns its single return value.
func call(t *testing.T, d *core.Dispatcher, ec *primitives.Context, name string, args ...primitives.Value) (primitives.Value, error) {
	t.Helper()
	op := schema(t, name)
	stack := primitives.NewStack(args...)
	if err := d.Call(context.Background(), ec, op, stack); err != nil {
		return primitives.Value{}, err
	}
	require.Equal(t, len(op.Returns), stack.Len())
	return stack.At(0), nil
}

// transform enters a level of kind, runs fn as user transform code and exits.
func transform(t *testing.T, d *core.Dispatcher, ec *primitives.Context, kind primitives.TransformKind, fn func(level int)) {
	t.Helper()
	in, err := d.Enter(ec, kind)
	require.NoError(t, err)
	require.NoError(t, ec.WithDuringTransform(true, func() error {
		fn(in.Level())
		return nil
	}))
	require.NoError(t, d.Exit(in.Level()))
}

func arr(a primitives.Array) primitives.Value { return primitives.ArrayValue(a) }

func one() primitives.Value { return primitives.ScalarValue(1) }

func vec(data ...float64) *primitives.Dense {
	return primitives.MustDense([]int{len(data)}, data)
}

// rawData follows every wrapper down to the dense payload.
func rawData(t *testing.T, v primitives.Value) []float64 {
	t.Helper()
	a := v.Array()
	if w, ok := primitives.MaybeWrapped(a); ok {
		a = w.Unwrapped()
	}
	d, ok := a.(*primitives.Dense)
	require.True(t, ok, "expected dense payload, got %T", a)
	return d.Data()
}

func wrappedAt(t *testing.T, v primitives.Value, level int) *primitives.Wrapped {
	t.Helper()
	w, ok := primitives.MaybeWrapped(v.Array())
	require.True(t, ok, "expected a wrapped value, got %T", v.Array())
	require.Equal(t, level, w.Level())
	return w
}

type kernelFunc func(ctx context.Context, ec *primitives.Context, op primitives.OperatorSchema, stack *primitives.Stack) error

func (f kernelFunc) Execute(ctx context.Context, ec *primitives.Context, op primitives.OperatorSchema, stack *primitives.Stack) error {
	return f(ctx, ec, op, stack)
}

type recordingPublisher struct {
	events []primitives.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e primitives.Event) error {
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []primitives.EventType {
	var out []primitives.EventType
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}
