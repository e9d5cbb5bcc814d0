package core_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comalice/adlayers/internal/core"
	"github.com/comalice/adlayers/internal/primitives"
)

// recordingLevel is an interpreter that records the arguments it is handed
// and answers every call with a fresh raw result.
type recordingLevel struct {
	level  int
	life   *primitives.Lifetime
	result *primitives.Dense
	seen   []primitives.Value
}

func (r *recordingLevel) Level() int                     { return r.level }
func (r *recordingLevel) Kind() primitives.TransformKind { return primitives.Grad }
func (r *recordingLevel) Lifetime() *primitives.Lifetime { return r.life }
func (r *recordingLevel) PrevGradMode() *bool            { return nil }
func (r *recordingLevel) PrevFwdGradMode() *bool         { return nil }

func (r *recordingLevel) Process(_ context.Context, _ *primitives.Context, op primitives.OperatorSchema, stack *primitives.Stack, _ core.Forward) error {
	args, err := stack.Pop(len(op.Arguments))
	if err != nil {
		return err
	}
	r.seen = args
	stack.Push(primitives.ArrayValue(r.result))
	return nil
}

func (r *recordingLevel) SendToNext(context.Context, *primitives.Context, primitives.OperatorSchema, *primitives.Stack, core.Redispatch) error {
	return nil
}

func TestNesting_LevelTwoUnwrapsOnlyItsOwnValues(t *testing.T) {
	outer := &recordingLevel{level: 1, life: primitives.NewLifetime(), result: vec(42)}
	d := newDispatcher()
	require.NoError(t, d.Push(outer))
	ec := primitives.NewContext()

	inner, err := d.Enter(ec, primitives.Grad)
	require.NoError(t, err)
	require.Equal(t, 2, inner.Level())

	raw2 := vec(2)
	atOne := primitives.Wrap(vec(1), 1, false, outer.Lifetime())
	atTwo := primitives.Wrap(raw2, 2, false, inner.Lifetime())

	out, err := call(t, d, ec, "aten::mul.Tensor", arr(atOne), arr(atTwo))
	require.NoError(t, err)

	require.Len(t, outer.seen, 2)
	assert.Same(t, atOne, outer.seen[0].Array(), "a level-1 value stays wrapped when level 2 redispatches")
	assert.Same(t, raw2, outer.seen[1].Array(), "a level-2 value is unwrapped")

	w := wrappedAt(t, out, 2)
	assert.Same(t, outer.result, w.Value(), "the result is wrapped at level 2 only")
	require.NoError(t, d.Exit(2))
}
