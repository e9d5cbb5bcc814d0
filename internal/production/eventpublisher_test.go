package production

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comalice/adlayers/internal/core"
	"github.com/comalice/adlayers/internal/extensibility"
	"github.com/comalice/adlayers/internal/primitives"
)

func TestChannelPublisher_Delivery(t *testing.T) {
	ch := make(chan primitives.Event, 10)
	p := NewChannelPublisher(ch)

	event := primitives.NewEvent(primitives.EventProcess, "aten::add.Tensor", 1, primitives.Grad, nil)
	require.NoError(t, p.Publish(context.Background(), event))

	select {
	case got := <-ch:
		assert.Equal(t, event.ID, got.ID)
		assert.Equal(t, primitives.EventProcess, got.Type)
	case <-time.After(100 * time.Millisecond):
		t.Error("no event delivered")
	}
}

func TestChannelPublisher_BackpressureDrop(t *testing.T) {
	ch := make(chan primitives.Event, 1)
	p := NewChannelPublisher(ch)
	ch <- primitives.Event{}

	err := p.Publish(context.Background(), primitives.NewEvent(primitives.EventKernel, "aten::clone", 0, "", nil))
	assert.NoError(t, err)
	assert.Equal(t, int64(1), p.Dropped())
}

func TestChannelPublisher_CanceledContext(t *testing.T) {
	p := NewChannelPublisher(make(chan primitives.Event))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Publish(ctx, primitives.NewEvent(primitives.EventKernel, "aten::clone", 0, "", nil))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestChannelPublisher_DispatchIntegration(t *testing.T) {
	ch := make(chan primitives.Event, 16)
	p := NewChannelPublisher(ch)
	d := core.NewDispatcher(extensibility.ReferenceKernels(), core.WithPublisher(p))
	ec := primitives.NewContext()
	clone, ok := extensibility.ReferenceCatalog().Lookup("aten::clone")
	require.True(t, ok)

	in, err := d.Enter(ec, primitives.Jvp)
	require.NoError(t, err)
	stack := primitives.NewStack(primitives.ArrayValue(primitives.Scalar(1)))
	require.NoError(t, d.Call(context.Background(), ec, clone, stack))
	require.NoError(t, d.Exit(in.Level()))
	require.NoError(t, p.Close())

	var types []primitives.EventType
	for e := range ch {
		types = append(types, e.Type)
		assert.Equal(t, "aten::clone", e.Operator)
	}
	assert.Equal(t, []primitives.EventType{
		primitives.EventProcess,
		primitives.EventSendToNext,
		primitives.EventKernel,
		primitives.EventReturn,
	}, types)
}
