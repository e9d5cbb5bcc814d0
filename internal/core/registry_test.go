package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comalice/adlayers/internal/primitives"
)

func TestMemoryRegistry(t *testing.T) {
	ctx := context.Background()
	c := &primitives.Catalog{ID: "ops"}
	require.NoError(t, c.Add(
		"aten::add.Tensor(Tensor self, Tensor other, *, Scalar alpha=1) -> Tensor",
		"aten::add.Scalar(Tensor self, Scalar other, Scalar alpha=1) -> Tensor",
		"aten::add_.Tensor(Tensor(a!) self, Tensor other, *, Scalar alpha=1) -> Tensor(a!)",
	))
	r, err := NewMemoryRegistry(c)
	require.NoError(t, err)

	s, err := r.Lookup(ctx, "aten::add.Scalar")
	require.NoError(t, err)
	assert.Equal(t, "Scalar", s.Overload)

	s, err = r.Lookup(ctx, "add_")
	require.NoError(t, err)
	assert.True(t, s.IsInplace())

	_, err = r.Lookup(ctx, "aten::add")
	assert.ErrorIs(t, err, ErrAmbiguous)
	_, err = r.Lookup(ctx, "aten::mul")
	assert.ErrorIs(t, err, ErrNotFound)

	err = r.Register(ctx, c.Operators[0])
	assert.ErrorIs(t, err, ErrExists)

	names, err := r.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"aten::add.Scalar", "aten::add.Tensor", "aten::add_.Tensor"}, names)
}

func TestNewMemoryRegistry_InvalidCatalog(t *testing.T) {
	_, err := NewMemoryRegistry(&primitives.Catalog{})
	assert.Error(t, err)
}
