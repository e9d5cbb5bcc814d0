// Package testutil runs dispatch scenarios against several session
// assemblies and asserts on wrapper nesting.
package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/comalice/adlayers"
	"github.com/comalice/adlayers/internal/extensibility"
	"github.com/comalice/adlayers/internal/primitives"
)

// Variant is one way of assembling a Session. A scenario run against every
// variant must observe the same wrapping behavior.
type Variant struct {
	Name string
	New  func(tb testing.TB) *adlayers.Session
}

// Variants returns the supported assemblies: alias facts from schema
// annotations, alias facts from a fact table, a logging kernel and a tape
// layer on both transform kinds.
func Variants() []Variant {
	return []Variant{
		{
			Name: "SchemaAnnotations",
			New: func(tb testing.TB) *adlayers.Session {
				return newSession(tb)
			},
		},
		{
			Name: "FactTable",
			New: func(tb testing.TB) *adlayers.Session {
				facts := extensibility.NewFactTable(extensibility.ReferenceCatalog())
				return newSession(tb, adlayers.WithEngineOptions(adlayers.WithAliasFacts(facts)))
			},
		},
		{
			Name: "LoggingKernel",
			New: func(tb testing.TB) *adlayers.Session {
				logger := zaptest.NewLogger(tb)
				return newSession(tb,
					adlayers.WithLogger(logger),
					adlayers.WithKernel(extensibility.NewLoggingKernel(extensibility.ReferenceKernels(), logger)),
				)
			},
		},
		{
			Name: "Tape",
			New: func(tb testing.TB) *adlayers.Session {
				tape := extensibility.NewTape()
				return newSession(tb, adlayers.WithEngineOptions(
					adlayers.WithTransformLayer(adlayers.Grad, tape),
					adlayers.WithTransformLayer(adlayers.Jvp, tape),
				))
			},
		},
	}
}

func newSession(tb testing.TB, opts ...adlayers.Option) *adlayers.Session {
	tb.Helper()
	s, err := adlayers.New(opts...)
	require.NoError(tb, err)
	return s
}

// Nest runs fn under one transform per kind, outermost first. levels holds
// the level numbers entered, in the same order.
func Nest(ctx context.Context, s *adlayers.Session, kinds []adlayers.TransformKind, fn func(ctx context.Context, levels []int) error) error {
	var nest func(ctx context.Context, i int, levels []int) error
	nest = func(ctx context.Context, i int, levels []int) error {
		if i == len(kinds) {
			return fn(ctx, levels)
		}
		return s.Transform(ctx, kinds[i], func(ctx context.Context, level int) error {
			return nest(ctx, i+1, append(levels, level))
		})
	}
	return nest(ctx, 0, nil)
}

// RequireWrappedAt fails tb unless v is an array wrapped at exactly levels,
// outermost first.
func RequireWrappedAt(tb testing.TB, v adlayers.Value, levels ...int) {
	tb.Helper()
	require.True(tb, v.IsArray(), "expected an array, got %s", v.Kind())
	require.Equal(tb, levels, primitives.Levels(v.Array()), "wrapper levels of %v", v)
}

// RequireUnwrapped fails tb unless v is a raw array.
func RequireUnwrapped(tb testing.TB, v adlayers.Value) {
	tb.Helper()
	require.True(tb, v.IsArray(), "expected an array, got %s", v.Kind())
	require.Empty(tb, primitives.Levels(v.Array()), "expected a raw array, got %v", v)
}
