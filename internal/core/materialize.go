package core

import (
	"context"

	"go.uber.org/zap"

	"github.com/comalice/adlayers/internal/primitives"
)

// materializeGradWrappers makes a carry a wrapper at level. Values only get
// marked as aliases of unwrapped values while user transform code runs.
func materializeGradWrappers(a primitives.Array, level int, aliasOfUnwrapped bool, life *primitives.Lifetime) (primitives.Array, error) {
	if a == nil {
		return nil, nil
	}
	w, ok := primitives.MaybeWrapped(a)
	if !ok {
		return primitives.Wrap(a, level, aliasOfUnwrapped, life), nil
	}
	if w.Level() > level {
		return nil, errEscaped(w, level)
	}
	if w.Level() == level {
		return a, nil
	}
	return primitives.Wrap(a, level, aliasOfUnwrapped, life), nil
}

func errEscaped(w *primitives.Wrapped, level int) error {
	return primitives.Invariantf("", level, "value wrapped at level %d escaped into level %d", w.Level(), level)
}

// process runs the pre-dispatch half of the protocol for in.
func (e *Engine) process(ctx context.Context, ec *primitives.Context, in *autogradInterpreter, op primitives.OperatorSchema, stack *primitives.Stack, forward Forward) error {
	name := op.QualifiedName()
	e.metrics.dispatched(in.kind, "process")
	e.publish(ctx, primitives.NewEvent(primitives.EventProcess, name, in.level, in.kind, nil))

	if err := checkForInvalidMutationOnCaptures(op, stack, in.level); err != nil {
		return e.fail(ctx, in, name, err)
	}

	n := len(op.Arguments)
	if stack.Len() < n {
		return e.fail(ctx, in, name, primitives.Invariantf(name, in.level, "stack holds %d values, operator takes %d", stack.Len(), n))
	}
	alias := ec.DuringTransform()
	err := stack.ForEachArrayInPlace(stack.Len()-n, stack.Len(), func(a primitives.Array) (primitives.Array, error) {
		return materializeGradWrappers(a, in.level, alias, in.life)
	})
	if err != nil {
		return e.fail(ctx, in, name, withOperator(err, name))
	}

	e.logger.Debug("materialized arguments",
		zap.String("op", name),
		zap.Int("level", in.level),
		zap.String("kind", string(in.kind)),
		zap.Bool("aliasOfUnwrapped", alias))

	return ec.WithExcludedKeys(primitives.KeysToExclude(in.kind), func() error {
		return forward(ctx)
	})
}
