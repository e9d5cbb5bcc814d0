package core

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/comalice/adlayers/internal/primitives"
)

const tracerName = "github.com/comalice/adlayers/internal/core"

// Kernel is the base execution layer reached once no transform level remains.
// It pops the operator's arguments from the stack and pushes its returns.
type Kernel interface {
	Execute(ctx context.Context, ec *primitives.Context, op primitives.OperatorSchema, stack *primitives.Stack) error
}

// AliasFacts answers which output positions alias which input positions.
// An error means the facts are unknown, which is not the same as no aliases.
type AliasFacts interface {
	AliasedInputs(op primitives.OperatorSchema) (map[int]int, error)
}

// SchemaAliasFacts derives alias facts from the schema's alias annotations.
type SchemaAliasFacts struct{}

func (SchemaAliasFacts) AliasedInputs(op primitives.OperatorSchema) (map[int]int, error) {
	return op.FindAliasedInputs(), nil
}

// TransformLayer is the transform's own bookkeeping (recording a tape, tangent
// propagation) that runs between Process and SendToNext of its level.
type TransformLayer interface {
	Handle(ctx context.Context, ec *primitives.Context, op primitives.OperatorSchema, stack *primitives.Stack, level int, next Forward) error
}

// EventPublisher receives dispatch events.
type EventPublisher interface {
	Publish(ctx context.Context, event primitives.Event) error
	Close() error
}

// Engine holds the collaborators shared by every interpreter of a dispatcher.
type Engine struct {
	logger     *zap.Logger
	tracer     trace.Tracer
	metrics    *Metrics
	aliasFacts AliasFacts
	alwaysWrap map[string]struct{}
	layers     map[primitives.TransformKind]TransformLayer
	publisher  EventPublisher
}

// NewEngine creates an Engine configured by opts on top of DefaultConfig.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		logger:     zap.NewNop(),
		tracer:     otel.Tracer(tracerName),
		aliasFacts: SchemaAliasFacts{},
		layers:     make(map[primitives.TransformKind]TransformLayer),
	}
	e.setAlwaysWrap(DefaultConfig().AlwaysWrap)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) setAlwaysWrap(names []string) {
	e.alwaysWrap = make(map[string]struct{}, len(names))
	for _, n := range names {
		e.alwaysWrap[n] = struct{}{}
	}
}

// AlwaysWraps reports whether every output of op is wrapped regardless of
// aliasing. Matches either the bare or the overload-qualified name.
func (e *Engine) AlwaysWraps(op primitives.OperatorSchema) bool {
	if _, ok := e.alwaysWrap[op.Name]; ok {
		return true
	}
	_, ok := e.alwaysWrap[op.QualifiedName()]
	return ok
}

// sendToNext runs the unwrap/execute/rewrap protocol for in.
//
// Working-copy discipline on the stack (n args, r returns):
//  1. push a copy of the n args
//  2. unwrap the copy at this level
//  3. call the operator: the copy is replaced by r returns
//  4. wrap the returns
//  5. refresh metadata of the original args
//  6. erase the original args
func (e *Engine) sendToNext(ctx context.Context, ec *primitives.Context, in *autogradInterpreter, op primitives.OperatorSchema, stack *primitives.Stack, next Redispatch, prevGradMode, prevFwdGradMode *bool) (err error) {
	name := op.QualifiedName()
	level := in.level

	ctx, span := e.tracer.Start(ctx, "adlayers.sendToNext",
		trace.WithAttributes(
			attribute.String("op", name),
			attribute.Int("level", level),
			attribute.String("kind", string(in.kind)),
			attribute.Int("remaining", next.Remaining()),
		))
	defer span.End()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}()

	if in.kind == primitives.Grad && prevGradMode == nil {
		return e.fail(ctx, in, name, primitives.Invariantf(name, level, "grad interpreter without a captured grad mode"))
	}
	if in.kind == primitives.Jvp && prevFwdGradMode == nil {
		return e.fail(ctx, in, name, primitives.Invariantf(name, level, "jvp interpreter without a captured forward grad mode"))
	}

	e.metrics.dispatched(in.kind, "send_to_next")
	e.publish(ctx, primitives.NewEvent(primitives.EventSendToNext, name, level, in.kind, next.Remaining()))

	argsSize := len(op.Arguments)
	retSize := len(op.Returns)
	if stack.Len() < argsSize {
		return e.fail(ctx, in, name, primitives.Invariantf(name, level, "stack holds %d values, operator takes %d", stack.Len(), argsSize))
	}

	// Step 1: the originals stay below the working copy.
	front := stack.Len() - argsSize
	stack.Push(stack.Last(argsSize)...)
	copyFront := front + argsSize

	var unwrappedInputs []int
	for idx := copyFront; idx < stack.Len(); idx++ {
		v := stack.At(idx)
		// only a single array can be aliased by an output, not an array list
		if !v.IsDefined() {
			continue
		}
		if w, ok := primitives.MaybeWrapped(v.Array()); !ok || w.AliasOfUnwrapped() {
			unwrappedInputs = append(unwrappedInputs, idx-copyFront)
		}
	}

	// Step 2
	err = stack.ForEachArrayInPlace(copyFront, stack.Len(), func(a primitives.Array) (primitives.Array, error) {
		if a == nil {
			return nil, nil
		}
		w, ok := primitives.MaybeWrapped(a)
		if !ok {
			return a, nil
		}
		if w.Level() > level {
			return nil, errEscaped(w, level)
		}
		if w.Level() == level {
			return w.Value(), nil
		}
		return a, nil
	})
	if err != nil {
		_ = stack.Erase(copyFront, stack.Len())
		return e.fail(ctx, in, name, withOperator(err, name))
	}

	// Step 3
	call := func() error {
		if next.Remaining() == 0 {
			if err := sanityCheckStack(op, stack, level); err != nil {
				return err
			}
		}
		return next.Call(ctx, ec, op, stack)
	}
	if in.kind == primitives.Grad && !*prevGradMode {
		inner := call
		call = func() error { return ec.WithGradMode(false, inner) }
	}
	if in.kind == primitives.Jvp && !*prevFwdGradMode {
		inner := call
		call = func() error { return ec.WithFwdGradMode(false, inner) }
	}
	if err = call(); err != nil {
		var inv *primitives.InvariantError
		if errors.As(err, &inv) && inv.Level == level {
			return e.fail(ctx, in, name, err)
		}
		return err
	}
	if got, want := stack.Len(), copyFront+retSize; got != want {
		return e.fail(ctx, in, name, primitives.Invariantf(name, level, "stack holds %d values after redispatch, want %d", got, want))
	}

	// Step 4
	var unwrappedOutputs []int
	if !e.AlwaysWraps(op) {
		aliased, err := e.aliasFacts.AliasedInputs(op)
		if err != nil {
			return e.fail(ctx, in, name, fmt.Errorf("%s: alias facts: %w", name, err))
		}
		for _, idx := range unwrappedInputs {
			if out, ok := aliased[idx]; ok {
				unwrappedOutputs = append(unwrappedOutputs, out)
			}
		}
	}
	wrapped := 0
	err = stack.ForEachArrayInPlaceSkips(stack.Len()-retSize, stack.Len(), unwrappedOutputs, func(a primitives.Array) (primitives.Array, error) {
		if a == nil {
			return nil, nil
		}
		wrapped++
		// Returns are owned by this level even inside user code; a true flag
		// would make the guard reject in-place ops on any value computed here.
		return primitives.Wrap(a, level, false, in.life), nil
	})
	if err != nil {
		return e.fail(ctx, in, name, primitives.Invariantf(name, level, "wrap returns: %v", err))
	}
	e.metrics.outputs(in.kind, wrapped, len(unwrappedOutputs))

	// Step 5: an in-place op may have changed the raw value's shape.
	for idx := front; idx < copyFront; idx++ {
		v := stack.At(idx)
		if !v.IsDefined() {
			continue
		}
		if w, ok := primitives.MaybeWrapped(v.Array()); ok {
			w.RefreshMetadata()
		}
	}

	// Step 6
	if err := stack.Erase(front, copyFront); err != nil {
		return e.fail(ctx, in, name, primitives.Invariantf(name, level, "%v", err))
	}

	e.logger.Debug("rewrapped returns",
		zap.String("op", name),
		zap.Int("level", level),
		zap.Int("wrapped", wrapped),
		zap.Ints("passthrough", unwrappedOutputs))
	e.publish(ctx, primitives.NewEvent(primitives.EventReturn, name, level, in.kind, wrapped))
	return nil
}

// sanityCheckStack asserts that no live wrapper reaches the base layer.
func sanityCheckStack(op primitives.OperatorSchema, stack *primitives.Stack, level int) error {
	n := len(op.Arguments)
	return stack.ForEachArrayInPlace(stack.Len()-n, stack.Len(), func(a primitives.Array) (primitives.Array, error) {
		if w, ok := primitives.MaybeWrapped(primitives.UnwrapIfDead(a)); ok {
			return nil, primitives.Invariantf(op.QualifiedName(), level, "live wrapper from level %d reached the base layer", w.Level())
		}
		return a, nil
	})
}

func withOperator(err error, name string) error {
	var inv *primitives.InvariantError
	if errors.As(err, &inv) && inv.Operator == "" {
		inv.Operator = name
	}
	return err
}

// fail records err for in and returns it unchanged.
func (e *Engine) fail(ctx context.Context, in *autogradInterpreter, name string, err error) error {
	var captured *primitives.CapturedMutationError
	switch {
	case errors.As(err, &captured):
		e.metrics.capturedMutation(name)
		e.logger.Info("rejected in-place mutation of captured value",
			zap.String("op", name),
			zap.Int("level", in.level))
		e.publish(ctx, primitives.NewEvent(primitives.EventCapturedMutation, name, in.level, in.kind, nil))
	case errors.Is(err, primitives.ErrInvariant):
		e.metrics.invariantFailure()
		e.logger.Error("dispatch invariant violated",
			zap.String("op", name),
			zap.Int("level", in.level),
			zap.String("kind", string(in.kind)),
			zap.Error(err))
		e.publish(ctx, primitives.NewEvent(primitives.EventInvariant, name, in.level, in.kind, err.Error()))
	}
	return err
}

func (e *Engine) publish(ctx context.Context, event primitives.Event) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(ctx, event); err != nil {
		e.logger.Warn("publish dispatch event", zap.String("type", string(event.Type)), zap.Error(err))
	}
}
