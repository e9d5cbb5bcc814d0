package core

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/comalice/adlayers/internal/primitives"
)

var (
	ErrNoActiveLevel = errors.New("no active transform level")
	ErrLevelMismatch = errors.New("level is not the innermost active level")
)

// Redispatch hands an operator call to the interpreters below the current one,
// or to the base kernel when none remain.
type Redispatch struct {
	d         *Dispatcher
	remaining []Interpreter
}

// Remaining returns the number of interpreters still below the caller.
func (r Redispatch) Remaining() int { return len(r.remaining) }

// Call continues the operator call with the next lower interpreter.
func (r Redispatch) Call(ctx context.Context, ec *primitives.Context, op primitives.OperatorSchema, stack *primitives.Stack) error {
	return r.d.dispatch(ctx, ec, op, stack, r.remaining)
}

// Dispatcher is the explicit interpreter stack. Levels are entered and exited
// in LIFO order and level numbers increase monotonically, so a level number is
// never reused by a later scope.
type Dispatcher struct {
	engine       *Engine
	kernel       Kernel
	interpreters []Interpreter
	lastLevel    int
}

// NewDispatcher creates a Dispatcher executing operators on kernel.
func NewDispatcher(kernel Kernel, opts ...Option) *Dispatcher {
	return &Dispatcher{
		engine: NewEngine(opts...),
		kernel: kernel,
	}
}

// Engine returns the engine shared by the dispatcher's interpreters.
func (d *Dispatcher) Engine() *Engine { return d.engine }

// Depth returns the number of active levels.
func (d *Dispatcher) Depth() int { return len(d.interpreters) }

// Interpreters returns the active interpreters, outermost first.
func (d *Dispatcher) Interpreters() []Interpreter {
	return append([]Interpreter(nil), d.interpreters...)
}

// Current returns the innermost active interpreter.
func (d *Dispatcher) Current() (Interpreter, bool) {
	if len(d.interpreters) == 0 {
		return nil, false
	}
	return d.interpreters[len(d.interpreters)-1], true
}

// Enter pushes a new level of kind, capturing the ambient mode of ec that the
// kind needs to restore during redispatch.
func (d *Dispatcher) Enter(ec *primitives.Context, kind primitives.TransformKind) (Interpreter, error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}
	level := d.lastLevel + 1
	var in Interpreter
	switch kind {
	case primitives.Grad:
		mode := ec.GradMode()
		in = NewGradInterpreter(d.engine, level, &mode)
	case primitives.Jvp:
		mode := ec.FwdGradMode()
		in = NewJvpInterpreter(d.engine, level, &mode)
	}
	if err := d.Push(in); err != nil {
		return nil, err
	}
	return in, nil
}

// Push activates an interpreter built by the caller. Its level must be higher
// than every level used so far.
func (d *Dispatcher) Push(in Interpreter) error {
	if in.Level() <= d.lastLevel {
		return fmt.Errorf("push level %d: levels must increase (last %d)", in.Level(), d.lastLevel)
	}
	d.interpreters = append(d.interpreters, in)
	d.lastLevel = in.Level()
	d.engine.logger.Debug("entered level",
		zap.Int("level", in.Level()),
		zap.String("kind", string(in.Kind())),
		zap.Int("depth", len(d.interpreters)))
	return nil
}

// Exit pops level, which must be the innermost active level. Every value
// wrapped at that level becomes dead.
func (d *Dispatcher) Exit(level int) error {
	top, ok := d.Current()
	if !ok {
		return ErrNoActiveLevel
	}
	if top.Level() != level {
		return fmt.Errorf("exit level %d (innermost %d): %w", level, top.Level(), ErrLevelMismatch)
	}
	top.Lifetime().End()
	d.interpreters = d.interpreters[:len(d.interpreters)-1]
	d.engine.logger.Debug("exited level", zap.Int("level", level), zap.String("kind", string(top.Kind())))
	return nil
}

// Call routes op through every active level, highest level first,
// and leaves the returns on the stack in place of the arguments.
func (d *Dispatcher) Call(ctx context.Context, ec *primitives.Context, op primitives.OperatorSchema, stack *primitives.Stack) error {
	return d.dispatch(ctx, ec, op, stack, d.Interpreters())
}

func (d *Dispatcher) dispatch(ctx context.Context, ec *primitives.Context, op primitives.OperatorSchema, stack *primitives.Stack, active []Interpreter) error {
	n := len(op.Arguments)
	if stack.Len() < n {
		return primitives.Invariantf(op.QualifiedName(), len(active), "stack holds %d values, operator takes %d", stack.Len(), n)
	}
	// wrappers of exited levels are transparent from here on
	err := stack.ForEachArrayInPlace(stack.Len()-n, stack.Len(), func(a primitives.Array) (primitives.Array, error) {
		return primitives.UnwrapIfDead(a), nil
	})
	if err != nil {
		return err
	}

	if len(active) == 0 {
		d.engine.publish(ctx, primitives.NewEvent(primitives.EventKernel, op.QualifiedName(), 0, "", nil))
		return d.kernel.Execute(ctx, ec, op, stack)
	}

	top := active[len(active)-1]
	next := Redispatch{d: d, remaining: active[:len(active)-1]}
	send := func(ctx context.Context) error {
		return top.SendToNext(ctx, ec, op, stack, next)
	}
	forward := Forward(send)
	if layer, ok := d.engine.layers[top.Kind()]; ok {
		forward = func(ctx context.Context) error {
			return layer.Handle(ctx, ec, op, stack, top.Level(), send)
		}
	}
	return top.Process(ctx, ec, op, stack, forward)
}
