// Package extensibility provides pluggable implementations of the core
// collaborators: base kernels, alias-fact tables and transform layers.
package extensibility

import (
	"context"
	"errors"
	"fmt"

	"github.com/comalice/adlayers/internal/primitives"
)

// ErrNoKernel is returned when no kernel is registered for an operator.
var ErrNoKernel = errors.New("no kernel registered")

// KernelFunc computes an operator's returns from its boxed arguments.
type KernelFunc func(ctx context.Context, ec *primitives.Context, args []primitives.Value) ([]primitives.Value, error)

// KernelTable is the base execution layer: a table of kernels keyed by
// qualified or bare operator name.
type KernelTable struct {
	kernels map[string]KernelFunc
}

// NewKernelTable creates an empty KernelTable.
func NewKernelTable() *KernelTable {
	return &KernelTable{kernels: make(map[string]KernelFunc)}
}

// Register installs fn for name and returns t for chaining.
func (t *KernelTable) Register(name string, fn KernelFunc) *KernelTable {
	t.kernels[name] = fn
	return t
}

// Has reports whether a kernel handles op.
func (t *KernelTable) Has(op primitives.OperatorSchema) bool {
	_, ok := t.lookup(op)
	return ok
}

func (t *KernelTable) lookup(op primitives.OperatorSchema) (KernelFunc, bool) {
	if fn, ok := t.kernels[op.QualifiedName()]; ok {
		return fn, true
	}
	fn, ok := t.kernels[op.Name]
	return fn, ok
}

// Execute pops the arguments, runs the kernel and pushes its returns.
func (t *KernelTable) Execute(ctx context.Context, ec *primitives.Context, op primitives.OperatorSchema, stack *primitives.Stack) error {
	fn, ok := t.lookup(op)
	if !ok {
		return fmt.Errorf("%s: %w", op.QualifiedName(), ErrNoKernel)
	}
	args, err := stack.Pop(len(op.Arguments))
	if err != nil {
		return fmt.Errorf("%s: %w", op.QualifiedName(), err)
	}
	rets, err := fn(ctx, ec, args)
	if err != nil {
		return fmt.Errorf("%s: %w", op.QualifiedName(), err)
	}
	if len(rets) != len(op.Returns) {
		return fmt.Errorf("%s: kernel returned %d values, schema declares %d", op.QualifiedName(), len(rets), len(op.Returns))
	}
	stack.Push(rets...)
	return nil
}
