// Package adlayers is the public entry point of the layered transform
// dispatcher: a Session owns the interpreter stack, the operator registry and
// the execution context, and runs operator calls through every active
// grad/jvp level.
package adlayers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/comalice/adlayers/internal/core"
	"github.com/comalice/adlayers/internal/extensibility"
	"github.com/comalice/adlayers/internal/primitives"
)

type (
	Array         = primitives.Array
	Dense         = primitives.Dense
	Wrapped       = primitives.Wrapped
	Value         = primitives.Value
	TransformKind = primitives.TransformKind
	Catalog       = primitives.Catalog
	Schema        = primitives.OperatorSchema
)

const (
	Grad = primitives.Grad
	Jvp  = primitives.Jvp
)

var (
	ErrCapturedMutation = primitives.ErrCapturedMutation
	ErrInvariant        = primitives.ErrInvariant
)

// ArrayOf boxes a as a call argument.
func ArrayOf(a Array) Value { return primitives.ArrayValue(a) }

// ListOf boxes a list of arrays as a call argument.
func ListOf(list ...Array) Value { return primitives.ArrayListValue(list...) }

// ScalarOf boxes a non-array argument such as a number or an int list.
func ScalarOf(v any) Value { return primitives.ScalarValue(v) }

// Session runs operator calls through an explicit interpreter stack.
// A Session is not safe for concurrent use.
type Session struct {
	dispatcher *core.Dispatcher
	registry   *core.MemoryRegistry
	ec         *primitives.Context
	logger     *zap.Logger
}

// New creates a Session. Without options it runs the reference kernels over
// the reference catalog with the default configuration.
func New(opts ...Option) (*Session, error) {
	o := &options{
		kernel: extensibility.ReferenceKernels(),
		config: core.DefaultConfig(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if err := o.config.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	catalogs := o.catalogs
	if len(catalogs) == 0 {
		catalogs = []*primitives.Catalog{extensibility.ReferenceCatalog()}
	}
	registry, err := core.NewMemoryRegistry(catalogs...)
	if err != nil {
		return nil, err
	}

	engineOpts := append([]core.Option{
		core.WithLogger(o.logger),
		core.WithConfig(o.config),
	}, o.engine...)
	return &Session{
		dispatcher: core.NewDispatcher(o.kernel, engineOpts...),
		registry:   registry,
		ec:         primitives.NewContext(),
		logger:     o.logger,
	}, nil
}

// Context returns the session's execution context.
func (s *Session) Context() *primitives.Context { return s.ec }

// Dispatcher returns the underlying interpreter stack.
func (s *Session) Dispatcher() *core.Dispatcher { return s.dispatcher }

// Schema resolves an operator name.
func (s *Session) Schema(ctx context.Context, name string) (Schema, error) {
	return s.registry.Lookup(ctx, name)
}

// Operators lists every registered qualified operator name.
func (s *Session) Operators(ctx context.Context) ([]string, error) {
	return s.registry.List(ctx)
}

// Level returns the innermost active level, or 0 outside every transform.
func (s *Session) Level() int {
	in, ok := s.dispatcher.Current()
	if !ok {
		return 0
	}
	return in.Level()
}

// Call runs the named operator. Trailing arguments that are omitted take the
// schema's defaults.
func (s *Session) Call(ctx context.Context, name string, args ...Value) ([]Value, error) {
	op, err := s.Schema(ctx, name)
	if err != nil {
		return nil, err
	}
	full, err := fillDefaults(op, args)
	if err != nil {
		return nil, err
	}
	stack := primitives.NewStack(full...)
	if err := s.dispatcher.Call(ctx, s.ec, op, stack); err != nil {
		return nil, err
	}
	return stack.Values(), nil
}

// Call1 is Call for operators with a single return.
func (s *Session) Call1(ctx context.Context, name string, args ...Value) (Value, error) {
	rets, err := s.Call(ctx, name, args...)
	if err != nil {
		return Value{}, err
	}
	if len(rets) != 1 {
		return Value{}, fmt.Errorf("%s returned %d values", name, len(rets))
	}
	return rets[0], nil
}

// Grad runs fn as the user code of a new reverse-mode level.
func (s *Session) Grad(ctx context.Context, fn func(ctx context.Context, level int) error) error {
	return s.Transform(ctx, Grad, fn)
}

// Jvp runs fn as the user code of a new forward-mode level.
func (s *Session) Jvp(ctx context.Context, fn func(ctx context.Context, level int) error) error {
	return s.Transform(ctx, Jvp, fn)
}

// Transform enters a level of kind, runs fn as transform user code and exits
// the level on every path. Values wrapped at the level are dead afterwards.
func (s *Session) Transform(ctx context.Context, kind TransformKind, fn func(ctx context.Context, level int) error) (err error) {
	in, err := s.dispatcher.Enter(s.ec, kind)
	if err != nil {
		return err
	}
	level := in.Level()
	defer func() {
		if exitErr := s.dispatcher.Exit(level); exitErr != nil {
			err = errors.Join(err, exitErr)
		}
	}()
	s.logger.Debug("transform", zap.String("kind", string(kind)), zap.Int("level", level))
	return s.ec.WithDuringTransform(true, func() error {
		return fn(ctx, level)
	})
}

func fillDefaults(op Schema, args []Value) ([]Value, error) {
	if len(args) > len(op.Arguments) {
		return nil, fmt.Errorf("%s takes %d arguments, got %d", op.QualifiedName(), len(op.Arguments), len(args))
	}
	full := append([]Value(nil), args...)
	for _, arg := range op.Arguments[len(args):] {
		if arg.Default == "" {
			return nil, fmt.Errorf("%s: missing argument %q", op.QualifiedName(), arg.Name)
		}
		v, err := parseDefault(arg)
		if err != nil {
			return nil, fmt.Errorf("%s: default of %q: %w", op.QualifiedName(), arg.Name, err)
		}
		full = append(full, v)
	}
	return full, nil
}

// parseDefault decodes a schema default literal.
func parseDefault(arg primitives.Argument) (Value, error) {
	lit := arg.Default
	switch {
	case lit == "None":
		if arg.Kind == primitives.ArgArray {
			return primitives.ArrayValue(nil), nil
		}
		return primitives.NoneValue(), nil
	case lit == "True" || lit == "False":
		return primitives.ScalarValue(lit == "True"), nil
	case strings.HasPrefix(lit, "[") && strings.HasSuffix(lit, "]"):
		var ints []int
		for _, f := range strings.Split(strings.Trim(lit, "[]"), ",") {
			f = strings.TrimSpace(f)
			if f == "" {
				continue
			}
			n, err := strconv.Atoi(f)
			if err != nil {
				return Value{}, err
			}
			ints = append(ints, n)
		}
		return primitives.ScalarValue(ints), nil
	}
	if n, err := strconv.Atoi(lit); err == nil {
		return primitives.ScalarValue(n), nil
	}
	if f, err := strconv.ParseFloat(lit, 64); err == nil {
		return primitives.ScalarValue(f), nil
	}
	return primitives.ScalarValue(strings.Trim(lit, `"'`)), nil
}
