package core

import (
	"context"

	"github.com/comalice/adlayers/internal/primitives"
)

// Forward continues an operator call below the Process step of an interpreter.
type Forward func(ctx context.Context) error

// Interpreter is one active transform level.
type Interpreter interface {
	Level() int
	Kind() primitives.TransformKind
	// Lifetime is shared by every value wrapped at this level.
	Lifetime() *primitives.Lifetime
	// PrevGradMode is the ambient gradient mode captured when the level was
	// entered, or nil when not captured.
	PrevGradMode() *bool
	// PrevFwdGradMode is the ambient forward-gradient mode captured when the
	// level was entered, or nil when not captured.
	PrevFwdGradMode() *bool

	// Process guards against captured mutation, materializes the arguments at
	// this level and forwards the call.
	Process(ctx context.Context, ec *primitives.Context, op primitives.OperatorSchema, stack *primitives.Stack, forward Forward) error
	// SendToNext unwraps this level, redispatches through next and rewraps the
	// returns.
	SendToNext(ctx context.Context, ec *primitives.Context, op primitives.OperatorSchema, stack *primitives.Stack, next Redispatch) error
}

// autogradInterpreter carries the state shared by the autograd-based kinds.
type autogradInterpreter struct {
	engine          *Engine
	level           int
	kind            primitives.TransformKind
	life            *primitives.Lifetime
	prevGradMode    *bool
	prevFwdGradMode *bool
}

func (a *autogradInterpreter) Level() int                     { return a.level }
func (a *autogradInterpreter) Kind() primitives.TransformKind { return a.kind }
func (a *autogradInterpreter) Lifetime() *primitives.Lifetime { return a.life }
func (a *autogradInterpreter) PrevGradMode() *bool            { return a.prevGradMode }
func (a *autogradInterpreter) PrevFwdGradMode() *bool         { return a.prevFwdGradMode }

func (a *autogradInterpreter) Process(ctx context.Context, ec *primitives.Context, op primitives.OperatorSchema, stack *primitives.Stack, forward Forward) error {
	return a.engine.process(ctx, ec, a, op, stack, forward)
}

// GradInterpreter implements reverse-mode levels (grad, vjp).
type GradInterpreter struct {
	autogradInterpreter
}

// NewGradInterpreter creates a reverse-mode interpreter. prevGradMode is the
// ambient gradient mode at level entry; SendToNext fails if it is nil.
func NewGradInterpreter(e *Engine, level int, prevGradMode *bool) *GradInterpreter {
	return &GradInterpreter{autogradInterpreter{
		engine:       e,
		level:        level,
		kind:         primitives.Grad,
		life:         primitives.NewLifetime(),
		prevGradMode: prevGradMode,
	}}
}

func (g *GradInterpreter) SendToNext(ctx context.Context, ec *primitives.Context, op primitives.OperatorSchema, stack *primitives.Stack, next Redispatch) error {
	return g.engine.sendToNext(ctx, ec, &g.autogradInterpreter, op, stack, next, g.prevGradMode, nil)
}

// JvpInterpreter implements forward-mode levels (jvp).
type JvpInterpreter struct {
	autogradInterpreter
}

// NewJvpInterpreter creates a forward-mode interpreter. prevFwdGradMode is the
// ambient forward-gradient mode at level entry; SendToNext fails if it is nil.
func NewJvpInterpreter(e *Engine, level int, prevFwdGradMode *bool) *JvpInterpreter {
	return &JvpInterpreter{autogradInterpreter{
		engine:          e,
		level:           level,
		kind:            primitives.Jvp,
		life:            primitives.NewLifetime(),
		prevFwdGradMode: prevFwdGradMode,
	}}
}

func (j *JvpInterpreter) SendToNext(ctx context.Context, ec *primitives.Context, op primitives.OperatorSchema, stack *primitives.Stack, next Redispatch) error {
	return j.engine.sendToNext(ctx, ec, &j.autogradInterpreter, op, stack, next, nil, j.prevFwdGradMode)
}
