package extensibility

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/comalice/adlayers/internal/core"
	"github.com/comalice/adlayers/internal/primitives"
)

// TapeEntry is one operator call observed at a level.
type TapeEntry struct {
	Operator string
	Level    int
	// Inputs holds the IDs of the wrapped arguments at this level.
	Inputs []uuid.UUID
	// Outputs holds the IDs of the wrapped returns at this level.
	Outputs []uuid.UUID
	// Recording reports whether the ambient gradient mode was on.
	Recording bool
}

// Tape is a TransformLayer that records the operator calls of every level it
// is installed for. A tape is the minimal bookkeeping a gradient transform
// keeps to replay a computation backwards.
type Tape struct {
	mu      sync.Mutex
	entries []TapeEntry
}

var _ core.TransformLayer = (*Tape)(nil)

// NewTape creates an empty Tape.
func NewTape() *Tape { return &Tape{} }

// Handle records the materialized arguments, forwards the call and records
// the returns.
func (t *Tape) Handle(ctx context.Context, ec *primitives.Context, op primitives.OperatorSchema, stack *primitives.Stack, level int, next core.Forward) error {
	entry := TapeEntry{
		Operator:  op.QualifiedName(),
		Level:     level,
		Inputs:    wrapperIDs(stack.Last(len(op.Arguments)), level),
		Recording: ec.GradMode(),
	}
	if err := next(ctx); err != nil {
		return err
	}
	entry.Outputs = wrapperIDs(stack.Last(len(op.Returns)), level)

	t.mu.Lock()
	t.entries = append(t.entries, entry)
	t.mu.Unlock()
	return nil
}

// Entries returns a copy of the recorded entries in call order.
func (t *Tape) Entries() []TapeEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]TapeEntry(nil), t.entries...)
}

// ForLevel returns the entries recorded at level.
func (t *Tape) ForLevel(level int) []TapeEntry {
	var out []TapeEntry
	for _, e := range t.Entries() {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

// Reset drops every entry.
func (t *Tape) Reset() {
	t.mu.Lock()
	t.entries = nil
	t.mu.Unlock()
}

func wrapperIDs(values []primitives.Value, level int) []uuid.UUID {
	var ids []uuid.UUID
	collect := func(a primitives.Array) {
		if w, ok := primitives.MaybeWrapped(a); ok && w.Level() == level {
			ids = append(ids, w.ID())
		}
	}
	for _, v := range values {
		switch {
		case v.IsDefined():
			collect(v.Array())
		case v.IsArrayList():
			for _, a := range v.ArrayList() {
				collect(a)
			}
		}
	}
	return ids
}
