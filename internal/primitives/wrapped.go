package primitives

import (
	"fmt"

	"github.com/google/uuid"
)

// Lifetime is shared by every Wrapped created at one level.
// Ending it turns all of those wrappers into tombstones at once.
type Lifetime struct {
	ended bool
}

// NewLifetime returns a live Lifetime.
func NewLifetime() *Lifetime { return &Lifetime{} }

// End marks the owning level as exited.
func (l *Lifetime) End() { l.ended = true }

// Alive reports whether the owning level is still active. A nil Lifetime is
// always alive.
func (l *Lifetime) Alive() bool { return l == nil || !l.ended }

// Wrapped pairs a raw Array with the level that produced the wrapping.
//
// Wrapped implements Array itself so that a value wrapped at level N can be
// wrapped again at level N+1. Shape and Strides are served from a cache that is
// only updated by RefreshMetadata.
type Wrapped struct {
	id               uuid.UUID
	raw              Array
	level            int
	aliasOfUnwrapped bool
	life             *Lifetime
	shape            []int
	strides          []int
}

// Wrap creates a Wrapped over raw at level. raw must not be nil.
func Wrap(raw Array, level int, aliasOfUnwrapped bool, life *Lifetime) *Wrapped {
	w := &Wrapped{
		id:               uuid.New(),
		raw:              raw,
		level:            level,
		aliasOfUnwrapped: aliasOfUnwrapped,
		life:             life,
	}
	w.RefreshMetadata()
	return w
}

// MaybeWrapped returns a as a *Wrapped if it is one.
func MaybeWrapped(a Array) (*Wrapped, bool) {
	w, ok := a.(*Wrapped)
	return w, ok && w != nil
}

// UnwrapIfDead resolves a through every wrapper whose level has already exited.
func UnwrapIfDead(a Array) Array {
	for {
		w, ok := MaybeWrapped(a)
		if !ok || w.IsAlive() {
			return a
		}
		a = w.raw
	}
}

// Levels lists the levels of the wrappers around a, outermost first. It is
// empty for a raw value.
func Levels(a Array) []int {
	var levels []int
	for {
		w, ok := MaybeWrapped(a)
		if !ok {
			return levels
		}
		levels = append(levels, w.level)
		a = w.raw
	}
}

func (w *Wrapped) ID() uuid.UUID { return w.id }

// Value returns the raw value one level down.
func (w *Wrapped) Value() Array { return w.raw }

func (w *Wrapped) Level() int { return w.level }

// AliasOfUnwrapped reports whether w was created only because an unwrapped
// value was touched inside transform code.
func (w *Wrapped) AliasOfUnwrapped() bool { return w.aliasOfUnwrapped }

// IsAlive reports whether the level that created w is still active.
func (w *Wrapped) IsAlive() bool { return w.life.Alive() }

func (w *Wrapped) Shape() []int   { return append([]int(nil), w.shape...) }
func (w *Wrapped) Strides() []int { return append([]int(nil), w.strides...) }

// RefreshMetadata re-reads shape and strides from the raw value.
func (w *Wrapped) RefreshMetadata() {
	w.shape = w.raw.Shape()
	w.strides = w.raw.Strides()
}

// Unwrapped follows the wrapper chain down to the innermost raw value.
func (w *Wrapped) Unwrapped() Array {
	var a Array = w
	for {
		next, ok := MaybeWrapped(a)
		if !ok {
			return a
		}
		a = next.raw
	}
}

func (w *Wrapped) String() string {
	state := "alive"
	if !w.IsAlive() {
		state = "dead"
	}
	return fmt.Sprintf("Wrapped(lvl=%d, alias=%t, %s, %v)", w.level, w.aliasOfUnwrapped, state, w.raw)
}
