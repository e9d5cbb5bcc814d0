package primitives

import (
	"errors"
	"fmt"
)

var (
	// ErrCapturedMutation is matched by every *CapturedMutationError.
	ErrCapturedMutation = errors.New("in-place mutation of a captured value")
	// ErrInvariant is matched by every *InvariantError. It signals a defect in
	// transform-stack management, never a user error.
	ErrInvariant = errors.New("internal invariant violated")
)

// CapturedMutationError reports an in-place operator invoked on a value
// captured from an outer scope.
type CapturedMutationError struct {
	Operator string
	Level    int
}

func (e *CapturedMutationError) Error() string {
	return fmt.Sprintf("during a grad (vjp, jvp, grad, etc) transform, the function provided "+
		"attempted to call in-place operation (%s) that would mutate a captured value. "+
		"This is not supported; please rewrite the function being transformed to explicitly "+
		"accept the mutated value(s) as inputs", e.Operator)
}

func (e *CapturedMutationError) Is(target error) bool { return target == ErrCapturedMutation }

// InvariantError reports an internal invariant failure.
type InvariantError struct {
	Operator string
	Level    int
	Reason   string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: %s at level %d: %s", ErrInvariant, e.Operator, e.Level, e.Reason)
}

func (e *InvariantError) Unwrap() error { return ErrInvariant }

// Invariantf builds an *InvariantError.
func Invariantf(op string, level int, format string, args ...any) *InvariantError {
	return &InvariantError{Operator: op, Level: level, Reason: fmt.Sprintf(format, args...)}
}
