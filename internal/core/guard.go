package core

import "github.com/comalice/adlayers/internal/primitives"

// checkForInvalidMutationOnCaptures rejects an in-place operator whose mutated
// argument is not a live wrapper owned by level. Such a value was captured from
// an outer scope and the transform cannot differentiate through its mutation.
func checkForInvalidMutationOnCaptures(op primitives.OperatorSchema, stack *primitives.Stack, level int) error {
	if !op.IsInplace() {
		return nil
	}
	n := len(op.Arguments)
	if stack.Len() < n {
		return primitives.Invariantf(op.QualifiedName(), level, "stack holds %d values, operator takes %d", stack.Len(), n)
	}
	args := stack.Last(n)
	if !args[0].IsArray() {
		return primitives.Invariantf(op.QualifiedName(), level, "in-place operator with a %s first argument", args[0].Kind())
	}
	mutated := primitives.UnwrapIfDead(args[0].Array())
	if w, ok := primitives.MaybeWrapped(mutated); ok && w.Level() == level && !w.AliasOfUnwrapped() {
		return nil
	}
	return &primitives.CapturedMutationError{Operator: op.QualifiedName(), Level: level}
}
