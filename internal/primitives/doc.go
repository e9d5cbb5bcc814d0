// Package primitives provides the foundational data structures for the layered
// transform dispatcher.
//
// This package has no knowledge of interpreters or dispatch. It defines:
// - Array and the reference Dense array
// - Wrapped, the level-tagged handle over a raw Array
// - Value and Stack, the boxed argument/return call stack
// - OperatorSchema and Catalog, the operator schema facts consumed by dispatch
// - Context, the explicit execution context threaded through every entry point
//
// Core invariants:
// - A Wrapped value never owns storage independently of its raw value
// - Wrapped metadata only changes through RefreshMetadata
// - Context overrides are scoped: released on every exit path
package primitives
