// Package core provides the layered interpreter protocol for
// differentiation-style transforms.
//
// An operator call enters at the highest active level. Each interpreter first
// runs Process (mutation guard, then materialization of every array argument
// at its level) and then SendToNext (unwrap its own level, redispatch to the
// interpreters below, rewrap the results). Levels are handled outer-to-inner on
// the way in and outputs are wrapped inner-to-outer on the way back up.
//
// Dependencies: internal/primitives.
package core
