package primitives

import "fmt"

// TransformKind identifies the transform an interpreter level implements.
type TransformKind string

const (
	// Grad is reverse-mode: gradient, vjp.
	Grad TransformKind = "grad"
	// Jvp is forward-mode: directional derivative.
	Jvp TransformKind = "jvp"
)

// Validate reports an error for unknown kinds.
func (k TransformKind) Validate() error {
	switch k {
	case Grad, Jvp:
		return nil
	default:
		return fmt.Errorf("unknown transform kind %q", string(k))
	}
}

// DispatchKey names one layer of the operator dispatch pipeline.
type DispatchKey string

const (
	KeyDynamicLayerFront DispatchKey = "DynamicLayerFrontMode"
	KeyDynamicLayerBack  DispatchKey = "DynamicLayerBackMode"
	KeyGradWrapper       DispatchKey = "GradWrapper"
	KeyVmapMode          DispatchKey = "VmapMode"
	KeyBatched           DispatchKey = "Batched"
	KeyFunctionalize     DispatchKey = "Functionalize"
	KeyAutograd          DispatchKey = "Autograd"
	KeyADInplaceOrView   DispatchKey = "ADInplaceOrView"
)

// KeySet is an immutable set of dispatch keys.
type KeySet struct {
	keys map[DispatchKey]struct{}
}

// NewKeySet builds a KeySet from keys.
func NewKeySet(keys ...DispatchKey) KeySet {
	s := KeySet{keys: make(map[DispatchKey]struct{}, len(keys))}
	for _, k := range keys {
		s.keys[k] = struct{}{}
	}
	return s
}

func (s KeySet) Has(k DispatchKey) bool {
	_, ok := s.keys[k]
	return ok
}

func (s KeySet) Len() int { return len(s.keys) }

// Remove returns s without keys.
func (s KeySet) Remove(keys ...DispatchKey) KeySet {
	out := NewKeySet()
	drop := NewKeySet(keys...)
	for k := range s.keys {
		if !drop.Has(k) {
			out.keys[k] = struct{}{}
		}
	}
	return out
}

// Keys returns the members in canonical order.
func (s KeySet) Keys() []DispatchKey {
	var out []DispatchKey
	for _, k := range allDynamicLayerKeys {
		if s.Has(k) {
			out = append(out, k)
		}
	}
	return out
}

var allDynamicLayerKeys = []DispatchKey{
	KeyDynamicLayerFront,
	KeyDynamicLayerBack,
	KeyGradWrapper,
	KeyVmapMode,
	KeyBatched,
	KeyFunctionalize,
	KeyAutograd,
	KeyADInplaceOrView,
}

// KeysToExclude returns the keys to exclude while redispatching an operator
// from an interpreter of kind: every dynamic-layer key except the back-mode
// key and the keys the transform itself runs through.
func KeysToExclude(kind TransformKind) KeySet {
	exclude := NewKeySet(allDynamicLayerKeys...).Remove(KeyDynamicLayerBack)
	switch kind {
	case Grad, Jvp:
		exclude = exclude.Remove(KeyAutograd, KeyADInplaceOrView)
	}
	return exclude
}
