package primitives

import "fmt"

// Kind tags the payload held by a Value.
type Kind int

const (
	KindNone Kind = iota
	KindArray
	KindArrayList
	KindScalar
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindArray:
		return "array"
	case KindArrayList:
		return "array[]"
	case KindScalar:
		return "scalar"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Value is one boxed slot on the call stack.
// An array Value holding a nil Array is an undefined value.
type Value struct {
	kind   Kind
	array  Array
	list   []Array
	scalar any
}

func NoneValue() Value { return Value{kind: KindNone} }

func ArrayValue(a Array) Value { return Value{kind: KindArray, array: a} }

// ArrayListValue boxes a list of arrays. The slice is copied.
func ArrayListValue(list ...Array) Value {
	return Value{kind: KindArrayList, list: append([]Array(nil), list...)}
}

func ScalarValue(v any) Value { return Value{kind: KindScalar, scalar: v} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsArray() bool { return v.kind == KindArray }

// IsDefined reports whether an array Value holds an actual array.
func (v Value) IsDefined() bool { return v.kind == KindArray && v.array != nil }

func (v Value) IsArrayList() bool { return v.kind == KindArrayList }

func (v Value) Array() Array { return v.array }

// ArrayList returns a copy of the boxed list.
func (v Value) ArrayList() []Array { return append([]Array(nil), v.list...) }

func (v Value) Scalar() any { return v.scalar }

func (v Value) String() string {
	switch v.kind {
	case KindArray:
		if v.array == nil {
			return "undefined"
		}
		return fmt.Sprintf("%v", v.array)
	case KindArrayList:
		return fmt.Sprintf("%v", v.list)
	case KindScalar:
		return fmt.Sprintf("%v", v.scalar)
	default:
		return "none"
	}
}
