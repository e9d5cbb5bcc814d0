package primitives

import "fmt"

// Stack is the shared argument/return call stack. Arguments of a call occupy
// the top len(schema.Arguments) slots in declaration order; a kernel pops them
// and pushes its returns in declaration order.
type Stack struct {
	values []Value
}

// NewStack creates a stack holding values, bottom first.
func NewStack(values ...Value) *Stack {
	return &Stack{values: append([]Value(nil), values...)}
}

func (s *Stack) Len() int { return len(s.values) }

func (s *Stack) Push(values ...Value) {
	s.values = append(s.values, values...)
}

// Pop removes and returns the top n values, bottom first.
func (s *Stack) Pop(n int) ([]Value, error) {
	if n < 0 || n > len(s.values) {
		return nil, fmt.Errorf("pop %d values from stack of size %d", n, len(s.values))
	}
	front := len(s.values) - n
	out := append([]Value(nil), s.values[front:]...)
	s.values = s.values[:front]
	return out, nil
}

// Last returns a copy of the top n values, bottom first.
func (s *Stack) Last(n int) []Value {
	if n > len(s.values) {
		n = len(s.values)
	}
	return append([]Value(nil), s.values[len(s.values)-n:]...)
}

// At returns the value at absolute index i.
func (s *Stack) At(i int) Value { return s.values[i] }

// Set replaces the value at absolute index i.
func (s *Stack) Set(i int, v Value) { s.values[i] = v }

// Erase removes the values in [begin, end) and closes the gap.
func (s *Stack) Erase(begin, end int) error {
	if begin < 0 || end > len(s.values) || begin > end {
		return fmt.Errorf("erase [%d, %d) from stack of size %d", begin, end, len(s.values))
	}
	s.values = append(s.values[:begin], s.values[end:]...)
	return nil
}

// Values returns a copy of the whole stack, bottom first.
func (s *Stack) Values() []Value { return append([]Value(nil), s.values...) }

// ForEachArrayInPlace applies fn to every array in [begin, end), including each
// element of array lists, and stores the result back in place.
// Non-array slots are left untouched.
func (s *Stack) ForEachArrayInPlace(begin, end int, fn func(Array) (Array, error)) error {
	return s.ForEachArrayInPlaceSkips(begin, end, nil, fn)
}

// ForEachArrayInPlaceSkips is ForEachArrayInPlace, except that slots whose
// position relative to begin is listed in skips are left untouched.
func (s *Stack) ForEachArrayInPlaceSkips(begin, end int, skips []int, fn func(Array) (Array, error)) error {
	if begin < 0 || end > len(s.values) || begin > end {
		return fmt.Errorf("visit [%d, %d) on stack of size %d", begin, end, len(s.values))
	}
	skip := make(map[int]struct{}, len(skips))
	for _, rel := range skips {
		skip[rel] = struct{}{}
	}
	for idx := begin; idx < end; idx++ {
		if _, ok := skip[idx-begin]; ok {
			continue
		}
		v := s.values[idx]
		switch v.kind {
		case KindArray:
			out, err := fn(v.array)
			if err != nil {
				return err
			}
			s.values[idx] = ArrayValue(out)
		case KindArrayList:
			list := make([]Array, len(v.list))
			for i, a := range v.list {
				out, err := fn(a)
				if err != nil {
					return err
				}
				list[i] = out
			}
			s.values[idx] = Value{kind: KindArrayList, list: list}
		}
	}
	return nil
}
