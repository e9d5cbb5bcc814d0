package primitives

import (
	"errors"
	"fmt"
	"strings"
)

// ArgKind classifies an argument or return slot for dispatch purposes.
type ArgKind string

const (
	ArgArray     ArgKind = "array"
	ArgArrayList ArgKind = "array[]"
	ArgOther     ArgKind = "other"
)

// AliasInfo is an alias annotation: slots sharing Set may share storage.
// Write marks a slot the operator mutates.
type AliasInfo struct {
	Set   string
	Write bool
}

func (a *AliasInfo) String() string {
	if a.Write {
		return a.Set + "!"
	}
	return a.Set
}

// Argument is one argument or return slot.
type Argument struct {
	Name    string
	Type    string
	Kind    ArgKind
	Alias   *AliasInfo
	Default string
	KwOnly  bool
}

// OperatorSchema is the signature of one operator overload: its arguments,
// returns and alias annotations. Schemas serialize as their textual
// signature, e.g.
//
//	aten::add_.Tensor(Tensor(a!) self, Tensor other, *, Scalar alpha=1) -> Tensor(a!)
type OperatorSchema struct {
	Name      string
	Overload  string
	Arguments []Argument
	Returns   []Argument
}

// QualifiedName returns name.overload, or name when there is no overload.
func (s OperatorSchema) QualifiedName() string {
	if s.Overload == "" {
		return s.Name
	}
	return s.Name + "." + s.Overload
}

// IsInplace reports whether the operator mutates its first argument in place
// and returns it: the first argument carries a write alias, no other argument
// is alias-annotated, and the single return is a write alias.
func (s OperatorSchema) IsInplace() bool {
	if len(s.Arguments) == 0 || len(s.Returns) != 1 {
		return false
	}
	first := s.Arguments[0].Alias
	if first == nil || !first.Write {
		return false
	}
	for _, arg := range s.Arguments[1:] {
		if arg.Alias != nil {
			return false
		}
	}
	ret := s.Returns[0].Alias
	return ret != nil && ret.Write
}

// FindAliasedInputs maps input positions to the output position sharing its
// alias set. Inputs without a matching output are absent from the map.
func (s OperatorSchema) FindAliasedInputs() map[int]int {
	aliased := make(map[int]int)
	for in, arg := range s.Arguments {
		if arg.Alias == nil {
			continue
		}
		for out, ret := range s.Returns {
			if ret.Alias != nil && ret.Alias.Set == arg.Alias.Set {
				if _, seen := aliased[in]; !seen {
					aliased[in] = out
				}
			}
		}
	}
	return aliased
}

// Validate checks names, kinds and that no input aliases more than one output.
func (s OperatorSchema) Validate() error {
	if s.Name == "" {
		return errors.New("operator name is required")
	}
	for i, arg := range s.Arguments {
		if err := arg.validate(); err != nil {
			return fmt.Errorf("%s: argument %d: %w", s.QualifiedName(), i, err)
		}
	}
	for i, ret := range s.Returns {
		if err := ret.validate(); err != nil {
			return fmt.Errorf("%s: return %d: %w", s.QualifiedName(), i, err)
		}
	}
	for in, arg := range s.Arguments {
		if arg.Alias == nil {
			continue
		}
		matches := 0
		for _, ret := range s.Returns {
			if ret.Alias != nil && ret.Alias.Set == arg.Alias.Set {
				matches++
			}
		}
		if matches > 1 {
			return fmt.Errorf("%s: argument %d aliases %d outputs", s.QualifiedName(), in, matches)
		}
	}
	return nil
}

func (a Argument) validate() error {
	if a.Type == "" {
		return errors.New("type is required")
	}
	switch a.Kind {
	case ArgArray, ArgArrayList, ArgOther:
	default:
		return fmt.Errorf("invalid kind %q", a.Kind)
	}
	if a.Alias != nil && a.Alias.Set == "" {
		return errors.New("empty alias set")
	}
	return nil
}

// String renders the schema in signature form; ParseSchema(s.String()) == s.
func (s OperatorSchema) String() string {
	var b strings.Builder
	b.WriteString(s.QualifiedName())
	b.WriteByte('(')
	kwMarked := false
	for i, arg := range s.Arguments {
		if i > 0 {
			b.WriteString(", ")
		}
		if arg.KwOnly && !kwMarked {
			b.WriteString("*, ")
			kwMarked = true
		}
		b.WriteString(arg.typeString())
		if arg.Name != "" {
			b.WriteByte(' ')
			b.WriteString(arg.Name)
		}
		if arg.Default != "" {
			b.WriteByte('=')
			b.WriteString(arg.Default)
		}
	}
	b.WriteString(") -> ")
	if len(s.Returns) == 1 && s.Returns[0].Name == "" {
		b.WriteString(s.Returns[0].typeString())
		return b.String()
	}
	b.WriteByte('(')
	for i, ret := range s.Returns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(ret.typeString())
		if ret.Name != "" {
			b.WriteByte(' ')
			b.WriteString(ret.Name)
		}
	}
	b.WriteByte(')')
	return b.String()
}

func (a Argument) typeString() string {
	if a.Alias == nil {
		return a.Type
	}
	base, suffix := a.Type, ""
	for _, mod := range []string{"[]", "?"} {
		if strings.HasSuffix(base, mod) {
			base, suffix = strings.TrimSuffix(base, mod), mod
			break
		}
	}
	return base + "(" + a.Alias.String() + ")" + suffix
}

// MarshalText encodes the schema as its signature.
func (s OperatorSchema) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a signature produced by MarshalText.
func (s *OperatorSchema) UnmarshalText(text []byte) error {
	parsed, err := ParseSchema(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSchema parses a textual operator signature.
func ParseSchema(sig string) (OperatorSchema, error) {
	sig = strings.TrimSpace(sig)
	head, rets, ok := strings.Cut(sig, ") ->")
	if !ok {
		return OperatorSchema{}, fmt.Errorf("schema %q: missing \") ->\"", sig)
	}
	open := strings.IndexByte(head, '(')
	if open <= 0 {
		return OperatorSchema{}, fmt.Errorf("schema %q: missing operator name or argument list", sig)
	}
	var s OperatorSchema
	name := strings.TrimSpace(head[:open])
	if dot := strings.LastIndexByte(name, '.'); dot > strings.LastIndex(name, "::") {
		s.Name, s.Overload = name[:dot], name[dot+1:]
	} else {
		s.Name = name
	}

	kwOnly := false
	for _, field := range splitTopLevel(head[open+1:]) {
		if field == "*" {
			kwOnly = true
			continue
		}
		arg, err := parseArgument(field)
		if err != nil {
			return OperatorSchema{}, fmt.Errorf("schema %q: %w", sig, err)
		}
		arg.KwOnly = kwOnly
		s.Arguments = append(s.Arguments, arg)
	}

	rets = strings.TrimSpace(rets)
	if strings.HasPrefix(rets, "(") && strings.HasSuffix(rets, ")") {
		rets = rets[1 : len(rets)-1]
	}
	for _, field := range splitTopLevel(rets) {
		ret, err := parseArgument(field)
		if err != nil {
			return OperatorSchema{}, fmt.Errorf("schema %q: return: %w", sig, err)
		}
		s.Returns = append(s.Returns, ret)
	}

	if err := s.Validate(); err != nil {
		return OperatorSchema{}, err
	}
	return s, nil
}

// MustParseSchema is ParseSchema that panics on error.
func MustParseSchema(sig string) OperatorSchema {
	s, err := ParseSchema(sig)
	if err != nil {
		panic(err)
	}
	return s
}

func parseArgument(field string) (Argument, error) {
	var arg Argument
	if decl, def, ok := strings.Cut(field, "="); ok {
		field, arg.Default = strings.TrimSpace(decl), strings.TrimSpace(def)
	}
	typ := field
	if sp := strings.LastIndexByte(field, ' '); sp >= 0 && !strings.ContainsAny(field[sp:], "()") {
		typ, arg.Name = strings.TrimSpace(field[:sp]), strings.TrimSpace(field[sp+1:])
	}
	if open := strings.IndexByte(typ, '('); open >= 0 {
		end := strings.IndexByte(typ, ')')
		if end < open {
			return Argument{}, fmt.Errorf("malformed alias annotation in %q", field)
		}
		ann := strings.TrimSpace(typ[open+1 : end])
		if set, _, ok := strings.Cut(ann, "->"); ok {
			ann = strings.TrimSpace(set)
		}
		info := &AliasInfo{Set: strings.TrimSuffix(ann, "!"), Write: strings.HasSuffix(ann, "!")}
		typ = typ[:open] + typ[end+1:]
		arg.Alias = info
	}
	if typ == "" {
		return Argument{}, fmt.Errorf("missing type in %q", field)
	}
	arg.Type = typ
	arg.Kind = kindOf(typ)
	return arg, nil
}

func kindOf(typ string) ArgKind {
	switch typ {
	case "Tensor", "Tensor?":
		return ArgArray
	case "Tensor[]", "Tensor?[]":
		return ArgArrayList
	default:
		return ArgOther
	}
}

// splitTopLevel splits on commas that are not nested in brackets.
func splitTopLevel(s string) []string {
	var out []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case ',':
			if depth == 0 {
				if f := strings.TrimSpace(s[start:i]); f != "" {
					out = append(out, f)
				}
				start = i + 1
			}
		}
	}
	if f := strings.TrimSpace(s[start:]); f != "" {
		out = append(out, f)
	}
	return out
}
