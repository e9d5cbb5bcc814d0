package extensibility

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/mangle/ast"
	"github.com/google/mangle/factstore"

	"github.com/comalice/adlayers/internal/primitives"
)

// aliasPredicate is alias(Operator, Input, Output).
const aliasPredicate = "alias"

// AliasFact records that output Output of Operator may alias input Input.
type AliasFact struct {
	Operator string
	Input    int
	Output   int
}

// FactTable is an alias-fact source backed by a Mangle fact store.
// Operators with no facts have no aliased inputs.
type FactTable struct {
	mu    sync.RWMutex
	store factstore.FactStore
}

// NewFactTable creates a FactTable seeded with the alias facts of every
// operator in the given catalogs.
func NewFactTable(catalogs ...*primitives.Catalog) *FactTable {
	return NewFactTableWithStore(factstore.NewSimpleInMemoryStore(), catalogs...)
}

// NewFactTableWithStore is NewFactTable over an existing fact store.
func NewFactTableWithStore(store factstore.FactStore, catalogs ...*primitives.Catalog) *FactTable {
	t := &FactTable{store: store}
	for _, c := range catalogs {
		for _, op := range c.Operators {
			t.AddSchema(op)
		}
	}
	return t
}

// AddSchema records the alias facts derived from op's annotations.
func (t *FactTable) AddSchema(op primitives.OperatorSchema) {
	for in, out := range op.FindAliasedInputs() {
		t.Add(AliasFact{Operator: op.QualifiedName(), Input: in, Output: out})
	}
}

// Add records a single fact.
func (t *FactTable) Add(f AliasFact) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.store.Add(ast.NewAtom(aliasPredicate,
		ast.String(f.Operator), ast.Number(int64(f.Input)), ast.Number(int64(f.Output))))
}

// AliasedInputs returns the input to output map recorded for op.
func (t *FactTable) AliasedInputs(op primitives.OperatorSchema) (map[int]int, error) {
	facts, err := t.query(op.QualifiedName())
	if err != nil {
		return nil, err
	}
	aliased := make(map[int]int)
	for _, f := range facts {
		if _, ok := aliased[f.Input]; !ok {
			aliased[f.Input] = f.Output
		}
	}
	return aliased, nil
}

// Facts returns every recorded fact sorted by operator, then input.
func (t *FactTable) Facts() ([]AliasFact, error) {
	facts, err := t.query("")
	if err != nil {
		return nil, err
	}
	sort.Slice(facts, func(i, j int) bool {
		if facts[i].Operator != facts[j].Operator {
			return facts[i].Operator < facts[j].Operator
		}
		if facts[i].Input != facts[j].Input {
			return facts[i].Input < facts[j].Input
		}
		return facts[i].Output < facts[j].Output
	})
	return facts, nil
}

// query returns the facts for operator, or all facts when operator is empty.
func (t *FactTable) query(operator string) ([]AliasFact, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []AliasFact
	sym := ast.PredicateSym{Symbol: aliasPredicate, Arity: 3}
	err := t.store.GetFacts(ast.NewQuery(sym), func(atom ast.Atom) error {
		f, ok := decodeFact(atom)
		if ok && (operator == "" || f.Operator == operator) {
			out = append(out, f)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query alias facts: %w", err)
	}
	return out, nil
}

func decodeFact(atom ast.Atom) (AliasFact, bool) {
	if len(atom.Args) != 3 {
		return AliasFact{}, false
	}
	name, ok := atom.Args[0].(ast.Constant)
	if !ok || name.Type != ast.StringType {
		return AliasFact{}, false
	}
	in, ok := atom.Args[1].(ast.Constant)
	if !ok || in.Type != ast.NumberType {
		return AliasFact{}, false
	}
	out, ok := atom.Args[2].(ast.Constant)
	if !ok || out.Type != ast.NumberType {
		return AliasFact{}, false
	}
	return AliasFact{Operator: name.Symbol, Input: int(in.NumValue), Output: int(out.NumValue)}, true
}
