package primitives

import (
	"errors"
	"fmt"
)

// Catalog is a versioned collection of the operator schemas known to a
// dispatcher. Validation ensures an ID is present, every schema is valid and
// no qualified name is declared twice.
type Catalog struct {
	Version   string           `json:"version,omitempty" yaml:"version,omitempty"`
	ID        string           `json:"id" yaml:"id"`
	Operators []OperatorSchema `json:"operators" yaml:"operators"`
}

// Validate validates the catalog:
// - Non-empty ID
// - Every schema validates
// - Qualified names are unique
func (c *Catalog) Validate() error {
	if c.ID == "" {
		return errors.New("catalog ID is required")
	}
	seen := make(map[string]struct{}, len(c.Operators))
	for i, op := range c.Operators {
		if err := op.Validate(); err != nil {
			return fmt.Errorf("operator %d validation failed: %w", i, err)
		}
		name := op.QualifiedName()
		if _, dup := seen[name]; dup {
			return fmt.Errorf("duplicate operator %q", name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

// Lookup returns the schema with the given qualified name.
func (c *Catalog) Lookup(qualifiedName string) (OperatorSchema, bool) {
	for _, op := range c.Operators {
		if op.QualifiedName() == qualifiedName {
			return op, true
		}
	}
	return OperatorSchema{}, false
}

// Add parses signatures and appends them to the catalog.
func (c *Catalog) Add(signatures ...string) error {
	for _, sig := range signatures {
		s, err := ParseSchema(sig)
		if err != nil {
			return err
		}
		c.Operators = append(c.Operators, s)
	}
	return nil
}
