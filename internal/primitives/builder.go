// Package primitives includes builder helpers for OperatorSchema.
package primitives

// SchemaBuilder builds an OperatorSchema fluently.
type SchemaBuilder struct {
	schema OperatorSchema
	kwOnly bool
}

// NewSchemaBuilder starts a schema for the named operator.
func NewSchemaBuilder(name string) *SchemaBuilder {
	return &SchemaBuilder{schema: OperatorSchema{Name: name}}
}

// Overload sets the overload name.
func (b *SchemaBuilder) Overload(overload string) *SchemaBuilder {
	b.schema.Overload = overload
	return b
}

// KwOnly marks every following argument as keyword-only.
func (b *SchemaBuilder) KwOnly() *SchemaBuilder {
	b.kwOnly = true
	return b
}

// Arg appends an argument. alias may be nil.
func (b *SchemaBuilder) Arg(name, typ string, alias *AliasInfo) *SchemaBuilder {
	b.schema.Arguments = append(b.schema.Arguments, Argument{
		Name:   name,
		Type:   typ,
		Kind:   kindOf(typ),
		Alias:  alias,
		KwOnly: b.kwOnly,
	})
	return b
}

// Return appends an unnamed return slot. alias may be nil.
func (b *SchemaBuilder) Return(typ string, alias *AliasInfo) *SchemaBuilder {
	b.schema.Returns = append(b.schema.Returns, Argument{Type: typ, Kind: kindOf(typ), Alias: alias})
	return b
}

// Build validates and returns the schema.
func (b *SchemaBuilder) Build() (OperatorSchema, error) {
	if err := b.schema.Validate(); err != nil {
		return OperatorSchema{}, err
	}
	return b.schema, nil
}

// Reads returns a read-only alias annotation.
func Reads(set string) *AliasInfo { return &AliasInfo{Set: set} }

// Writes returns a write alias annotation.
func Writes(set string) *AliasInfo { return &AliasInfo{Set: set, Write: true} }
