package primitives

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	c := &Catalog{ID: "test"}
	require.NoError(t, c.Add(
		"aten::add.Tensor(Tensor self, Tensor other, *, Scalar alpha=1) -> Tensor",
		"aten::add_.Tensor(Tensor(a!) self, Tensor other, *, Scalar alpha=1) -> Tensor(a!)",
		"aten::alias(Tensor(a) self) -> Tensor(a)",
	))
	return c
}

func TestCatalog_Validate(t *testing.T) {
	c := testCatalog(t)
	require.NoError(t, c.Validate())

	c.Operators = append(c.Operators, c.Operators[0])
	assert.ErrorContains(t, c.Validate(), "duplicate operator")

	assert.Error(t, (&Catalog{}).Validate())
}

func TestCatalog_Lookup(t *testing.T) {
	c := testCatalog(t)
	op, ok := c.Lookup("aten::add_.Tensor")
	require.True(t, ok)
	assert.True(t, op.IsInplace())

	_, ok = c.Lookup("aten::add_")
	assert.False(t, ok)
}

func TestCatalog_YAMLRoundTrip(t *testing.T) {
	c := testCatalog(t)
	data, err := yaml.Marshal(c)
	require.NoError(t, err)
	assert.Contains(t, string(data), "aten::alias(Tensor(a) self) -> Tensor(a)")

	var got Catalog
	require.NoError(t, yaml.Unmarshal(data, &got))
	assert.Equal(t, c.Operators, got.Operators)
}

func TestCatalog_JSONRoundTrip(t *testing.T) {
	c := testCatalog(t)
	data, err := json.Marshal(c)
	require.NoError(t, err)

	var got Catalog
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, c.ID, got.ID)
	assert.Equal(t, c.Operators, got.Operators)
}

func TestComputeVersion(t *testing.T) {
	c := testCatalog(t)
	c.Version = "v1"
	assert.Equal(t, "v1", ComputeVersion(c))

	c.Version = ""
	v := ComputeVersion(c)
	assert.Regexp(t, `^[0-9a-f]{16}-\d{8}T\d{6}Z$`, v)
}
