package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/comalice/adlayers/internal/primitives"
)

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	assert.Equal(t, []string{"aten::lift_fresh", "aten::alias"}, c.AlwaysWrap)
	require.NoError(t, c.Validate())
	lvl, err := c.ZapLevel()
	require.NoError(t, err)
	assert.Equal(t, zapcore.InfoLevel, lvl)
}

func TestParseConfig(t *testing.T) {
	c, err := ParseConfig([]byte(`
always_wrap:
  - aten::lift_fresh
  - aten::clone.memory_format
log_level: debug
catalogs:
  - ops/reference.yaml
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"aten::lift_fresh", "aten::clone.memory_format"}, c.AlwaysWrap)
	assert.Equal(t, []string{"ops/reference.yaml"}, c.Catalogs)
	lvl, err := c.ZapLevel()
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, lvl)
}

func TestParseConfig_KeepsDefaults(t *testing.T) {
	c, err := ParseConfig([]byte("log_level: warn\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().AlwaysWrap, c.AlwaysWrap)
}

func TestParseConfig_Invalid(t *testing.T) {
	for _, doc := range []string{
		"log_level: loud\n",
		"always_wrap: ['']\n",
		"catalogs: ['']\n",
		"always_wrap: {a: 1}\n",
	} {
		_, err := ParseConfig([]byte(doc))
		assert.Error(t, err, doc)
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "adlayers.yaml")
	require.NoError(t, os.WriteFile(path, []byte("always_wrap: [aten::alias]\n"), 0o644))

	c, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"aten::alias"}, c.AlwaysWrap)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestWithConfig_SetsAlwaysWrap(t *testing.T) {
	e := NewEngine(WithConfig(Config{AlwaysWrap: []string{"aten::view"}}))
	assert.True(t, e.AlwaysWraps(primitives.MustParseSchema("aten::view(Tensor(a) self, int[] size) -> Tensor(a)")))
	assert.False(t, e.AlwaysWraps(primitives.MustParseSchema("aten::alias(Tensor(a) self) -> Tensor(a)")))
}

func TestEngine_AlwaysWrapsMatchesQualifiedName(t *testing.T) {
	e := NewEngine(WithAlwaysWrap("aten::clone.memory_format"))
	assert.True(t, e.AlwaysWraps(primitives.MustParseSchema("aten::clone.memory_format(Tensor self) -> Tensor")))
	assert.False(t, e.AlwaysWraps(primitives.MustParseSchema("aten::clone(Tensor self) -> Tensor")))
}
