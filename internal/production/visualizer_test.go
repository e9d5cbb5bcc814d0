package production

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comalice/adlayers/internal/core"
	"github.com/comalice/adlayers/internal/extensibility"
	"github.com/comalice/adlayers/internal/primitives"
)

func TestDefaultVisualizer_ExportDOT(t *testing.T) {
	d := core.NewDispatcher(extensibility.ReferenceKernels())
	ec := primitives.NewContext()
	g, err := d.Enter(ec, primitives.Grad)
	require.NoError(t, err)
	j, err := d.Enter(ec, primitives.Jvp)
	require.NoError(t, err)

	raw := primitives.MustDense([]int{2}, nil)
	w1 := primitives.Wrap(raw, g.Level(), false, g.Lifetime())
	w2 := primitives.Wrap(w1, j.Level(), true, j.Lifetime())
	dead := primitives.Wrap(raw, 0, false, func() *primitives.Lifetime {
		l := primitives.NewLifetime()
		l.End()
		return l
	}())

	v := &DefaultVisualizer{}
	dot := v.ExportDOT(d.Interpreters(), map[string]primitives.Array{
		"x":     w2,
		"plain": raw,
		"stale": dead,
	})

	assert.True(t, strings.HasPrefix(dot, "digraph Dispatch {\n"))
	assert.Contains(t, dot, "subgraph cluster_level_1 {")
	assert.Contains(t, dot, "subgraph cluster_level_2 {")
	assert.Contains(t, dot, `label="level 2 (jvp)"`)
	assert.Less(t, strings.Index(dot, "cluster_level_1"), strings.Index(dot, "cluster_level_2"))
	assert.Contains(t, dot, `label="L2 alias=true [2]"`)
	assert.Contains(t, dot, "style=dashed")
	assert.Equal(t, 1, strings.Count(dot, `[label="raw [2]" shape=ellipse]`), "shared raw values render once")
	assert.Contains(t, dot, `"x" -> "w_`+w2.ID().String()[:8]+`";`)
	assert.Contains(t, dot, `"plain" -> "raw_0";`)
}

func TestDefaultVisualizer_ExportJSON(t *testing.T) {
	d := core.NewDispatcher(extensibility.ReferenceKernels())
	_, err := d.Enter(primitives.NewContext(), primitives.Grad)
	require.NoError(t, err)

	data, err := (&DefaultVisualizer{}).ExportJSON(d.Interpreters())
	require.NoError(t, err)
	var got []LevelInfo
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, []LevelInfo{{Level: 1, Kind: primitives.Grad}}, got)
}
