package production

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comalice/adlayers/internal/primitives"
)

func testCatalog(t *testing.T, id string) *primitives.Catalog {
	t.Helper()
	c := &primitives.Catalog{ID: id, Version: "v1"}
	require.NoError(t, c.Add(
		"aten::add_.Tensor(Tensor(a!) self, Tensor other, *, Scalar alpha=1) -> Tensor(a!)",
		"aten::view(Tensor(a) self, int[] size) -> Tensor(a)",
		"aten::sort(Tensor self, int dim=-1) -> (Tensor values, Tensor indices)",
	))
	return c
}

func TestPersisters_RoundTrip(t *testing.T) {
	ctx := context.Background()
	jp, err := NewJSONPersister(t.TempDir())
	require.NoError(t, err)
	yp, err := NewYAMLPersister(t.TempDir())
	require.NoError(t, err)

	for name, p := range map[string]interface {
		Save(context.Context, *primitives.Catalog) error
		Load(context.Context, string) (*primitives.Catalog, error)
	}{"json": jp, "yaml": yp} {
		t.Run(name, func(t *testing.T) {
			want := testCatalog(t, "ops")
			require.NoError(t, p.Save(ctx, want))
			got, err := p.Load(ctx, "ops")
			require.NoError(t, err)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("catalog mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPersister_LoadNonExistent(t *testing.T) {
	p, err := NewJSONPersister(t.TempDir())
	require.NoError(t, err)
	_, err = p.Load(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestPersister_SaveRejectsInvalid(t *testing.T) {
	p, err := NewYAMLPersister(t.TempDir())
	require.NoError(t, err)
	assert.Error(t, p.Save(context.Background(), &primitives.Catalog{}))
}

func TestLoadCatalogDir(t *testing.T) {
	dir := t.TempDir()
	jp, err := NewJSONPersister(dir)
	require.NoError(t, err)
	yp, err := NewYAMLPersister(dir)
	require.NoError(t, err)
	require.NoError(t, jp.Save(context.Background(), testCatalog(t, "b")))
	require.NoError(t, yp.Save(context.Background(), testCatalog(t, "a")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.yml"), []byte(`operators:
  - "aten::clone(Tensor self) -> Tensor"
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	catalogs, err := LoadCatalogDir(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, catalogs, 3)
	assert.Equal(t, "a", catalogs[0].ID)
	assert.Equal(t, "b", catalogs[1].ID)
	assert.Equal(t, "c", catalogs[2].ID, "ID defaults to the file name")
	assert.Len(t, catalogs[2].Operators, 1)
}

func TestLoadCatalogDir_InvalidFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte(`operators:
  - "aten::broken"
`), 0o644))
	_, err := LoadCatalogDir(context.Background(), dir)
	assert.Error(t, err)

	_, err = LoadCatalogDir(context.Background(), filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
