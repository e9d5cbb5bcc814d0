package internal_test

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const modulePath = "github.com/comalice/adlayers"

// allowed lists the module packages each internal package may import.
var allowed = map[string][]string{
	"primitives":    nil,
	"core":          {"internal/primitives"},
	"extensibility": {"internal/primitives", "internal/core"},
	"production":    {"internal/primitives", "internal/core"},
}

func TestPackageLayering(t *testing.T) {
	for pkg, deps := range allowed {
		t.Run(pkg, func(t *testing.T) {
			imports := moduleImports(t, pkg)
			for _, imp := range imports {
				assert.Contains(t, deps, imp, "%s must not import %s", pkg, imp)
			}
		})
	}
}

// TestFileHeaders checks that a comment above the package clause is attached
// to it and reads as package documentation.
func TestFileHeaders(t *testing.T) {
	for pkg := range allowed {
		t.Run(pkg, func(t *testing.T) {
			entries, err := os.ReadDir(pkg)
			require.NoError(t, err)
			fset := token.NewFileSet()
			for _, e := range entries {
				name := e.Name()
				if e.IsDir() || !strings.HasSuffix(name, ".go") {
					continue
				}
				f, err := parser.ParseFile(fset, filepath.Join(pkg, name), nil, parser.PackageClauseOnly|parser.ParseComments)
				require.NoError(t, err)
				for _, group := range f.Comments {
					if group.End() < f.Package && group != f.Doc {
						t.Errorf("%s/%s: comment above the package clause is detached from it", pkg, name)
					}
				}
				if f.Doc != nil {
					assert.True(t, strings.HasPrefix(f.Doc.Text(), "Package "+f.Name.Name),
						"%s/%s: package comment must start with %q", pkg, name, "Package "+f.Name.Name)
				}
			}
		})
	}
}

// moduleImports returns the module-relative imports of the non-test files in
// dir.
func moduleImports(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	seen := make(map[string]bool)
	var out []string
	fset := token.NewFileSet()
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		f, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.ImportsOnly)
		require.NoError(t, err)
		for _, spec := range f.Imports {
			path, err := strconv.Unquote(spec.Path.Value)
			require.NoError(t, err)
			rel, ok := strings.CutPrefix(path, modulePath+"/")
			if !ok || seen[rel] {
				continue
			}
			seen[rel] = true
			out = append(out, rel)
		}
	}
	return out
}
