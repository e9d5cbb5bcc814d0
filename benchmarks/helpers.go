// Package benchmarks provides shared helpers for benchmark tests.
package benchmarks

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/comalice/adlayers"
	"github.com/comalice/adlayers/internal/primitives"
)

// GenCatalog creates a catalog with n synthetic operators cycling through the
// functional, in-place and view shapes.
func GenCatalog(n int) *primitives.Catalog {
	if n < 1 {
		n = 1
	}
	c := &primitives.Catalog{ID: fmt.Sprintf("synthetic_%d", n)}
	for i := 0; i < n; i++ {
		var sig string
		switch i % 3 {
		case 0:
			sig = fmt.Sprintf("bench::op%d(Tensor self, Tensor other, *, Scalar alpha=1) -> Tensor", i)
		case 1:
			sig = fmt.Sprintf("bench::op%d_(Tensor(a!) self, Tensor other) -> Tensor(a!)", i)
		default:
			sig = fmt.Sprintf("bench::view%d(Tensor(a) self, int[] size) -> Tensor(a)", i)
		}
		if err := c.Add(sig); err != nil {
			panic(err)
		}
	}
	return c
}

// GenCatalogYAML generates YAML bytes for a catalog of n operators.
func GenCatalogYAML(n int) []byte {
	data, err := yaml.Marshal(GenCatalog(n))
	if err != nil {
		panic(err)
	}
	return data
}

// Kinds returns depth transform kinds alternating grad and jvp.
func Kinds(depth int) []adlayers.TransformKind {
	kinds := make([]adlayers.TransformKind, depth)
	for i := range kinds {
		if i%2 == 0 {
			kinds[i] = adlayers.Grad
		} else {
			kinds[i] = adlayers.Jvp
		}
	}
	return kinds
}

// Vector returns a 1-d array of n ones.
func Vector(n int) *primitives.Dense {
	data := make([]float64, n)
	for i := range data {
		data[i] = 1
	}
	return primitives.MustDense([]int{n}, data)
}

// Within runs fn nested under depth transforms.
func Within(ctx context.Context, s *adlayers.Session, depth int, fn func(ctx context.Context) error) error {
	kinds := Kinds(depth)
	var nest func(ctx context.Context, i int) error
	nest = func(ctx context.Context, i int) error {
		if i == len(kinds) {
			return fn(ctx)
		}
		return s.Transform(ctx, kinds[i], func(ctx context.Context, _ int) error {
			return nest(ctx, i+1)
		})
	}
	return nest(ctx, 0)
}
