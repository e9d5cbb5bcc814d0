package extensibility

import (
	"context"
	"fmt"

	"github.com/comalice/adlayers/internal/primitives"
)

// ReferenceSignatures are the schemas implemented by ReferenceKernels.
var ReferenceSignatures = []string{
	"aten::add.Tensor(Tensor self, Tensor other, *, Scalar alpha=1) -> Tensor",
	"aten::add_.Tensor(Tensor(a!) self, Tensor other, *, Scalar alpha=1) -> Tensor(a!)",
	"aten::mul.Tensor(Tensor self, Tensor other) -> Tensor",
	"aten::mul_.Tensor(Tensor(a!) self, Tensor other) -> Tensor(a!)",
	"aten::resize_(Tensor(a!) self, int[] size) -> Tensor(a!)",
	"aten::alias(Tensor(a) self) -> Tensor(a)",
	"aten::view(Tensor(a) self, int[] size) -> Tensor(a)",
	"aten::detach(Tensor(a) self) -> Tensor(a)",
	"aten::lift_fresh(Tensor(a) self) -> Tensor(a)",
	"aten::clone(Tensor self) -> Tensor",
	"aten::sum(Tensor self) -> Tensor",
	"aten::cat(Tensor[] tensors, int dim=0) -> Tensor",
	"aten::chunk(Tensor(a -> *) self, int chunks, int dim=0) -> Tensor(a)[]",
}

// ReferenceCatalog returns a catalog of ReferenceSignatures.
func ReferenceCatalog() *primitives.Catalog {
	c := &primitives.Catalog{ID: "reference"}
	if err := c.Add(ReferenceSignatures...); err != nil {
		panic(err)
	}
	return c
}

// ReferenceKernels returns kernels over *primitives.Dense for ReferenceSignatures.
func ReferenceKernels() *KernelTable {
	return NewKernelTable().
		Register("aten::add", binary(func(a, b float64) float64 { return a + b }, true)).
		Register("aten::mul", binary(func(a, b float64) float64 { return a * b }, false)).
		Register("aten::add_", inplace(func(a, b float64) float64 { return a + b }, true)).
		Register("aten::mul_", inplace(func(a, b float64) float64 { return a * b }, false)).
		Register("aten::resize_", resizeKernel).
		Register("aten::alias", viewOf).
		Register("aten::detach", viewOf).
		Register("aten::lift_fresh", identity).
		Register("aten::view", viewKernel).
		Register("aten::clone", cloneKernel).
		Register("aten::sum", sumKernel).
		Register("aten::cat", catKernel).
		Register("aten::chunk", chunkKernel)
}

func dense(v primitives.Value) (*primitives.Dense, error) {
	if !v.IsDefined() {
		return nil, fmt.Errorf("expected a defined array, got %s", v.Kind())
	}
	d, ok := v.Array().(*primitives.Dense)
	if !ok {
		return nil, fmt.Errorf("expected a raw dense array, got %T", v.Array())
	}
	return d, nil
}

func scalarFloat(v primitives.Value, def float64) (float64, error) {
	switch s := v.Scalar().(type) {
	case nil:
		return def, nil
	case float64:
		return s, nil
	case int:
		return float64(s), nil
	case int64:
		return float64(s), nil
	default:
		return 0, fmt.Errorf("expected a number, got %T", s)
	}
}

func scalarInts(v primitives.Value) ([]int, error) {
	switch s := v.Scalar().(type) {
	case []int:
		return s, nil
	case int:
		return []int{s}, nil
	default:
		return nil, fmt.Errorf("expected an int list, got %T", s)
	}
}

func scalarInt(v primitives.Value, def int) (int, error) {
	switch s := v.Scalar().(type) {
	case nil:
		return def, nil
	case int:
		return s, nil
	case int64:
		return int(s), nil
	case float64:
		return int(s), nil
	default:
		return 0, fmt.Errorf("expected an int, got %T", s)
	}
}

// elementwise applies f with scalar broadcasting of b.
func elementwise(dst []float64, a, b *primitives.Dense, f func(x, y float64) float64) error {
	bn := b.Numel()
	if bn != 1 && bn != a.Numel() {
		return fmt.Errorf("shape mismatch: %v and %v", a.Shape(), b.Shape())
	}
	for i := range dst {
		y := b.At(0)
		if bn != 1 {
			y = b.At(i)
		}
		dst[i] = f(a.At(i), y)
	}
	return nil
}

func operands(args []primitives.Value, withAlpha bool) (*primitives.Dense, *primitives.Dense, error) {
	a, err := dense(args[0])
	if err != nil {
		return nil, nil, err
	}
	b, err := dense(args[1])
	if err != nil {
		return nil, nil, err
	}
	if withAlpha && len(args) > 2 {
		alpha, err := scalarFloat(args[2], 1)
		if err != nil {
			return nil, nil, err
		}
		if alpha != 1 {
			scaled := b.Clone()
			for i := range scaled.Data() {
				scaled.Data()[i] *= alpha
			}
			b = scaled
		}
	}
	return a, b, nil
}

func binary(f func(x, y float64) float64, withAlpha bool) KernelFunc {
	return func(_ context.Context, _ *primitives.Context, args []primitives.Value) ([]primitives.Value, error) {
		a, b, err := operands(args, withAlpha)
		if err != nil {
			return nil, err
		}
		out := primitives.MustDense(a.Shape(), nil)
		if err := elementwise(out.Data(), a, b, f); err != nil {
			return nil, err
		}
		return []primitives.Value{primitives.ArrayValue(out)}, nil
	}
}

func inplace(f func(x, y float64) float64, withAlpha bool) KernelFunc {
	return func(_ context.Context, _ *primitives.Context, args []primitives.Value) ([]primitives.Value, error) {
		a, b, err := operands(args, withAlpha)
		if err != nil {
			return nil, err
		}
		if err := elementwise(a.Data(), a, b, f); err != nil {
			return nil, err
		}
		return []primitives.Value{primitives.ArrayValue(a)}, nil
	}
}

func resizeKernel(_ context.Context, _ *primitives.Context, args []primitives.Value) ([]primitives.Value, error) {
	a, err := dense(args[0])
	if err != nil {
		return nil, err
	}
	shape, err := scalarInts(args[1])
	if err != nil {
		return nil, err
	}
	if err := a.Resize(shape); err != nil {
		return nil, err
	}
	return []primitives.Value{primitives.ArrayValue(a)}, nil
}

func viewOf(_ context.Context, _ *primitives.Context, args []primitives.Value) ([]primitives.Value, error) {
	a, err := dense(args[0])
	if err != nil {
		return nil, err
	}
	return []primitives.Value{primitives.ArrayValue(a.View())}, nil
}

func identity(_ context.Context, _ *primitives.Context, args []primitives.Value) ([]primitives.Value, error) {
	if _, err := dense(args[0]); err != nil {
		return nil, err
	}
	return []primitives.Value{args[0]}, nil
}

func viewKernel(_ context.Context, _ *primitives.Context, args []primitives.Value) ([]primitives.Value, error) {
	a, err := dense(args[0])
	if err != nil {
		return nil, err
	}
	shape, err := scalarInts(args[1])
	if err != nil {
		return nil, err
	}
	n := 1
	for _, s := range shape {
		n *= s
	}
	if n != a.Numel() {
		return nil, fmt.Errorf("view shape %v is invalid for %d elements", shape, a.Numel())
	}
	v := a.View()
	if err := v.Resize(shape); err != nil {
		return nil, err
	}
	return []primitives.Value{primitives.ArrayValue(v)}, nil
}

func cloneKernel(_ context.Context, _ *primitives.Context, args []primitives.Value) ([]primitives.Value, error) {
	a, err := dense(args[0])
	if err != nil {
		return nil, err
	}
	return []primitives.Value{primitives.ArrayValue(a.Clone())}, nil
}

func sumKernel(_ context.Context, _ *primitives.Context, args []primitives.Value) ([]primitives.Value, error) {
	a, err := dense(args[0])
	if err != nil {
		return nil, err
	}
	total := 0.0
	for _, x := range a.Data() {
		total += x
	}
	return []primitives.Value{primitives.ArrayValue(primitives.Scalar(total))}, nil
}

func catKernel(_ context.Context, _ *primitives.Context, args []primitives.Value) ([]primitives.Value, error) {
	if !args[0].IsArrayList() {
		return nil, fmt.Errorf("expected an array list, got %s", args[0].Kind())
	}
	if dim, err := scalarInt(args[1], 0); err != nil || dim != 0 {
		return nil, fmt.Errorf("cat supports dim 0 only")
	}
	var data []float64
	for _, item := range args[0].ArrayList() {
		d, err := dense(primitives.ArrayValue(item))
		if err != nil {
			return nil, err
		}
		data = append(data, d.Data()...)
	}
	out, err := primitives.NewDense([]int{len(data)}, data)
	if err != nil {
		return nil, err
	}
	return []primitives.Value{primitives.ArrayValue(out)}, nil
}

func chunkKernel(_ context.Context, _ *primitives.Context, args []primitives.Value) ([]primitives.Value, error) {
	a, err := dense(args[0])
	if err != nil {
		return nil, err
	}
	chunks, err := scalarInt(args[1], 1)
	if err != nil {
		return nil, err
	}
	if chunks <= 0 || len(a.Shape()) != 1 {
		return nil, fmt.Errorf("chunk supports 1-d arrays and a positive chunk count")
	}
	n := a.Numel()
	size := (n + chunks - 1) / chunks
	var parts []primitives.Array
	for lo := 0; lo < n; lo += size {
		hi := min(lo+size, n)
		part, err := a.Slice(lo, hi)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}
	return []primitives.Value{primitives.ArrayListValue(parts...)}, nil
}
