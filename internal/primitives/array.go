package primitives

import (
	"errors"
	"fmt"
)

// Array is the raw value an operator reads and writes.
// Storage layout is owned by the implementation; dispatch only inspects metadata.
type Array interface {
	Shape() []int
	Strides() []int
}

// Dense is a contiguous row-major float64 array starting at offset in its
// storage. Views created with View and Slice share the backing storage, which
// only ever grows.
type Dense struct {
	storage *[]float64
	offset  int
	shape   []int
	strides []int
}

// NewDense creates a Dense with the given shape. data is copied; a nil data
// slice allocates zeroed storage.
func NewDense(shape []int, data []float64) (*Dense, error) {
	n, err := numel(shape)
	if err != nil {
		return nil, err
	}
	buf := make([]float64, n)
	if data != nil {
		if len(data) != n {
			return nil, fmt.Errorf("data length %d does not match shape %v (%d elements)", len(data), shape, n)
		}
		copy(buf, data)
	}
	return &Dense{
		storage: &buf,
		shape:   append([]int(nil), shape...),
		strides: contiguousStrides(shape),
	}, nil
}

// MustDense is NewDense that panics on error. Intended for tests and examples.
func MustDense(shape []int, data []float64) *Dense {
	d, err := NewDense(shape, data)
	if err != nil {
		panic(err)
	}
	return d
}

// Scalar creates a zero-dimensional Dense holding v.
func Scalar(v float64) *Dense {
	return MustDense(nil, []float64{v})
}

func (d *Dense) Shape() []int   { return append([]int(nil), d.shape...) }
func (d *Dense) Strides() []int { return append([]int(nil), d.strides...) }

// Data returns the live elements described by the shape. Writes are visible
// to every view of the same storage.
func (d *Dense) Data() []float64 {
	end := d.offset + d.Numel()
	return (*d.storage)[d.offset:end:end]
}

// Numel returns the number of elements described by the shape.
func (d *Dense) Numel() int {
	n, _ := numel(d.shape)
	return n
}

// At returns the i-th element in row-major order.
func (d *Dense) At(i int) float64 { return d.Data()[i] }

// Resize changes the shape in place. Existing elements are kept in row-major
// order; growth is zero-filled. The storage is shared with every view and is
// never shortened, so other views keep their elements when d shrinks.
func (d *Dense) Resize(shape []int) error {
	n, err := numel(shape)
	if err != nil {
		return err
	}
	if need := d.offset + n; need > len(*d.storage) {
		grown := make([]float64, need)
		copy(grown, *d.storage)
		*d.storage = grown
	}
	d.shape = append([]int(nil), shape...)
	d.strides = contiguousStrides(shape)
	return nil
}

// View returns a new Dense sharing storage with d.
func (d *Dense) View() *Dense {
	return &Dense{
		storage: d.storage,
		offset:  d.offset,
		shape:   append([]int(nil), d.shape...),
		strides: append([]int(nil), d.strides...),
	}
}

// Slice returns a 1-d view of elements [lo, hi) in row-major order.
func (d *Dense) Slice(lo, hi int) (*Dense, error) {
	if lo < 0 || hi < lo || hi > d.Numel() {
		return nil, fmt.Errorf("slice [%d:%d] out of range for %d elements", lo, hi, d.Numel())
	}
	return &Dense{
		storage: d.storage,
		offset:  d.offset + lo,
		shape:   []int{hi - lo},
		strides: []int{1},
	}, nil
}

// Clone returns a Dense with freshly allocated storage.
func (d *Dense) Clone() *Dense {
	buf := append([]float64(nil), d.Data()...)
	return &Dense{
		storage: &buf,
		shape:   append([]int(nil), d.shape...),
		strides: append([]int(nil), d.strides...),
	}
}

// SharesStorage reports whether d and other are views of the same storage.
func (d *Dense) SharesStorage(other *Dense) bool {
	return other != nil && d.storage == other.storage
}

func (d *Dense) String() string {
	return fmt.Sprintf("Dense%v%v", d.shape, d.Data())
}

func numel(shape []int) (int, error) {
	n := 1
	for _, s := range shape {
		if s < 0 {
			return 0, errors.New("negative dimension in shape")
		}
		n *= s
	}
	return n, nil
}

func contiguousStrides(shape []int) []int {
	strides := make([]int, len(shape))
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= shape[i]
	}
	return strides
}
