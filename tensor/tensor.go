package tensor

import (
	"fmt"

	"github.com/pkg/errors"
)

// DType identifies the numeric domain of a tensor.
type DType int

const (
	Float64 DType = iota
	Complex128
)

func (d DType) String() string {
	switch d {
	case Float64:
		return "Float64"
	case Complex128:
		return "Complex128"
	default:
		return "Unknown"
	}
}

// ParseDType converts a stored dtype label back to a DType.
func ParseDType(s string) (DType, error) {
	switch s {
	case "Float64":
		return Float64, nil
	case "Complex128":
		return Complex128, nil
	default:
		return 0, errors.Errorf("unknown dtype %q", s)
	}
}

// IsComplex reports whether values of this dtype carry an imaginary part.
func (d DType) IsComplex() bool {
	return d == Complex128
}

// Tensor is a dense row-major array of Float64 or Complex128 values.
// Data is either []float64 or []complex128 depending on DType.
type Tensor struct {
	Shape    []int
	Strides  []int
	DType    DType
	Data     interface{}
	NumElems int
}

func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor(shape=%v, dtype=%s, elements=%d)", t.Shape, t.DType, t.NumElems)
}

// New creates a tensor wrapping the provided data slice. The slice length
// must match the element count implied by shape.
func New(shape []int, dtype DType, data interface{}) (*Tensor, error) {
	if err := validateShape(shape); err != nil {
		return nil, err
	}
	n := calculateNumElements(shape)

	switch dtype {
	case Float64:
		d, ok := data.([]float64)
		if !ok {
			return nil, errors.Errorf("expected []float64 data for dtype %s", dtype)
		}
		if len(d) != n {
			return nil, errors.Errorf("data length %d does not match shape %v (%d elements)", len(d), shape, n)
		}
	case Complex128:
		d, ok := data.([]complex128)
		if !ok {
			return nil, errors.Errorf("expected []complex128 data for dtype %s", dtype)
		}
		if len(d) != n {
			return nil, errors.Errorf("data length %d does not match shape %v (%d elements)", len(d), shape, n)
		}
	default:
		return nil, errors.Errorf("unsupported dtype %d", int(dtype))
	}

	return &Tensor{
		Shape:    append([]int(nil), shape...),
		Strides:  calculateStrides(shape),
		DType:    dtype,
		Data:     data,
		NumElems: n,
	}, nil
}

// Zeros creates a zero-filled tensor.
func Zeros(shape []int, dtype DType) (*Tensor, error) {
	if err := validateShape(shape); err != nil {
		return nil, err
	}
	n := calculateNumElements(shape)
	switch dtype {
	case Float64:
		return New(shape, dtype, make([]float64, n))
	case Complex128:
		return New(shape, dtype, make([]complex128, n))
	default:
		return nil, errors.Errorf("unsupported dtype %d", int(dtype))
	}
}

// Ones creates a one-filled tensor.
func Ones(shape []int, dtype DType) (*Tensor, error) {
	t, err := Zeros(shape, dtype)
	if err != nil {
		return nil, err
	}
	switch dtype {
	case Float64:
		d := t.Data.([]float64)
		for i := range d {
			d[i] = 1
		}
	case Complex128:
		d := t.Data.([]complex128)
		for i := range d {
			d[i] = 1
		}
	}
	return t, nil
}

// Clone returns a deep copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	out := &Tensor{
		Shape:    append([]int(nil), t.Shape...),
		Strides:  append([]int(nil), t.Strides...),
		DType:    t.DType,
		NumElems: t.NumElems,
	}
	switch t.DType {
	case Float64:
		out.Data = append([]float64(nil), t.Data.([]float64)...)
	case Complex128:
		out.Data = append([]complex128(nil), t.Data.([]complex128)...)
	}
	return out
}

// Float64s returns the backing slice of a Float64 tensor.
func (t *Tensor) Float64s() ([]float64, error) {
	d, ok := t.Data.([]float64)
	if !ok {
		return nil, errors.Errorf("tensor dtype is %s, not Float64", t.DType)
	}
	return d, nil
}

// Complex128s returns the backing slice of a Complex128 tensor.
func (t *Tensor) Complex128s() ([]complex128, error) {
	d, ok := t.Data.([]complex128)
	if !ok {
		return nil, errors.Errorf("tensor dtype is %s, not Complex128", t.DType)
	}
	return d, nil
}

// Rows returns the size of the leading dimension.
func (t *Tensor) Rows() int {
	if len(t.Shape) == 0 {
		return 0
	}
	return t.Shape[0]
}

// Cols returns the size of the trailing dimension of a matrix.
func (t *Tensor) Cols() int {
	if len(t.Shape) < 2 {
		return 0
	}
	return t.Shape[len(t.Shape)-1]
}

func calculateStrides(shape []int) []int {
	if len(shape) == 0 {
		return []int{}
	}
	strides := make([]int, len(shape))
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= shape[i]
	}
	return strides
}

func calculateNumElements(shape []int) int {
	if len(shape) == 0 {
		return 0
	}
	elements := 1
	for _, dim := range shape {
		elements *= dim
	}
	return elements
}

// validateShape accepts a zero-size leading dimension so that an empty
// batch of rows is representable. Trailing dimensions must stay positive.
func validateShape(shape []int) error {
	if len(shape) == 0 {
		return errors.New("invalid shape: empty")
	}
	for i, dim := range shape {
		if dim < 0 || (dim == 0 && i > 0) {
			return errors.Errorf("invalid shape: dimension %d has size %d, must be positive", i, dim)
		}
	}
	return nil
}

func shapesEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
