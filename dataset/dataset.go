// Package dataset prepares labeled data for training: normalization,
// shuffling, train/test splitting, batching, and synthetic dataset
// generation for complex-valued experiments.
package dataset

import (
	"math"
	"math/cmplx"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"

	"github.com/yonikl/cvnn/tensor"
)

// Dataset pairs a data matrix with its label matrix, one example per row.
type Dataset struct {
	X *tensor.Tensor
	Y *tensor.Tensor
}

// New validates that data and labels have matching row counts.
func New(x, y *tensor.Tensor) (*Dataset, error) {
	if x.Rows() != y.Rows() {
		return nil, errors.Errorf("data has %d rows, labels have %d", x.Rows(), y.Rows())
	}
	return &Dataset{X: x, Y: y}, nil
}

// Rows returns the number of examples.
func (d *Dataset) Rows() int { return d.X.Rows() }

// Normalize scales the data so the largest modulus becomes one. Labels are
// untouched. An all-zero dataset is left as is.
func (d *Dataset) Normalize() error {
	maxAbs := 0.0
	switch d.X.DType {
	case tensor.Float64:
		data, _ := d.X.Float64s()
		for _, v := range data {
			if a := math.Abs(v); a > maxAbs {
				maxAbs = a
			}
		}
		if maxAbs == 0 {
			return nil
		}
		for i := range data {
			data[i] /= maxAbs
		}
	case tensor.Complex128:
		data, _ := d.X.Complex128s()
		for _, v := range data {
			if a := cmplx.Abs(v); a > maxAbs {
				maxAbs = a
			}
		}
		if maxAbs == 0 {
			return nil
		}
		s := complex(1/maxAbs, 0)
		for i := range data {
			data[i] *= s
		}
	default:
		return errors.Errorf("cannot normalize dtype %s", d.X.DType)
	}
	return nil
}

// Shuffle permutes examples, keeping each row of X aligned with its label.
func (d *Dataset) Shuffle(src rand.Source) error {
	rng := rand.New(src)
	perm := rng.Perm(d.Rows())
	x, err := tensor.GatherRows(d.X, perm)
	if err != nil {
		return err
	}
	y, err := tensor.GatherRows(d.Y, perm)
	if err != nil {
		return err
	}
	d.X, d.Y = x, y
	return nil
}

// Batch returns the i-th contiguous batch of the given size. The caller is
// responsible for only asking for full batches.
func (d *Dataset) Batch(i, batchSize int) (*tensor.Tensor, *tensor.Tensor, error) {
	start := i * batchSize
	end := start + batchSize
	if start < 0 || end > d.Rows() {
		return nil, nil, errors.Errorf("batch %d of size %d is out of range for %d examples", i, batchSize, d.Rows())
	}
	x, err := tensor.SliceRows(d.X, start, end)
	if err != nil {
		return nil, nil, err
	}
	y, err := tensor.SliceRows(d.Y, start, end)
	if err != nil {
		return nil, nil, err
	}
	return x, y, nil
}

// Split separates the dataset into train and test sets. Ratio 1 puts every
// example in the training set, 0 puts every example in the test set. The
// training set gets floor(rows*ratio) examples.
func (d *Dataset) Split(ratio float64) (train, test *Dataset, err error) {
	if ratio < 0 || ratio > 1 {
		return nil, nil, errors.Errorf("split ratio must be between 0 and 1, got %g", ratio)
	}
	cut := int(float64(d.Rows()) * ratio)
	trainX, err := tensor.SliceRows(d.X, 0, cut)
	if err != nil {
		return nil, nil, err
	}
	trainY, err := tensor.SliceRows(d.Y, 0, cut)
	if err != nil {
		return nil, nil, err
	}
	testX, err := tensor.SliceRows(d.X, cut, d.Rows())
	if err != nil {
		return nil, nil, err
	}
	testY, err := tensor.SliceRows(d.Y, cut, d.Rows())
	if err != nil {
		return nil, nil, err
	}
	return &Dataset{X: trainX, Y: trainY}, &Dataset{X: testX, Y: testY}, nil
}

// SparseIntoCategorical turns integer class labels into a one-hot matrix.
// numClasses zero means infer from the largest label.
func SparseIntoCategorical(labels []int, numClasses int) (*tensor.Tensor, error) {
	if numClasses == 0 {
		for _, l := range labels {
			if l+1 > numClasses {
				numClasses = l + 1
			}
		}
	}
	data := make([]float64, len(labels)*numClasses)
	for i, l := range labels {
		if l < 0 || l >= numClasses {
			return nil, errors.Errorf("label %d out of range for %d classes", l, numClasses)
		}
		data[i*numClasses+l] = 1
	}
	return tensor.New([]int{len(labels), numClasses}, tensor.Float64, data)
}

// TransformToReal maps a complex matrix to a real one by placing the real
// parts in the first half of the columns and the imaginary parts in the
// second half. Real input is returned unchanged.
func TransformToReal(t *tensor.Tensor) (*tensor.Tensor, error) {
	if !t.DType.IsComplex() {
		return t, nil
	}
	rows, cols := t.Rows(), t.Cols()
	src, err := t.Complex128s()
	if err != nil {
		return nil, err
	}
	data := make([]float64, rows*2*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			v := src[r*cols+c]
			data[r*2*cols+c] = real(v)
			data[r*2*cols+cols+c] = imag(v)
		}
	}
	return tensor.New([]int{rows, 2 * cols}, tensor.Float64, data)
}
