package dataset

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/yonikl/cvnn/tensor"
)

// serializedTensor is the on-disk form of one tensor. Complex data stores
// real and imaginary parts as parallel slices.
type serializedTensor struct {
	Shape []int     `json:"shape"`
	DType string    `json:"dtype"`
	Real  []float64 `json:"real"`
	Imag  []float64 `json:"imag,omitempty"`
}

func serializeTensor(t *tensor.Tensor) (serializedTensor, error) {
	st := serializedTensor{
		Shape: append([]int(nil), t.Shape...),
		DType: t.DType.String(),
	}
	switch t.DType {
	case tensor.Float64:
		data, err := t.Float64s()
		if err != nil {
			return st, err
		}
		st.Real = append([]float64(nil), data...)
	case tensor.Complex128:
		data, err := t.Complex128s()
		if err != nil {
			return st, err
		}
		st.Real = make([]float64, len(data))
		st.Imag = make([]float64, len(data))
		for i, v := range data {
			st.Real[i] = real(v)
			st.Imag[i] = imag(v)
		}
	default:
		return st, errors.Errorf("cannot serialize dtype %s", t.DType)
	}
	return st, nil
}

func deserializeTensor(st serializedTensor) (*tensor.Tensor, error) {
	dt, err := tensor.ParseDType(st.DType)
	if err != nil {
		return nil, err
	}
	switch dt {
	case tensor.Float64:
		return tensor.New(st.Shape, dt, append([]float64(nil), st.Real...))
	case tensor.Complex128:
		if len(st.Imag) != len(st.Real) {
			return nil, errors.Errorf("serialized tensor has %d real but %d imaginary values", len(st.Real), len(st.Imag))
		}
		data := make([]complex128, len(st.Real))
		for i := range data {
			data[i] = complex(st.Real[i], st.Imag[i])
		}
		return tensor.New(st.Shape, dt, data)
	}
	return nil, errors.Errorf("cannot deserialize dtype %s", st.DType)
}

type savedSplit struct {
	XTrain serializedTensor `json:"x_train"`
	YTrain serializedTensor `json:"y_train"`
	XTest  serializedTensor `json:"x_test"`
	YTest  serializedTensor `json:"y_test"`
}

// Save writes a train/test split as a single JSON file <dir>/<name>.json,
// creating the directory if needed.
func Save(dir, name string, train, test *Dataset) error {
	var sp savedSplit
	var err error
	if sp.XTrain, err = serializeTensor(train.X); err != nil {
		return err
	}
	if sp.YTrain, err = serializeTensor(train.Y); err != nil {
		return err
	}
	if sp.XTest, err = serializeTensor(test.X); err != nil {
		return err
	}
	if sp.YTest, err = serializeTensor(test.Y); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "creating dataset directory")
	}
	data, err := json.Marshal(&sp)
	if err != nil {
		return errors.Wrap(err, "encoding dataset")
	}
	return os.WriteFile(filepath.Join(dir, name+".json"), data, 0o644)
}

// Load reads a split previously written by Save. A missing file is an
// error, not an empty dataset.
func Load(dir, name string) (train, test *Dataset, err error) {
	raw, err := os.ReadFile(filepath.Join(dir, name+".json"))
	if err != nil {
		return nil, nil, errors.Wrapf(err, "dataset %s could not be found", name)
	}
	var sp savedSplit
	if err := json.Unmarshal(raw, &sp); err != nil {
		return nil, nil, errors.Wrapf(err, "parsing dataset %s", name)
	}
	xTrain, err := deserializeTensor(sp.XTrain)
	if err != nil {
		return nil, nil, err
	}
	yTrain, err := deserializeTensor(sp.YTrain)
	if err != nil {
		return nil, nil, err
	}
	xTest, err := deserializeTensor(sp.XTest)
	if err != nil {
		return nil, nil, err
	}
	yTest, err := deserializeTensor(sp.YTest)
	if err != nil {
		return nil, nil, err
	}
	if train, err = New(xTrain, yTrain); err != nil {
		return nil, nil, err
	}
	if test, err = New(xTest, yTest); err != nil {
		return nil, nil, err
	}
	return train, test, nil
}
