package graph

import (
	"math"
	"testing"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/diff/fd"

	"github.com/yonikl/cvnn/tensor"
)

func realConfig() Config {
	return Config{
		InputDType:   tensor.Float64,
		OutputDType:  tensor.Float64,
		LearningRate: 0.05,
		Seed:         7,
	}
}

func complexConfig() Config {
	return Config{
		InputDType:   tensor.Complex128,
		OutputDType:  tensor.Float64,
		LearningRate: 0.05,
		Seed:         7,
	}
}

func TestBuildValidation(t *testing.T) {
	t.Run("Shape needs two layers", func(t *testing.T) {
		_, err := Build([]Layer{{Width: 4}}, "mean_square", realConfig(), nil)
		if err != ErrShapeTooShort {
			t.Errorf("Expected ErrShapeTooShort, got %v", err)
		}
	})

	t.Run("Widths must be positive", func(t *testing.T) {
		_, err := Build([]Layer{{Width: 4}, {Width: 0}}, "mean_square", realConfig(), nil)
		if err == nil {
			t.Error("Expected error for zero width")
		}
	})

	t.Run("Complex output needs complex input", func(t *testing.T) {
		cfg := realConfig()
		cfg.OutputDType = tensor.Complex128
		_, err := Build([]Layer{{Width: 4}, {Width: 2}}, "mean_square", cfg, nil)
		if err != ErrDomainMismatch {
			t.Errorf("Expected ErrDomainMismatch, got %v", err)
		}
	})

	t.Run("Unknown loss is fatal", func(t *testing.T) {
		_, err := Build([]Layer{{Width: 4}, {Width: 2}}, "hinge", realConfig(), nil)
		if err == nil {
			t.Error("Expected error for unknown loss")
		}
	})

	t.Run("Unknown activation name falls back to identity", func(t *testing.T) {
		g, err := Build([]Layer{
			{Width: 2, Activation: "definitely_not_real"},
			{Width: 2, Activation: "linear"},
		}, "mean_square", realConfig(), nil)
		if err != nil {
			t.Fatalf("Expected fallback build to succeed: %v", err)
		}
		x, _ := tensor.New([]int{1, 2}, tensor.Float64, []float64{1, 2})
		if _, err := g.Output(x); err != nil {
			t.Fatalf("Forward pass failed: %v", err)
		}
	})
}

func TestOutputShape(t *testing.T) {
	cases := []struct {
		name   string
		widths []int
	}{
		{"Single transform", []int{4, 2}},
		{"One hidden layer", []int{4, 8, 3}},
		{"Deep", []int{5, 7, 6, 4, 2}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			shape := make([]Layer, len(tc.widths))
			for i, w := range tc.widths {
				shape[i] = Layer{Width: w, Activation: "cart_relu"}
			}
			g, err := Build(shape, "mean_square", realConfig(), nil)
			if err != nil {
				t.Fatalf("Build failed: %v", err)
			}
			rows := 6
			x, _ := tensor.Zeros([]int{rows, tc.widths[0]}, tensor.Float64)
			out, err := g.Output(x)
			if err != nil {
				t.Fatalf("Output failed: %v", err)
			}
			if out.Rows() != rows || out.Cols() != tc.widths[len(tc.widths)-1] {
				t.Errorf("Expected %dx%d output, got %dx%d",
					rows, tc.widths[len(tc.widths)-1], out.Rows(), out.Cols())
			}
		})
	}
}

func TestComplexToRealPipeline(t *testing.T) {
	shape := []Layer{
		{Width: 4, Activation: "ignored"},
		{Width: 3, Activation: "cart_sigmoid"},
		{Width: 2, Activation: "cart_softmax_real"},
	}
	g, err := Build(shape, "categorical_crossentropy", complexConfig(), nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	rng := rand.New(rand.NewSource(3))
	data := make([]complex128, 10*4)
	for i := range data {
		data[i] = complex(rng.NormFloat64(), rng.NormFloat64())
	}
	x, _ := tensor.New([]int{10, 4}, tensor.Complex128, data)
	out, err := g.Output(x)
	if err != nil {
		t.Fatalf("Output failed: %v", err)
	}
	if out.DType != tensor.Float64 {
		t.Fatalf("Expected real output, got %s", out.DType)
	}
	vals, _ := out.Float64s()
	for r := 0; r < 10; r++ {
		sum := 0.0
		for c := 0; c < 2; c++ {
			v := vals[r*2+c]
			if v < 0 {
				t.Fatalf("Row %d has negative probability %g", r, v)
			}
			sum += v
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Errorf("Row %d: expected probabilities to sum to 1, got %g", r, sum)
		}
	}
}

func TestWrongInputDomainRejected(t *testing.T) {
	g, err := Build([]Layer{{Width: 2}, {Width: 2}}, "mean_square", complexConfig(), nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	x, _ := tensor.Zeros([]int{1, 2}, tensor.Float64)
	if _, err := g.Output(x); err == nil {
		t.Error("Expected error for real input to a complex graph")
	}
}

func TestStepMatchesNumericGradient(t *testing.T) {
	g, err := Build([]Layer{
		{Width: 2, Activation: "linear"},
		{Width: 3, Activation: "cart_tanh"},
		{Width: 2, Activation: "linear"},
	}, "mean_square", realConfig(), nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	x, _ := tensor.New([]int{4, 2}, tensor.Float64, []float64{
		0.5, -0.2, 0.1, 0.9, -0.7, 0.3, 0.2, 0.2,
	})
	y, _ := tensor.New([]int{4, 2}, tensor.Float64, []float64{
		1, 0, 0, 1, 1, 0, 0, 1,
	})

	// Numeric derivative of the loss with respect to one weight entry.
	w1 := g.Parameters()[0].Tensor
	wData, _ := w1.Float64s()
	orig := wData[0]
	lossAt := func(v float64) float64 {
		wData[0] = v
		loss, err := g.Loss(x, y)
		if err != nil {
			t.Fatalf("Loss failed: %v", err)
		}
		return loss
	}
	numGrad := fd.Derivative(lossAt, orig, &fd.Settings{Formula: fd.Central})
	wData[0] = orig

	if err := g.Step(x, y); err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	moved := wData[0] - orig
	want := -g.LearningRate() * numGrad
	if math.Abs(moved-want) > 1e-6*(1+math.Abs(want)) {
		t.Errorf("Expected weight delta %g, got %g (numeric gradient %g)", want, moved, numGrad)
	}
}

func TestTrainingReducesLoss(t *testing.T) {
	g, err := Build([]Layer{
		{Width: 4, Activation: "ignored"},
		{Width: 6, Activation: "cart_sigmoid"},
		{Width: 2, Activation: "cart_softmax_real"},
	}, "categorical_crossentropy", complexConfig(), nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	rng := rand.New(rand.NewSource(11))
	rows := 32
	data := make([]complex128, rows*4)
	labels := make([]float64, rows*2)
	for r := 0; r < rows; r++ {
		class := r % 2
		scale := 0.2 + 2*float64(class)
		for c := 0; c < 4; c++ {
			data[r*4+c] = complex(scale*rng.NormFloat64(), scale*rng.NormFloat64())
		}
		labels[r*2+class] = 1
	}
	x, _ := tensor.New([]int{rows, 4}, tensor.Complex128, data)
	y, _ := tensor.New([]int{rows, 2}, tensor.Float64, labels)

	before, err := g.Loss(x, y)
	if err != nil {
		t.Fatalf("Loss failed: %v", err)
	}
	for i := 0; i < 200; i++ {
		if err := g.Step(x, y); err != nil {
			t.Fatalf("Step %d failed: %v", i, err)
		}
	}
	after, err := g.Loss(x, y)
	if err != nil {
		t.Fatalf("Loss failed: %v", err)
	}
	if after >= before {
		t.Errorf("Expected loss to decrease, went from %g to %g", before, after)
	}
}

func TestStructureRoundTrip(t *testing.T) {
	g, err := Build([]Layer{
		{Width: 4, Activation: "linear"},
		{Width: 3, Activation: "cart_sigmoid"},
		{Width: 2, Activation: "cart_softmax_real"},
	}, "categorical_crossentropy", complexConfig(), nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	s := g.Structure()
	if len(s.UpdateOps) != 4 {
		t.Errorf("Expected 4 update ops, got %d", len(s.UpdateOps))
	}

	restored, err := FromStructure(s, nil)
	if err != nil {
		t.Fatalf("FromStructure failed: %v", err)
	}
	if restored.InputWidth() != 4 || restored.OutputWidth() != 2 {
		t.Errorf("Expected widths 4 and 2, got %d and %d", restored.InputWidth(), restored.OutputWidth())
	}
	if restored.LossName() != "categorical_crossentropy" {
		t.Errorf("Expected loss to survive, got %q", restored.LossName())
	}
	if restored.InputDType() != tensor.Complex128 || restored.OutputDType() != tensor.Float64 {
		t.Error("Expected dtypes to survive the round trip")
	}

	s.UpdateOps = append(s.UpdateOps, "momentum/velocity1")
	if _, err := FromStructure(s, nil); err == nil {
		t.Error("Expected error for update op outside the naming convention")
	}
}

func TestSetParameter(t *testing.T) {
	g, err := Build([]Layer{{Width: 2}, {Width: 2}}, "mean_square", realConfig(), nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	w, _ := tensor.New([]int{2, 2}, tensor.Float64, []float64{1, 2, 3, 4})
	if err := g.SetParameter("weights1", w); err != nil {
		t.Fatalf("SetParameter failed: %v", err)
	}
	got, _ := g.Parameters()[0].Tensor.Float64s()
	if got[3] != 4 {
		t.Errorf("Expected weight copy, got %v", got)
	}

	if err := g.SetParameter("weights9", w); err == nil {
		t.Error("Expected error for unknown parameter")
	}
	bad, _ := tensor.Zeros([]int{3, 3}, tensor.Float64)
	if err := g.SetParameter("weights1", bad); err == nil {
		t.Error("Expected error for shape mismatch")
	}
}

type recordingSink struct {
	descs []LayerDescription
}

func (rs *recordingSink) AppendGraphStructure(d []LayerDescription) error {
	rs.descs = d
	return nil
}

func TestSinkReceivesLayerDescriptions(t *testing.T) {
	sink := &recordingSink{}
	_, err := Build([]Layer{
		{Width: 4, Activation: "linear"},
		{Width: 3, Activation: "cart_sigmoid"},
		{Width: 2, Activation: "cart_softmax_real"},
	}, "categorical_crossentropy", complexConfig(), sink)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(sink.descs) != 3 {
		t.Fatalf("Expected 3 layer descriptions, got %d", len(sink.descs))
	}
	if sink.descs[0].Role != "input" || sink.descs[1].Role != "hidden" || sink.descs[2].Role != "output" {
		t.Errorf("Unexpected roles: %+v", sink.descs)
	}
	if sink.descs[1].Activation != "cart_sigmoid" {
		t.Errorf("Expected hidden activation cart_sigmoid, got %q", sink.descs[1].Activation)
	}
}
