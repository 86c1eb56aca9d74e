package losses

import (
	"math"
	"testing"

	"github.com/yonikl/cvnn/tensor"
)

func TestResolve(t *testing.T) {
	t.Run("Catalog names resolve", func(t *testing.T) {
		for _, name := range []string{"mean_square", "categorical_crossentropy"} {
			l, err := Resolve(name)
			if err != nil {
				t.Fatalf("Failed to resolve %q: %v", name, err)
			}
			if l.Name() != name {
				t.Errorf("Expected name %q, got %q", name, l.Name())
			}
		}
	})

	t.Run("Unknown name is an error", func(t *testing.T) {
		if _, err := Resolve("hinge"); err == nil {
			t.Error("Expected error for unknown loss")
		}
	})

	t.Run("Zero value is invalid", func(t *testing.T) {
		var l Loss
		if l.Valid() {
			t.Error("Expected zero Loss to be invalid")
		}
	})
}

func TestMeanSquare(t *testing.T) {
	t.Run("Real values", func(t *testing.T) {
		pred, _ := tensor.New([]int{2}, tensor.Float64, []float64{1, 3})
		target, _ := tensor.New([]int{2}, tensor.Float64, []float64{0, 1})
		got, err := MeanSquare().Forward(pred, target)
		if err != nil {
			t.Fatalf("Forward failed: %v", err)
		}
		// (1 + 4) / 2
		if math.Abs(got-2.5) > 1e-12 {
			t.Errorf("Expected 2.5, got %g", got)
		}
	})

	t.Run("Complex values use squared modulus", func(t *testing.T) {
		pred, _ := tensor.New([]int{1}, tensor.Complex128, []complex128{3 + 4i})
		target, _ := tensor.New([]int{1}, tensor.Complex128, []complex128{0})
		got, err := MeanSquare().Forward(pred, target)
		if err != nil {
			t.Fatalf("Forward failed: %v", err)
		}
		if math.Abs(got-25) > 1e-12 {
			t.Errorf("Expected 25, got %g", got)
		}
	})

	t.Run("Perfect prediction has zero loss", func(t *testing.T) {
		pred, _ := tensor.New([]int{2}, tensor.Float64, []float64{1, 2})
		got, err := MeanSquare().Forward(pred, pred.Clone())
		if err != nil {
			t.Fatalf("Forward failed: %v", err)
		}
		if got != 0 {
			t.Errorf("Expected 0, got %g", got)
		}
	})

	t.Run("Shape mismatch", func(t *testing.T) {
		pred, _ := tensor.Zeros([]int{2}, tensor.Float64)
		target, _ := tensor.Zeros([]int{3}, tensor.Float64)
		if _, err := MeanSquare().Forward(pred, target); err == nil {
			t.Error("Expected error for mismatched shapes")
		}
	})
}

func TestCategoricalCrossentropy(t *testing.T) {
	t.Run("Known value", func(t *testing.T) {
		pred, _ := tensor.New([]int{1, 2}, tensor.Float64, []float64{0.8, 0.2})
		target, _ := tensor.New([]int{1, 2}, tensor.Float64, []float64{1, 0})
		got, err := CategoricalCrossentropy().Forward(pred, target)
		if err != nil {
			t.Fatalf("Forward failed: %v", err)
		}
		want := -math.Log(0.8)
		if math.Abs(got-want) > 1e-12 {
			t.Errorf("Expected %g, got %g", want, got)
		}
	})

	t.Run("Zero probability is clamped", func(t *testing.T) {
		pred, _ := tensor.New([]int{1, 2}, tensor.Float64, []float64{0, 1})
		target, _ := tensor.New([]int{1, 2}, tensor.Float64, []float64{1, 0})
		got, err := CategoricalCrossentropy().Forward(pred, target)
		if err != nil {
			t.Fatalf("Forward failed: %v", err)
		}
		if math.IsInf(got, 0) || math.IsNaN(got) {
			t.Errorf("Expected finite loss, got %g", got)
		}
	})

	t.Run("Backward points away from the true class", func(t *testing.T) {
		pred, _ := tensor.New([]int{1, 2}, tensor.Float64, []float64{0.5, 0.5})
		target, _ := tensor.New([]int{1, 2}, tensor.Float64, []float64{1, 0})
		grad, err := CategoricalCrossentropy().Backward(pred, target)
		if err != nil {
			t.Fatalf("Backward failed: %v", err)
		}
		got, _ := grad.Float64s()
		if got[0] >= 0 {
			t.Errorf("Expected negative gradient on true class, got %g", got[0])
		}
		if got[1] != 0 {
			t.Errorf("Expected zero gradient off the true class, got %g", got[1])
		}
	})
}
