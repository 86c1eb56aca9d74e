package tensor

import (
	"math"
	"math/cmplx"
	"testing"

	"golang.org/x/exp/rand"
)

func TestNewTensor(t *testing.T) {
	t.Run("Valid real tensor", func(t *testing.T) {
		tensor, err := New([]int{2, 3}, Float64, []float64{1, 2, 3, 4, 5, 6})
		if err != nil {
			t.Fatalf("Failed to create tensor: %v", err)
		}
		if tensor.Rows() != 2 || tensor.Cols() != 3 {
			t.Errorf("Expected shape 2x3, got %dx%d", tensor.Rows(), tensor.Cols())
		}
		if tensor.NumElems != 6 {
			t.Errorf("Expected 6 elements, got %d", tensor.NumElems)
		}
	})

	t.Run("Data length mismatch", func(t *testing.T) {
		_, err := New([]int{2, 2}, Float64, []float64{1, 2, 3})
		if err == nil {
			t.Error("Expected error for mismatched data length")
		}
	})

	t.Run("Data type mismatch", func(t *testing.T) {
		_, err := New([]int{2}, Complex128, []float64{1, 2})
		if err == nil {
			t.Error("Expected error for real data in complex tensor")
		}
	})

	t.Run("Invalid shape", func(t *testing.T) {
		_, err := Zeros([]int{2, 0}, Float64)
		if err == nil {
			t.Error("Expected error for zero dimension")
		}
	})

	t.Run("Zero rows are allowed", func(t *testing.T) {
		tensor, err := Zeros([]int{0, 3}, Float64)
		if err != nil {
			t.Fatalf("Failed to create empty tensor: %v", err)
		}
		if tensor.Rows() != 0 || tensor.Cols() != 3 || tensor.NumElems != 0 {
			t.Errorf("Expected empty 0x3 tensor, got %dx%d with %d elements",
				tensor.Rows(), tensor.Cols(), tensor.NumElems)
		}
	})
}

func TestParseDType(t *testing.T) {
	for _, name := range []string{"Float64", "Complex128"} {
		dt, err := ParseDType(name)
		if err != nil {
			t.Fatalf("Failed to parse %q: %v", name, err)
		}
		if dt.String() != name {
			t.Errorf("Expected round trip for %q, got %q", name, dt.String())
		}
	}
	if _, err := ParseDType("float16"); err == nil {
		t.Error("Expected error for unknown dtype")
	}
}

func TestMatMul(t *testing.T) {
	t.Run("Real matrix product", func(t *testing.T) {
		a, _ := New([]int{2, 2}, Float64, []float64{1, 2, 3, 4})
		b, _ := New([]int{2, 2}, Float64, []float64{5, 6, 7, 8})
		c, err := MatMul(a, b)
		if err != nil {
			t.Fatalf("MatMul failed: %v", err)
		}
		want := []float64{19, 22, 43, 50}
		got, _ := c.Float64s()
		for i := range want {
			if math.Abs(got[i]-want[i]) > 1e-12 {
				t.Errorf("Element %d: expected %g, got %g", i, want[i], got[i])
			}
		}
	})

	t.Run("Complex matrix product", func(t *testing.T) {
		a, _ := New([]int{1, 2}, Complex128, []complex128{1 + 1i, 2})
		b, _ := New([]int{2, 1}, Complex128, []complex128{1i, 1 - 1i})
		c, err := MatMul(a, b)
		if err != nil {
			t.Fatalf("MatMul failed: %v", err)
		}
		got, _ := c.Complex128s()
		want := (1+1i)*1i + 2*(1-1i)
		if cmplx.Abs(got[0]-want) > 1e-12 {
			t.Errorf("Expected %v, got %v", want, got[0])
		}
	})

	t.Run("Dimension mismatch", func(t *testing.T) {
		a, _ := Zeros([]int{2, 3}, Float64)
		b, _ := Zeros([]int{2, 3}, Float64)
		if _, err := MatMul(a, b); err == nil {
			t.Error("Expected error for incompatible dimensions")
		}
	})
}

func TestConjTranspose(t *testing.T) {
	a, _ := New([]int{1, 2}, Complex128, []complex128{1 + 2i, 3 - 1i})
	h, err := ConjTranspose(a)
	if err != nil {
		t.Fatalf("ConjTranspose failed: %v", err)
	}
	if h.Rows() != 2 || h.Cols() != 1 {
		t.Fatalf("Expected shape 2x1, got %dx%d", h.Rows(), h.Cols())
	}
	got, _ := h.Complex128s()
	if got[0] != 1-2i || got[1] != 3+1i {
		t.Errorf("Expected conjugated entries, got %v", got)
	}
}

func TestBroadcastAdd(t *testing.T) {
	x, _ := New([]int{2, 3}, Float64, []float64{1, 2, 3, 4, 5, 6})
	bias, _ := New([]int{3}, Float64, []float64{10, 20, 30})
	sum, err := Add(x, bias)
	if err != nil {
		t.Fatalf("Broadcast add failed: %v", err)
	}
	got, _ := sum.Float64s()
	want := []float64{11, 22, 33, 14, 25, 36}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Element %d: expected %g, got %g", i, want[i], got[i])
		}
	}
}

func TestAXPYInPlace(t *testing.T) {
	t.Run("Real update", func(t *testing.T) {
		w, _ := New([]int{2}, Float64, []float64{1, 2})
		g, _ := New([]int{2}, Float64, []float64{10, 20})
		if err := AXPYInPlace(w, g, -0.1); err != nil {
			t.Fatalf("AXPYInPlace failed: %v", err)
		}
		got, _ := w.Float64s()
		if math.Abs(got[0]-0) > 1e-12 || math.Abs(got[1]-0) > 1e-12 {
			t.Errorf("Expected [0 0], got %v", got)
		}
	})

	t.Run("Complex update", func(t *testing.T) {
		w, _ := New([]int{1}, Complex128, []complex128{1 + 1i})
		g, _ := New([]int{1}, Complex128, []complex128{2 + 2i})
		if err := AXPYInPlace(w, g, -0.5); err != nil {
			t.Fatalf("AXPYInPlace failed: %v", err)
		}
		got, _ := w.Complex128s()
		if cmplx.Abs(got[0]) > 1e-12 {
			t.Errorf("Expected 0, got %v", got[0])
		}
	})
}

func TestAbs(t *testing.T) {
	x, _ := New([]int{2}, Complex128, []complex128{3 + 4i, -5})
	m := Abs(x)
	if m.DType != Float64 {
		t.Fatalf("Expected real output, got %s", m.DType)
	}
	got, _ := m.Float64s()
	if got[0] != 5 || got[1] != 5 {
		t.Errorf("Expected [5 5], got %v", got)
	}
}

func TestArgMaxRows(t *testing.T) {
	t.Run("Real rows", func(t *testing.T) {
		x, _ := New([]int{2, 3}, Float64, []float64{1, 5, 2, 9, 0, 3})
		idx, err := ArgMaxRows(x)
		if err != nil {
			t.Fatalf("ArgMaxRows failed: %v", err)
		}
		if idx[0] != 1 || idx[1] != 0 {
			t.Errorf("Expected [1 0], got %v", idx)
		}
	})

	t.Run("Complex rows by modulus", func(t *testing.T) {
		x, _ := New([]int{1, 2}, Complex128, []complex128{1 + 1i, 3})
		idx, err := ArgMaxRows(x)
		if err != nil {
			t.Fatalf("ArgMaxRows failed: %v", err)
		}
		if idx[0] != 1 {
			t.Errorf("Expected index 1, got %d", idx[0])
		}
	})
}

func TestSumColumns(t *testing.T) {
	x, _ := New([]int{2, 3}, Float64, []float64{1, 2, 3, 4, 5, 6})
	s, err := SumColumns(x)
	if err != nil {
		t.Fatalf("SumColumns failed: %v", err)
	}
	got, _ := s.Float64s()
	want := []float64{5, 7, 9}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Column %d: expected %g, got %g", i, want[i], got[i])
		}
	}
}

func TestGatherRows(t *testing.T) {
	x, _ := New([]int{3, 2}, Float64, []float64{1, 2, 3, 4, 5, 6})
	g, err := GatherRows(x, []int{2, 0, 1})
	if err != nil {
		t.Fatalf("GatherRows failed: %v", err)
	}
	got, _ := g.Float64s()
	want := []float64{5, 6, 1, 2, 3, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Element %d: expected %g, got %g", i, want[i], got[i])
		}
	}
}

func TestSliceRows(t *testing.T) {
	x, _ := New([]int{3, 2}, Complex128, []complex128{1, 2, 3, 4, 5, 6})

	t.Run("Middle rows are copied", func(t *testing.T) {
		s, err := SliceRows(x, 1, 3)
		if err != nil {
			t.Fatalf("SliceRows failed: %v", err)
		}
		got, _ := s.Complex128s()
		want := []complex128{3, 4, 5, 6}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("Element %d: expected %v, got %v", i, want[i], got[i])
			}
		}
	})

	t.Run("Empty range at either end", func(t *testing.T) {
		for _, bound := range []int{0, 3} {
			s, err := SliceRows(x, bound, bound)
			if err != nil {
				t.Fatalf("SliceRows(%d, %d) failed: %v", bound, bound, err)
			}
			if s.Rows() != 0 || s.Cols() != 2 {
				t.Errorf("Expected empty 0x2 slice, got %dx%d", s.Rows(), s.Cols())
			}
		}
	})

	t.Run("Reversed range is an error", func(t *testing.T) {
		if _, err := SliceRows(x, 2, 1); err == nil {
			t.Error("Expected error for reversed range")
		}
	})
}

func TestGlorotUniform(t *testing.T) {
	src := rand.NewSource(1)

	t.Run("Real initialization stays in bound", func(t *testing.T) {
		w, err := GlorotUniform(30, 10, Float64, src)
		if err != nil {
			t.Fatalf("GlorotUniform failed: %v", err)
		}
		if w.Rows() != 30 || w.Cols() != 10 {
			t.Fatalf("Expected shape 30x10, got %dx%d", w.Rows(), w.Cols())
		}
		limit := math.Sqrt(6.0 / (30 + 10))
		data, _ := w.Float64s()
		for i, v := range data {
			if math.Abs(v) > limit {
				t.Fatalf("Element %d = %g exceeds limit %g", i, v, limit)
			}
		}
	})

	t.Run("Complex initialization fills both parts", func(t *testing.T) {
		w, err := GlorotUniform(4, 4, Complex128, src)
		if err != nil {
			t.Fatalf("GlorotUniform failed: %v", err)
		}
		data, _ := w.Complex128s()
		nonZeroImag := 0
		for _, v := range data {
			if imag(v) != 0 {
				nonZeroImag++
			}
		}
		if nonZeroImag == 0 {
			t.Error("Expected imaginary parts to be initialized")
		}
	})
}
