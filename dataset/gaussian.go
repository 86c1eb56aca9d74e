package dataset

import (
	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/yonikl/cvnn/logging"
	"github.com/yonikl/cvnn/tensor"
)

// NoiseType selects how synthetic complex noise is generated.
type NoiseType string

const (
	// NoiseNonCorrelated draws real and imaginary parts independently.
	NoiseNonCorrelated NoiseType = "non_correlated"
	// NoiseHilbert builds the analytic signal of real noise, correlating
	// the imaginary part with the real part.
	NoiseHilbert NoiseType = "hilbert"
)

const sqrt2 = 1.4142135623730951

// nonCorrelatedNoise fills rows*cols complex samples with independent
// Gaussian real and imaginary parts, scaled by 1/sqrt(2) so the total
// variance stays sigma squared.
func nonCorrelatedNoise(rows, cols int, mu, sigma float64, src rand.Source) []complex128 {
	dist := distuv.Normal{Mu: mu, Sigma: sigma, Src: src}
	out := make([]complex128, rows*cols)
	for i := range out {
		out[i] = complex(dist.Rand()/sqrt2, dist.Rand()/sqrt2)
	}
	return out
}

// hilbertNoise draws Gaussian real noise per row and returns its analytic
// signal: positive frequencies doubled, negative frequencies removed.
func hilbertNoise(rows, cols int, mu, sigma float64, src rand.Source) []complex128 {
	dist := distuv.Normal{Mu: mu, Sigma: sigma, Src: src}
	fft := fourier.NewCmplxFFT(cols)
	out := make([]complex128, rows*cols)
	row := make([]complex128, cols)
	for r := 0; r < rows; r++ {
		for c := range row {
			row[c] = complex(dist.Rand(), 0)
		}
		coeff := fft.Coefficients(nil, row)
		half := cols / 2
		for c := 1; c < cols; c++ {
			switch {
			case cols%2 == 0 && c == half:
				// Nyquist bin kept as is.
			case c < half || (cols%2 == 1 && c <= half):
				coeff[c] *= 2
			default:
				coeff[c] = 0
			}
		}
		seq := fft.Sequence(nil, coeff)
		scale := complex(1/float64(cols), 0)
		for c := range seq {
			out[r*cols+c] = seq[c] * scale
		}
	}
	return out
}

// GaussianNoise builds a labeled dataset of numClasses blocks of m
// examples each. Every class draws its own random mean and deviation, so
// classes are separable by their statistics. The data is normalized.
func GaussianNoise(m, n, numClasses int, noiseType NoiseType, src rand.Source, logger *logging.Logger) (*Dataset, error) {
	if m <= 0 || n <= 0 || numClasses <= 0 {
		return nil, errors.Errorf("invalid noise dataset dimensions m=%d n=%d classes=%d", m, n, numClasses)
	}
	if logger == nil {
		logger = logging.Default()
	}
	rng := rand.New(src)
	x := make([]complex128, numClasses*m*n)
	labels := make([]int, numClasses*m)
	for k := 0; k < numClasses; k++ {
		mu := float64(int(100 * rng.Float64()))
		sigma := 15 * rng.Float64()
		logger.Infof("class %d: mu = %g; sigma = %g", k, mu, sigma)

		var block []complex128
		switch noiseType {
		case NoiseNonCorrelated:
			block = nonCorrelatedNoise(m, n, mu, sigma, src)
		case NoiseHilbert:
			block = hilbertNoise(m, n, mu, sigma, src)
		default:
			return nil, errors.Errorf("unknown noise type %q", noiseType)
		}
		copy(x[k*m*n:(k+1)*m*n], block)
		for i := 0; i < m; i++ {
			labels[k*m+i] = k
		}
	}
	xt, err := tensor.New([]int{numClasses * m, n}, tensor.Complex128, x)
	if err != nil {
		return nil, err
	}
	yt, err := SparseIntoCategorical(labels, numClasses)
	if err != nil {
		return nil, err
	}
	ds, err := New(xt, yt)
	if err != nil {
		return nil, err
	}
	if err := ds.Normalize(); err != nil {
		return nil, err
	}
	return ds, nil
}

// ConstantClasses builds a dataset where every example of class k is the
// constant vect[k] + i*vect[k]. Useful as a trivially separable sanity
// dataset. The data is normalized.
func ConstantClasses(m, n int, vect []float64) (*Dataset, error) {
	numClasses := len(vect)
	if numClasses == 0 {
		return nil, errors.New("constant classes require at least one class value")
	}
	if m <= 0 || n <= 0 {
		return nil, errors.Errorf("invalid constant dataset dimensions m=%d n=%d", m, n)
	}
	x := make([]complex128, numClasses*m*n)
	labels := make([]int, numClasses*m)
	for k, c := range vect {
		v := complex(c, c)
		for i := k * m * n; i < (k+1)*m*n; i++ {
			x[i] = v
		}
		for i := 0; i < m; i++ {
			labels[k*m+i] = k
		}
	}
	xt, err := tensor.New([]int{numClasses * m, n}, tensor.Complex128, x)
	if err != nil {
		return nil, err
	}
	yt, err := SparseIntoCategorical(labels, numClasses)
	if err != nil {
		return nil, err
	}
	ds, err := New(xt, yt)
	if err != nil {
		return nil, err
	}
	if err := ds.Normalize(); err != nil {
		return nil, err
	}
	return ds, nil
}

// GetGaussianNoise generates, shuffles and splits a Gaussian noise dataset
// with the conventional 80/20 ratio.
func GetGaussianNoise(m, n, numClasses int, noiseType NoiseType, src rand.Source, logger *logging.Logger) (train, test *Dataset, err error) {
	ds, err := GaussianNoise(m, n, numClasses, noiseType, src, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := ds.Shuffle(src); err != nil {
		return nil, nil, err
	}
	return ds.Split(0.8)
}
