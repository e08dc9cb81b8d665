package data

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestNormalizerRoundTrip(t *testing.T) {
	x := mat.NewDense(3, 2, []float64{
		10, -5,
		20, 0,
		30, 5,
	})

	n := FitNormalizer(x)
	normed := n.Transform(x)

	rows, cols := normed.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := normed.At(i, j)
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	}

	back := n.Inverse(normed)
	assert.True(t, mat.EqualApprox(x, back, 1e-9))
}

func TestNormalizerIgnoresNaNWhenFitting(t *testing.T) {
	x := mat.NewDense(3, 1, []float64{1, math.NaN(), 3})

	n := FitNormalizer(x)
	assert.Equal(t, 1.0, n.Min[0])
	assert.Equal(t, 2.0, n.Max[0])
}

func TestNormalizerTransformMapsNaNToZero(t *testing.T) {
	x := mat.NewDense(2, 1, []float64{5, math.NaN()})

	n := FitNormalizer(x)
	normed := n.Transform(x)
	assert.Zero(t, normed.At(1, 0))
}

func TestNormalizerConstantColumn(t *testing.T) {
	x := mat.NewDense(3, 1, []float64{7, 7, 7})

	n := FitNormalizer(x)
	normed := n.Transform(x)

	// Zero span: the guard keeps the division finite and the inverse exact.
	for i := 0; i < 3; i++ {
		assert.False(t, math.IsNaN(normed.At(i, 0)))
		assert.False(t, math.IsInf(normed.At(i, 0), 0))
	}
	back := n.Inverse(normed)
	assert.True(t, mat.EqualApprox(x, back, 1e-9))
}

func TestNormalizerFullyMissingColumn(t *testing.T) {
	x := mat.NewDense(2, 1, []float64{math.NaN(), math.NaN()})

	n := FitNormalizer(x)
	assert.Zero(t, n.Min[0])
	assert.Zero(t, n.Max[0])

	normed := n.Transform(x)
	assert.Zero(t, normed.At(0, 0))
}

func TestRoundCategorical(t *testing.T) {
	// Column 0 has 3 distinct observed values (categorical), column 1 has 25
	// (continuous).
	rows := 25
	miss := mat.NewDense(rows, 2, nil)
	imputed := mat.NewDense(rows, 2, nil)
	for i := 0; i < rows; i++ {
		miss.Set(i, 0, float64(i%3))
		miss.Set(i, 1, float64(i)*1.1)
		imputed.Set(i, 0, float64(i%3)+0.4)
		imputed.Set(i, 1, float64(i)*1.1+0.4)
	}

	out := RoundCategorical(imputed, miss)
	for i := 0; i < rows; i++ {
		assert.Equal(t, float64(i%3), out.At(i, 0), "categorical column rounds")
		assert.Equal(t, float64(i)*1.1+0.4, out.At(i, 1), "continuous column untouched")
	}
}

func TestRoundCategoricalIgnoresNaNWhenCounting(t *testing.T) {
	miss := mat.NewDense(3, 1, []float64{0, math.NaN(), 1})
	imputed := mat.NewDense(3, 1, []float64{0.1, 0.8, 0.9})

	out := RoundCategorical(imputed, miss)
	require.Equal(t, 0.0, out.At(0, 0))
	assert.Equal(t, 1.0, out.At(1, 0))
	assert.Equal(t, 1.0, out.At(2, 0))
}
