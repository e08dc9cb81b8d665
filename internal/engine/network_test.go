package engine

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestNetworkForwardShapesAndRange(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	net := NewNetwork([]int{8, 4, 4, 4}, rng)

	input := uniformMatrix(rng, 5, 8, 0, 1)
	out, cache := net.Forward(input)

	rows, cols := out.Dims()
	assert.Equal(t, 5, rows)
	assert.Equal(t, 4, cols)
	require.Len(t, cache.inputs, 3)
	require.Len(t, cache.outputs, 3)

	// Final activation is a sigmoid, so every output is a probability.
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			v := out.At(r, c)
			assert.Greater(t, v, 0.0)
			assert.Less(t, v, 1.0)
		}
	}
}

func TestNetworkDeterministicUnderSeed(t *testing.T) {
	a := NewNetwork([]int{6, 3, 3, 3}, rand.New(rand.NewSource(99)))
	b := NewNetwork([]int{6, 3, 3, 3}, rand.New(rand.NewSource(99)))

	for i := range a.Weights() {
		assert.True(t, mat.Equal(a.Weights()[i], b.Weights()[i]))
	}
}

// sumOutput is the scalar probe loss used by the gradient checks: L = sum of
// all network outputs, whose gradient with respect to the output is all ones.
func sumOutput(net *Network, input *mat.Dense) float64 {
	out, _ := net.Forward(input)
	var s float64
	rows, cols := out.Dims()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			s += out.At(r, c)
		}
	}
	return s
}

func TestBackwardMatchesFiniteDifferences(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	net := NewNetwork([]int{4, 3, 3, 2}, rng)
	input := uniformMatrix(rng, 6, 4, 0, 1)

	out, cache := net.Forward(input)
	rows, cols := out.Dims()
	dOutput := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			dOutput.Set(r, c, 1)
		}
	}
	wGrads, bGrads, dInput := net.Backward(cache, dOutput)
	require.Len(t, wGrads, 3)
	require.Len(t, bGrads, 3)
	require.NotNil(t, dInput)

	const h = 1e-5

	for layer, w := range net.Weights() {
		wr, wc := w.Dims()
		// Probe a handful of entries per layer.
		for probe := 0; probe < 4; probe++ {
			r, c := rng.Intn(wr), rng.Intn(wc)
			orig := w.At(r, c)

			w.Set(r, c, orig+h)
			plus := sumOutput(net, input)
			w.Set(r, c, orig-h)
			minus := sumOutput(net, input)
			w.Set(r, c, orig)

			numeric := (plus - minus) / (2 * h)
			assert.InDelta(t, numeric, wGrads[layer].At(r, c), 1e-4,
				"layer %d weight (%d,%d)", layer, r, c)
		}
	}

	for layer, b := range net.Biases() {
		_, bc := b.Dims()
		c := rng.Intn(bc)
		orig := b.At(0, c)

		b.Set(0, c, orig+h)
		plus := sumOutput(net, input)
		b.Set(0, c, orig-h)
		minus := sumOutput(net, input)
		b.Set(0, c, orig)

		numeric := (plus - minus) / (2 * h)
		assert.InDelta(t, numeric, bGrads[layer].At(0, c), 1e-4,
			"layer %d bias %d", layer, c)
	}
}

func TestBackwardInputGradientMatchesFiniteDifferences(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	net := NewNetwork([]int{4, 3, 3, 2}, rng)
	input := uniformMatrix(rng, 3, 4, 0, 1)

	out, cache := net.Forward(input)
	rows, cols := out.Dims()
	dOutput := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			dOutput.Set(r, c, 1)
		}
	}
	_, _, dInput := net.Backward(cache, dOutput)

	const h = 1e-5
	ir, ic := input.Dims()
	for probe := 0; probe < 6; probe++ {
		r, c := rng.Intn(ir), rng.Intn(ic)
		orig := input.At(r, c)

		input.Set(r, c, orig+h)
		plus := sumOutput(net, input)
		input.Set(r, c, orig-h)
		minus := sumOutput(net, input)
		input.Set(r, c, orig)

		numeric := (plus - minus) / (2 * h)
		assert.InDelta(t, numeric, dInput.At(r, c), 1e-4, "input (%d,%d)", r, c)
	}
}

func TestConcatColumns(t *testing.T) {
	a := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	b := mat.NewDense(2, 1, []float64{5, 6})

	out := concatColumns(a, b)
	rows, cols := out.Dims()
	assert.Equal(t, 2, rows)
	assert.Equal(t, 3, cols)
	assert.Equal(t, 2.0, out.At(0, 1))
	assert.Equal(t, 5.0, out.At(0, 2))
	assert.Equal(t, 6.0, out.At(1, 2))
}

func TestSigmoidAndRelu(t *testing.T) {
	in := mat.NewDense(1, 3, []float64{-2, 0, 2})

	s := sigmoid(in)
	assert.InDelta(t, 0.5, s.At(0, 1), 1e-12)
	assert.InDelta(t, 1.0, s.At(0, 0)+s.At(0, 2), 1e-12, "sigmoid is symmetric around 0")

	r := relu(in)
	assert.Equal(t, 0.0, r.At(0, 0))
	assert.Equal(t, 0.0, r.At(0, 1))
	assert.Equal(t, 2.0, r.At(0, 2))
}

func TestColumnSums(t *testing.T) {
	m := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
	s := columnSums(m)
	assert.Equal(t, []float64{5, 7, 9}, []float64{s.At(0, 0), s.At(0, 1), s.At(0, 2)})
}
