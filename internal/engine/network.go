package engine

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Network is a fully-connected feed-forward network with ReLU hidden layers
// and a sigmoid output layer, the architecture both GAIN networks share.
// Activations are row-major: one input row per sample, weights are
// (in x out), so a layer computes A*W + b.
type Network struct {
	sizes   []int
	weights []*mat.Dense
	biases  []*mat.Dense
}

// forwardCache keeps the intermediate values of one forward pass that the
// backward pass needs.
type forwardCache struct {
	inputs  []*mat.Dense // input to each layer
	outputs []*mat.Dense // post-activation output of each layer
}

// NewNetwork creates a network with the given layer sizes, e.g.
// [2d, d, d, d]. Weights use Xavier initialization drawn from rng so runs
// are reproducible under a fixed seed.
func NewNetwork(sizes []int, rng *rand.Rand) *Network {
	n := &Network{
		sizes:   sizes,
		weights: make([]*mat.Dense, len(sizes)-1),
		biases:  make([]*mat.Dense, len(sizes)-1),
	}

	for i := 0; i < len(sizes)-1; i++ {
		in, out := sizes[i], sizes[i+1]

		// Xavier initialization
		weight := mat.NewDense(in, out, nil)
		scale := math.Sqrt(2.0 / float64(in))
		for r := 0; r < in; r++ {
			for c := 0; c < out; c++ {
				weight.Set(r, c, rng.NormFloat64()*scale)
			}
		}
		n.weights[i] = weight
		n.biases[i] = mat.NewDense(1, out, nil)
	}

	return n
}

// Forward runs one forward pass and returns the output together with the
// cache required for a later backward pass.
func (n *Network) Forward(input *mat.Dense) (*mat.Dense, *forwardCache) {
	numLayers := len(n.weights)
	cache := &forwardCache{
		inputs:  make([]*mat.Dense, numLayers),
		outputs: make([]*mat.Dense, numLayers),
	}

	activation := input
	for i := 0; i < numLayers; i++ {
		cache.inputs[i] = activation

		linear := &mat.Dense{}
		linear.Mul(activation, n.weights[i])
		addBiasRow(linear, n.biases[i])

		if i < numLayers-1 {
			activation = relu(linear)
		} else {
			activation = sigmoid(linear)
		}
		cache.outputs[i] = activation
	}

	return activation, cache
}

// Backward backpropagates dOutput (the loss gradient with respect to the
// network's post-sigmoid output) and returns per-layer weight gradients, bias
// gradients, and the gradient with respect to the network input. Gradients
// are computed as if every matrix were dense; connectivity masking is the
// caller's concern.
func (n *Network) Backward(cache *forwardCache, dOutput *mat.Dense) ([]*mat.Dense, []*mat.Dense, *mat.Dense) {
	// Chain through the output sigmoid, then share the layer loop.
	out := cache.outputs[len(n.weights)-1]
	rows, cols := out.Dims()
	dPre := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			y := out.At(r, c)
			dPre.Set(r, c, dOutput.At(r, c)*y*(1-y))
		}
	}
	return n.backwardPre(cache, dPre)
}

// BackwardPre is Backward with the gradient already taken with respect to the
// final pre-activation. Losses that fold the sigmoid into their derivative
// (cross-entropy) use this entry point for numerical stability.
func (n *Network) BackwardPre(cache *forwardCache, dPreFinal *mat.Dense) ([]*mat.Dense, []*mat.Dense, *mat.Dense) {
	return n.backwardPre(cache, dPreFinal)
}

func (n *Network) backwardPre(cache *forwardCache, dPre *mat.Dense) ([]*mat.Dense, []*mat.Dense, *mat.Dense) {
	numLayers := len(n.weights)
	wGrads := make([]*mat.Dense, numLayers)
	bGrads := make([]*mat.Dense, numLayers)

	for i := numLayers - 1; i >= 0; i-- {
		// dW = inputs^T * dPre, db = column sums of dPre.
		wGrad := &mat.Dense{}
		wGrad.Mul(cache.inputs[i].T(), dPre)
		wGrads[i] = wGrad
		bGrads[i] = columnSums(dPre)

		// dInput = dPre * W^T
		dInput := &mat.Dense{}
		dInput.Mul(dPre, n.weights[i].T())

		if i == 0 {
			return wGrads, bGrads, dInput
		}

		// Chain through the previous layer's ReLU.
		prevOut := cache.outputs[i-1]
		rows, cols := prevOut.Dims()
		next := mat.NewDense(rows, cols, nil)
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				if prevOut.At(r, c) > 0 {
					next.Set(r, c, dInput.At(r, c))
				}
			}
		}
		dPre = next
	}

	return wGrads, bGrads, nil
}

// Weights returns the network's weight matrices. The sparsity manager holds
// these same references and mutates them in place.
func (n *Network) Weights() []*mat.Dense {
	return n.weights
}

// Biases returns the network's bias vectors.
func (n *Network) Biases() []*mat.Dense {
	return n.biases
}

// relu applies ReLU activation element-wise
func relu(input *mat.Dense) *mat.Dense {
	rows, cols := input.Dims()
	output := mat.NewDense(rows, cols, nil)

	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			val := input.At(i, j)
			if val > 0 {
				output.Set(i, j, val)
			}
		}
	}

	return output
}

// sigmoid applies the logistic function element-wise
func sigmoid(input *mat.Dense) *mat.Dense {
	rows, cols := input.Dims()
	output := mat.NewDense(rows, cols, nil)

	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			output.Set(i, j, 1.0/(1.0+math.Exp(-input.At(i, j))))
		}
	}

	return output
}

// addBiasRow adds a 1xN bias row to every row of the matrix in place.
func addBiasRow(m *mat.Dense, bias *mat.Dense) {
	rows, cols := m.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			m.Set(i, j, m.At(i, j)+bias.At(0, j))
		}
	}
}

// columnSums collapses a matrix to a single row of per-column sums.
func columnSums(m *mat.Dense) *mat.Dense {
	rows, cols := m.Dims()
	sums := mat.NewDense(1, cols, nil)
	for j := 0; j < cols; j++ {
		var s float64
		for i := 0; i < rows; i++ {
			s += m.At(i, j)
		}
		sums.Set(0, j, s)
	}
	return sums
}

// concatColumns joins two matrices with the same row count side by side.
func concatColumns(a, b *mat.Dense) *mat.Dense {
	rows, aCols := a.Dims()
	_, bCols := b.Dims()
	out := mat.NewDense(rows, aCols+bCols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < aCols; j++ {
			out.Set(i, j, a.At(i, j))
		}
		for j := 0; j < bCols; j++ {
			out.Set(i, aCols+j, b.At(i, j))
		}
	}
	return out
}
