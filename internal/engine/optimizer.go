package engine

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/sparselab/sgain/internal/sparsity"
)

// AdamOptimizer implements the Adam optimization algorithm with per-matrix
// moment state for one network's weights and biases.
type AdamOptimizer struct {
	learningRate float64
	beta1        float64
	beta2        float64
	epsilon      float64
	t            int          // time step
	mW, vW       []*mat.Dense // weight moment estimates
	mB, vB       []*mat.Dense // bias moment estimates
}

// NewAdamOptimizer creates a new Adam optimizer
func NewAdamOptimizer(learningRate float64) *AdamOptimizer {
	return &AdamOptimizer{
		learningRate: learningRate,
		beta1:        0.9,
		beta2:        0.999,
		epsilon:      1e-8,
	}
}

// Step applies one Adam update to the weights and biases from the given
// gradients. Gradients arriving here are already connectivity-masked, so
// inactive weight entries receive a zero update; the sparsity manager
// re-applies the mask afterwards to keep them exactly zero.
func (opt *AdamOptimizer) Step(weights, biases, wGrads, bGrads []*mat.Dense) {
	opt.t++

	if len(opt.mW) != len(weights) {
		opt.initializeMoments(weights, biases)
	}

	beta1Correction := 1 - math.Pow(opt.beta1, float64(opt.t))
	beta2Correction := 1 - math.Pow(opt.beta2, float64(opt.t))

	for i := range weights {
		opt.update(weights[i], wGrads[i], opt.mW[i], opt.vW[i], beta1Correction, beta2Correction)
		opt.update(biases[i], bGrads[i], opt.mB[i], opt.vB[i], beta1Correction, beta2Correction)
	}
}

func (opt *AdamOptimizer) update(param, grad, m, v *mat.Dense, c1, c2 float64) {
	rows, cols := param.Dims()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			g := grad.At(r, c)

			mNew := opt.beta1*m.At(r, c) + (1-opt.beta1)*g
			m.Set(r, c, mNew)

			vNew := opt.beta2*v.At(r, c) + (1-opt.beta2)*g*g
			v.Set(r, c, vNew)

			mHat := mNew / c1
			vHat := vNew / c2
			update := opt.learningRate * mHat / (math.Sqrt(vHat) + opt.epsilon)
			param.Set(r, c, param.At(r, c)-update)
		}
	}
}

// ResetMoments clears the moment estimates at regrown weight positions so
// stale momentum does not drive a connection that has not trained yet. With
// full=false the moments are halved instead of zeroed (partial reset).
func (opt *AdamOptimizer) ResetMoments(layer int, coords []sparsity.Coord, full bool) {
	if layer >= len(opt.mW) || len(coords) == 0 {
		return
	}
	for _, coord := range coords {
		if full {
			opt.mW[layer].Set(coord.Row, coord.Col, 0)
			opt.vW[layer].Set(coord.Row, coord.Col, 0)
		} else {
			opt.mW[layer].Set(coord.Row, coord.Col, opt.mW[layer].At(coord.Row, coord.Col)/2)
			opt.vW[layer].Set(coord.Row, coord.Col, opt.vW[layer].At(coord.Row, coord.Col)/2)
		}
	}
}

// initializeMoments initializes the moment estimates
func (opt *AdamOptimizer) initializeMoments(weights, biases []*mat.Dense) {
	opt.mW = make([]*mat.Dense, len(weights))
	opt.vW = make([]*mat.Dense, len(weights))
	opt.mB = make([]*mat.Dense, len(biases))
	opt.vB = make([]*mat.Dense, len(biases))

	for i, weight := range weights {
		rows, cols := weight.Dims()
		opt.mW[i] = mat.NewDense(rows, cols, nil)
		opt.vW[i] = mat.NewDense(rows, cols, nil)
	}
	for i, bias := range biases {
		rows, cols := bias.Dims()
		opt.mB[i] = mat.NewDense(rows, cols, nil)
		opt.vB[i] = mat.NewDense(rows, cols, nil)
	}
}

// GetLearningRate returns the current learning rate
func (opt *AdamOptimizer) GetLearningRate() float64 {
	return opt.learningRate
}

// GetTimeStep returns the current time step
func (opt *AdamOptimizer) GetTimeStep() int {
	return opt.t
}

// Reset resets the optimizer state
func (opt *AdamOptimizer) Reset() {
	opt.t = 0
	opt.mW, opt.vW, opt.mB, opt.vB = nil, nil, nil, nil
}
