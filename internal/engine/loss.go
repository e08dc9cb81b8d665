package engine

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// epsLog guards the logarithms in the cross-entropy terms.
const epsLog = 1e-8

// discriminatorLoss computes the masked binary cross-entropy between the
// discriminator's probabilities and the true observation mask, over all
// entries rather than only hinted ones. It returns the loss and its gradient
// with respect to the discriminator's final pre-activation, where the sigmoid
// folds into the numerically stable form (prob - m)/n.
func discriminatorLoss(prob, m *mat.Dense) (float64, *mat.Dense) {
	rows, cols := prob.Dims()
	n := float64(rows * cols)

	var loss float64
	dPre := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			p := prob.At(i, j)
			target := m.At(i, j)
			loss -= target*math.Log(p+epsLog) + (1-target)*math.Log(1-p+epsLog)
			dPre.Set(i, j, (p-target)/n)
		}
	}
	return loss / n, dPre
}

// adversarialLoss rewards the generator for imputed (unobserved) entries the
// discriminator classifies as observed: -mean((1-M) log D). It returns the
// loss and its gradient with respect to the discriminator's output
// probabilities, to be backpropagated through the frozen discriminator.
func adversarialLoss(prob, m *mat.Dense) (float64, *mat.Dense) {
	rows, cols := prob.Dims()
	n := float64(rows * cols)

	var loss float64
	dProb := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if m.At(i, j) == 1 {
				continue
			}
			p := prob.At(i, j)
			loss -= math.Log(p + epsLog)
			dProb.Set(i, j, -1/((p+epsLog)*n))
		}
	}
	return loss / n, dProb
}

// reconstructionLoss is the mean squared error between the generator's
// estimate and the corrupted input restricted to observed positions,
// normalized by the observed count. The generator's output at observed
// positions is never surfaced, but keeping it pinned to the truth keeps the
// network calibrated. Returns the loss and its gradient with respect to the
// estimate.
func reconstructionLoss(estimate, xTilde, m *mat.Dense) (float64, *mat.Dense) {
	rows, cols := estimate.Dims()

	var observed float64
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			observed += m.At(i, j)
		}
	}

	dEst := mat.NewDense(rows, cols, nil)
	if observed == 0 {
		return 0, dEst
	}

	var loss float64
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if m.At(i, j) == 0 {
				continue
			}
			diff := estimate.At(i, j) - xTilde.At(i, j)
			loss += diff * diff
			dEst.Set(i, j, 2*diff/observed)
		}
	}
	return loss / observed, dEst
}

// scaleAdd returns a + alpha*b element-wise. The alpha weighting is applied
// here, before backpropagation, so the combined gradient flows through the
// generator in one pass.
func scaleAdd(a, b *mat.Dense, alpha float64) *mat.Dense {
	rows, cols := a.Dims()
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out.Set(i, j, a.At(i, j)+alpha*b.At(i, j))
		}
	}
	return out
}

// hasNaN reports whether any of the given scalars is NaN or Inf.
func hasNaN(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return false
}
