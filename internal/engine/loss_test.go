package engine

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestDiscriminatorLossPerfectAndWorst(t *testing.T) {
	m := mat.NewDense(2, 2, []float64{1, 0, 1, 0})

	perfect := mat.NewDense(2, 2, []float64{0.999999, 0.000001, 0.999999, 0.000001})
	loss, _ := discriminatorLoss(perfect, m)
	assert.Less(t, loss, 0.01)

	wrong := mat.NewDense(2, 2, []float64{0.000001, 0.999999, 0.000001, 0.999999})
	worst, _ := discriminatorLoss(wrong, m)
	assert.Greater(t, worst, 5.0)
}

func TestDiscriminatorLossGradientSign(t *testing.T) {
	m := mat.NewDense(1, 2, []float64{1, 0})
	prob := mat.NewDense(1, 2, []float64{0.3, 0.7})

	_, dPre := discriminatorLoss(prob, m)

	// (p - target)/n: under-confident on observed pushes the pre-activation
	// up, over-confident on missing pushes it down.
	assert.InDelta(t, (0.3-1.0)/2, dPre.At(0, 0), 1e-12)
	assert.InDelta(t, (0.7-0.0)/2, dPre.At(0, 1), 1e-12)
}

func TestAdversarialLossOnlyPenalizesMissing(t *testing.T) {
	m := mat.NewDense(1, 3, []float64{1, 0, 1})
	prob := mat.NewDense(1, 3, []float64{0.01, 0.5, 0.01})

	loss, dProb := adversarialLoss(prob, m)

	assert.InDelta(t, -math.Log(0.5+epsLog)/3, loss, 1e-9)
	assert.Zero(t, dProb.At(0, 0), "observed entries carry no adversarial gradient")
	assert.Zero(t, dProb.At(0, 2))
	assert.Negative(t, dProb.At(0, 1), "fooling harder always helps the generator")
}

func TestReconstructionLossObservedOnly(t *testing.T) {
	m := mat.NewDense(1, 3, []float64{1, 1, 0})
	xTilde := mat.NewDense(1, 3, []float64{0.5, 0.2, 0.9})
	estimate := mat.NewDense(1, 3, []float64{0.7, 0.2, 0.1})

	loss, dEst := reconstructionLoss(estimate, xTilde, m)

	// Only the first entry differs among observed ones: (0.2)^2 / 2 observed.
	assert.InDelta(t, 0.04/2, loss, 1e-12)
	assert.InDelta(t, 2*0.2/2, dEst.At(0, 0), 1e-12)
	assert.Zero(t, dEst.At(0, 1))
	assert.Zero(t, dEst.At(0, 2), "missing entries never contribute to reconstruction")
}

func TestReconstructionLossNoObserved(t *testing.T) {
	m := mat.NewDense(1, 2, nil)
	x := mat.NewDense(1, 2, []float64{0.1, 0.2})

	loss, dEst := reconstructionLoss(x, x, m)
	assert.Zero(t, loss)
	assert.Zero(t, dEst.At(0, 0))
}

func TestScaleAdd(t *testing.T) {
	a := mat.NewDense(1, 2, []float64{1, 2})
	b := mat.NewDense(1, 2, []float64{3, 4})

	out := scaleAdd(a, b, 10)
	assert.Equal(t, 31.0, out.At(0, 0))
	assert.Equal(t, 42.0, out.At(0, 1))
}

func TestHasNaN(t *testing.T) {
	assert.False(t, hasNaN(0, 1.5, -2))
	assert.True(t, hasNaN(1, math.NaN()))
	assert.True(t, hasNaN(math.Inf(1)))
	assert.True(t, hasNaN(math.Inf(-1)))
}

func TestHintMatrixValues(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	m := binaryMatrix(rng, 50, 10, 0.8)

	h := hintMatrix(rng, m, 0.9)
	revealed, withheld := 0, 0
	for i := 0; i < 50; i++ {
		for j := 0; j < 10; j++ {
			switch h.At(i, j) {
			case hintUnknown:
				withheld++
			case m.At(i, j):
				revealed++
			default:
				t.Fatalf("hint at (%d,%d) is neither the mask value nor %v", i, j, hintUnknown)
			}
		}
	}
	assert.Greater(t, revealed, 0)
	assert.Greater(t, withheld, 0)
	assert.InDelta(t, 0.9, float64(revealed)/500.0, 0.06)
}

func TestCorruptInputKeepsObservedReplacesMissing(t *testing.T) {
	x := mat.NewDense(1, 2, []float64{0.4, 0.6})
	m := mat.NewDense(1, 2, []float64{1, 0})
	z := mat.NewDense(1, 2, []float64{0.001, 0.009})

	out := corruptInput(x, m, z)
	assert.Equal(t, 0.4, out.At(0, 0))
	assert.Equal(t, 0.009, out.At(0, 1))
}

func TestNoiseMatrixRange(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	z := noiseMatrix(rng, 20, 5)
	for i := 0; i < 20; i++ {
		for j := 0; j < 5; j++ {
			v := z.At(i, j)
			assert.GreaterOrEqual(t, v, noiseLow)
			assert.Less(t, v, noiseHigh)
		}
	}
}

func TestSampleBatchIndexDistinct(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	idx := sampleBatchIndex(rng, 100, 32)
	assert.Len(t, idx, 32)
	seen := make(map[int]bool)
	for _, i := range idx {
		assert.False(t, seen[i], "batch indices must be distinct")
		assert.GreaterOrEqual(t, i, 0)
		assert.Less(t, i, 100)
		seen[i] = true
	}
}
