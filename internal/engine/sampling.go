package engine

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// noiseLow and noiseHigh bound the uniform noise injected at missing
// positions before the generator sees the data.
const (
	noiseLow  = 0.0
	noiseHigh = 0.01
)

// hintUnknown is the sentinel the hint matrix carries at positions where the
// true mask is withheld from the discriminator.
const hintUnknown = 0.5

// uniformMatrix samples a rows x cols matrix from U(low, high).
func uniformMatrix(rng *rand.Rand, rows, cols int, low, high float64) *mat.Dense {
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out.Set(i, j, low+rng.Float64()*(high-low))
		}
	}
	return out
}

// noiseMatrix samples the generator's input noise Z.
func noiseMatrix(rng *rand.Rand, rows, cols int) *mat.Dense {
	return uniformMatrix(rng, rows, cols, noiseLow, noiseHigh)
}

// binaryMatrix samples a rows x cols matrix of independent Bernoulli(p)
// indicators.
func binaryMatrix(rng *rand.Rand, rows, cols int, p float64) *mat.Dense {
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if rng.Float64() < p {
				out.Set(i, j, 1)
			}
		}
	}
	return out
}

// hintMatrix reveals a hintRate fraction of the true mask and replaces the
// rest with the unknown sentinel: H = B.M + 0.5(1-B). It must be drawn fresh
// every iteration; reusing a hint (or revealing the full mask) degenerates
// the adversarial game.
func hintMatrix(rng *rand.Rand, m *mat.Dense, hintRate float64) *mat.Dense {
	rows, cols := m.Dims()
	b := binaryMatrix(rng, rows, cols, hintRate)
	h := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if b.At(i, j) == 1 {
				h.Set(i, j, m.At(i, j))
			} else {
				h.Set(i, j, hintUnknown)
			}
		}
	}
	return h
}

// corruptInput builds the generator input X~ = M.X + (1-M).Z.
func corruptInput(x, m, z *mat.Dense) *mat.Dense {
	rows, cols := x.Dims()
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if m.At(i, j) == 1 {
				out.Set(i, j, x.At(i, j))
			} else {
				out.Set(i, j, z.At(i, j))
			}
		}
	}
	return out
}

// sampleBatchIndex draws batchSize distinct row indices.
func sampleBatchIndex(rng *rand.Rand, total, batchSize int) []int {
	return rng.Perm(total)[:batchSize]
}

// selectRows copies the given rows of a matrix into a new batch matrix.
func selectRows(m *mat.Dense, idx []int) *mat.Dense {
	_, cols := m.Dims()
	out := mat.NewDense(len(idx), cols, nil)
	for i, r := range idx {
		for j := 0; j < cols; j++ {
			out.Set(i, j, m.At(r, j))
		}
	}
	return out
}
