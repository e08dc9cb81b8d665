package engine

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Generator maps a corrupted input matrix and its observation mask to an
// imputed estimate of the same shape. It takes the concatenation of the
// corrupted data and the mask, so its input width is twice the feature
// dimension.
type Generator struct {
	dim int
	net *Network
}

// NewGenerator creates a generator for data with dim features. Both hidden
// layers keep the feature width, matching the stock GAIN architecture.
func NewGenerator(dim int, rng *rand.Rand) *Generator {
	return &Generator{
		dim: dim,
		net: NewNetwork([]int{2 * dim, dim, dim, dim}, rng),
	}
}

// Forward produces the imputed estimate for the corrupted input xTilde and
// observation mask m. The sigmoid output lives in (0,1), the range of the
// normalized data.
func (g *Generator) Forward(xTilde, m *mat.Dense) (*mat.Dense, *forwardCache) {
	return g.net.Forward(concatColumns(xTilde, m))
}

// Impute combines the generator's estimate with the observed data: observed
// positions keep their true value, missing positions take the estimate.
func (g *Generator) Impute(xTilde, m, estimate *mat.Dense) *mat.Dense {
	rows, cols := xTilde.Dims()
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if m.At(i, j) == 1 {
				out.Set(i, j, xTilde.At(i, j))
			} else {
				out.Set(i, j, estimate.At(i, j))
			}
		}
	}
	return out
}

// Network exposes the underlying feed-forward network for the mask manager
// and optimizer.
func (g *Generator) Network() *Network {
	return g.net
}
