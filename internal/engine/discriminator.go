package engine

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Discriminator maps an imputed matrix and a hint matrix to per-feature
// probabilities that each entry was originally observed. It is only used
// during training; the finalizer never invokes it.
type Discriminator struct {
	dim int
	net *Network
}

// NewDiscriminator creates a discriminator for data with dim features.
func NewDiscriminator(dim int, rng *rand.Rand) *Discriminator {
	return &Discriminator{
		dim: dim,
		net: NewNetwork([]int{2 * dim, dim, dim, dim}, rng),
	}
}

// Forward returns the per-entry observation probabilities for the imputed
// data xHat under hint h.
func (d *Discriminator) Forward(xHat, h *mat.Dense) (*mat.Dense, *forwardCache) {
	return d.net.Forward(concatColumns(xHat, h))
}

// Network exposes the underlying feed-forward network for the mask manager
// and optimizer.
func (d *Discriminator) Network() *Network {
	return d.net
}
