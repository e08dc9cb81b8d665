package engine

import (
	"fmt"
	"math/rand"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/sparselab/sgain/internal/sparsity"
	"github.com/sparselab/sgain/pkg/models"
)

// Snapshot captures the trained networks' weights, biases and connectivity
// masks for persistence and later reuse.
func (t *Trainer) Snapshot() *models.ModelSnapshot {
	snap := &models.ModelSnapshot{
		Dim:       t.dim,
		HiddenDim: t.dim,
		Config:    *t.cfg,
	}
	snap.Generator = snapshotLayers(t.generator.Network(), t.gMask)
	snap.Discriminator = snapshotLayers(t.discriminator.Network(), t.dMask)
	return snap
}

func snapshotLayers(net *Network, mgr interface {
	Mask(int) interface{ At(int, int) float64 }
}) []models.LayerSnapshot {
	weights := net.Weights()
	biases := net.Biases()
	out := make([]models.LayerSnapshot, len(weights))
	for i, w := range weights {
		rows, cols := w.Dims()
		layer := models.LayerSnapshot{
			Rows:    rows,
			Cols:    cols,
			Weights: flatten(w),
			Bias:    flatten(biases[i]),
		}
		if mask := mgr.Mask(i); mask != nil {
			flat := make([]float64, rows*cols)
			for r := 0; r < rows; r++ {
				for c := 0; c < cols; c++ {
					flat[r*cols+c] = mask.At(r, c)
				}
			}
			layer.Mask = flat
		}
		out[i] = layer
	}
	return out
}

// RestoreGenerator rebuilds a generator and its mask manager from a stored
// snapshot, so a trained model can impute new data or resume masked
// training.
func RestoreGenerator(snap *models.ModelSnapshot, logger *logrus.Logger) (*Generator, *sparsity.Manager, error) {
	rng := rand.New(rand.NewSource(snap.Config.Seed))
	g := NewGenerator(snap.Dim, rng)
	mgr := sparsity.NewManager(snap.Config.Generator, logger, rng)
	for i, w := range g.Network().Weights() {
		mgr.Register(fmt.Sprintf("G_W%d", i+1), w)
	}

	restoreLayers(g.Network(), snap.Generator)

	masks := make([]*mat.Dense, len(snap.Generator))
	for i, layer := range snap.Generator {
		if layer.Mask == nil {
			continue
		}
		masks[i] = mat.NewDense(layer.Rows, layer.Cols, append([]float64(nil), layer.Mask...))
	}
	if err := mgr.Adopt(masks); err != nil {
		return nil, nil, err
	}
	return g, mgr, nil
}

func restoreLayers(net *Network, layers []models.LayerSnapshot) {
	for i, layer := range layers {
		w := net.Weights()[i]
		for r := 0; r < layer.Rows; r++ {
			for c := 0; c < layer.Cols; c++ {
				w.Set(r, c, layer.Weights[r*layer.Cols+c])
			}
		}
		b := net.Biases()[i]
		for c := range layer.Bias {
			b.Set(0, c, layer.Bias[c])
		}
	}
}

func flatten(m *mat.Dense) []float64 {
	rows, cols := m.Dims()
	out := make([]float64, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			out[r*cols+c] = m.At(r, c)
		}
	}
	return out
}
