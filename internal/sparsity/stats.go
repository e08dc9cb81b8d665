package sparsity

import (
	"github.com/sparselab/sgain/pkg/models"
)

// ActiveCount returns the number of active connections in layer i. Dense
// layers count every entry.
func (m *Manager) ActiveCount(i int) int {
	l := m.layers[i]
	rows, cols := l.weights.Dims()
	if l.mask == nil {
		return rows * cols
	}
	n := 0
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if l.mask.At(r, c) == 1 {
				n++
			}
		}
	}
	return n
}

// NumLayers returns the number of registered weight matrices.
func (m *Manager) NumLayers() int {
	return len(m.layers)
}

// Mask returns layer i's connectivity mask, or nil for a dense layer. The
// returned matrix is the manager's own storage; callers must not mutate it.
func (m *Manager) Mask(i int) interface{ At(int, int) float64 } {
	if m.layers[i].mask == nil {
		return nil
	}
	return m.layers[i].mask
}

// Stats summarizes the network's current connectivity. FLOPsPerRow is the
// multiply-accumulate count of one forward pass over a single input row:
// two operations per active weight.
func (m *Manager) Stats() models.SparsityStats {
	stats := models.SparsityStats{}
	for i, l := range m.layers {
		rows, cols := l.weights.Dims()
		stats.TotalWeights += rows * cols
		stats.ActiveWeights += m.ActiveCount(i)
	}
	if stats.TotalWeights > 0 {
		stats.Sparsity = 1 - float64(stats.ActiveWeights)/float64(stats.TotalWeights)
	}
	stats.FLOPsPerRow = 2 * stats.ActiveWeights
	return stats
}

// LayerSparsity returns the achieved sparsity of layer i.
func (m *Manager) LayerSparsity(i int) float64 {
	l := m.layers[i]
	rows, cols := l.weights.Dims()
	total := rows * cols
	if l.mask == nil || total == 0 {
		return 0
	}
	return 1 - float64(m.ActiveCount(i))/float64(total)
}
