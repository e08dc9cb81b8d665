package sparsity

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/sparselab/sgain/pkg/models"
)

// Default random-walk tuning for the ERRW topology. Exposed through
// NetworkConfig so experiments can override them.
const (
	DefaultWalkLength  = 8
	DefaultRestartProb = 0.1
)

// buildMask constructs the initial connectivity mask for one weight matrix
// under the configured topology. The returned matrix holds exactly 0 or 1 in
// every cell. A nil mask means the layer is dense.
func buildMask(topology models.Topology, rows, cols, active int, walkLength int, restartProb float64, rng *rand.Rand) *mat.Dense {
	switch topology {
	case models.TopologyDense:
		return nil
	case models.TopologyRandom, models.TopologyErdosRenyi:
		return randomMask(rows, cols, active, rng)
	case models.TopologyERRW:
		return walkMask(rows, cols, active, walkLength, restartProb, rng)
	}
	return nil
}

// randomMask activates exactly `active` uniformly chosen positions. Sampling
// an exact count (rather than Bernoulli per cell) keeps the active-connection
// invariant checkable across the whole run.
func randomMask(rows, cols, active int, rng *rand.Rand) *mat.Dense {
	n := rows * cols
	if active > n {
		active = n
	}
	perm := rng.Perm(n)
	mask := mat.NewDense(rows, cols, nil)
	for _, p := range perm[:active] {
		mask.Set(p/cols, p%cols, 1)
	}
	ensureFanIn(mask, rng)
	return mask
}

// walkMask is the Erdos-Renyi-Random-Walk refinement: connections are placed
// by short random walks over the bipartite connectivity graph, which biases
// the topology toward locally-clustered connection patterns. Each walk moves
// between cells sharing a row or a column; with restartProb it teleports to a
// uniform random cell instead.
func walkMask(rows, cols, active int, walkLength int, restartProb float64, rng *rand.Rand) *mat.Dense {
	n := rows * cols
	if active > n {
		active = n
	}
	if walkLength <= 0 {
		walkLength = DefaultWalkLength
	}
	if restartProb <= 0 || restartProb > 1 {
		restartProb = DefaultRestartProb
	}

	mask := mat.NewDense(rows, cols, nil)
	placed := 0

	// Seed the walk with a handful of uniform connections.
	seeds := active / 10
	if seeds < 1 {
		seeds = 1
	}
	for placed < seeds {
		r, c := rng.Intn(rows), rng.Intn(cols)
		if mask.At(r, c) == 0 {
			mask.Set(r, c, 1)
			placed++
		}
	}

	r, c := rng.Intn(rows), rng.Intn(cols)
	for placed < active {
		for step := 0; step < walkLength; step++ {
			if rng.Float64() < restartProb {
				r, c = rng.Intn(rows), rng.Intn(cols)
				continue
			}
			// Step to a neighbor sharing the current row or column.
			if rng.Intn(2) == 0 {
				c = rng.Intn(cols)
			} else {
				r = rng.Intn(rows)
			}
		}
		if mask.At(r, c) == 0 {
			mask.Set(r, c, 1)
			placed++
		} else {
			// Walk ended on an active cell; restart from it so density
			// accretes around existing structure.
			if rng.Intn(2) == 0 {
				c = rng.Intn(cols)
			} else {
				r = rng.Intn(rows)
			}
		}
	}
	ensureFanIn(mask, rng)
	return mask
}

// erdosRenyiCounts distributes a global active-weight budget over layers so
// that layer l gets a density proportional to (fanIn+fanOut)/(fanIn*fanOut).
// Layers with more units therefore end up proportionally sparser, keeping the
// per-layer parameter count roughly uniform. Densities are capped at 1 and
// the freed budget is redistributed over the remaining layers.
func erdosRenyiCounts(shapes [][2]int, globalSparsity float64) []int {
	nLayers := len(shapes)
	counts := make([]int, nLayers)
	raw := make([]float64, nLayers)
	sizes := make([]float64, nLayers)
	capped := make([]bool, nLayers)

	var totalParams float64
	for i, s := range shapes {
		rows, cols := float64(s[0]), float64(s[1])
		sizes[i] = rows * cols
		raw[i] = (rows + cols) / (rows * cols)
		totalParams += sizes[i]
	}
	budget := (1 - globalSparsity) * totalParams

	// Solve for the scaling factor epsilon; clamp any layer that would
	// exceed density 1 and re-solve for the rest.
	for {
		var rawMass float64
		for i := range shapes {
			if !capped[i] {
				rawMass += raw[i] * sizes[i]
			}
		}
		if rawMass == 0 {
			break
		}
		eps := budget / rawMass
		overflow := false
		for i := range shapes {
			if capped[i] {
				continue
			}
			if eps*raw[i] > 1 {
				capped[i] = true
				counts[i] = int(sizes[i])
				budget -= sizes[i]
				overflow = true
			}
		}
		if !overflow {
			for i := range shapes {
				if !capped[i] {
					counts[i] = int(eps * raw[i] * sizes[i])
				}
			}
			break
		}
	}

	for i := range counts {
		if counts[i] < 1 {
			counts[i] = 1
		}
	}
	return counts
}

// ensureFanIn guarantees every output unit keeps at least one incoming
// connection, stealing a connection from the densest column when needed. A
// unit with zero fan-in would be permanently dead for the rest of training.
func ensureFanIn(mask *mat.Dense, rng *rand.Rand) {
	rows, cols := mask.Dims()
	for c := 0; c < cols; c++ {
		if colActive(mask, c) > 0 {
			continue
		}
		donor := densestColumn(mask, c)
		if donor < 0 {
			continue
		}
		// Move one active connection from the donor column into this one,
		// keeping the total active count unchanged.
		for attempts := 0; attempts < rows*4; attempts++ {
			r := rng.Intn(rows)
			if mask.At(r, donor) == 1 {
				mask.Set(r, donor, 0)
				mask.Set(rng.Intn(rows), c, 1)
				break
			}
		}
	}
}

func colActive(mask *mat.Dense, c int) int {
	rows, _ := mask.Dims()
	n := 0
	for r := 0; r < rows; r++ {
		if mask.At(r, c) == 1 {
			n++
		}
	}
	return n
}

func densestColumn(mask *mat.Dense, skip int) int {
	_, cols := mask.Dims()
	best, bestCount := -1, 1
	for c := 0; c < cols; c++ {
		if c == skip {
			continue
		}
		// Donors must keep a connection of their own.
		if n := colActive(mask, c); n > bestCount {
			best, bestCount = c, n
		}
	}
	return best
}
