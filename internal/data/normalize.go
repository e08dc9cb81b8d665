package data

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// normGuard keeps a zero-span feature from dividing by zero, matching the
// 1e-7 guard the reference normalization uses.
const normGuard = 1e-7

// categoricalLimit is the distinct-value threshold under which a feature is
// treated as categorical and gets its imputed values rounded.
const categoricalLimit = 20

// Normalizer scales features into [0, 1] per column and back. Min/max are
// fitted over observed values only; NaN entries are ignored.
type Normalizer struct {
	Min []float64 `json:"min"`
	Max []float64 `json:"max"`
}

// FitNormalizer computes per-feature min/max over the non-NaN entries of x.
func FitNormalizer(x *mat.Dense) *Normalizer {
	rows, cols := x.Dims()
	n := &Normalizer{
		Min: make([]float64, cols),
		Max: make([]float64, cols),
	}
	for j := 0; j < cols; j++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		for i := 0; i < rows; i++ {
			v := x.At(i, j)
			if math.IsNaN(v) {
				continue
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		if math.IsInf(lo, 1) { // column fully missing
			lo, hi = 0, 0
		}
		n.Min[j] = lo
		n.Max[j] = hi - lo
	}
	return n
}

// Transform maps x into [0, 1] per feature. NaN entries become 0 so the
// engine can treat missing positions as zeros under the observation mask.
func (n *Normalizer) Transform(x *mat.Dense) *mat.Dense {
	rows, cols := x.Dims()
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := x.At(i, j)
			if math.IsNaN(v) {
				continue
			}
			out.Set(i, j, (v-n.Min[j])/(n.Max[j]+normGuard))
		}
	}
	return out
}

// Inverse maps normalized data back to the original feature ranges.
func (n *Normalizer) Inverse(x *mat.Dense) *mat.Dense {
	rows, cols := x.Dims()
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out.Set(i, j, x.At(i, j)*(n.Max[j]+normGuard)+n.Min[j])
		}
	}
	return out
}

// RoundCategorical rounds imputed values for features that look categorical:
// fewer than categoricalLimit distinct observed values in the corrupted data.
func RoundCategorical(imputed, miss *mat.Dense) *mat.Dense {
	rows, cols := imputed.Dims()
	out := mat.DenseCopyOf(imputed)
	for j := 0; j < cols; j++ {
		distinct := make(map[float64]struct{})
		for i := 0; i < rows; i++ {
			v := miss.At(i, j)
			if !math.IsNaN(v) {
				distinct[v] = struct{}{}
			}
		}
		if len(distinct) >= categoricalLimit {
			continue
		}
		for i := 0; i < rows; i++ {
			out.Set(i, j, math.Round(out.At(i, j)))
		}
	}
	return out
}
