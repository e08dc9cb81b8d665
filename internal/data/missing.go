package data

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/sparselab/sgain/pkg/errors"
	"github.com/sparselab/sgain/pkg/models"
)

// Inject applies synthetic missingness to a complete data matrix and returns
// the corrupted copy (missing entries set to NaN) together with the ground
// truth observation mask (1 = observed, 0 = missing). The mask never changes
// after injection; the training engine only reads it.
func Inject(x *mat.Dense, missRate float64, modality models.MissModality, seed int64) (*mat.Dense, *mat.Dense, error) {
	if missRate < 0 || missRate > 1 {
		return nil, nil, errors.NewConfigurationError(errors.CodeInvalidMissRate,
			"miss rate must be between 0 and 1")
	}
	rng := rand.New(rand.NewSource(seed))

	var mask *mat.Dense
	switch modality {
	case models.MissMCAR:
		mask = mcarMask(x, missRate, rng)
	case models.MissMAR:
		mask = marMask(x, missRate, rng)
	case models.MissMNAR:
		mask = mnarMask(x, missRate, rng)
	default:
		return nil, nil, errors.NewConfigurationError(errors.CodeInvalidModality,
			"unknown miss modality: "+string(modality))
	}

	rows, cols := x.Dims()
	miss := mat.DenseCopyOf(x)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if mask.At(i, j) == 0 {
				miss.Set(i, j, math.NaN())
			}
		}
	}
	return miss, mask, nil
}

// mcarMask drops each entry independently with probability missRate.
func mcarMask(x *mat.Dense, missRate float64, rng *rand.Rand) *mat.Dense {
	rows, cols := x.Dims()
	mask := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if rng.Float64() >= missRate {
				mask.Set(i, j, 1)
			}
		}
	}
	return mask
}

// marMask makes missingness depend on the *observed* part of earlier
// features. Features are processed left to right; a row's chance of losing
// feature i is softmax-weighted by the values it has shown so far and by
// which of its earlier features already went missing.
func marMask(x *mat.Dense, missRate float64, rng *rand.Rand) *mat.Dense {
	rows, cols := x.Dims()
	norm := minMaxNormalized(x)

	w := make([]float64, cols)
	b := make([]float64, cols)
	for j := 0; j < cols; j++ {
		w[j] = rng.Float64()
		b[j] = rng.Float64()
	}

	mask := onesMask(rows, cols)
	logits := make([]float64, rows)

	for j := 0; j < cols; j++ {
		if j > 0 {
			for i := 0; i < rows; i++ {
				var observed, missing float64
				for k := 0; k < j; k++ {
					if mask.At(i, k) == 1 {
						observed += w[k] * norm.At(i, k)
					} else {
						missing += b[k]
					}
				}
				logits[i] = -(observed + missing)
			}
		}

		probs := softmax(logits, j == 0)

		// Expected missing count for this feature, spent on rows drawn
		// according to their weight.
		missing := binomial(rng, rows, missRate)
		drawn := drawWithoutReplacement(rng, probs, missing)
		for _, i := range drawn {
			mask.Set(i, j, 0)
		}
	}
	return mask
}

// mnarMask makes an entry's chance of going missing depend on its own value:
// smaller normalized values carry exponentially more missingness weight.
func mnarMask(x *mat.Dense, missRate float64, rng *rand.Rand) *mat.Dense {
	rows, cols := x.Dims()
	norm := minMaxNormalized(x)

	w := make([]float64, cols)
	for j := 0; j < cols; j++ {
		w[j] = rng.Float64()
	}

	mask := onesMask(rows, cols)
	for j := 0; j < cols; j++ {
		var denom float64
		for i := 0; i < rows; i++ {
			denom += math.Exp(-w[j] * norm.At(i, j))
		}
		for i := 0; i < rows; i++ {
			p := missRate * float64(rows) * math.Exp(-w[j]*norm.At(i, j)) / denom
			if rng.Float64() < p {
				mask.Set(i, j, 0)
			}
		}
	}
	return mask
}

// ActualMissRate reports the achieved fraction of missing entries.
func ActualMissRate(mask *mat.Dense) float64 {
	rows, cols := mask.Dims()
	var missing int
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if mask.At(i, j) == 0 {
				missing++
			}
		}
	}
	return float64(missing) / float64(rows*cols)
}

func onesMask(rows, cols int) *mat.Dense {
	mask := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			mask.Set(i, j, 1)
		}
	}
	return mask
}

// minMaxNormalized scales each column into [0,1]; constant columns map to 0.
func minMaxNormalized(x *mat.Dense) *mat.Dense {
	rows, cols := x.Dims()
	out := mat.NewDense(rows, cols, nil)
	for j := 0; j < cols; j++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		for i := 0; i < rows; i++ {
			v := x.At(i, j)
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		span := hi - lo
		for i := 0; i < rows; i++ {
			if span > 0 {
				out.Set(i, j, (x.At(i, j)-lo)/span)
			}
		}
	}
	return out
}

// softmax converts logits into a probability vector, numerically stabilized
// by subtracting the maximum. With uniform=true it returns 1/n everywhere.
func softmax(logits []float64, uniform bool) []float64 {
	n := len(logits)
	probs := make([]float64, n)
	if uniform {
		for i := range probs {
			probs[i] = 1 / float64(n)
		}
		return probs
	}
	maxLogit := math.Inf(-1)
	for _, l := range logits {
		maxLogit = math.Max(maxLogit, l)
	}
	var sum float64
	for i, l := range logits {
		probs[i] = math.Exp(l - maxLogit)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

// binomial samples the number of successes in n Bernoulli(p) trials.
func binomial(rng *rand.Rand, n int, p float64) int {
	k := 0
	for i := 0; i < n; i++ {
		if rng.Float64() < p {
			k++
		}
	}
	return k
}

// drawWithoutReplacement samples count distinct indices proportionally to
// the given weights.
func drawWithoutReplacement(rng *rand.Rand, weights []float64, count int) []int {
	w := make([]float64, len(weights))
	copy(w, weights)
	var total float64
	for _, v := range w {
		total += v
	}

	drawn := make([]int, 0, count)
	for len(drawn) < count && total > 0 {
		target := rng.Float64() * total
		var cum float64
		for i, v := range w {
			if v == 0 {
				continue
			}
			cum += v
			if cum >= target {
				drawn = append(drawn, i)
				total -= v
				w[i] = 0
				break
			}
		}
	}
	return drawn
}
