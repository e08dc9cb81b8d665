package data

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/sparselab/sgain/pkg/errors"
	"github.com/sparselab/sgain/pkg/models"
)

func randomData(rows, cols int, seed int64) *mat.Dense {
	rng := rand.New(rand.NewSource(seed))
	x := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			x.Set(i, j, rng.Float64()*10)
		}
	}
	return x
}

func TestInjectRejectsBadInput(t *testing.T) {
	x := randomData(10, 3, 1)

	_, _, err := Inject(x, -0.1, models.MissMCAR, 1)
	require.Error(t, err)
	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, errors.ErrorTypeConfiguration, appErr.Type)

	_, _, err = Inject(x, 1.5, models.MissMCAR, 1)
	assert.Error(t, err)

	_, _, err = Inject(x, 0.2, models.MissModality("censored"), 1)
	assert.Error(t, err)
}

func TestInjectMCARRateAndNaNPlacement(t *testing.T) {
	x := randomData(500, 10, 2)

	miss, mask, err := Inject(x, 0.2, models.MissMCAR, 7)
	require.NoError(t, err)

	assert.InDelta(t, 0.2, ActualMissRate(mask), 0.03)

	rows, cols := x.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if mask.At(i, j) == 0 {
				assert.True(t, math.IsNaN(miss.At(i, j)))
			} else {
				assert.Equal(t, x.At(i, j), miss.At(i, j))
			}
		}
	}
}

func TestInjectDeterministicUnderSeed(t *testing.T) {
	x := randomData(100, 5, 3)

	_, maskA, err := Inject(x, 0.3, models.MissMAR, 11)
	require.NoError(t, err)
	_, maskB, err := Inject(x, 0.3, models.MissMAR, 11)
	require.NoError(t, err)

	assert.True(t, mat.Equal(maskA, maskB))
}

func TestInjectMARRoughlyHitsRate(t *testing.T) {
	x := randomData(400, 8, 4)

	_, mask, err := Inject(x, 0.25, models.MissMAR, 5)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, ActualMissRate(mask), 0.05)
}

func TestInjectMNARPrefersSmallValues(t *testing.T) {
	x := randomData(1000, 1, 6)
	rows, _ := x.Dims()

	// Self-masking: averaged over seeds, values that go missing sit below the
	// values that stay observed.
	var diff float64
	for seed := int64(1); seed <= 5; seed++ {
		_, mask, err := Inject(x, 0.3, models.MissMNAR, seed)
		require.NoError(t, err)

		var missSum, obsSum float64
		var missN, obsN int
		for i := 0; i < rows; i++ {
			if mask.At(i, 0) == 0 {
				missSum += x.At(i, 0)
				missN++
			} else {
				obsSum += x.At(i, 0)
				obsN++
			}
		}
		require.Greater(t, missN, 0)
		require.Greater(t, obsN, 0)
		diff += obsSum/float64(obsN) - missSum/float64(missN)
	}
	assert.Positive(t, diff)
}

func TestInjectZeroRateKeepsEverything(t *testing.T) {
	x := randomData(50, 4, 8)

	miss, mask, err := Inject(x, 0, models.MissMCAR, 1)
	require.NoError(t, err)
	assert.Zero(t, ActualMissRate(mask))
	assert.True(t, mat.Equal(x, miss))
}

func TestDrawWithoutReplacementDistinct(t *testing.T) {
	rng := rand.New(rand.NewSource(10))
	weights := []float64{1, 2, 3, 4, 5}

	drawn := drawWithoutReplacement(rng, weights, 3)
	require.Len(t, drawn, 3)
	seen := make(map[int]bool)
	for _, i := range drawn {
		assert.False(t, seen[i])
		seen[i] = true
	}

	// Asking for more than available stops at the weight mass.
	all := drawWithoutReplacement(rng, []float64{1, 1}, 5)
	assert.Len(t, all, 2)
}

func TestSoftmax(t *testing.T) {
	u := softmax([]float64{3, 3, 3}, true)
	assert.InDelta(t, 1.0/3, u[0], 1e-12)

	p := softmax([]float64{0, 1, 2}, false)
	var sum float64
	for _, v := range p {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-12)
	assert.Less(t, p[0], p[2])
}
