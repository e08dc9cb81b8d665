package engine

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestRMSEKnownValues(t *testing.T) {
	truth := mat.NewDense(1, 3, []float64{0.5, 0.5, 0.5})
	imputed := mat.NewDense(1, 3, []float64{0.5, 0.7, 0.1})
	m := mat.NewDense(1, 3, []float64{1, 0, 0})

	// Missing positions differ by 0.2 and 0.4.
	want := math.Sqrt((0.04 + 0.16) / 2)
	assert.InDelta(t, want, RMSE(truth, imputed, m), 1e-12)
}

func TestRMSEFullyObservedIsNaN(t *testing.T) {
	truth := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	m := mat.NewDense(2, 2, []float64{1, 1, 1, 1})

	assert.True(t, math.IsNaN(RMSE(truth, truth, m)))
}

func TestMeanImputationBaseline(t *testing.T) {
	// Column 0 observes {0.2, 0.4}, mean 0.3; the missing truth is 0.6.
	truth := mat.NewDense(3, 1, []float64{0.2, 0.4, 0.6})
	m := mat.NewDense(3, 1, []float64{1, 1, 0})

	assert.InDelta(t, 0.3, MeanImputationRMSE(truth, m), 1e-12)
}

func TestMeanImputationBaselineFullyObserved(t *testing.T) {
	truth := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	m := mat.NewDense(2, 2, []float64{1, 1, 1, 1})
	assert.True(t, math.IsNaN(MeanImputationRMSE(truth, m)))
}

func TestFinalizeWithoutTruthReportsNaN(t *testing.T) {
	rng := rand.New(rand.NewSource(13))
	truth := correlatedData(60, 3, rng)
	m := mcarMask(60, 3, 0.2, rng)

	cfg := denseConfig(20)
	cfg.BatchSize = 8
	trainer, err := NewTrainer(cfg, 3, 60, quietLogger(), nil)
	require.NoError(t, err)
	require.NoError(t, trainer.Train(context.Background(), truth, m))

	result, err := Finalize(trainer, truth, m, nil, quietLogger())
	require.NoError(t, err)
	assert.True(t, math.IsNaN(result.RMSE))

	// Observed entries pass through untouched; imputed ones stay in the
	// sigmoid's range.
	rows, cols := truth.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if m.At(i, j) == 1 {
				assert.Equal(t, truth.At(i, j), result.Imputed.At(i, j))
			} else {
				v := result.Imputed.At(i, j)
				assert.GreaterOrEqual(t, v, 0.0)
				assert.LessOrEqual(t, v, 1.0)
			}
		}
	}
}

func TestFinalizeFullyObservedReportsNaN(t *testing.T) {
	rng := rand.New(rand.NewSource(13))
	truth := correlatedData(40, 3, rng)
	m := mat.NewDense(40, 3, nil)
	rows, cols := m.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			m.Set(i, j, 1)
		}
	}

	cfg := denseConfig(20)
	cfg.BatchSize = 8
	trainer, err := NewTrainer(cfg, 3, 40, quietLogger(), nil)
	require.NoError(t, err)
	require.NoError(t, trainer.Train(context.Background(), truth, m))

	result, err := Finalize(trainer, truth, m, truth, quietLogger())
	require.NoError(t, err)
	assert.True(t, math.IsNaN(result.RMSE), "no withheld positions means no score")
	assert.True(t, mat.Equal(truth, result.Imputed))
}
