package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparselab/sgain/pkg/models"
)

func TestBuildConfig(t *testing.T) {
	opts := &ImputeOptions{
		BatchSize:             64,
		HintRate:              0.8,
		Alpha:                 50,
		Iterations:            500,
		Seed:                  7,
		GeneratorSparsity:     0.6,
		GeneratorTopology:     "erdos_renyi",
		DiscriminatorSparsity: 0,
		DiscriminatorTopology: "dense",
		PruneRate:             0.3,
		PrunePeriod:           200,
		RegrowPolicy:          "gradient",
	}

	cfg := buildConfig(opts)
	require.NoError(t, cfg.Validate(1000))

	assert.Equal(t, 64, cfg.BatchSize)
	assert.Equal(t, 0.8, cfg.HintRate)
	assert.Equal(t, int64(7), cfg.Seed)
	assert.Equal(t, models.TopologyErdosRenyi, cfg.Generator.Topology)
	assert.Equal(t, 0.6, cfg.Generator.Sparsity)
	assert.Equal(t, models.RegrowGradient, cfg.Generator.RegrowPolicy)
	assert.Equal(t, 200, cfg.Discriminator.PrunePeriod)
	assert.Equal(t, models.TopologyDense, cfg.Discriminator.Topology)
}

func TestBuildConfigZeroSeedIsTimeBased(t *testing.T) {
	opts := &ImputeOptions{
		BatchSize: 128, HintRate: 0.9, Alpha: 100, Iterations: 100,
		GeneratorTopology: "dense", DiscriminatorTopology: "dense",
		RegrowPolicy: "random",
	}
	assert.NotZero(t, buildConfig(opts).Seed)
}

func TestNewImputeCmdFlags(t *testing.T) {
	cmd := NewImputeCmd()

	require.NoError(t, cmd.ParseFlags([]string{
		"--dataset", "data.csv",
		"--generator-sparsity", "0.8",
		"--generator-topology", "errw",
		"--iterations", "2000",
		"--record-log", "records.jsonl",
	}))

	dataset, err := cmd.Flags().GetString("dataset")
	require.NoError(t, err)
	assert.Equal(t, "data.csv", dataset)

	sparsity, err := cmd.Flags().GetFloat64("generator-sparsity")
	require.NoError(t, err)
	assert.Equal(t, 0.8, sparsity)

	topology, err := cmd.Flags().GetString("generator-topology")
	require.NoError(t, err)
	assert.Equal(t, "errw", topology)

	recordLog, err := cmd.Flags().GetString("record-log")
	require.NoError(t, err)
	assert.Equal(t, "records.jsonl", recordLog)
}

func TestNewRunCmdDefaults(t *testing.T) {
	cmd := NewRunCmd()
	require.NoError(t, cmd.ParseFlags(nil))

	nRuns, err := cmd.Flags().GetInt("n-runs")
	require.NoError(t, err)
	assert.Equal(t, 10, nRuns)

	sparsities, err := cmd.Flags().GetFloat64Slice("generator-sparsities")
	require.NoError(t, err)
	assert.Equal(t, []float64{0}, sparsities)
}

func TestNewAnalyzeCmdDefaults(t *testing.T) {
	cmd := NewAnalyzeCmd()
	require.NoError(t, cmd.ParseFlags(nil))

	folder, err := cmd.Flags().GetString("analysis-folder")
	require.NoError(t, err)
	assert.Equal(t, "analysis", folder)
}
