package models

import (
	"bytes"
	"math"
	"strconv"
	"time"

	"github.com/sparselab/sgain/pkg/errors"
)

// NullableFloat is a float64 that serializes NaN and Inf as JSON null, since
// a failed run's RMSE is explicitly "undefined" rather than a number.
type NullableFloat float64

// MarshalJSON implements json.Marshaler.
func (f NullableFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(v, 'g', -1, 64)), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *NullableFloat) UnmarshalJSON(raw []byte) error {
	if bytes.Equal(raw, []byte("null")) {
		*f = NullableFloat(math.NaN())
		return nil
	}
	v, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return err
	}
	*f = NullableFloat(v)
	return nil
}

// MissModality identifies the missingness injection mechanism.
type MissModality string

const (
	MissMCAR MissModality = "MCAR"
	MissMAR  MissModality = "MAR"
	MissMNAR MissModality = "MNAR"
)

// Topology identifies the sparse connectivity strategy for a network.
type Topology string

const (
	TopologyDense      Topology = "dense"
	TopologyRandom     Topology = "random"
	TopologyErdosRenyi Topology = "erdos_renyi"
	TopologyERRW       Topology = "errw"
)

// RegrowPolicy selects how pruned connections are replaced.
type RegrowPolicy string

const (
	RegrowRandom   RegrowPolicy = "random"
	RegrowGradient RegrowPolicy = "gradient"
)

// NetworkConfig holds the sparsity settings of one network (generator or
// discriminator).
type NetworkConfig struct {
	Sparsity     float64      `json:"sparsity" mapstructure:"sparsity"`
	Topology     Topology     `json:"topology" mapstructure:"topology"`
	PruneRate    float64      `json:"prune_rate" mapstructure:"prune_rate"`
	PrunePeriod  int          `json:"prune_period" mapstructure:"prune_period"`
	RegrowPolicy RegrowPolicy `json:"regrow_policy" mapstructure:"regrow_policy"`

	// ERRW tuning. Walk mechanics are deliberately configurable; see the
	// sparsity package for defaults.
	WalkLength  int     `json:"walk_length,omitempty" mapstructure:"walk_length"`
	RestartProb float64 `json:"restart_prob,omitempty" mapstructure:"restart_prob"`

	// FullMomentumReset controls whether regrown connections get their Adam
	// moments zeroed entirely (true) or scaled down by half (false).
	FullMomentumReset bool `json:"full_momentum_reset" mapstructure:"full_momentum_reset"`
}

// Validate checks the topology/sparsity combination. A dense topology with
// sparsity > 0, or a sparse topology with sparsity 0, is a configuration
// error rather than something to silently run.
func (c *NetworkConfig) Validate() error {
	if c.Sparsity < 0 || c.Sparsity >= 1 {
		return errors.NewConfigurationError(errors.CodeInvalidSparsity,
			"sparsity must be in [0, 1)")
	}
	switch c.Topology {
	case TopologyDense:
		if c.Sparsity > 0 {
			return errors.NewConfigurationError(errors.CodeTopologyMismatch,
				"dense topology requires sparsity 0")
		}
	case TopologyRandom, TopologyErdosRenyi, TopologyERRW:
		if c.Sparsity == 0 {
			return errors.NewConfigurationError(errors.CodeTopologyMismatch,
				"sparse topology requires sparsity > 0")
		}
	default:
		return errors.NewConfigurationError(errors.CodeInvalidTopology,
			"unknown topology: "+string(c.Topology))
	}
	if c.PruneRate < 0 || c.PruneRate >= 1 {
		return errors.NewConfigurationError(errors.CodeInvalidSparsity,
			"prune rate must be in [0, 1)")
	}
	return nil
}

// IsSparse reports whether the network carries a connectivity mask that can
// be restructured during training.
func (c *NetworkConfig) IsSparse() bool {
	return c.Topology != TopologyDense && c.Sparsity > 0
}

// ExperimentConfig is the full configuration surface of one imputation run.
type ExperimentConfig struct {
	BatchSize  int     `json:"batch_size" mapstructure:"batch_size"`
	HintRate   float64 `json:"hint_rate" mapstructure:"hint_rate"`
	Alpha      float64 `json:"alpha" mapstructure:"alpha"`
	Iterations int     `json:"iterations" mapstructure:"iterations"`
	Seed       int64   `json:"seed" mapstructure:"seed"`

	Generator     NetworkConfig `json:"generator" mapstructure:"generator"`
	Discriminator NetworkConfig `json:"discriminator" mapstructure:"discriminator"`
}

// Validate checks every configuration invariant that must hold before the
// first training iteration is allowed to run.
func (c *ExperimentConfig) Validate(datasetRows int) error {
	if c.BatchSize <= 0 || (datasetRows > 0 && c.BatchSize > datasetRows) {
		return errors.NewConfigurationError(errors.CodeInvalidBatchSize,
			"batch size must be positive and not exceed the dataset size")
	}
	if c.HintRate < 0 || c.HintRate > 1 {
		return errors.NewConfigurationError(errors.CodeInvalidHintRate,
			"hint rate must be between 0 and 1")
	}
	if c.Alpha < 0 {
		return errors.NewConfigurationError(errors.CodeInvalidAlpha,
			"alpha must be non-negative")
	}
	if c.Iterations <= 0 {
		return errors.NewConfigurationError(errors.CodeInvalidIterations,
			"iteration count must be positive")
	}
	if err := c.Generator.Validate(); err != nil {
		return err
	}
	return c.Discriminator.Validate()
}

// DefaultExperimentConfig returns the stock S-GAIN hyperparameters.
func DefaultExperimentConfig() *ExperimentConfig {
	return &ExperimentConfig{
		BatchSize:  128,
		HintRate:   0.9,
		Alpha:      100,
		Iterations: 10000,
		Seed:       0,
		Generator: NetworkConfig{
			Topology:          TopologyDense,
			PruneRate:         0.2,
			PrunePeriod:       100,
			RegrowPolicy:      RegrowRandom,
			FullMomentumReset: true,
		},
		Discriminator: NetworkConfig{
			Topology:          TopologyDense,
			PruneRate:         0.2,
			PrunePeriod:       100,
			RegrowPolicy:      RegrowRandom,
			FullMomentumReset: true,
		},
	}
}

// IterationRecord is one per-iteration scalar record emitted by the training
// loop for the logging collaborator.
type IterationRecord struct {
	Iteration int     `json:"iteration"`
	DLoss     float64 `json:"d_loss"`
	GAdvLoss  float64 `json:"g_adv_loss"`
	GMSELoss  float64 `json:"g_mse_loss"`

	// Optional structural statistics, filled when a sparsity monitor is on.
	GeneratorSparsity     float64 `json:"generator_sparsity,omitempty"`
	DiscriminatorSparsity float64 `json:"discriminator_sparsity,omitempty"`
}

// SparsityStats summarizes one network's connectivity at a point in time.
type SparsityStats struct {
	ActiveWeights int     `json:"active_weights"`
	TotalWeights  int     `json:"total_weights"`
	Sparsity      float64 `json:"sparsity"`
	FLOPsPerRow   int     `json:"flops_per_row"`
}

// Timings is the run's phase breakdown: preparation (loading, missingness,
// normalization), core training, and finalization (imputation + RMSE).
type Timings struct {
	Preparation  time.Duration `json:"preparation"`
	Training     time.Duration `json:"training"`
	Finalization time.Duration `json:"finalization"`
}

// RunResult is the outcome of one complete imputation run.
type RunResult struct {
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`

	Config ExperimentConfig `json:"config"`

	// RMSE at originally-missing positions. NaN when ground truth was not
	// available or no positions were withheld.
	RMSE NullableFloat `json:"rmse"`

	Imputed [][]float64 `json:"-"`

	GeneratorStats     SparsityStats `json:"generator_stats"`
	DiscriminatorStats SparsityStats `json:"discriminator_stats"`

	Records []IterationRecord `json:"records,omitempty"`
	Timings Timings           `json:"timings"`

	// Failed marks a run aborted by a numerical error; FailureIteration is
	// the iteration at which the divergence was detected.
	Failed           bool   `json:"failed"`
	FailureIteration int    `json:"failure_iteration,omitempty"`
	FailureReason    string `json:"failure_reason,omitempty"`
}

// LayerSnapshot stores one layer's weights, bias and connectivity mask.
type LayerSnapshot struct {
	Rows    int       `json:"rows"`
	Cols    int       `json:"cols"`
	Weights []float64 `json:"weights"`
	Bias    []float64 `json:"bias"`
	Mask    []float64 `json:"mask,omitempty"`
}

// ModelSnapshot is the persisted form of a trained generator/discriminator
// pair, sufficient to rebuild both networks for later reuse.
type ModelSnapshot struct {
	Dim           int              `json:"dim"`
	HiddenDim     int              `json:"hidden_dim"`
	Config        ExperimentConfig `json:"config"`
	Generator     []LayerSnapshot  `json:"generator"`
	Discriminator []LayerSnapshot  `json:"discriminator"`
}
