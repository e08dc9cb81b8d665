package experiment

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sparselab/sgain/pkg/errors"
	"github.com/sparselab/sgain/pkg/models"
)

// GridOptions describes a batch of experiments: every generator/discriminator
// sparsity combination is run NRuns times, retrying runs that diverge until
// MaxFailures is exhausted for that combination.
type GridOptions struct {
	DatasetPath string
	MissRate    float64
	Modality    models.MissModality
	Base        *models.ExperimentConfig

	GeneratorSparsities     []float64
	GeneratorTopology       models.Topology
	DiscriminatorSparsities []float64
	DiscriminatorTopology   models.Topology

	NRuns       int
	MaxFailures int

	SaveImputation bool
	SaveModel      bool
}

// RunGrid executes the whole grid and returns every run result, failed runs
// included. Retrying a diverged run is this orchestration layer's decision;
// the engine itself never retries.
func (r *Runner) RunGrid(ctx context.Context, opts GridOptions) ([]models.RunResult, error) {
	if opts.NRuns <= 0 {
		opts.NRuns = 1
	}
	if opts.MaxFailures <= 0 {
		opts.MaxFailures = 3
	}

	total := len(opts.GeneratorSparsities) * len(opts.DiscriminatorSparsities) * opts.NRuns
	completed := 0
	start := time.Now()

	results := make([]models.RunResult, 0, total)
	for _, gSp := range opts.GeneratorSparsities {
		for _, dSp := range opts.DiscriminatorSparsities {
			cfg := *opts.Base
			cfg.Generator.Sparsity = gSp
			cfg.Generator.Topology = topologyFor(opts.GeneratorTopology, gSp)
			cfg.Discriminator.Sparsity = dSp
			cfg.Discriminator.Topology = topologyFor(opts.DiscriminatorTopology, dSp)

			failures := 0
			for run := 0; run < opts.NRuns; {
				select {
				case <-ctx.Done():
					return results, ctx.Err()
				default:
				}

				runCfg := cfg
				runCfg.Seed = runSeed(opts.Base.Seed, completed+failures)

				result, err := r.RunOnce(ctx, Options{
					DatasetPath:    opts.DatasetPath,
					MissRate:       opts.MissRate,
					Modality:       opts.Modality,
					Config:         &runCfg,
					SaveImputation: opts.SaveImputation,
					SaveModel:      opts.SaveModel,
				})
				if result != nil {
					results = append(results, *result)
				}
				if err != nil {
					if appErr, ok := err.(*errors.AppError); ok && appErr.Type == errors.ErrorTypeNumerical {
						failures++
						if failures >= opts.MaxFailures {
							r.logger.WithFields(logrus.Fields{
								"generator_sparsity":     gSp,
								"discriminator_sparsity": dSp,
								"failures":               failures,
							}).Warn("Giving up on configuration after repeated divergence")
							break
						}
						continue
					}
					return results, err
				}

				run++
				completed++
				r.logProgress(completed, total, start)
			}
		}
	}
	return results, nil
}

func (r *Runner) logProgress(completed, total int, start time.Time) {
	elapsed := time.Since(start)
	fields := logrus.Fields{
		"completed": completed,
		"total":     total,
		"elapsed":   elapsed.Round(time.Second),
	}
	if completed > 0 && completed < total {
		remaining := time.Duration(float64(elapsed) / float64(completed) * float64(total-completed))
		fields["estimated_left"] = remaining.Round(time.Second)
	}
	r.logger.WithFields(fields).Info("Grid progress")
}

// topologyFor keeps the dense/sparse validity rule intact when the grid
// sweeps through sparsity 0: a zero-sparsity cell always runs dense.
func topologyFor(topology models.Topology, sparsity float64) models.Topology {
	if sparsity == 0 {
		return models.TopologyDense
	}
	if topology == models.TopologyDense || topology == "" {
		return models.TopologyRandom
	}
	return topology
}

// runSeed derives a distinct deterministic seed per run. A zero base seed
// means "random": each run seeds from the clock.
func runSeed(base int64, run int) int64 {
	if base == 0 {
		return time.Now().UnixNano()
	}
	return base + int64(run)
}
