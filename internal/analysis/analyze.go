package analysis

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/sparselab/sgain/pkg/models"
)

// Summary aggregates the runs that share one sparsity configuration.
type Summary struct {
	GeneratorTopology     models.Topology `json:"generator_topology"`
	GeneratorSparsity     float64         `json:"generator_sparsity"`
	DiscriminatorTopology models.Topology `json:"discriminator_topology"`
	DiscriminatorSparsity float64         `json:"discriminator_sparsity"`

	Runs      int `json:"runs"`
	Successes int `json:"successes"`
	Failures  int `json:"failures"`

	MeanRMSE float64 `json:"mean_rmse"`
	StdRMSE  float64 `json:"std_rmse"`

	MeanTrainingSeconds float64 `json:"mean_training_seconds"`
}

// SuccessRate is the fraction of runs that completed without a numerical
// failure.
func (s *Summary) SuccessRate() float64 {
	if s.Runs == 0 {
		return 0
	}
	return float64(s.Successes) / float64(s.Runs)
}

type groupKey struct {
	gTop models.Topology
	gSp  float64
	dTop models.Topology
	dSp  float64
}

// CompileMetrics groups run results by sparsity configuration and computes
// RMSE and timing aggregates over the successful runs of each group.
func CompileMetrics(results []models.RunResult, logger *logrus.Logger) []Summary {
	if logger == nil {
		logger = logrus.New()
	}

	groups := make(map[groupKey][]models.RunResult)
	for _, r := range results {
		key := groupKey{
			gTop: r.Config.Generator.Topology,
			gSp:  r.Config.Generator.Sparsity,
			dTop: r.Config.Discriminator.Topology,
			dSp:  r.Config.Discriminator.Sparsity,
		}
		groups[key] = append(groups[key], r)
	}

	summaries := make([]Summary, 0, len(groups))
	for key, runs := range groups {
		s := Summary{
			GeneratorTopology:     key.gTop,
			GeneratorSparsity:     key.gSp,
			DiscriminatorTopology: key.dTop,
			DiscriminatorSparsity: key.dSp,
			Runs:                  len(runs),
		}
		rmses := make([]float64, 0, len(runs))
		var trainSeconds float64
		for _, r := range runs {
			rmse := float64(r.RMSE)
			if r.Failed || math.IsNaN(rmse) {
				s.Failures++
				continue
			}
			s.Successes++
			rmses = append(rmses, rmse)
			trainSeconds += r.Timings.Training.Seconds()
		}
		if len(rmses) > 0 {
			s.MeanRMSE = stat.Mean(rmses, nil)
			s.StdRMSE = stat.StdDev(rmses, nil)
			s.MeanTrainingSeconds = trainSeconds / float64(s.Successes)
		} else {
			s.MeanRMSE = math.NaN()
			s.StdRMSE = math.NaN()
		}
		summaries = append(summaries, s)
	}

	sort.Slice(summaries, func(a, b int) bool {
		if summaries[a].GeneratorSparsity != summaries[b].GeneratorSparsity {
			return summaries[a].GeneratorSparsity < summaries[b].GeneratorSparsity
		}
		return summaries[a].DiscriminatorSparsity < summaries[b].DiscriminatorSparsity
	})

	logger.WithFields(logrus.Fields{
		"runs":    len(results),
		"configs": len(summaries),
	}).Info("Compiled run metrics")
	return summaries
}

// WriteSummaryCSV stores the compiled metrics as metrics.csv in the given
// folder.
func WriteSummaryCSV(folder string, summaries []Summary) error {
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(folder, "metrics.csv"))
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{
		"generator_topology", "generator_sparsity",
		"discriminator_topology", "discriminator_sparsity",
		"runs", "successes", "failures",
		"mean_rmse", "std_rmse", "mean_training_seconds",
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, s := range summaries {
		record := []string{
			string(s.GeneratorTopology),
			fmt.Sprintf("%g", s.GeneratorSparsity),
			string(s.DiscriminatorTopology),
			fmt.Sprintf("%g", s.DiscriminatorSparsity),
			fmt.Sprintf("%d", s.Runs),
			fmt.Sprintf("%d", s.Successes),
			fmt.Sprintf("%d", s.Failures),
			fmt.Sprintf("%g", s.MeanRMSE),
			fmt.Sprintf("%g", s.StdRMSE),
			fmt.Sprintf("%g", s.MeanTrainingSeconds),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
