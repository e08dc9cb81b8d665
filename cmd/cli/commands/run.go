package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sparselab/sgain/internal/analysis"
	"github.com/sparselab/sgain/internal/experiment"
	"github.com/sparselab/sgain/internal/storage"
	"github.com/sparselab/sgain/pkg/models"
)

type RunOptions struct {
	Dataset      string
	MissRate     float64
	Modality     string
	Seed         int64
	BatchSize    int
	HintRate     float64
	Alpha        float64
	Iterations   int
	OutputFolder string

	GeneratorSparsities     []float64
	GeneratorTopology       string
	DiscriminatorSparsities []float64
	DiscriminatorTopology   string

	NRuns       int
	MaxFailures int
	SaveModel   bool

	Analyze        bool
	AnalysisFolder string
}

func NewRunCmd() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a grid of sparse imputation experiments",
		Long: `Run every combination of the given generator and discriminator sparsity
levels n times, retry diverged runs, store all results and optionally
compile the analysis afterwards.`,
		Example: `  # Sweep generator sparsity with 10 runs per configuration
  sgain-cli run --dataset datasets/health.csv \
    --generator-sparsities 0,0.6,0.8,0.9 --generator-topology random \
    --n-runs 10 --analyze`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGrid(opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Dataset, "dataset", "d", "", "CSV dataset of complete numeric rows (required)")
	cmd.Flags().Float64Var(&opts.MissRate, "miss-rate", 0.2, "Probability of missing elements")
	cmd.Flags().StringVar(&opts.Modality, "modality", "MCAR", "Miss modality (MCAR, MAR, MNAR)")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 0, "Base random seed (0 for time-based)")
	cmd.Flags().IntVar(&opts.BatchSize, "batch-size", 128, "Mini-batch size")
	cmd.Flags().Float64Var(&opts.HintRate, "hint-rate", 0.9, "Fraction of the mask revealed to the discriminator")
	cmd.Flags().Float64Var(&opts.Alpha, "alpha", 100, "Weight of the reconstruction loss term")
	cmd.Flags().IntVar(&opts.Iterations, "iterations", 10000, "Training iterations per run")
	cmd.Flags().StringVarP(&opts.OutputFolder, "output", "o", "output", "Output folder")

	cmd.Flags().Float64SliceVar(&opts.GeneratorSparsities, "generator-sparsities", []float64{0}, "Generator sparsity levels to sweep")
	cmd.Flags().StringVar(&opts.GeneratorTopology, "generator-topology", "random", "Topology for sparse generator cells")
	cmd.Flags().Float64SliceVar(&opts.DiscriminatorSparsities, "discriminator-sparsities", []float64{0}, "Discriminator sparsity levels to sweep")
	cmd.Flags().StringVar(&opts.DiscriminatorTopology, "discriminator-topology", "random", "Topology for sparse discriminator cells")

	cmd.Flags().IntVar(&opts.NRuns, "n-runs", 10, "Runs per configuration")
	cmd.Flags().IntVar(&opts.MaxFailures, "max-failures", 3, "Diverged runs tolerated per configuration")
	cmd.Flags().BoolVar(&opts.SaveModel, "save-model", false, "Persist trained weights and masks per run")

	cmd.Flags().BoolVar(&opts.Analyze, "analyze", false, "Compile metrics and plots after the grid finishes")
	cmd.Flags().StringVar(&opts.AnalysisFolder, "analysis-folder", "analysis", "Folder for compiled metrics and plots")

	_ = cmd.MarkFlagRequired("dataset")

	return cmd
}

func runGrid(opts *RunOptions) error {
	logger := newLogger()

	store, err := storage.NewFileStore(opts.OutputFolder)
	if err != nil {
		return err
	}
	runner := experiment.NewRunner(logger, store, nil)

	base := models.DefaultExperimentConfig()
	base.BatchSize = opts.BatchSize
	base.HintRate = opts.HintRate
	base.Alpha = opts.Alpha
	base.Iterations = opts.Iterations
	base.Seed = opts.Seed

	results, err := runner.RunGrid(context.Background(), experiment.GridOptions{
		DatasetPath:             opts.Dataset,
		MissRate:                opts.MissRate,
		Modality:                models.MissModality(opts.Modality),
		Base:                    base,
		GeneratorSparsities:     opts.GeneratorSparsities,
		GeneratorTopology:       models.Topology(opts.GeneratorTopology),
		DiscriminatorSparsities: opts.DiscriminatorSparsities,
		DiscriminatorTopology:   models.Topology(opts.DiscriminatorTopology),
		NRuns:                   opts.NRuns,
		MaxFailures:             opts.MaxFailures,
		SaveImputation:          true,
		SaveModel:               opts.SaveModel,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Grid finished: %d runs recorded in %s\n", len(results), opts.OutputFolder)

	if opts.Analyze {
		summaries := analysis.CompileMetrics(results, logger)
		if err := analysis.WriteSummaryCSV(opts.AnalysisFolder, summaries); err != nil {
			return err
		}
		if err := analysis.PlotRMSE(opts.AnalysisFolder, summaries); err != nil {
			return err
		}
		if err := analysis.PlotSuccessRate(opts.AnalysisFolder, summaries); err != nil {
			return err
		}
		if err := analysis.PlotTrainingTime(opts.AnalysisFolder, summaries); err != nil {
			return err
		}
		fmt.Printf("Analysis written to %s\n", opts.AnalysisFolder)
	}
	return nil
}
