package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sparselab/sgain/internal/analysis"
	"github.com/sparselab/sgain/internal/storage"
)

type AnalyzeOptions struct {
	OutputFolder   string
	AnalysisFolder string
	PlotRMSE       bool
	PlotSuccess    bool
	PlotTime       bool
}

func NewAnalyzeCmd() *cobra.Command {
	opts := &AnalyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Compile metrics and plots from stored experiment runs",
		Example: `  # Compile metrics.csv and all plots from the default output folder
  sgain-cli analyze

  # Analyze a specific experiment folder
  sgain-cli analyze --output output_FLOPs --analysis-folder analysis_FLOPs`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(opts)
		},
	}

	cmd.Flags().StringVarP(&opts.OutputFolder, "output", "o", "output", "Folder holding run logs")
	cmd.Flags().StringVar(&opts.AnalysisFolder, "analysis-folder", "analysis", "Folder for compiled metrics and plots")
	cmd.Flags().BoolVar(&opts.PlotRMSE, "plot-rmse", true, "Plot RMSE against generator sparsity")
	cmd.Flags().BoolVar(&opts.PlotSuccess, "plot-success-rate", true, "Plot run success rate")
	cmd.Flags().BoolVar(&opts.PlotTime, "plot-training-time", true, "Plot training time")

	return cmd
}

func runAnalyze(opts *AnalyzeOptions) error {
	logger := newLogger()

	store, err := storage.NewFileStore(opts.OutputFolder)
	if err != nil {
		return err
	}
	results, err := store.LoadResults()
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return fmt.Errorf("no run logs found in %s", opts.OutputFolder)
	}

	summaries := analysis.CompileMetrics(results, logger)
	if err := analysis.WriteSummaryCSV(opts.AnalysisFolder, summaries); err != nil {
		return err
	}
	if opts.PlotRMSE {
		if err := analysis.PlotRMSE(opts.AnalysisFolder, summaries); err != nil {
			return err
		}
	}
	if opts.PlotSuccess {
		if err := analysis.PlotSuccessRate(opts.AnalysisFolder, summaries); err != nil {
			return err
		}
	}
	if opts.PlotTime {
		if err := analysis.PlotTrainingTime(opts.AnalysisFolder, summaries); err != nil {
			return err
		}
	}

	fmt.Printf("Analyzed %d runs into %s\n", len(results), opts.AnalysisFolder)
	return nil
}
