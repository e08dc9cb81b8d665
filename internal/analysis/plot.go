package analysis

import (
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// PlotRMSE draws mean RMSE against generator sparsity and saves it as
// rmse.png in the given folder. Configurations without a successful run are
// skipped.
func PlotRMSE(folder string, summaries []Summary) error {
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return err
	}

	p := plot.New()
	p.Title.Text = "Imputation RMSE vs generator sparsity"
	p.X.Label.Text = "generator sparsity"
	p.Y.Label.Text = "RMSE"

	pts := make(plotter.XYs, 0, len(summaries))
	for _, s := range summaries {
		if math.IsNaN(s.MeanRMSE) {
			continue
		}
		pts = append(pts, plotter.XY{X: s.GeneratorSparsity, Y: s.MeanRMSE})
	}
	line, scatter, err := plotter.NewLinePoints(pts)
	if err != nil {
		return err
	}
	p.Add(line, scatter)

	return p.Save(6*vg.Inch, 4*vg.Inch, filepath.Join(folder, "rmse.png"))
}

// PlotTrainingTime draws mean core-training time against generator sparsity
// and saves it as training_time.png.
func PlotTrainingTime(folder string, summaries []Summary) error {
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return err
	}

	p := plot.New()
	p.Title.Text = "Training time vs generator sparsity"
	p.X.Label.Text = "generator sparsity"
	p.Y.Label.Text = "seconds"

	pts := make(plotter.XYs, 0, len(summaries))
	for _, s := range summaries {
		if s.Successes == 0 {
			continue
		}
		pts = append(pts, plotter.XY{X: s.GeneratorSparsity, Y: s.MeanTrainingSeconds})
	}
	line, scatter, err := plotter.NewLinePoints(pts)
	if err != nil {
		return err
	}
	p.Add(line, scatter)

	return p.Save(6*vg.Inch, 4*vg.Inch, filepath.Join(folder, "training_time.png"))
}

// PlotSuccessRate draws the fraction of non-diverged runs per generator
// sparsity level and saves it as success_rate.png.
func PlotSuccessRate(folder string, summaries []Summary) error {
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return err
	}

	p := plot.New()
	p.Title.Text = "Run success rate vs generator sparsity"
	p.X.Label.Text = "generator sparsity"
	p.Y.Label.Text = "success rate"
	p.Y.Max = 1.05

	pts := make(plotter.XYs, 0, len(summaries))
	for _, s := range summaries {
		pts = append(pts, plotter.XY{X: s.GeneratorSparsity, Y: s.SuccessRate()})
	}
	line, scatter, err := plotter.NewLinePoints(pts)
	if err != nil {
		return err
	}
	p.Add(line, scatter)

	return p.Save(6*vg.Inch, 4*vg.Inch, filepath.Join(folder, "success_rate.png"))
}
