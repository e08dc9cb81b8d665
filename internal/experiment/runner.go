package experiment

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/sparselab/sgain/internal/data"
	"github.com/sparselab/sgain/internal/engine"
	"github.com/sparselab/sgain/internal/monitor"
	"github.com/sparselab/sgain/internal/storage"
	"github.com/sparselab/sgain/pkg/errors"
	"github.com/sparselab/sgain/pkg/models"
)

// Options configures one imputation experiment.
type Options struct {
	DatasetPath string
	MissRate    float64
	Modality    models.MissModality
	Config      *models.ExperimentConfig

	// Output toggles, mirroring the framework's no_* settings.
	KeepRecords    bool
	SaveImputation bool
	SaveModel      bool

	// RecordLogPath, when set, streams every iteration record to this file
	// as JSON lines while training runs.
	RecordLogPath string

	// StatusAddr enables the HTTP status/metrics server for the duration of
	// the run. Requires the runner to carry metrics.
	StatusAddr string
}

// Runner prepares data, trains the engine and persists the outcome of
// imputation experiments.
type Runner struct {
	logger  *logrus.Logger
	store   *storage.FileStore
	metrics *monitor.Metrics
}

// NewRunner creates a runner. store and metrics may be nil when persistence
// or metric exposition is not wanted.
func NewRunner(logger *logrus.Logger, store *storage.FileStore, metrics *monitor.Metrics) *Runner {
	if logger == nil {
		logger = logrus.New()
	}
	return &Runner{logger: logger, store: store, metrics: metrics}
}

// RunOnce executes a single experiment: load, inject missingness, normalize,
// train, finalize, persist. Configuration and data errors return a nil
// result. A numerical divergence returns the failed run's result together
// with the numerical error; deciding whether to retry is the caller's
// business.
func (r *Runner) RunOnce(ctx context.Context, opts Options) (*models.RunResult, error) {
	prepStart := time.Now()

	x, err := data.LoadCSV(opts.DatasetPath)
	if err != nil {
		return nil, err
	}
	return r.runPrepared(ctx, x, opts, prepStart)
}

// RunOnData is RunOnce for an already-loaded complete matrix.
func (r *Runner) RunOnData(ctx context.Context, x *mat.Dense, opts Options) (*models.RunResult, error) {
	return r.runPrepared(ctx, x, opts, time.Now())
}

func (r *Runner) runPrepared(ctx context.Context, x *mat.Dense, opts Options, prepStart time.Time) (*models.RunResult, error) {
	cfg := opts.Config
	rows, dim := x.Dims()

	miss, mask, err := data.Inject(x, opts.MissRate, opts.Modality, cfg.Seed)
	if err != nil {
		return nil, err
	}

	normalizer := data.FitNormalizer(miss)
	normMiss := normalizer.Transform(miss)
	// Ground truth is scaled with the same parameters so RMSE compares
	// like with like.
	normTruth := normalizer.Transform(x)

	recorder, memory, closeRecorder, err := r.buildRecorder(opts.RecordLogPath)
	if err != nil {
		return nil, err
	}
	defer closeRecorder()
	trainer, err := engine.NewTrainer(cfg, dim, rows, r.logger, recorder)
	if err != nil {
		return nil, err
	}

	if opts.StatusAddr != "" && r.metrics != nil {
		server := monitor.NewStatusServer(opts.StatusAddr, r.metrics, trainer, cfg.Iterations, r.logger)
		server.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
	}

	result := &models.RunResult{
		RunID:     uuid.New().String(),
		StartedAt: time.Now(),
		Config:    *cfg,
	}
	result.Timings.Preparation = time.Since(prepStart)

	r.logger.WithFields(logrus.Fields{
		"run_id":    result.RunID,
		"rows":      rows,
		"dim":       dim,
		"miss_rate": opts.MissRate,
		"modality":  opts.Modality,
	}).Info("Starting experiment run")

	trainStart := time.Now()
	trainErr := trainer.Train(ctx, normMiss, mask)
	result.Timings.Training = time.Since(trainStart)
	result.GeneratorStats = trainer.GeneratorStats()
	result.DiscriminatorStats = trainer.DiscriminatorStats()
	if opts.KeepRecords {
		result.Records = memory.Records()
	}

	if trainErr != nil {
		result.Failed = true
		result.RMSE = models.NullableFloat(math.NaN())
		result.FailureReason = trainErr.Error()
		if appErr, ok := trainErr.(*errors.AppError); ok {
			if it, ok := appErr.Context["iteration"].(int); ok {
				result.FailureIteration = it
			}
		}
		r.persist(result, nil, nil)
		return result, trainErr
	}

	finalStart := time.Now()
	imputation, err := engine.Finalize(trainer, normMiss, mask, normTruth, r.logger)
	if err != nil {
		return nil, err
	}
	result.RMSE = models.NullableFloat(imputation.RMSE)

	// Surface the imputation in the original feature ranges, with
	// categorical features rounded.
	imputed := data.RoundCategorical(normalizer.Inverse(imputation.Imputed), miss)
	result.Imputed = matToSlices(imputed)
	result.Timings.Finalization = time.Since(finalStart)

	var snap *models.ModelSnapshot
	if opts.SaveModel {
		snap = trainer.Snapshot()
	}
	var imputedOut *mat.Dense
	if opts.SaveImputation {
		imputedOut = imputed
	}
	r.persist(result, imputedOut, snap)

	r.logger.WithFields(logrus.Fields{
		"run_id": result.RunID,
		"rmse":   imputation.RMSE,
	}).Info("Experiment run completed")

	return result, nil
}

func (r *Runner) buildRecorder(logPath string) (engine.Recorder, *monitor.MemoryRecorder, func(), error) {
	memory := monitor.NewMemoryRecorder()
	recorders := []interface {
		Record(models.IterationRecord)
	}{memory}
	if r.metrics != nil {
		recorders = append(recorders, r.metrics)
	}
	closer := func() {}
	if logPath != "" {
		file, err := monitor.NewFileRecorder(logPath)
		if err != nil {
			return nil, nil, nil, err
		}
		recorders = append(recorders, file)
		closer = func() { _ = file.Close() }
	}
	if len(recorders) == 1 {
		return memory, memory, closer, nil
	}
	return monitor.NewMultiRecorder(recorders...), memory, closer, nil
}

func (r *Runner) persist(result *models.RunResult, imputed *mat.Dense, snap *models.ModelSnapshot) {
	if r.store == nil {
		return
	}
	if err := r.store.SaveResult(result); err != nil {
		r.logger.WithError(err).Warn("Failed to persist run result")
	}
	if imputed != nil {
		if err := r.store.SaveImputed(result.RunID, imputed); err != nil {
			r.logger.WithError(err).Warn("Failed to persist imputed matrix")
		}
	}
	if snap != nil {
		if err := r.store.SaveModel(result.RunID, snap); err != nil {
			r.logger.WithError(err).Warn("Failed to persist model snapshot")
		}
	}
}

func matToSlices(m *mat.Dense) [][]float64 {
	rows, cols := m.Dims()
	out := make([][]float64, rows)
	for i := 0; i < rows; i++ {
		out[i] = make([]float64, cols)
		for j := 0; j < cols; j++ {
			out[i][j] = m.At(i, j)
		}
	}
	return out
}
