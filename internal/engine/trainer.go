package engine

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/sparselab/sgain/internal/sparsity"
	"github.com/sparselab/sgain/pkg/errors"
	"github.com/sparselab/sgain/pkg/models"
)

// defaultLearningRate is the Adam step size both networks train with.
const defaultLearningRate = 0.001

// Recorder consumes the per-iteration scalar records the training loop
// emits. Implementations live with the logging/monitoring collaborator; the
// loop itself has no side effects on shared files.
type Recorder interface {
	Record(rec models.IterationRecord)
}

// Trainer runs the alternating adversarial optimization of the generator and
// discriminator. It owns all of its mutable state (weights, masks, optimizer
// buffers) exclusively; only the iteration counter is exported for read-only
// observation.
type Trainer struct {
	logger *logrus.Logger
	cfg    *models.ExperimentConfig
	rng    *rand.Rand

	dim int

	generator     *Generator
	discriminator *Discriminator
	gMask         *sparsity.Manager
	dMask         *sparsity.Manager
	gOpt          *AdamOptimizer
	dOpt          *AdamOptimizer

	// Dense (pre-mask) gradients from the latest step, kept for
	// saliency-based regrowth.
	lastGGrads []*mat.Dense
	lastDGrads []*mat.Dense

	iteration atomic.Int64
	trained   bool
	recorder  Recorder
}

// NewTrainer validates the configuration and builds both networks, their
// mask managers, and their optimizers. Configuration errors are fatal here:
// no iteration may run with an invalid configuration.
func NewTrainer(cfg *models.ExperimentConfig, dim, datasetRows int, logger *logrus.Logger, recorder Recorder) (*Trainer, error) {
	if err := cfg.Validate(datasetRows); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.New()
	}

	rng := rand.New(rand.NewSource(cfg.Seed))

	t := &Trainer{
		logger:        logger,
		cfg:           cfg,
		rng:           rng,
		dim:           dim,
		generator:     NewGenerator(dim, rng),
		discriminator: NewDiscriminator(dim, rng),
		gOpt:          NewAdamOptimizer(defaultLearningRate),
		dOpt:          NewAdamOptimizer(defaultLearningRate),
		recorder:      recorder,
	}

	t.gMask = sparsity.NewManager(cfg.Generator, logger, rng)
	for i, w := range t.generator.Network().Weights() {
		t.gMask.Register(fmt.Sprintf("G_W%d", i+1), w)
	}
	t.dMask = sparsity.NewManager(cfg.Discriminator, logger, rng)
	for i, w := range t.discriminator.Network().Weights() {
		t.dMask.Register(fmt.Sprintf("D_W%d", i+1), w)
	}

	if err := t.gMask.Init(); err != nil {
		return nil, err
	}
	if err := t.dMask.Init(); err != nil {
		return nil, err
	}

	return t, nil
}

// Train runs the configured number of alternating discriminator/generator
// iterations over the normalized data x and observation mask m. The two
// steps of one iteration never overlap and each optimizer step is atomic:
// forward, backward, masked update, mask re-application. Cancelling the
// context stops issuing further iterations.
//
// A NaN or Inf loss aborts the run with a numerical error naming the
// iteration; training must not continue on corrupted gradients.
func (t *Trainer) Train(ctx context.Context, x, m *mat.Dense) error {
	rows, _ := x.Dims()

	t.gMask.BeginTraining()
	t.dMask.BeginTraining()

	t.logger.WithFields(logrus.Fields{
		"rows":                   rows,
		"dim":                    t.dim,
		"iterations":             t.cfg.Iterations,
		"batch_size":             t.cfg.BatchSize,
		"generator_topology":     t.cfg.Generator.Topology,
		"discriminator_topology": t.cfg.Discriminator.Topology,
	}).Info("Starting adversarial imputation training")

	start := time.Now()

	for it := 1; it <= t.cfg.Iterations; it++ {
		select {
		case <-ctx.Done():
			t.logger.WithField("iteration", it).Info("Training cancelled")
			return ctx.Err()
		default:
		}

		idx := sampleBatchIndex(t.rng, rows, t.cfg.BatchSize)
		xB := selectRows(x, idx)
		mB := selectRows(m, idx)

		// Noise and hint are drawn once per iteration and shared by both
		// steps, so the generator is judged on the same game it played.
		z := noiseMatrix(t.rng, t.cfg.BatchSize, t.dim)
		h := hintMatrix(t.rng, mB, t.cfg.HintRate)
		xTilde := corruptInput(xB, mB, z)

		dLoss := t.discriminatorStep(xTilde, mB, h)
		advLoss, mseLoss := t.generatorStep(xTilde, mB, h)

		if hasNaN(dLoss, advLoss, mseLoss) {
			err := errors.NewNumericalError(errors.CodeTrainingDiverged,
				"loss is NaN or Inf").WithContext("iteration", it)
			t.logger.WithFields(logrus.Fields{
				"iteration": it,
				"d_loss":    dLoss,
				"g_adv":     advLoss,
				"g_mse":     mseLoss,
			}).Error("Training diverged")
			return err
		}

		t.iteration.Store(int64(it))

		if t.recorder != nil {
			t.recorder.Record(models.IterationRecord{
				Iteration:             it,
				DLoss:                 dLoss,
				GAdvLoss:              advLoss,
				GMSELoss:              mseLoss,
				GeneratorSparsity:     t.gMask.Stats().Sparsity,
				DiscriminatorSparsity: t.dMask.Stats().Sparsity,
			})
		}

		// Restructure only between iterations; no forward or backward pass
		// ever observes a mask mid-cycle.
		if t.gMask.ShouldRestructure(it) {
			t.restructure(t.gMask, t.gOpt, t.lastGGrads, t.cfg.Generator.FullMomentumReset)
		}
		if t.dMask.ShouldRestructure(it) {
			t.restructure(t.dMask, t.dOpt, t.lastDGrads, t.cfg.Discriminator.FullMomentumReset)
		}

		if it%1000 == 0 {
			t.logger.WithFields(logrus.Fields{
				"iteration": it,
				"d_loss":    dLoss,
				"g_adv":     advLoss,
				"g_mse":     mseLoss,
				"elapsed":   time.Since(start),
			}).Info("Training progress")
		}
	}

	t.trained = true
	t.gMask.Finalize()
	t.dMask.Finalize()

	t.logger.WithFields(logrus.Fields{
		"iterations": t.cfg.Iterations,
		"duration":   time.Since(start),
	}).Info("Adversarial imputation training completed")

	return nil
}

// discriminatorStep runs one full discriminator optimization step and
// returns its loss. The generator's output is treated as a constant here:
// only discriminator weights receive gradients.
func (t *Trainer) discriminatorStep(xTilde, m, h *mat.Dense) float64 {
	estimate, _ := t.generator.Forward(xTilde, m)
	xHat := t.generator.Impute(xTilde, m, estimate)

	prob, cache := t.discriminator.Forward(xHat, h)
	loss, dPre := discriminatorLoss(prob, m)

	wGrads, bGrads, _ := t.discriminator.Network().BackwardPre(cache, dPre)
	t.lastDGrads = cloneAll(wGrads)
	t.dMask.MaskGradients(wGrads)
	t.dOpt.Step(t.discriminator.Network().Weights(), t.discriminator.Network().Biases(), wGrads, bGrads)
	t.dMask.Apply()

	return loss
}

// generatorStep runs one full generator optimization step and returns the
// adversarial and reconstruction losses. The discriminator participates in
// the backward pass as a frozen function: its weights carry the gradient to
// the generator output but are not updated.
func (t *Trainer) generatorStep(xTilde, m, h *mat.Dense) (float64, float64) {
	estimate, gCache := t.generator.Forward(xTilde, m)
	xHat := t.generator.Impute(xTilde, m, estimate)

	prob, dCache := t.discriminator.Forward(xHat, h)

	advLoss, dProb := adversarialLoss(prob, m)
	_, _, dInput := t.discriminator.Network().Backward(dCache, dProb)

	// The discriminator input is [xHat | h]; only the xHat half flows back,
	// and xHat depends on the estimate at missing positions only.
	rows, _ := dInput.Dims()
	dEstAdv := mat.NewDense(rows, t.dim, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < t.dim; j++ {
			if m.At(i, j) == 0 {
				dEstAdv.Set(i, j, dInput.At(i, j))
			}
		}
	}

	mseLoss, dEstMSE := reconstructionLoss(estimate, xTilde, m)

	// Alpha weights the reconstruction term before backpropagation so one
	// combined gradient flows through the generator.
	dEstimate := scaleAdd(dEstAdv, dEstMSE, t.cfg.Alpha)

	wGrads, bGrads, _ := t.generator.Network().Backward(gCache, dEstimate)
	t.lastGGrads = cloneAll(wGrads)
	t.gMask.MaskGradients(wGrads)
	t.gOpt.Step(t.generator.Network().Weights(), t.generator.Network().Biases(), wGrads, bGrads)
	t.gMask.Apply()

	return advLoss, mseLoss
}

func (t *Trainer) restructure(mgr *sparsity.Manager, opt *AdamOptimizer, grads []*mat.Dense, fullReset bool) {
	regrown := mgr.Restructure(grads)
	for layer, coords := range regrown {
		opt.ResetMoments(layer, coords, fullReset)
	}
	mgr.Apply()
}

// Iteration returns the last completed training iteration. Safe for
// concurrent read by the monitoring collaborator.
func (t *Trainer) Iteration() int {
	return int(t.iteration.Load())
}

// Generator returns the trained generator.
func (t *Trainer) Generator() *Generator {
	return t.generator
}

// Discriminator returns the discriminator.
func (t *Trainer) Discriminator() *Discriminator {
	return t.discriminator
}

// GeneratorStats returns the generator's connectivity statistics.
func (t *Trainer) GeneratorStats() models.SparsityStats {
	return t.gMask.Stats()
}

// DiscriminatorStats returns the discriminator's connectivity statistics.
func (t *Trainer) DiscriminatorStats() models.SparsityStats {
	return t.dMask.Stats()
}

// GeneratorMask exposes the generator's mask manager for inspection.
func (t *Trainer) GeneratorMask() *sparsity.Manager {
	return t.gMask
}

// DiscriminatorMask exposes the discriminator's mask manager for inspection.
func (t *Trainer) DiscriminatorMask() *sparsity.Manager {
	return t.dMask
}

// Trained reports whether Train has completed successfully.
func (t *Trainer) Trained() bool {
	return t.trained
}

// Rand returns the trainer's random source. The finalizer draws its noise
// from the same stream so a whole run is reproducible under one seed.
func (t *Trainer) Rand() *rand.Rand {
	return t.rng
}

func cloneAll(ms []*mat.Dense) []*mat.Dense {
	out := make([]*mat.Dense, len(ms))
	for i, m := range ms {
		out[i] = mat.DenseCopyOf(m)
	}
	return out
}
