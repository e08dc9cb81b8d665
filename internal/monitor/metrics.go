package monitor

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sparselab/sgain/pkg/models"
)

// Metrics publishes per-iteration training scalars and process resource
// gauges for scraping. The training loop never touches these directly; a
// Metrics value wraps itself as a Recorder.
type Metrics struct {
	registry *prometheus.Registry

	iterations            prometheus.Counter
	dLoss                 prometheus.Gauge
	gAdvLoss              prometheus.Gauge
	gMSELoss              prometheus.Gauge
	generatorSparsity     prometheus.Gauge
	discriminatorSparsity prometheus.Gauge

	heapBytes  prometheus.Gauge
	numGC      prometheus.Gauge
	goroutines prometheus.Gauge
}

// NewMetrics creates and registers the collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		iterations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sgain",
			Name:      "training_iterations_total",
			Help:      "Completed training iterations.",
		}),
		dLoss: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sgain",
			Name:      "discriminator_loss",
			Help:      "Masked cross-entropy of the discriminator at the last iteration.",
		}),
		gAdvLoss: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sgain",
			Name:      "generator_adversarial_loss",
			Help:      "Adversarial term of the generator loss at the last iteration.",
		}),
		gMSELoss: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sgain",
			Name:      "generator_mse_loss",
			Help:      "Reconstruction term of the generator loss at the last iteration.",
		}),
		generatorSparsity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sgain",
			Name:      "generator_sparsity",
			Help:      "Achieved sparsity of the generator's weight matrices.",
		}),
		discriminatorSparsity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sgain",
			Name:      "discriminator_sparsity",
			Help:      "Achieved sparsity of the discriminator's weight matrices.",
		}),
		heapBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sgain",
			Name:      "heap_alloc_bytes",
			Help:      "Heap bytes allocated, sampled by the resource monitor.",
		}),
		numGC: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sgain",
			Name:      "gc_cycles",
			Help:      "Completed GC cycles, sampled by the resource monitor.",
		}),
		goroutines: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sgain",
			Name:      "goroutines",
			Help:      "Live goroutines, sampled by the resource monitor.",
		}),
	}

	m.registry.MustRegister(
		m.iterations, m.dLoss, m.gAdvLoss, m.gMSELoss,
		m.generatorSparsity, m.discriminatorSparsity,
		m.heapBytes, m.numGC, m.goroutines,
	)
	return m
}

// Record implements the engine's Recorder interface.
func (m *Metrics) Record(rec models.IterationRecord) {
	m.iterations.Inc()
	m.dLoss.Set(rec.DLoss)
	m.gAdvLoss.Set(rec.GAdvLoss)
	m.gMSELoss.Set(rec.GMSELoss)
	m.generatorSparsity.Set(rec.GeneratorSparsity)
	m.discriminatorSparsity.Set(rec.DiscriminatorSparsity)
}

// Registry returns the registry for HTTP exposition.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
