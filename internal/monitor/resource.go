package monitor

import (
	"context"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
)

// ResourceMonitor samples process-wide resource metrics on its own schedule,
// independently of the training loop. It shares no mutable state with the
// engine; everything it reads comes from the runtime.
type ResourceMonitor struct {
	logger   *logrus.Logger
	metrics  *Metrics
	interval time.Duration
	done     chan struct{}
}

// NewResourceMonitor creates a sampler publishing into the given metrics.
func NewResourceMonitor(metrics *Metrics, interval time.Duration, logger *logrus.Logger) *ResourceMonitor {
	if logger == nil {
		logger = logrus.New()
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &ResourceMonitor{
		logger:   logger,
		metrics:  metrics,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start launches the sampling goroutine. It stops when the context is
// cancelled or Stop is called.
func (r *ResourceMonitor) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.done:
				return
			case <-ticker.C:
				r.sample()
			}
		}
	}()
}

// Stop terminates the sampling goroutine.
func (r *ResourceMonitor) Stop() {
	close(r.done)
}

func (r *ResourceMonitor) sample() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	r.metrics.heapBytes.Set(float64(ms.HeapAlloc))
	r.metrics.numGC.Set(float64(ms.NumGC))
	r.metrics.goroutines.Set(float64(runtime.NumGoroutine()))
}
