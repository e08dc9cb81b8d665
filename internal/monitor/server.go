package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Progress is the read-only view of the training loop the status server is
// allowed to observe.
type Progress interface {
	Iteration() int
}

// StatusServer exposes run progress and Prometheus metrics over HTTP while a
// long experiment runs.
type StatusServer struct {
	logger   *logrus.Logger
	metrics  *Metrics
	progress Progress
	total    int
	started  time.Time
	srv      *http.Server
}

// NewStatusServer creates a server bound to addr.
func NewStatusServer(addr string, metrics *Metrics, progress Progress, totalIterations int, logger *logrus.Logger) *StatusServer {
	if logger == nil {
		logger = logrus.New()
	}
	s := &StatusServer{
		logger:   logger,
		metrics:  metrics,
		progress: progress,
		total:    totalIterations,
		started:  time.Now(),
	}

	router := mux.NewRouter()
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Start serves in a background goroutine.
func (s *StatusServer) Start() {
	go func() {
		s.logger.WithField("addr", s.srv.Addr).Info("Status server listening")
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Warn("Status server stopped")
		}
	}()
}

// Shutdown gracefully stops the server.
func (s *StatusServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *StatusServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *StatusServer) handleStatus(w http.ResponseWriter, _ *http.Request) {
	iteration := s.progress.Iteration()
	status := map[string]interface{}{
		"iteration":        iteration,
		"total_iterations": s.total,
		"elapsed":          time.Since(s.started).String(),
	}
	if s.total > 0 {
		status["percent_complete"] = 100 * float64(iteration) / float64(s.total)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(status)
}
