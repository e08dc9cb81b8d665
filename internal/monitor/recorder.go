package monitor

import (
	"encoding/json"
	"os"

	"github.com/sparselab/sgain/pkg/errors"
	"github.com/sparselab/sgain/pkg/models"
)

// MemoryRecorder accumulates iteration records in memory for later
// inspection or persistence.
type MemoryRecorder struct {
	records []models.IterationRecord
}

// NewMemoryRecorder creates an empty in-memory recorder.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{records: make([]models.IterationRecord, 0, 1024)}
}

// Record appends one iteration record.
func (r *MemoryRecorder) Record(rec models.IterationRecord) {
	r.records = append(r.records, rec)
}

// Records returns everything recorded so far.
func (r *MemoryRecorder) Records() []models.IterationRecord {
	return r.records
}

// FileRecorder streams iteration records to a file as JSON lines, one record
// per line, so a crashed run still leaves a usable partial log.
type FileRecorder struct {
	f   *os.File
	enc *json.Encoder
}

// NewFileRecorder opens (truncating) the given path for streaming records.
func NewFileRecorder(path string) (*FileRecorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed,
			"failed to create iteration log")
	}
	return &FileRecorder{f: f, enc: json.NewEncoder(f)}, nil
}

// Record writes one iteration record as a JSON line. Write failures are
// swallowed: losing a log line must not abort a training run.
func (r *FileRecorder) Record(rec models.IterationRecord) {
	_ = r.enc.Encode(rec)
}

// Close flushes and closes the underlying file.
func (r *FileRecorder) Close() error {
	return r.f.Close()
}

// MultiRecorder fans records out to several recorders.
type MultiRecorder struct {
	recorders []interface {
		Record(models.IterationRecord)
	}
}

// NewMultiRecorder combines recorders into one.
func NewMultiRecorder(recorders ...interface{ Record(models.IterationRecord) }) *MultiRecorder {
	return &MultiRecorder{recorders: recorders}
}

// Record forwards the record to every underlying recorder.
func (r *MultiRecorder) Record(rec models.IterationRecord) {
	for _, sub := range r.recorders {
		sub.Record(rec)
	}
}
