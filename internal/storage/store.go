package storage

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/sparselab/sgain/pkg/errors"
	"github.com/sparselab/sgain/pkg/models"
)

// FileStore persists run outputs under a root directory: one JSON result log
// and one imputed-matrix CSV per run, plus optional model snapshots.
type FileStore struct {
	root string
}

// NewFileStore creates the root directory if needed.
func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed,
			"failed to create output folder")
	}
	return &FileStore{root: root}, nil
}

// Root returns the store's base directory.
func (s *FileStore) Root() string {
	return s.root
}

// SaveResult writes the run result as <run_id>.log.json.
func (s *FileStore) SaveResult(result *models.RunResult) error {
	return s.writeJSON(result.RunID+".log.json", result)
}

// SaveImputed writes the imputed matrix as <run_id>.imputed.csv.
func (s *FileStore) SaveImputed(runID string, imputed *mat.Dense) error {
	f, err := os.Create(filepath.Join(s.root, runID+".imputed.csv"))
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed,
			"failed to create imputation file")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	rows, cols := imputed.Dims()
	record := make([]string, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			record[j] = strconv.FormatFloat(imputed.At(i, j), 'g', -1, 64)
		}
		if err := w.Write(record); err != nil {
			return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed,
				"failed to write imputation row")
		}
	}
	w.Flush()
	return w.Error()
}

// SaveModel writes a trained model snapshot as <run_id>.model.json.
func (s *FileStore) SaveModel(runID string, snap *models.ModelSnapshot) error {
	return s.writeJSON(runID+".model.json", snap)
}

// LoadModel reads a model snapshot back.
func (s *FileStore) LoadModel(runID string) (*models.ModelSnapshot, error) {
	raw, err := os.ReadFile(filepath.Join(s.root, runID+".model.json"))
	if os.IsNotExist(err) {
		return nil, errors.WrapError(errors.ErrModelNotFound, errors.ErrorTypeStorage, errors.CodeModelNotFound,
			"no model snapshot for run "+runID)
	}
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed,
			"failed to read model snapshot")
	}
	var snap models.ModelSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed,
			"failed to decode model snapshot")
	}
	return &snap, nil
}

// LoadResults reads every run result log under the root, for cross-run
// analysis.
func (s *FileStore) LoadResults() ([]models.RunResult, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed,
			"failed to list output folder")
	}

	results := make([]models.RunResult, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".log.json") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(s.root, entry.Name()))
		if err != nil {
			return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed,
				"failed to read run log")
		}
		var result models.RunResult
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed,
				"failed to decode run log "+entry.Name())
		}
		results = append(results, result)
	}
	return results, nil
}

func (s *FileStore) writeJSON(name string, v interface{}) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed,
			"failed to encode "+name)
	}
	if err := os.WriteFile(filepath.Join(s.root, name), raw, 0o644); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed,
			"failed to write "+name)
	}
	return nil
}
