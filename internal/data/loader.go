package data

import (
	"encoding/csv"
	"os"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/sparselab/sgain/pkg/errors"
)

// LoadCSV reads a numeric dataset: one row per sample, comma-separated
// feature columns, a single header row that is skipped. No label columns are
// expected.
func LoadCSV(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeData, errors.CodeReadFailed,
			"failed to open dataset")
	}
	defer f.Close()

	reader := csv.NewReader(f)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeData, errors.CodeReadFailed,
			"failed to parse dataset")
	}
	if len(rows) < 2 {
		return nil, errors.NewDataError(errors.CodeEmptyDataset, "dataset has no data rows")
	}

	records := rows[1:] // skip header
	dim := len(records[0])
	out := mat.NewDense(len(records), dim, nil)
	for i, record := range records {
		if len(record) != dim {
			return nil, errors.NewDataError(errors.CodeRaggedDataset,
				"row "+strconv.Itoa(i+2)+" has inconsistent length")
		}
		for j, field := range record {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, errors.NewDataError(errors.CodeNonNumericValue,
					"row "+strconv.Itoa(i+2)+" column "+strconv.Itoa(j+1)+": "+field)
			}
			out.Set(i, j, v)
		}
	}
	return out, nil
}
