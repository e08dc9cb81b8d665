package data

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDataset(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadCSV(t *testing.T) {
	path := writeDataset(t, "a,b,c\n1,2.5,-3\n4,5,6\n")

	x, err := LoadCSV(path)
	require.NoError(t, err)

	rows, cols := x.Dims()
	assert.Equal(t, 2, rows)
	assert.Equal(t, 3, cols)
	assert.Equal(t, 2.5, x.At(0, 1))
	assert.Equal(t, -3.0, x.At(0, 2))
	assert.Equal(t, 6.0, x.At(1, 2))
}

func TestLoadCSVMissingFile(t *testing.T) {
	_, err := LoadCSV(filepath.Join(t.TempDir(), "absent.csv"))
	assert.Error(t, err)
}

func TestLoadCSVHeaderOnly(t *testing.T) {
	path := writeDataset(t, "a,b,c\n")
	_, err := LoadCSV(path)
	assert.Error(t, err)
}

func TestLoadCSVNonNumeric(t *testing.T) {
	path := writeDataset(t, "a,b\n1,x\n")
	_, err := LoadCSV(path)
	assert.Error(t, err)
}

func TestLoadCSVRaggedRows(t *testing.T) {
	path := writeDataset(t, "a,b,c\n1,2,3\n4,5\n")
	_, err := LoadCSV(path)
	assert.Error(t, err)
}
