package monitor

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparselab/sgain/pkg/models"
)

func record(it int) models.IterationRecord {
	return models.IterationRecord{
		Iteration: it,
		DLoss:     0.5,
		GAdvLoss:  0.4,
		GMSELoss:  0.1,
	}
}

func TestMemoryRecorder(t *testing.T) {
	r := NewMemoryRecorder()
	r.Record(record(1))
	r.Record(record(2))

	records := r.Records()
	require.Len(t, records, 2)
	assert.Equal(t, 1, records[0].Iteration)
	assert.Equal(t, 2, records[1].Iteration)
}

func TestFileRecorderWritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "iterations.jsonl")

	r, err := NewFileRecorder(path)
	require.NoError(t, err)
	r.Record(record(1))
	r.Record(record(2))
	require.NoError(t, r.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines int
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec models.IterationRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		lines++
		assert.Equal(t, lines, rec.Iteration)
		assert.Equal(t, 0.5, rec.DLoss)
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, 2, lines)
}

func TestMultiRecorderFansOut(t *testing.T) {
	a := NewMemoryRecorder()
	b := NewMemoryRecorder()

	multi := NewMultiRecorder(a, b)
	multi.Record(record(7))

	require.Len(t, a.Records(), 1)
	require.Len(t, b.Records(), 1)
	assert.Equal(t, 7, a.Records()[0].Iteration)
}
