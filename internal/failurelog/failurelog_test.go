package failurelog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledRecordsNothing(t *testing.T) {
	t.Setenv(EnableEnvVar, "")
	dir := t.TempDir()

	l, err := FromEnv(dir, nil)
	require.NoError(t, err)
	assert.False(t, l.Enabled())
	l.Record(Entry{Error: "ignored"})
	assert.NoError(t, l.Close())

	_, err = os.Stat(filepath.Join(dir, fileName))
	assert.True(t, os.IsNotExist(err))

	var nilLogger *Logger
	nilLogger.Record(Entry{})
	assert.NoError(t, nilLogger.Prune(time.Now()))
}

func TestRecordAndPrune(t *testing.T) {
	t.Setenv(EnableEnvVar, "true")
	dir := t.TempDir()

	l, err := FromEnv(dir, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	assert.Equal(t, filepath.Join(dir, fileName), l.Path())

	l.Record(Entry{Timestamp: "2001-02-03T04:05:06Z", RequestID: "old", Operation: "split", Error: "boom"})
	l.Record(Entry{RequestID: "new", Operation: "ocr", Inputs: []string{"scan.png"}, Error: "engine crashed"})

	require.NoError(t, l.Prune(time.Now().AddDate(0, 0, -DefaultRetentionDays)))

	data, err := os.ReadFile(l.Path())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"request_id":"new"`)
	assert.Contains(t, lines[0], `"inputs":["scan.png"]`)

	// the file is reopened for appending after a prune
	l.Record(Entry{RequestID: "after", Error: "again"})
	data, err = os.ReadFile(l.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"request_id":"after"`)
}

func TestPruneKeepsUnparseableLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failures.log")
	require.NoError(t, os.WriteFile(path, []byte("not json\n"), 0600))

	l, err := Open(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	require.NoError(t, l.Prune(time.Now()))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "not json\n", string(data))
}
