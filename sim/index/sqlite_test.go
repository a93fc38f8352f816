package index

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestIndex(t *testing.T) *SQLiteIndex {
	t.Helper()
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "db", "trials.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestOpenSQLite_EmptyPath(t *testing.T) {
	_, err := OpenSQLite("")
	assert.Error(t, err)
}

func TestSQLiteIndex_RecordAndList(t *testing.T) {
	// GIVEN an index with trials of two runs
	idx := openTestIndex(t)
	ctx := context.Background()
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	recs := []TrialRecord{
		{RunID: "run-a", Trial: "random_max=10_n=100_1", N: 100, Repetition: 1, Seed: 9, RandomMax: 10,
			Adversary: true, Iterations: 50, Resolution: 1, Status: StatusOK, FinalN: 100, Snapshots: 51,
			OutputPath: "/tmp/x.csv", StartedAt: start, FinishedAt: start.Add(time.Second)},
		{RunID: "run-a", Trial: "random_max=10_n=10_0", N: 10, Repetition: 0, Status: StatusFailed,
			Error: "boom", StartedAt: start, FinishedAt: start},
		{RunID: "run-b", Trial: "random_max=10_n=10_0", N: 10, Status: StatusOK, StartedAt: start, FinishedAt: start},
	}
	for _, r := range recs {
		require.NoError(t, idx.RecordTrial(ctx, r))
	}

	// WHEN listing run-a
	got, err := idx.Trials(ctx, "run-a")
	require.NoError(t, err)

	// THEN its rows come back ordered by n
	require.Len(t, got, 2)
	assert.Equal(t, recs[1], got[0])
	assert.Equal(t, recs[0], got[1])
}

func TestSQLiteIndex_RecordReplacesSameTrial(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()
	r := TrialRecord{RunID: "r", Trial: "t", Status: StatusFailed, Error: "first"}
	require.NoError(t, idx.RecordTrial(ctx, r))
	r.Status, r.Error = StatusOK, ""
	require.NoError(t, idx.RecordTrial(ctx, r))

	got, err := idx.Trials(ctx, "r")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, StatusOK, got[0].Status)
}

func TestSQLiteIndex_TrialsRejectsCorruptTimestamp(t *testing.T) {
	// GIVEN a stored row whose started_at is not a timestamp
	idx := openTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.RecordTrial(ctx, TrialRecord{RunID: "r", Trial: "t", Status: StatusOK}))
	_, err := idx.db.ExecContext(ctx, `UPDATE trials SET started_at = 'yesterday' WHERE run_id = 'r'`)
	require.NoError(t, err)

	// WHEN listing the run
	_, err = idx.Trials(ctx, "r")

	// THEN the parse failure is reported instead of a zero time
	require.Error(t, err)
	assert.Contains(t, err.Error(), "started_at")
}
