package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndReadBack(t *testing.T) {
	s := newTestStore(t)

	started := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	id, err := s.RecordRun(Run{
		LoginURL:        "https://example.com/login",
		StartedAt:       started,
		FinishedAt:      started.Add(10 * time.Second),
		Status:          StatusOK,
		CandidateSource: "cookie",
		CandidateName:   "PHPSESSID",
		SnapshotPath:    "/tmp/snap.json",
		ConfigPath:      "/tmp/tokens.json",
	})
	require.NoError(t, err)
	assert.Positive(t, id)

	runs, err := s.RecentRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "https://example.com/login", runs[0].LoginURL)
	assert.Equal(t, StatusOK, runs[0].Status)
	assert.Equal(t, "PHPSESSID", runs[0].CandidateName)
	assert.True(t, runs[0].StartedAt.Equal(started))
}

func TestRecentRuns_OrderAndLimit(t *testing.T) {
	s := newTestStore(t)

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 5; i++ {
		_, err := s.RecordRun(Run{
			LoginURL:   "https://example.com/login",
			StartedAt:  base.Add(time.Duration(i) * time.Minute),
			FinishedAt: base.Add(time.Duration(i)*time.Minute + time.Second),
			Status:     StatusNoCandidate,
		})
		require.NoError(t, err)
	}

	runs, err := s.RecentRuns(3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.True(t, runs[0].StartedAt.After(runs[1].StartedAt))
	assert.True(t, runs[1].StartedAt.After(runs[2].StartedAt))
}

func TestRecentRuns_Empty(t *testing.T) {
	s := newTestStore(t)

	runs, err := s.RecentRuns(10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}
