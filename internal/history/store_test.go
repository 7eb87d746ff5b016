// File: internal/history/store_test.go
package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forumsign/forumsign/internal/checkin"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Reopening an existing database must not fail on the schema.
	s, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestRecordAndListAttempts(t *testing.T) {
	s := openTestStore(t)

	started := time.Date(2026, 8, 24, 8, 30, 0, 0, time.UTC)
	first := checkin.AttemptRecord{
		ID:         "attempt-1",
		StartedAt:  started,
		FinishedAt: started.Add(40 * time.Second),
		Succeeded:  false,
		Basis:      "no-signal",
		Reason:     "no-signal",
	}
	second := checkin.AttemptRecord{
		ID:         "attempt-2",
		StartedAt:  started.Add(time.Minute),
		FinishedAt: started.Add(2 * time.Minute),
		Succeeded:  true,
		Basis:      "explicit-signal",
	}
	require.NoError(t, s.RecordAttempt(first))
	require.NoError(t, s.RecordAttempt(second))

	recs, err := s.RecentAttempts(10)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	// Newest first.
	assert.Equal(t, "attempt-2", recs[0].ID)
	assert.True(t, recs[0].Succeeded)
	assert.Equal(t, "explicit-signal", recs[0].Basis)
	assert.Equal(t, "attempt-1", recs[1].ID)
	assert.False(t, recs[1].Succeeded)
	assert.Equal(t, "no-signal", recs[1].Reason)
	assert.True(t, recs[1].StartedAt.Equal(started))
}

func TestFireDayTracking(t *testing.T) {
	s := openTestStore(t)

	day := time.Date(2026, 8, 24, 8, 31, 0, 0, time.UTC)

	fired, err := s.FiredOn(day)
	require.NoError(t, err)
	assert.False(t, fired)

	require.NoError(t, s.RecordFire(day))

	fired, err = s.FiredOn(day)
	require.NoError(t, err)
	assert.True(t, fired)

	// Any time on the same calendar day counts.
	fired, err = s.FiredOn(day.Add(10 * time.Hour))
	require.NoError(t, err)
	assert.True(t, fired)

	// The next day is fresh.
	fired, err = s.FiredOn(day.Add(24 * time.Hour))
	require.NoError(t, err)
	assert.False(t, fired)

	// Re-recording the same day is not an error.
	require.NoError(t, s.RecordFire(day))
}
