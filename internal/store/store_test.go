package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quasim/internal/audit"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "quasim.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndQueryRuns(t *testing.T) {
	s := openTestStore(t)

	started := time.UnixMilli(time.Now().UnixMilli())
	rec := RunRecord{
		ID:        "run-1",
		Kind:      "optimize",
		StartedAt: started,
		Duration:  1500 * time.Millisecond,
		Objective: -0.42,
		Artifact:  "artifacts/run-1.json",
	}
	require.NoError(t, s.SaveRun(rec))

	runs, err := s.RecentRuns("optimize", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	if diff := cmp.Diff(rec, runs[0]); diff != "" {
		t.Fatalf("run record mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveRunUpsert(t *testing.T) {
	s := openTestStore(t)

	rec := RunRecord{ID: "run-1", Kind: "simulate", StartedAt: time.UnixMilli(1000)}
	require.NoError(t, s.SaveRun(rec))
	rec.Objective = 3.14
	rec.Duration = 2 * time.Second
	require.NoError(t, s.SaveRun(rec))

	runs, err := s.RecentRuns("", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 3.14, runs[0].Objective)
	assert.Equal(t, 2*time.Second, runs[0].Duration)
}

func TestRecentRunsOrderAndLimit(t *testing.T) {
	s := openTestStore(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.SaveRun(RunRecord{
			ID:        string(rune('a' + i)),
			Kind:      "bench",
			StartedAt: time.UnixMilli(int64(1000 * (i + 1))),
		}))
	}
	runs, err := s.RecentRuns("bench", 3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "e", runs[0].ID, "newest first")
	assert.Equal(t, "c", runs[2].ID)
}

func TestAuditSinkRoundTrip(t *testing.T) {
	s := openTestStore(t)

	e := audit.Event{
		ID:         "ev-1",
		Timestamp:  42,
		Type:       audit.EventOptimizeEpoch,
		RunID:      "run-9",
		Success:    true,
		DurationMs: 7,
		Message:    "epoch 3",
		Fields:     map[string]interface{}{"epoch": float64(3)},
	}
	require.NoError(t, s.SaveEvent(e))

	events, err := s.EventsByRun("run-9")
	require.NoError(t, err)
	require.Len(t, events, 1)
	if diff := cmp.Diff(e, events[0]); diff != "" {
		t.Fatalf("event mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveEventIdempotent(t *testing.T) {
	s := openTestStore(t)

	e := audit.Event{ID: "ev-1", Timestamp: 1, Type: audit.EventError}
	require.NoError(t, s.SaveEvent(e))
	require.NoError(t, s.SaveEvent(e))

	events, err := s.RecentEvents(10)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestRecentEventsChronological(t *testing.T) {
	s := openTestStore(t)

	for i := 1; i <= 4; i++ {
		require.NoError(t, s.SaveEvent(audit.Event{
			ID:        string(rune('0' + i)),
			Timestamp: int64(i * 100),
			Type:      audit.EventSimulationComplete,
		}))
	}
	events, err := s.RecentEvents(3)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, int64(200), events[0].Timestamp, "oldest of the window first")
	assert.Equal(t, int64(400), events[2].Timestamp)
}
