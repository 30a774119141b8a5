package episodes

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openIndex(t *testing.T) (*SQLiteIndex, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "episodes.db")
	idx, err := OpenSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx, path
}

func summary(agent string, episode uint64, outcome string) Summary {
	return Summary{
		ID:           uuid.NewString(),
		RunID:        "run-1",
		AgentID:      agent,
		Episode:      episode,
		Steps:        100 + episode,
		Duration:     2.5,
		Reward:       float64(episode) - 0.5,
		Outcome:      outcome,
		Branch:       "scatter",
		GoalDistance: 7.25,
		FinishedAt:   time.Date(2025, 1, 2, 3, 4, 5, 6, time.UTC),
	}
}

func TestOpenSQLiteEmptyPath(t *testing.T) {
	_, err := OpenSQLite("")
	assert.ErrorIs(t, err, ErrEmptyPath)
}

func TestRecordAndQuery(t *testing.T) {
	idx, _ := openIndex(t)
	ctx := context.Background()

	outcomes := []string{OutcomeGoal, OutcomeDeathzone, OutcomeGoal, OutcomeTimeout}
	for i, o := range outcomes {
		require.NoError(t, idx.Record(summary("a1", uint64(i+1), o)))
	}
	require.NoError(t, idx.Record(summary("a2", 1, OutcomeGoal)))
	require.NoError(t, idx.Flush(ctx))

	all, err := idx.Summaries(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
	assert.Equal(t, "a2", all[0].AgentID)

	a1, err := idx.Summaries(ctx, "a1", 2)
	require.NoError(t, err)
	require.Len(t, a1, 2)
	assert.Equal(t, uint64(4), a1[0].Episode)
	assert.Equal(t, uint64(3), a1[1].Episode)
	assert.Equal(t, OutcomeTimeout, a1[0].Outcome)
	assert.Equal(t, uint64(104), a1[0].Steps)
	assert.Equal(t, 3.5, a1[0].Reward)
	assert.True(t, a1[0].FinishedAt.Equal(time.Date(2025, 1, 2, 3, 4, 5, 6, time.UTC)))

	counts, err := idx.Outcomes(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{OutcomeGoal: 3, OutcomeDeathzone: 1, OutcomeTimeout: 1}, counts)
}

func TestCloseFlushesQueue(t *testing.T) {
	idx, path := openIndex(t)
	for i := 0; i < 50; i++ {
		require.NoError(t, idx.Record(summary(fmt.Sprintf("a%d", i%3), uint64(i), OutcomeGoal)))
	}
	require.NoError(t, idx.Close())
	assert.ErrorIs(t, idx.Record(summary("a0", 99, OutcomeGoal)), ErrClosed)
	assert.ErrorIs(t, idx.Flush(context.Background()), ErrClosed)

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM episodes`).Scan(&n))
	assert.Equal(t, 50-int(idx.Dropped()), n)
}

func TestReopenKeepsRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "episodes.db")
	idx, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, idx.Record(summary("a1", 1, OutcomeGoal)))
	require.NoError(t, idx.Close())

	idx, err = OpenSQLite(path)
	require.NoError(t, err)
	defer idx.Close()
	got, err := idx.Summaries(context.Background(), "a1", 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestWriteFailureIsReported(t *testing.T) {
	idx, _ := openIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Record(summary("a1", 1, OutcomeGoal)))
	require.NoError(t, idx.Flush(ctx))

	require.NoError(t, idx.db.Close())
	require.NoError(t, idx.Record(summary("a1", 2, OutcomeGoal)))

	err := idx.Flush(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, idx.Err(), err)
	assert.Equal(t, uint64(1), idx.Failed())

	assert.ErrorIs(t, idx.Record(summary("a1", 3, OutcomeGoal)), err)
	assert.ErrorIs(t, idx.Close(), err)
}

func TestRecordRacingClose(t *testing.T) {
	for round := 0; round < 20; round++ {
		idx, err := OpenSQLite(filepath.Join(t.TempDir(), "episodes.db"))
		require.NoError(t, err)

		var wg sync.WaitGroup
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < 200; i++ {
					err := idx.Record(summary(fmt.Sprintf("a%d", w), uint64(i), OutcomeGoal))
					if err != nil {
						assert.ErrorIs(t, err, ErrClosed)
						return
					}
				}
			}(w)
		}
		require.NoError(t, idx.Close())
		wg.Wait()
	}
}
