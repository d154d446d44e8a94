package batch_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/porter/internal/batch"
	"github.com/mesh-intelligence/porter/internal/logging"
	"github.com/mesh-intelligence/porter/internal/store"
	"github.com/mesh-intelligence/porter/internal/store/storetest"
	"github.com/mesh-intelligence/porter/pkg/types"
)

// seedUsageMonths inserts one staged usage row per month starting at
// 2020-01-15, for the given number of months.
func seedUsageMonths(t *testing.T, s *store.Store, months int) {
	t.Helper()
	start := time.Date(2020, 1, 15, 0, 0, 0, 0, time.UTC)
	for i := 0; i < months; i++ {
		day := start.AddDate(0, i, 0)
		storetest.Exec(t, s.DB(), `INSERT INTO staging_usage
    (sample_id, device_id, sampled_on, bytes_down, bytes_up)
VALUES (?, ?, ?, ?, ?)`,
			i+1, 1, day.Format("2006-01-02"), 1<<30, 1<<20)
	}
}

func usageSpec(months int) batch.Spec {
	return batch.Spec{
		Entity:     types.EntityUsage,
		Table:      "staging_usage",
		DateColumn: "sampled_on",
		Months:     months,
	}
}

// countingFunc returns a WindowFunc that records each window and counts
// the staged rows it covers.
func countingFunc(windows *[][2]time.Time) batch.WindowFunc {
	return func(ctx context.Context, tx *sql.Tx, start, end time.Time) (int64, error) {
		*windows = append(*windows, [2]time.Time{start, end})
		var n int64
		err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM staging_usage WHERE sampled_on >= ? AND sampled_on < ?",
			start.Format("2006-01-02"), end.Format("2006-01-02"),
		).Scan(&n)
		return n, err
	}
}

func TestRunIssuesExpectedWindows(t *testing.T) {
	s := storetest.Open(t, "")
	seedUsageMonths(t, s, 40) // spans 2020-01 .. 2023-04

	var windows [][2]time.Time
	total, err := batch.New(s, logging.Nop()).Run(context.Background(), usageSpec(3), countingFunc(&windows))
	require.NoError(t, err)

	// 40 months at 3-month width is exactly 14 windows.
	assert.Len(t, windows, 14)
	assert.Equal(t, int64(40), total)

	// Windows are contiguous, non-overlapping, and in time order, so
	// the union of window counts equals the unscoped count.
	for i, w := range windows {
		assert.True(t, w[0].Before(w[1]))
		if i > 0 {
			assert.Equal(t, windows[i-1][1], w[0])
		}
	}
	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), windows[0][0])
}

func TestRunEmptyRangeShortCircuits(t *testing.T) {
	s := storetest.Open(t, "")

	called := false
	total, err := batch.New(s, logging.Nop()).Run(context.Background(), usageSpec(3),
		func(ctx context.Context, tx *sql.Tx, start, end time.Time) (int64, error) {
			called = true
			return 0, nil
		})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.False(t, called)
}

func TestRunRejectsNonPositiveWindow(t *testing.T) {
	s := storetest.Open(t, "")
	_, err := batch.New(s, logging.Nop()).Run(context.Background(), usageSpec(0), countingFunc(&[][2]time.Time{}))
	assert.ErrorIs(t, err, types.ErrWindowInvalid)
}

// moverFunc copies each window's staged rows into usage_records, with
// an optional simulated failure on the nth window.
func moverFunc(failOn int) batch.WindowFunc {
	call := 0
	return func(ctx context.Context, tx *sql.Tx, start, end time.Time) (int64, error) {
		call++
		if failOn > 0 && call == failOn {
			return 0, fmt.Errorf("simulated failure on window %d", call)
		}
		res, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO usage_records
    (source_ref, device_id, sampled_at, down_gib, up_gib)
SELECT sample_id, 'dev', sampled_on, 1.0, 0.5
FROM staging_usage WHERE sampled_on >= ? AND sampled_on < ?`,
			start.Format("2006-01-02"), end.Format("2006-01-02"))
		if err != nil {
			return 0, err
		}
		return res.RowsAffected()
	}
}

func TestRunFailureLeavesPriorWindowsCommittedAndResumes(t *testing.T) {
	s := storetest.Open(t, "")
	seedUsageMonths(t, s, 40)
	sched := batch.New(s, logging.Nop())
	ctx := context.Background()

	// Fail on the 10th window: the first nine stay committed.
	moved, err := sched.Run(ctx, usageSpec(3), moverFunc(10))
	require.Error(t, err)
	assert.False(t, errors.Is(err, context.Canceled))
	assert.Equal(t, int64(27), moved) // 9 windows of 3 monthly rows
	assert.Equal(t, int64(27),
		storetest.Count(t, s.DB(), "SELECT COUNT(*) FROM usage_records"))

	// A clean re-invocation resumes: committed windows are no-ops, the
	// remainder lands, and nothing is double-counted.
	moved, err = sched.Run(ctx, usageSpec(3), moverFunc(0))
	require.NoError(t, err)
	assert.Equal(t, int64(13), moved) // windows 10..14 carry the rest
	assert.Equal(t, int64(40),
		storetest.Count(t, s.DB(), "SELECT COUNT(*) FROM usage_records"))

	// Idempotent re-run: zero net new rows.
	moved, err = sched.Run(ctx, usageSpec(3), moverFunc(0))
	require.NoError(t, err)
	assert.Zero(t, moved)
}

func TestRunHonorsNarrowingBounds(t *testing.T) {
	s := storetest.Open(t, "")
	seedUsageMonths(t, s, 40)

	spec := usageSpec(3)
	spec.From = time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	spec.To = time.Date(2021, 7, 1, 0, 0, 0, 0, time.UTC)

	var windows [][2]time.Time
	total, err := batch.New(s, logging.Nop()).Run(context.Background(), spec, countingFunc(&windows))
	require.NoError(t, err)
	assert.Equal(t, int64(6), total) // six monthly rows in [2021-01, 2021-07)
	assert.Len(t, windows, 2)
}

func TestRunClampsMidMonthFromBound(t *testing.T) {
	s := storetest.Open(t, "")

	// Two rows in the same month, straddling a mid-month From. The
	// month-anchored grid must not pull the earlier row back in.
	for i, day := range []string{"2021-01-05", "2021-01-20"} {
		storetest.Exec(t, s.DB(), `INSERT INTO staging_usage
    (sample_id, device_id, sampled_on, bytes_down, bytes_up)
VALUES (?, ?, ?, ?, ?)`,
			i+1, 1, day, 1<<30, 1<<20)
	}

	spec := usageSpec(3)
	spec.From = time.Date(2021, 1, 15, 0, 0, 0, 0, time.UTC)

	var windows [][2]time.Time
	total, err := batch.New(s, logging.Nop()).Run(context.Background(), spec, countingFunc(&windows))
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, windows, 1)
	assert.Equal(t, spec.From, windows[0][0])
}
