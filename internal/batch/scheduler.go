// Package batch implements the windowed scheduler that moves oversized
// time-partitioned tables in bounded, independently-committed slices.
// No watermark is persisted between runs: a re-run re-derives the
// covering range and relies on the window functions' conflict-skip
// writes, so already-committed windows are cheap no-ops on resume.
package batch

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/porter/internal/store"
	"github.com/mesh-intelligence/porter/pkg/types"
)

// dateLayout is the date prefix used throughout the source and working
// schemas.
const dateLayout = "2006-01-02"

// WindowFunc processes one time window inside the given transaction and
// returns the number of rows it moved. It must be idempotent: re-running
// a committed window must affect zero rows. The window is half-open,
// [start, end).
type WindowFunc func(ctx context.Context, tx *sql.Tx, start, end time.Time) (int64, error)

// Spec describes one windowed run over a time-partitioned table.
type Spec struct {
	Entity     types.EntityType
	Table      string // table the covering range is derived from (may be src-qualified)
	DateColumn string
	Months     int // window width

	// From and To optionally narrow the run to [From, To). Zero values
	// leave the corresponding bound open.
	From time.Time
	To   time.Time
}

// Scheduler drives windowed batch execution with one committed
// transaction per window.
type Scheduler struct {
	store  *store.Store
	logger *zap.Logger
}

// New creates a scheduler over the given store.
func New(s *store.Store, logger *zap.Logger) *Scheduler {
	return &Scheduler{store: s, logger: logger.With(zap.String("component", "batch"))}
}

// Run derives the covering range [minDate, maxDate] of spec.Table,
// then walks it in spec.Months-wide windows in non-decreasing time
// order, committing each window independently. Returns the total rows
// moved. An empty range short-circuits with a zero result. The window
// grid is anchored at month boundaries; spec.From and spec.To clamp the
// boundary windows so fn never sees dates outside the narrowing.
//
// Aborting between windows leaves all prior windows committed; aborting
// mid-window rolls that window back. Either way a re-invocation resumes
// cleanly because committed windows re-run as no-ops.
func (s *Scheduler) Run(ctx context.Context, spec Spec, fn WindowFunc) (int64, error) {
	if spec.Months <= 0 {
		return 0, types.ErrWindowInvalid
	}

	minDate, maxDate, err := s.coveringRange(ctx, spec)
	if err != nil {
		return 0, err
	}
	if minDate.IsZero() {
		s.logger.Info("source range empty, nothing to do",
			zap.String("entity", string(spec.Entity)),
			zap.String("table", spec.Table))
		return 0, nil
	}

	logger := s.logger.With(zap.String("entity", string(spec.Entity)))
	logger.Info("windowed run starting",
		zap.String("table", spec.Table),
		zap.Time("min_date", minDate),
		zap.Time("max_date", maxDate),
		zap.Int("window_months", spec.Months))

	var total int64
	windows := 0
	for grid := monthStart(minDate); !grid.After(maxDate); grid = grid.AddDate(0, spec.Months, 0) {
		start := grid
		if !spec.From.IsZero() && start.Before(spec.From) {
			start = spec.From
		}
		end := grid.AddDate(0, spec.Months, 0)
		if !spec.To.IsZero() && end.After(spec.To) {
			end = spec.To
		}

		var moved int64
		err := s.store.ExecTx(ctx, func(tx *sql.Tx) error {
			var err error
			moved, err = fn(ctx, tx, start, end)
			return err
		})
		if err != nil {
			return total, fmt.Errorf("window [%s, %s): %w",
				start.Format(dateLayout), end.Format(dateLayout), err)
		}

		windows++
		total += moved
		logger.Info("window committed",
			zap.Int("window", windows),
			zap.String("start", start.Format(dateLayout)),
			zap.String("end", end.Format(dateLayout)),
			zap.Int64("rows", moved))
	}

	logger.Info("windowed run complete",
		zap.Int("windows", windows),
		zap.Int64("rows", total))
	return total, nil
}

// coveringRange returns the [min, max] dates of spec.Table's date
// column, narrowed by spec.From/To. A zero min means an empty range.
func (s *Scheduler) coveringRange(ctx context.Context, spec Spec) (time.Time, time.Time, error) {
	query := fmt.Sprintf("SELECT MIN(%s), MAX(%s) FROM %s",
		spec.DateColumn, spec.DateColumn, spec.Table)
	var conds []string
	var args []any
	if !spec.From.IsZero() {
		conds = append(conds, spec.DateColumn+" >= ?")
		args = append(args, spec.From.Format(dateLayout))
	}
	if !spec.To.IsZero() {
		conds = append(conds, spec.DateColumn+" < ?")
		args = append(args, spec.To.Format(dateLayout))
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}

	var minRaw, maxRaw sql.NullString
	if err := s.store.DB().QueryRowContext(ctx, query, args...).Scan(&minRaw, &maxRaw); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("derive range of %s: %w", spec.Table, err)
	}
	if !minRaw.Valid || !maxRaw.Valid {
		return time.Time{}, time.Time{}, nil
	}

	minDate, err := parseDate(minRaw.String)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse min date %q: %w", minRaw.String, err)
	}
	maxDate, err := parseDate(maxRaw.String)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse max date %q: %w", maxRaw.String, err)
	}
	return minDate, maxDate, nil
}

// parseDate reads the date prefix of a stored timestamp.
func parseDate(s string) (time.Time, error) {
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	return time.Parse(dateLayout, s)
}

// monthStart floors t to the first day of its month. Windows advance
// from month boundaries so the same source always yields the same
// window grid, run to run.
func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
