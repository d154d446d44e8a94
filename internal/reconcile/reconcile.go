// Package reconcile implements the gap-completion pass: an independent,
// repeatable sweep that finds source rows the primary migration missed
// and backfills only the delta into the target schema. Coverage is
// checked through the source_ref traceability column, not the mapping
// table alone, so rows excluded or skipped earlier can still be
// resolved by secondary keys.
package reconcile

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/porter/internal/pipeline"
	"github.com/mesh-intelligence/porter/internal/store"
	"github.com/mesh-intelligence/porter/pkg/types"
)

// Reconciler drives the gap-completion pass.
type Reconciler struct {
	store  *store.Store
	pipe   *pipeline.Pipeline
	logger *zap.Logger
}

// New creates a reconciler sharing the pipeline's load stages for
// generic backfills.
func New(s *store.Store, pipe *pipeline.Pipeline, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		store:  s,
		pipe:   pipe,
		logger: logger.With(zap.String("component", "reconcile")),
	}
}

// Reconcile backfills one entity and advances its lifecycle to
// reconciled. Returns the number of rows written. Safe to repeat: a
// second pass over a complete entity writes nothing.
func (r *Reconciler) Reconcile(ctx context.Context, entity types.EntityType) (int64, error) {
	var (
		backfilled int64
		err        error
	)
	switch entity {
	case types.EntityDevices:
		backfilled, err = r.reconcileDevices(ctx)
	case types.EntityUsage:
		// Staging already holds the pulled windows; reconciliation must
		// not depend on the source still being reachable.
		backfilled, err = r.pipe.BackfillUsage(ctx)
	case types.EntityRevenue:
		backfilled, err = r.reconcileRevenue(ctx)
	default:
		// The load stages are idempotent and guarded by the
		// traceability column, so a re-run writes exactly the gap.
		backfilled, err = r.pipe.Migrate(ctx, entity, pipeline.Window{})
	}
	if err != nil {
		return backfilled, fmt.Errorf("reconcile %s: %w", entity, err)
	}

	if err := r.store.Advance(ctx, entity, types.StateReconciled); err != nil {
		return backfilled, err
	}
	r.logger.Info("entity reconciled",
		zap.String("entity", string(entity)),
		zap.Int64("backfilled", backfilled))
	return backfilled, nil
}

// ReconcileAll sweeps every entity in dependency order and returns the
// per-entity backfill counts.
func (r *Reconciler) ReconcileAll(ctx context.Context) (map[types.EntityType]int64, error) {
	order, err := pipeline.Order()
	if err != nil {
		return nil, err
	}
	counts := make(map[types.EntityType]int64, len(order))
	for _, entity := range order {
		n, err := r.Reconcile(ctx, entity)
		if err != nil {
			return counts, err
		}
		counts[entity] = n
	}
	return counts, nil
}

// reconcileRevenue recomputes the recurring-revenue rollups in full by
// re-aggregating staged invoices by (month, plan) and inserting only
// the groups not already present. Correct because the rollup is a pure
// function of the staged data; incremental patching would not be.
func (r *Reconciler) reconcileRevenue(ctx context.Context) (int64, error) {
	var n int64
	err := r.store.ExecTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO revenue_rollups
    (month, plan_code, invoice_count, total_cents)
SELECT SUBSTR(i.issued_on, 1, 7),
    CASE WHEN pl.plan_id IS NULL THEN 'UNKNOWN'
         ELSE UPPER(TRIM(COALESCE(NULLIF(pl.code, ''), 'PLAN-' || pl.plan_id)))
    END,
    COUNT(*),
    SUM(COALESCE(i.total_cents, 0))
FROM staging_invoices i
LEFT JOIN staging_subscriptions sub ON sub.subscription_id = i.subscription_id
LEFT JOIN staging_plans pl ON pl.plan_id = sub.plan_id
WHERE i.issued_on IS NOT NULL
GROUP BY 1, 2`)
		if err != nil {
			return fmt.Errorf("aggregate rollups: %w", err)
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}
