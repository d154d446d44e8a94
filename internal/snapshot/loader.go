// Package snapshot implements the point-in-time copy of source tables
// into local staging storage. Small and medium tables are replaced
// wholesale inside one transaction per table; oversized time-series
// tables are registered only, leaving their movement to the windowed
// batch scheduler.
package snapshot

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/porter/internal/store"
	"github.com/mesh-intelligence/porter/pkg/types"
)

// tableSpec describes how one entity's staging table is filled.
type tableSpec struct {
	source  string   // table name in the src schema
	columns []string // copied column list, identical on both sides
	// deferred marks oversized tables that the snapshot registers but
	// does not copy.
	deferred bool
}

// tableSpecs maps each snapshot-capable entity to its copy plan.
// Revenue has no source table of its own (it aggregates staged
// invoices) and is absent here.
var tableSpecs = map[types.EntityType]tableSpec{
	types.EntityPlans: {
		source:  "plans",
		columns: []string{"plan_id", "code", "name", "monthly_cents", "download_kbps", "status"},
	},
	types.EntityCustomers: {
		source:  "customers",
		columns: []string{"customer_id", "full_name", "email", "phone", "street_address", "created_on", "status"},
	},
	types.EntitySubscriptions: {
		source:  "subscriptions",
		columns: []string{"subscription_id", "customer_id", "plan_id", "started_on", "canceled_on", "status"},
	},
	types.EntityDevices: {
		source:  "devices",
		columns: []string{"device_id", "subscription_id", "mac", "ip_addr", "hostname", "model", "installed_on"},
	},
	types.EntityInvoices: {
		source:  "invoices",
		columns: []string{"invoice_id", "customer_id", "subscription_id", "issued_on", "due_on", "total_cents", "status"},
	},
	types.EntityPayments: {
		source:  "payments",
		columns: []string{"payment_id", "invoice_id", "customer_id", "paid_on", "amount_cents", "method"},
	},
	types.EntityTickets: {
		source:  "tickets",
		columns: []string{"ticket_id", "customer_id", "opened_on", "closed_on", "subject", "body", "priority"},
	},
	types.EntityUsage: {
		source:   "usage",
		columns:  []string{"sample_id", "device_id", "sampled_on", "bytes_down", "bytes_up"},
		deferred: true,
	},
}

// Loader pulls point-in-time copies of source tables into staging.
type Loader struct {
	store  *store.Store
	logger *zap.Logger
}

// New creates a snapshot loader over the given store.
func New(s *store.Store, logger *zap.Logger) *Loader {
	return &Loader{store: s, logger: logger.With(zap.String("component", "snapshot"))}
}

// Snapshot captures one entity's source table into staging and returns
// the staged row count. The replace is all-or-nothing: any failure
// rolls the table's transaction back, so staging is never left
// half-populated and the call is safe to retry. Oversized tables return
// zero without copying.
func (l *Loader) Snapshot(ctx context.Context, entity types.EntityType) (int64, error) {
	spec, ok := tableSpecs[entity]
	if !ok {
		l.logger.Debug("entity has no source table, skipping", zap.String("entity", string(entity)))
		return 0, nil
	}
	if err := l.store.RequireSource(); err != nil {
		return 0, err
	}
	if spec.deferred {
		l.logger.Info("oversized table registered, copy deferred to batch scheduler",
			zap.String("entity", string(entity)))
		return 0, nil
	}

	var copied int64
	err := l.store.ExecTx(ctx, func(tx *sql.Tx) error {
		staging := entity.StagingTable()
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+staging); err != nil {
			return fmt.Errorf("truncate %s: %w", staging, err)
		}

		cols := strings.Join(spec.columns, ", ")
		res, err := tx.ExecContext(ctx, fmt.Sprintf(
			"INSERT INTO %s (%s) SELECT %s FROM src.%s", staging, cols, cols, spec.source))
		if err != nil {
			return fmt.Errorf("%w: copy src.%s: %v", types.ErrSourceUnavailable, spec.source, err)
		}
		copied, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}

	l.logger.Info("snapshot complete",
		zap.String("entity", string(entity)),
		zap.Int64("rows", copied))
	return copied, nil
}

// SnapshotAll captures every snapshot-capable entity and returns the
// per-entity row counts.
func (l *Loader) SnapshotAll(ctx context.Context) (map[types.EntityType]int64, error) {
	counts := make(map[types.EntityType]int64, len(tableSpecs))
	for _, entity := range types.AllEntities {
		if _, ok := tableSpecs[entity]; !ok {
			continue
		}
		n, err := l.Snapshot(ctx, entity)
		if err != nil {
			return counts, fmt.Errorf("snapshot %s: %w", entity, err)
		}
		counts[entity] = n
	}
	return counts, nil
}
