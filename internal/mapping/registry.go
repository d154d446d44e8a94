// Package mapping implements the persisted translation of source-native
// keys to generated target identifiers. Seeding is insert-if-absent:
// a source key is assigned its target identifiers exactly once, and the
// assignment survives every later re-run. Entries are never updated or
// deleted.
package mapping

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/porter/internal/store"
	"github.com/mesh-intelligence/porter/pkg/types"
)

// seedSpec describes how one entity's mapping table is seeded from its
// staging table.
type seedSpec struct {
	keyColumn string // source primary key column in the staging table
	// filter is an optional qualification predicate over staging rows
	// (alias "s"). Keys excluded here never migrate: every downstream
	// transform joins through the mapping table.
	filter string
	// dualKey entities receive a second generated identifier.
	dualKey bool
}

// customerQualification admits only customers with transactional
// history: at least one subscription, invoice, or payment. Records that
// fail it are permanently out of scope for the migration.
const customerQualification = `(
    EXISTS (SELECT 1 FROM staging_subscriptions q WHERE q.customer_id = s.customer_id)
    OR EXISTS (SELECT 1 FROM staging_invoices q WHERE q.customer_id = s.customer_id)
    OR EXISTS (SELECT 1 FROM staging_payments q WHERE q.customer_id = s.customer_id)
)`

// seedSpecs maps each mapped entity to its seeding plan. Usage rows are
// keyed directly by source_ref in the target and revenue rollups by
// grouping key, so neither carries a mapping table.
var seedSpecs = map[types.EntityType]seedSpec{
	types.EntityPlans:         {keyColumn: "plan_id"},
	types.EntityCustomers:     {keyColumn: "customer_id", filter: customerQualification, dualKey: true},
	types.EntitySubscriptions: {keyColumn: "subscription_id"},
	types.EntityDevices:       {keyColumn: "device_id"},
	types.EntityInvoices:      {keyColumn: "invoice_id"},
	types.EntityPayments:      {keyColumn: "payment_id"},
	types.EntityTickets:       {keyColumn: "ticket_id"},
}

// newTargetKey generates a UUID v7 target identifier.
func newTargetKey() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Registry seeds and resolves mapping entries.
type Registry struct {
	store  *store.Store
	logger *zap.Logger
}

// New creates a registry over the given store.
func New(s *store.Store, logger *zap.Logger) *Registry {
	return &Registry{store: s, logger: logger.With(zap.String("component", "mapping"))}
}

// Seed assigns target identifiers to every eligible staged source key
// that does not have a mapping entry yet, and returns how many new
// entries were created. Already-mapped keys keep their identifiers, so
// calling Seed twice yields the same mapping table both times.
func (r *Registry) Seed(ctx context.Context, entity types.EntityType) (int64, error) {
	spec, ok := seedSpecs[entity]
	if !ok {
		r.logger.Debug("entity carries no mapping table, skipping",
			zap.String("entity", string(entity)))
		return 0, nil
	}

	query := fmt.Sprintf(
		`SELECT s.%s FROM %s s
WHERE NOT EXISTS (SELECT 1 FROM %s m WHERE m.source_id = s.%s)`,
		spec.keyColumn, entity.StagingTable(), entity.MappingTable(), spec.keyColumn)
	if spec.filter != "" {
		query += " AND " + spec.filter
	}
	query += fmt.Sprintf(" ORDER BY s.%s", spec.keyColumn)

	var seeded int64
	err := r.store.ExecTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query)
		if err != nil {
			return fmt.Errorf("select unmapped keys: %w", err)
		}
		defer rows.Close()

		var keys []int64
		for rows.Next() {
			var k int64
			if err := rows.Scan(&k); err != nil {
				return fmt.Errorf("scan source key: %w", err)
			}
			keys = append(keys, k)
		}
		if err := rows.Err(); err != nil {
			return err
		}

		insert := fmt.Sprintf(
			"INSERT OR IGNORE INTO %s (source_id, target_id) VALUES (?, ?)", entity.MappingTable())
		if spec.dualKey {
			insert = fmt.Sprintf(
				"INSERT OR IGNORE INTO %s (source_id, target_id, contact_id) VALUES (?, ?, ?)",
				entity.MappingTable())
		}
		stmt, err := tx.PrepareContext(ctx, insert)
		if err != nil {
			return fmt.Errorf("prepare mapping insert: %w", err)
		}
		defer stmt.Close()

		for _, k := range keys {
			args := []any{k, newTargetKey()}
			if spec.dualKey {
				args = append(args, newTargetKey())
			}
			res, err := stmt.ExecContext(ctx, args...)
			if err != nil {
				return fmt.Errorf("insert mapping for key %d: %w", k, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			seeded += n
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("seed %s: %w", entity, err)
	}

	r.logger.Info("mappings seeded",
		zap.String("entity", string(entity)),
		zap.Int64("new_entries", seeded))
	return seeded, nil
}

// TargetKey resolves the primary target identifier for a source key.
// Returns ErrNotSeeded when no mapping entry exists.
func (r *Registry) TargetKey(ctx context.Context, entity types.EntityType, sourceKey int64) (string, error) {
	if _, ok := seedSpecs[entity]; !ok {
		return "", fmt.Errorf("%w: %s", types.ErrUnknownEntity, entity)
	}
	var id string
	err := r.store.DB().QueryRowContext(ctx,
		fmt.Sprintf("SELECT target_id FROM %s WHERE source_id = ?", entity.MappingTable()),
		sourceKey,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("%w: %s key %d", types.ErrNotSeeded, entity, sourceKey)
	}
	if err != nil {
		return "", fmt.Errorf("resolve %s key %d: %w", entity, sourceKey, err)
	}
	return id, nil
}
