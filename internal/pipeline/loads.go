package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mesh-intelligence/porter/internal/batch"
	"github.com/mesh-intelligence/porter/internal/transform"
	"github.com/mesh-intelligence/porter/pkg/types"
)

// Target column widths, in characters.
const (
	widthName    = 100
	widthEmail   = 254
	widthPhone   = 32
	widthAddress = 200
	widthSubject = 200
)

// customerStatuses remaps legacy customer status codes. Unrecognized
// codes land in the fallback bucket.
var customerStatuses = map[string]string{
	"a":         "active",
	"act":       "active",
	"active":    "active",
	"s":         "suspended",
	"susp":      "suspended",
	"suspended": "suspended",
	"c":         "closed",
	"x":         "closed",
	"closed":    "closed",
}

// Status and priority remaps for the set-based loads. Each CASE carries
// an ELSE fallback bucket so no unrecognized code fails a row.
const (
	planStatusCase = `CASE LOWER(TRIM(COALESCE(s.status, '')))
        WHEN 'a' THEN 'active' WHEN 'act' THEN 'active' WHEN 'active' THEN 'active'
        WHEN 'r' THEN 'retired' WHEN 'ret' THEN 'retired' WHEN 'retired' THEN 'retired'
        ELSE 'other' END`

	subscriptionStatusCase = `CASE LOWER(TRIM(COALESCE(s.status, '')))
        WHEN 'a' THEN 'active' WHEN 'active' THEN 'active'
        WHEN 'c' THEN 'canceled' WHEN 'canceled' THEN 'canceled' WHEN 'cancelled' THEN 'canceled'
        WHEN 'p' THEN 'paused' WHEN 'paused' THEN 'paused'
        ELSE 'other' END`

	invoiceStatusCase = `CASE LOWER(TRIM(COALESCE(s.status, '')))
        WHEN 'p' THEN 'paid' WHEN 'paid' THEN 'paid'
        WHEN 'o' THEN 'open' WHEN 'open' THEN 'open' WHEN 'u' THEN 'open'
        WHEN 'v' THEN 'void' WHEN 'void' THEN 'void'
        ELSE 'other' END`

	ticketPriorityCase = `CASE LOWER(TRIM(COALESCE(s.priority, '')))
        WHEN '1' THEN 'high' WHEN 'h' THEN 'high' WHEN 'high' THEN 'high'
        WHEN '2' THEN 'normal' WHEN 'n' THEN 'normal' WHEN 'normal' THEN 'normal'
        WHEN '3' THEN 'low' WHEN 'l' THEN 'low' WHEN 'low' THEN 'low'
        ELSE 'other' END`
)

// loaders dispatches each entity type to its load stage.
func (p *Pipeline) loaders() map[types.EntityType]func(context.Context, Window) (int64, error) {
	return map[types.EntityType]func(context.Context, Window) (int64, error){
		types.EntityPlans:         p.loadPlans,
		types.EntityCustomers:     p.loadCustomers,
		types.EntitySubscriptions: p.loadSubscriptions,
		types.EntityDevices:       p.loadDevices,
		types.EntityInvoices:      p.loadInvoices,
		types.EntityPayments:      p.loadPayments,
		types.EntityTickets:       p.loadTickets,
		types.EntityUsage:         p.loadUsage,
		types.EntityRevenue:       p.loadRevenue,
	}
}

// execCount executes a write inside a fresh transaction and returns the
// affected row count.
func (p *Pipeline) execCount(ctx context.Context, query string, args ...any) (int64, error) {
	var n int64
	err := p.store.ExecTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	return n, err
}

func (p *Pipeline) loadPlans(ctx context.Context, _ Window) (int64, error) {
	return p.execCount(ctx, fmt.Sprintf(`INSERT OR IGNORE INTO plans
    (plan_id, source_ref, code, name, monthly_cents, download_kbps, status)
SELECT m.target_id, s.plan_id,
    UPPER(TRIM(COALESCE(NULLIF(s.code, ''), 'PLAN-' || s.plan_id))),
    SUBSTR(COALESCE(NULLIF(s.name, ''), 'Unnamed plan'), 1, %d),
    COALESCE(s.monthly_cents, 0),
    s.download_kbps,
    %s
FROM staging_plans s
JOIN map_plans m ON m.source_id = s.plan_id`, widthName, planStatusCase))
}

// loadCustomers is the one row-by-row stage: name splitting and
// duplicate-address disambiguation need the whole candidate set in
// source-key order before any row can be written.
func (p *Pipeline) loadCustomers(ctx context.Context, _ Window) (int64, error) {
	type staged struct {
		sourceID  int64
		targetID  string
		contactID string
		fullName  sql.NullString
		email     sql.NullString
		phone     sql.NullString
		address   sql.NullString
		createdOn sql.NullString
		status    sql.NullString
	}

	rows, err := p.store.DB().QueryContext(ctx, `SELECT
    s.customer_id, m.target_id, m.contact_id,
    s.full_name, s.email, s.phone, s.street_address, s.created_on, s.status
FROM staging_customers s
JOIN map_customers m ON m.source_id = s.customer_id
ORDER BY s.customer_id`)
	if err != nil {
		return 0, fmt.Errorf("read staged customers: %w", err)
	}
	defer rows.Close()

	var candidates []staged
	for rows.Next() {
		var c staged
		if err := rows.Scan(&c.sourceID, &c.targetID, &c.contactID,
			&c.fullName, &c.email, &c.phone, &c.address, &c.createdOn, &c.status); err != nil {
			return 0, fmt.Errorf("scan staged customer: %w", err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	// Rank duplicates by ascending source key: first-seen keeps the
	// unmodified address, later candidates get a rank suffix.
	seen := make(map[string]int, len(candidates))

	var loaded int64
	err = p.store.ExecTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO customers
    (customer_id, source_ref, contact_id, first_name, last_name, email,
     phone, street_address, status, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare customer insert: %w", err)
		}
		defer stmt.Close()

		for _, c := range candidates {
			first, last := transform.SplitName(c.fullName.String)

			email := transform.Coalesce(c.email.String, transform.PlaceholderEmail(c.sourceID))
			key := transform.NormalizeEmail(email)
			seen[key]++
			email = transform.Truncate(transform.DisambiguateEmail(email, seen[key]), widthEmail)

			res, err := stmt.ExecContext(ctx,
				c.targetID, c.sourceID, c.contactID,
				transform.Truncate(first, widthName),
				transform.Truncate(last, widthName),
				email,
				transform.Truncate(c.phone.String, widthPhone),
				transform.Truncate(c.address.String, widthAddress),
				transform.MapEnum(c.status.String, customerStatuses, transform.FallbackBucket),
				c.createdOn.String,
			)
			if err != nil {
				return fmt.Errorf("insert customer %d: %w", c.sourceID, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			loaded += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return loaded, nil
}

// loadSubscriptions nulls an unmappable plan reference instead of
// dropping the row; the customer reference is required by the target
// contract and always present for qualified customers.
func (p *Pipeline) loadSubscriptions(ctx context.Context, _ Window) (int64, error) {
	return p.execCount(ctx, fmt.Sprintf(`INSERT OR IGNORE INTO subscriptions
    (subscription_id, source_ref, customer_id, plan_id, started_at, canceled_at, status)
SELECT m.target_id, s.subscription_id, mc.target_id, mp.target_id,
    s.started_on, s.canceled_on, %s
FROM staging_subscriptions s
JOIN map_subscriptions m ON m.source_id = s.subscription_id
JOIN map_customers mc ON mc.source_id = s.customer_id
LEFT JOIN map_plans mp ON mp.source_id = s.plan_id`, subscriptionStatusCase))
}

// loadDevices pairs INSERT OR IGNORE with an explicit source_ref
// existence check: the mac column's unique constraint admits NULLs, so
// conflict detection alone cannot prevent duplicate unmapped devices.
func (p *Pipeline) loadDevices(ctx context.Context, _ Window) (int64, error) {
	return p.execCount(ctx, `INSERT OR IGNORE INTO devices
    (device_id, source_ref, subscription_id, mac, ip_addr, hostname, model, installed_at)
SELECT m.target_id, s.device_id, ms.target_id,
    NULLIF(TRIM(COALESCE(s.mac, '')), ''),
    NULLIF(TRIM(COALESCE(s.ip_addr, '')), ''),
    NULLIF(TRIM(COALESCE(s.hostname, '')), ''),
    s.model, s.installed_on
FROM staging_devices s
JOIN map_devices m ON m.source_id = s.device_id
LEFT JOIN map_subscriptions ms ON ms.source_id = s.subscription_id
WHERE NOT EXISTS (SELECT 1 FROM devices d WHERE d.source_ref = s.device_id)`)
}

func (p *Pipeline) loadInvoices(ctx context.Context, _ Window) (int64, error) {
	return p.execCount(ctx, fmt.Sprintf(`INSERT OR IGNORE INTO invoices
    (invoice_id, source_ref, customer_id, subscription_id, issued_at, due_at, total_cents, status)
SELECT m.target_id, s.invoice_id, mc.target_id, ms.target_id,
    s.issued_on, s.due_on, COALESCE(s.total_cents, 0), %s
FROM staging_invoices s
JOIN map_invoices m ON m.source_id = s.invoice_id
JOIN map_customers mc ON mc.source_id = s.customer_id
LEFT JOIN map_subscriptions ms ON ms.source_id = s.subscription_id`, invoiceStatusCase))
}

func (p *Pipeline) loadPayments(ctx context.Context, _ Window) (int64, error) {
	return p.execCount(ctx, `INSERT OR IGNORE INTO payments
    (payment_id, source_ref, invoice_id, customer_id, paid_at, amount_cents, method)
SELECT m.target_id, s.payment_id, mi.target_id, mc.target_id,
    s.paid_on, COALESCE(s.amount_cents, 0),
    LOWER(TRIM(COALESCE(NULLIF(s.method, ''), 'unknown')))
FROM staging_payments s
JOIN map_payments m ON m.source_id = s.payment_id
LEFT JOIN map_invoices mi ON mi.source_id = s.invoice_id
LEFT JOIN map_customers mc ON mc.source_id = s.customer_id`)
}

// loadTickets keeps tickets of customers the qualification filter
// excluded: the customer reference is nulled, the record survives.
func (p *Pipeline) loadTickets(ctx context.Context, _ Window) (int64, error) {
	return p.execCount(ctx, fmt.Sprintf(`INSERT OR IGNORE INTO tickets
    (ticket_id, source_ref, customer_id, opened_at, closed_at, subject, body, priority)
SELECT m.target_id, s.ticket_id, mc.target_id,
    s.opened_on, s.closed_on,
    SUBSTR(COALESCE(NULLIF(s.subject, ''), '(no subject)'), 1, %d),
    s.body, %s
FROM staging_tickets s
JOIN map_tickets m ON m.source_id = s.ticket_id
LEFT JOIN map_customers mc ON mc.source_id = s.customer_id`, widthSubject, ticketPriorityCase))
}

// loadUsage moves the oversized time-series table in two windowed
// passes: a staging pull from the source (wide windows) and a target
// load from staging (narrow windows). Each window commits
// independently; both passes are conflict-skip, so a resumed run
// re-scans only already-complete windows.
func (p *Pipeline) loadUsage(ctx context.Context, win Window) (int64, error) {
	if err := p.store.RequireSource(); err != nil {
		return 0, err
	}

	_, err := p.scheduler.Run(ctx, batch.Spec{
		Entity:     types.EntityUsage,
		Table:      "src.usage",
		DateColumn: "sampled_on",
		Months:     p.cfg.StageWindowMonths,
		From:       win.From,
		To:         win.To,
	}, p.pullUsageWindow)
	if err != nil {
		return 0, fmt.Errorf("stage usage: %w", err)
	}

	loaded, err := p.scheduler.Run(ctx, batch.Spec{
		Entity:     types.EntityUsage,
		Table:      "staging_usage",
		DateColumn: "sampled_on",
		Months:     p.cfg.LoadWindowMonths,
		From:       win.From,
		To:         win.To,
	}, p.loadUsageWindow)
	if err != nil {
		return loaded, fmt.Errorf("load usage: %w", err)
	}
	return loaded, nil
}

func (p *Pipeline) pullUsageWindow(ctx context.Context, tx *sql.Tx, start, end time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO staging_usage
    (sample_id, device_id, sampled_on, bytes_down, bytes_up)
SELECT sample_id, device_id, sampled_on, bytes_down, bytes_up
FROM src.usage
WHERE sampled_on >= ? AND sampled_on < ?`,
		start.Format("2006-01-02"), end.Format("2006-01-02"))
	if err != nil {
		return 0, fmt.Errorf("%w: pull src.usage: %v", types.ErrSourceUnavailable, err)
	}
	return res.RowsAffected()
}

// loadUsageWindow converts raw byte counters to GiB.
func (p *Pipeline) loadUsageWindow(ctx context.Context, tx *sql.Tx, start, end time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO usage_records
    (source_ref, device_id, sampled_at, down_gib, up_gib)
SELECT s.sample_id, m.target_id, s.sampled_on,
    CAST(s.bytes_down AS REAL) / ?,
    CAST(s.bytes_up AS REAL) / ?
FROM staging_usage s
JOIN map_devices m ON m.source_id = s.device_id
WHERE s.sampled_on >= ? AND s.sampled_on < ?`,
		transform.BytesPerGiB, transform.BytesPerGiB,
		start.Format("2006-01-02"), end.Format("2006-01-02"))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// BackfillUsage re-runs only the staging-to-target pass. Used by the
// reconciliation sweep, which must work from staging alone: the source
// system may no longer be reachable by the time gaps are closed.
func (p *Pipeline) BackfillUsage(ctx context.Context) (int64, error) {
	return p.scheduler.Run(ctx, batch.Spec{
		Entity:     types.EntityUsage,
		Table:      "staging_usage",
		DateColumn: "sampled_on",
		Months:     p.cfg.LoadWindowMonths,
	}, p.loadUsageWindow)
}

// loadRevenue is a no-op: revenue rollups are a pure aggregate of
// staged invoices and are produced in full during reconciliation.
func (p *Pipeline) loadRevenue(ctx context.Context, _ Window) (int64, error) {
	return 0, nil
}
