// Package integration provides end-to-end tests driving every
// migration phase over a realistic legacy dataset.
package integration

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/porter/internal/logging"
	"github.com/mesh-intelligence/porter/internal/pipeline"
	"github.com/mesh-intelligence/porter/internal/reconcile"
	"github.com/mesh-intelligence/porter/internal/snapshot"
	"github.com/mesh-intelligence/porter/internal/store"
	"github.com/mesh-intelligence/porter/internal/verify"
	"github.com/mesh-intelligence/porter/pkg/types"
)

// legacyDDL is the schema of the source system being migrated away
// from, as the snapshot phase expects to find it.
var legacyDDL = []string{
	`CREATE TABLE plans (plan_id INTEGER PRIMARY KEY, code TEXT, name TEXT,
    monthly_cents INTEGER, download_kbps INTEGER, status TEXT);`,
	`CREATE TABLE customers (customer_id INTEGER PRIMARY KEY, full_name TEXT,
    email TEXT, phone TEXT, street_address TEXT, created_on TEXT, status TEXT);`,
	`CREATE TABLE subscriptions (subscription_id INTEGER PRIMARY KEY,
    customer_id INTEGER, plan_id INTEGER, started_on TEXT, canceled_on TEXT, status TEXT);`,
	`CREATE TABLE devices (device_id INTEGER PRIMARY KEY, subscription_id INTEGER,
    mac TEXT, ip_addr TEXT, hostname TEXT, model TEXT, installed_on TEXT);`,
	`CREATE TABLE invoices (invoice_id INTEGER PRIMARY KEY, customer_id INTEGER,
    subscription_id INTEGER, issued_on TEXT, due_on TEXT, total_cents INTEGER, status TEXT);`,
	`CREATE TABLE payments (payment_id INTEGER PRIMARY KEY, invoice_id INTEGER,
    customer_id INTEGER, paid_on TEXT, amount_cents INTEGER, method TEXT);`,
	`CREATE TABLE tickets (ticket_id INTEGER PRIMARY KEY, customer_id INTEGER,
    opened_on TEXT, closed_on TEXT, subject TEXT, body TEXT, priority TEXT);`,
	`CREATE TABLE usage (sample_id INTEGER PRIMARY KEY, device_id INTEGER,
    sampled_on TEXT, bytes_down INTEGER, bytes_up INTEGER);`,
}

// migrationEnv holds everything one end-to-end scenario needs.
type migrationEnv struct {
	t     *testing.T
	Store *store.Store
	Pipe  *pipeline.Pipeline
	Rec   *reconcile.Reconciler
}

// newMigrationEnv builds a populated legacy database and an attached
// working store ready for the first phase.
func newMigrationEnv(t *testing.T) *migrationEnv {
	t.Helper()

	srcPath := filepath.Join(t.TempDir(), "legacy.db")
	src, err := sql.Open("sqlite", srcPath)
	if err != nil {
		t.Fatalf("open legacy db: %v", err)
	}
	defer src.Close()
	for _, ddl := range legacyDDL {
		if _, err := src.Exec(ddl); err != nil {
			t.Fatalf("legacy schema: %v", err)
		}
	}
	fillLegacy(t, src)

	cfg := types.Config{SourceDB: srcPath, DataDir: t.TempDir()}.WithDefaults()
	s, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	pipe := pipeline.New(s, logging.Nop(), cfg)
	return &migrationEnv{
		t:     t,
		Store: s,
		Pipe:  pipe,
		Rec:   reconcile.New(s, pipe, logging.Nop()),
	}
}

// fillLegacy loads the scenario dataset: two plans, five customers
// (one history-less, two sharing an address), their subscriptions,
// devices, two years of monthly billing, and two years of usage
// samples per device.
func fillLegacy(t *testing.T, db *sql.DB) {
	t.Helper()

	exec := func(query string, args ...any) {
		t.Helper()
		if _, err := db.Exec(query, args...); err != nil {
			t.Fatalf("fixture: %v\n%s", err, query)
		}
	}

	exec(`INSERT INTO plans (plan_id, code, name, monthly_cents, download_kbps, status) VALUES
    (1, 'basic', 'Basic 50', 2900, 50000, 'a'),
    (2, 'turbo', 'Turbo 500', 5900, 500000, 'act')`)

	exec(`INSERT INTO customers (customer_id, full_name, email, phone, street_address, created_on, status) VALUES
    (1, 'Jane Doe', 'jane@example.com', '555-0001', '1 Main St', '2020-11-02', 'a'),
    (2, 'Bob Roe', '', '555-0002', '2 Oak Ave', '2020-11-15', 'active'),
    (3, 'Ann van Maren', 'ops@example.com', '', '3 Elm Rd', '2020-12-01', 's'),
    (4, 'Ops Desk', 'ops@example.com', '', '4 Pine Ct', '2020-12-09', 'a'),
    (5, 'Never Signed', 'ghost@example.com', '', '', '2021-01-01', 'a')`)

	exec(`INSERT INTO subscriptions (subscription_id, customer_id, plan_id, started_on, canceled_on, status) VALUES
    (10, 1, 1, '2020-11-05', NULL, 'a'),
    (20, 2, 2, '2020-11-20', NULL, 'a'),
    (30, 3, 1, '2020-12-05', '2022-06-30', 'c'),
    (40, 4, 2, '2020-12-12', NULL, 'a')`)

	exec(`INSERT INTO devices (device_id, subscription_id, mac, ip_addr, hostname, model, installed_on) VALUES
    (100, 10, 'aa:00:00:00:00:01', '10.1.0.1', 'cpe-jane.example.net', 'CPE-100', '2020-11-06'),
    (200, 20, 'aa:00:00:00:00:02', '10.1.0.2', 'cpe-bob.example.net', 'CPE-100', '2020-11-21'),
    (300, 30, '', '10.1.0.3', 'CPE-Ann.Example.NET.', 'CPE-200', '2020-12-06')`)

	// Monthly invoices for 2021 and 2022 on the two active plans.
	invoiceID := 1000
	for year := 2021; year <= 2022; year++ {
		for month := 1; month <= 12; month++ {
			issued := fmt.Sprintf("%04d-%02d-01", year, month)
			due := fmt.Sprintf("%04d-%02d-15", year, month)
			exec(`INSERT INTO invoices (invoice_id, customer_id, subscription_id, issued_on, due_on, total_cents, status)
VALUES (?, 1, 10, ?, ?, 2900, 'p')`, invoiceID, issued, due)
			exec(`INSERT INTO invoices (invoice_id, customer_id, subscription_id, issued_on, due_on, total_cents, status)
VALUES (?, 2, 20, ?, ?, 5900, 'o')`, invoiceID+1, issued, due)
			exec(`INSERT INTO payments (payment_id, invoice_id, customer_id, paid_on, amount_cents, method)
VALUES (?, ?, 1, ?, 2900, 'CC')`, invoiceID+5000, invoiceID, due)
			invoiceID += 2
		}
	}

	exec(`INSERT INTO tickets (ticket_id, customer_id, opened_on, closed_on, subject, body, priority) VALUES
    (1, 1, '2021-03-01', '2021-03-02', 'Slow evenings', 'Speed drops after 8pm', 'h'),
    (2, 5, '2021-04-01', NULL, 'Cannot sign up', 'Portal rejects address', '2')`)

	// Two years of monthly usage samples per linked device.
	sampleID := 1
	for year := 2021; year <= 2022; year++ {
		for month := 1; month <= 12; month++ {
			for _, deviceID := range []int{100, 200} {
				exec(`INSERT INTO usage (sample_id, device_id, sampled_on, bytes_down, bytes_up)
VALUES (?, ?, ?, ?, ?)`, sampleID, deviceID,
					fmt.Sprintf("%04d-%02d-15", year, month),
					int64(deviceID)*1073741824, int64(deviceID)*536870912)
				sampleID++
			}
		}
	}
}

// count runs a single-integer query against the working database.
func (e *migrationEnv) count(query string, args ...any) int64 {
	e.t.Helper()
	var n int64
	if err := e.Store.DB().QueryRow(query, args...).Scan(&n); err != nil {
		e.t.Fatalf("count %q: %v", query, err)
	}
	return n
}

// runAllPhases drives snapshot, seed, load, and reconcile in order.
func (e *migrationEnv) runAllPhases() {
	e.t.Helper()
	ctx := e.t.Context()

	if _, err := snapshot.New(e.Store, logging.Nop()).SnapshotAll(ctx); err != nil {
		e.t.Fatalf("snapshot: %v", err)
	}
	if _, err := e.Pipe.SeedAll(ctx); err != nil {
		e.t.Fatalf("seed: %v", err)
	}
	if _, err := e.Pipe.MigrateAll(ctx); err != nil {
		e.t.Fatalf("migrate: %v", err)
	}
	if _, err := e.Rec.ReconcileAll(ctx); err != nil {
		e.t.Fatalf("reconcile: %v", err)
	}
}

// report runs the verification phase.
func (e *migrationEnv) report() *types.VerifyReport {
	e.t.Helper()
	r, err := verify.New(e.Store).Report(e.t.Context())
	if err != nil {
		e.t.Fatalf("verify: %v", err)
	}
	return r
}
