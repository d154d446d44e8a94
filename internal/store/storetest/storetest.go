// Package storetest provides shared fixtures for phase-package tests:
// a throwaway legacy source database and an attached working store.
package storetest

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/porter/internal/store"
	"github.com/mesh-intelligence/porter/pkg/types"
)

// sourceDDL is the legacy schema as the snapshot loader expects to find
// it. Kept here rather than in the store package because the engine
// never creates source tables outside of tests.
var sourceDDL = []string{
	`CREATE TABLE plans (
    plan_id INTEGER PRIMARY KEY,
    code TEXT,
    name TEXT,
    monthly_cents INTEGER,
    download_kbps INTEGER,
    status TEXT
);`,
	`CREATE TABLE customers (
    customer_id INTEGER PRIMARY KEY,
    full_name TEXT,
    email TEXT,
    phone TEXT,
    street_address TEXT,
    created_on TEXT,
    status TEXT
);`,
	`CREATE TABLE subscriptions (
    subscription_id INTEGER PRIMARY KEY,
    customer_id INTEGER,
    plan_id INTEGER,
    started_on TEXT,
    canceled_on TEXT,
    status TEXT
);`,
	`CREATE TABLE devices (
    device_id INTEGER PRIMARY KEY,
    subscription_id INTEGER,
    mac TEXT,
    ip_addr TEXT,
    hostname TEXT,
    model TEXT,
    installed_on TEXT
);`,
	`CREATE TABLE invoices (
    invoice_id INTEGER PRIMARY KEY,
    customer_id INTEGER,
    subscription_id INTEGER,
    issued_on TEXT,
    due_on TEXT,
    total_cents INTEGER,
    status TEXT
);`,
	`CREATE TABLE payments (
    payment_id INTEGER PRIMARY KEY,
    invoice_id INTEGER,
    customer_id INTEGER,
    paid_on TEXT,
    amount_cents INTEGER,
    method TEXT
);`,
	`CREATE TABLE tickets (
    ticket_id INTEGER PRIMARY KEY,
    customer_id INTEGER,
    opened_on TEXT,
    closed_on TEXT,
    subject TEXT,
    body TEXT,
    priority TEXT
);`,
	`CREATE TABLE usage (
    sample_id INTEGER PRIMARY KEY,
    device_id INTEGER,
    sampled_on TEXT,
    bytes_down INTEGER,
    bytes_up INTEGER
);`,
}

// NewSource creates an empty legacy source database in dir and returns
// its path along with an open handle for inserting fixture rows.
func NewSource(t *testing.T, dir string) (string, *sql.DB) {
	t.Helper()

	path := filepath.Join(dir, "legacy.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	for _, ddl := range sourceDDL {
		_, err := db.Exec(ddl)
		require.NoError(t, err)
	}
	return path, db
}

// Open opens a working store in a temp directory attached to the source
// database at sourcePath. Pass an empty sourcePath for a store without
// an attached source.
func Open(t *testing.T, sourcePath string) *store.Store {
	t.Helper()

	cfg := types.Config{
		SourceDB: sourcePath,
		DataDir:  t.TempDir(),
	}
	s, err := store.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// Exec runs a statement against db and fails the test on error.
func Exec(t *testing.T, db *sql.DB, query string, args ...any) {
	t.Helper()
	_, err := db.Exec(query, args...)
	require.NoError(t, err)
}

// Count returns the number of rows the query yields; the query must
// select a single integer.
func Count(t *testing.T, db *sql.DB, query string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.QueryRow(query, args...).Scan(&n))
	return n
}
