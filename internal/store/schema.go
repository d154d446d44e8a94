// Package store implements the SQLite working database for the porter
// migration engine: staging tables, mapping tables, the target schema,
// and per-entity lifecycle progress.
// See docs/ARCHITECTURE.md § Storage Layout.
package store

// Staging tables mirror the source schema column-for-column. Rows are
// never mutated after snapshot; the loader replaces them wholesale
// (or, for staging_usage, appends by window with conflict-skip).
const (
	createStagingPlans = `CREATE TABLE IF NOT EXISTS staging_plans (
    plan_id INTEGER PRIMARY KEY,
    code TEXT,
    name TEXT,
    monthly_cents INTEGER,
    download_kbps INTEGER,
    status TEXT
);`

	createStagingCustomers = `CREATE TABLE IF NOT EXISTS staging_customers (
    customer_id INTEGER PRIMARY KEY,
    full_name TEXT,
    email TEXT,
    phone TEXT,
    street_address TEXT,
    created_on TEXT,
    status TEXT
);`

	createStagingSubscriptions = `CREATE TABLE IF NOT EXISTS staging_subscriptions (
    subscription_id INTEGER PRIMARY KEY,
    customer_id INTEGER,
    plan_id INTEGER,
    started_on TEXT,
    canceled_on TEXT,
    status TEXT
);`

	createStagingDevices = `CREATE TABLE IF NOT EXISTS staging_devices (
    device_id INTEGER PRIMARY KEY,
    subscription_id INTEGER,
    mac TEXT,
    ip_addr TEXT,
    hostname TEXT,
    model TEXT,
    installed_on TEXT
);`

	createStagingInvoices = `CREATE TABLE IF NOT EXISTS staging_invoices (
    invoice_id INTEGER PRIMARY KEY,
    customer_id INTEGER,
    subscription_id INTEGER,
    issued_on TEXT,
    due_on TEXT,
    total_cents INTEGER,
    status TEXT
);`

	createStagingPayments = `CREATE TABLE IF NOT EXISTS staging_payments (
    payment_id INTEGER PRIMARY KEY,
    invoice_id INTEGER,
    customer_id INTEGER,
    paid_on TEXT,
    amount_cents INTEGER,
    method TEXT
);`

	createStagingTickets = `CREATE TABLE IF NOT EXISTS staging_tickets (
    ticket_id INTEGER PRIMARY KEY,
    customer_id INTEGER,
    opened_on TEXT,
    closed_on TEXT,
    subject TEXT,
    body TEXT,
    priority TEXT
);`

	createStagingUsage = `CREATE TABLE IF NOT EXISTS staging_usage (
    sample_id INTEGER PRIMARY KEY,
    device_id INTEGER,
    sampled_on TEXT,
    bytes_down INTEGER,
    bytes_up INTEGER
);`
)

// Mapping tables translate source-native integer keys to generated
// target identifiers. Insert-if-absent only; rows are never updated or
// deleted, so assigned target keys are stable across re-runs.
const (
	createMapPlans = `CREATE TABLE IF NOT EXISTS map_plans (
    source_id INTEGER PRIMARY KEY,
    target_id TEXT NOT NULL
);`

	// Customers receive two target identifiers: the account row and its
	// primary contact.
	createMapCustomers = `CREATE TABLE IF NOT EXISTS map_customers (
    source_id INTEGER PRIMARY KEY,
    target_id TEXT NOT NULL,
    contact_id TEXT NOT NULL
);`

	createMapSubscriptions = `CREATE TABLE IF NOT EXISTS map_subscriptions (
    source_id INTEGER PRIMARY KEY,
    target_id TEXT NOT NULL
);`

	createMapDevices = `CREATE TABLE IF NOT EXISTS map_devices (
    source_id INTEGER PRIMARY KEY,
    target_id TEXT NOT NULL
);`

	createMapInvoices = `CREATE TABLE IF NOT EXISTS map_invoices (
    source_id INTEGER PRIMARY KEY,
    target_id TEXT NOT NULL
);`

	createMapPayments = `CREATE TABLE IF NOT EXISTS map_payments (
    source_id INTEGER PRIMARY KEY,
    target_id TEXT NOT NULL
);`

	createMapTickets = `CREATE TABLE IF NOT EXISTS map_tickets (
    source_id INTEGER PRIMARY KEY,
    target_id TEXT NOT NULL
);`
)

// Target schema. Consumed as a fixed contract; every row produced from a
// source record carries its source-native key in source_ref.
const (
	createPlans = `CREATE TABLE IF NOT EXISTS plans (
    plan_id TEXT PRIMARY KEY,
    source_ref INTEGER NOT NULL UNIQUE,
    code TEXT NOT NULL,
    name TEXT NOT NULL,
    monthly_cents INTEGER NOT NULL,
    download_kbps INTEGER,
    status TEXT NOT NULL
);`

	createCustomers = `CREATE TABLE IF NOT EXISTS customers (
    customer_id TEXT PRIMARY KEY,
    source_ref INTEGER NOT NULL UNIQUE,
    contact_id TEXT NOT NULL,
    first_name TEXT NOT NULL,
    last_name TEXT NOT NULL,
    email TEXT NOT NULL UNIQUE,
    phone TEXT,
    street_address TEXT,
    status TEXT NOT NULL,
    created_at TEXT
);`

	createSubscriptions = `CREATE TABLE IF NOT EXISTS subscriptions (
    subscription_id TEXT PRIMARY KEY,
    source_ref INTEGER NOT NULL UNIQUE,
    customer_id TEXT NOT NULL,
    plan_id TEXT,
    started_at TEXT,
    canceled_at TEXT,
    status TEXT NOT NULL
);`

	// mac is UNIQUE but nullable: SQLite treats NULLs as distinct, so the
	// constraint alone cannot guard against duplicate unmapped devices.
	// Loads use an explicit source_ref existence check instead.
	createDevices = `CREATE TABLE IF NOT EXISTS devices (
    device_id TEXT PRIMARY KEY,
    source_ref INTEGER,
    subscription_id TEXT,
    mac TEXT UNIQUE,
    ip_addr TEXT,
    hostname TEXT,
    model TEXT,
    installed_at TEXT,
    match_origin TEXT NOT NULL DEFAULT 'mapped'
);`

	createInvoices = `CREATE TABLE IF NOT EXISTS invoices (
    invoice_id TEXT PRIMARY KEY,
    source_ref INTEGER NOT NULL UNIQUE,
    customer_id TEXT NOT NULL,
    subscription_id TEXT,
    issued_at TEXT NOT NULL,
    due_at TEXT,
    total_cents INTEGER NOT NULL,
    status TEXT NOT NULL
);`

	createPayments = `CREATE TABLE IF NOT EXISTS payments (
    payment_id TEXT PRIMARY KEY,
    source_ref INTEGER NOT NULL UNIQUE,
    invoice_id TEXT,
    customer_id TEXT,
    paid_at TEXT NOT NULL,
    amount_cents INTEGER NOT NULL,
    method TEXT NOT NULL
);`

	createTickets = `CREATE TABLE IF NOT EXISTS tickets (
    ticket_id TEXT PRIMARY KEY,
    source_ref INTEGER NOT NULL UNIQUE,
    customer_id TEXT,
    opened_at TEXT NOT NULL,
    closed_at TEXT,
    subject TEXT NOT NULL,
    body TEXT,
    priority TEXT NOT NULL
);`

	createUsageRecords = `CREATE TABLE IF NOT EXISTS usage_records (
    source_ref INTEGER PRIMARY KEY,
    device_id TEXT NOT NULL,
    sampled_at TEXT NOT NULL,
    down_gib REAL NOT NULL,
    up_gib REAL NOT NULL
);`

	createRevenueRollups = `CREATE TABLE IF NOT EXISTS revenue_rollups (
    month TEXT NOT NULL,
    plan_code TEXT NOT NULL,
    invoice_count INTEGER NOT NULL,
    total_cents INTEGER NOT NULL,
    PRIMARY KEY (month, plan_code)
);`

	createEntityProgress = `CREATE TABLE IF NOT EXISTS entity_progress (
    entity TEXT PRIMARY KEY,
    state TEXT NOT NULL,
    updated_at TEXT NOT NULL
);`
)

// indexDDL lists the secondary indexes used by window scans and
// reconciliation lookups.
var indexDDL = []string{
	`CREATE INDEX IF NOT EXISTS idx_staging_usage_sampled ON staging_usage(sampled_on);`,
	`CREATE INDEX IF NOT EXISTS idx_staging_invoices_issued ON staging_invoices(issued_on);`,
	`CREATE INDEX IF NOT EXISTS idx_devices_hostname ON devices(hostname);`,
	`CREATE INDEX IF NOT EXISTS idx_devices_ip ON devices(ip_addr);`,
	`CREATE INDEX IF NOT EXISTS idx_usage_device ON usage_records(device_id);`,
}

// schemaDDL lists every table in creation order.
var schemaDDL = []string{
	createStagingPlans,
	createStagingCustomers,
	createStagingSubscriptions,
	createStagingDevices,
	createStagingInvoices,
	createStagingPayments,
	createStagingTickets,
	createStagingUsage,
	createMapPlans,
	createMapCustomers,
	createMapSubscriptions,
	createMapDevices,
	createMapInvoices,
	createMapPayments,
	createMapTickets,
	createPlans,
	createCustomers,
	createSubscriptions,
	createDevices,
	createInvoices,
	createPayments,
	createTickets,
	createUsageRecords,
	createRevenueRollups,
	createEntityProgress,
}
