package repository

// Schema definitions for the Tally store.
// The portable schema serves both SQLite and PostgreSQL.

const schemaClients = `
CREATE TABLE IF NOT EXISTS clients (
    id TEXT PRIMARY KEY,
    first_name TEXT NOT NULL DEFAULT '',
    last_name TEXT NOT NULL DEFAULT '',
    phone TEXT NOT NULL DEFAULT '',
    type TEXT NOT NULL DEFAULT '',
    notes TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL
);
`

const schemaSales = `
CREATE TABLE IF NOT EXISTS sales (
    id TEXT PRIMARY KEY,
    client_id TEXT NOT NULL DEFAULT '',
    items TEXT NOT NULL,
    total DOUBLE PRECISION NOT NULL,
    amount_paid DOUBLE PRECISION NOT NULL DEFAULT 0,
    status TEXT NOT NULL,
    sale_date TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sales_client ON sales(client_id);
CREATE INDEX IF NOT EXISTS idx_sales_date ON sales(sale_date);
`

const schemaPayments = `
CREATE TABLE IF NOT EXISTS payments (
    id TEXT PRIMARY KEY,
    sale_id TEXT NOT NULL,
    amount DOUBLE PRECISION NOT NULL,
    paid_at TIMESTAMP NOT NULL,
    method TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_payments_sale ON payments(sale_id);
`

// schemaReminders holds both manual and automatically created reminders.
// The sale index backs the duplicate check of the overdue scan.
const schemaReminders = `
CREATE TABLE IF NOT EXISTS reminders (
    id TEXT PRIMARY KEY,
    client_id TEXT NOT NULL,
    sale_id TEXT NOT NULL DEFAULT '',
    message TEXT NOT NULL,
    due_at TIMESTAMP NOT NULL,
    resolved INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reminders_sale ON reminders(sale_id, resolved);
`

// MySQL rejects TEXT keys and CREATE INDEX IF NOT EXISTS, and the driver runs
// one statement per Exec, so it gets its own schema.

const mysqlClients = `
CREATE TABLE IF NOT EXISTS clients (
    id VARCHAR(64) PRIMARY KEY,
    first_name VARCHAR(255) NOT NULL DEFAULT '',
    last_name VARCHAR(255) NOT NULL DEFAULT '',
    phone VARCHAR(64) NOT NULL DEFAULT '',
    type VARCHAR(64) NOT NULL DEFAULT '',
    notes TEXT NOT NULL,
    created_at DATETIME(6) NOT NULL
)`

const mysqlSales = `
CREATE TABLE IF NOT EXISTS sales (
    id VARCHAR(64) PRIMARY KEY,
    client_id VARCHAR(64) NOT NULL DEFAULT '',
    items TEXT NOT NULL,
    total DOUBLE NOT NULL,
    amount_paid DOUBLE NOT NULL DEFAULT 0,
    status VARCHAR(16) NOT NULL,
    sale_date DATETIME(6) NOT NULL,
    INDEX idx_sales_client (client_id),
    INDEX idx_sales_date (sale_date)
)`

const mysqlPayments = `
CREATE TABLE IF NOT EXISTS payments (
    id VARCHAR(64) PRIMARY KEY,
    sale_id VARCHAR(64) NOT NULL,
    amount DOUBLE NOT NULL,
    paid_at DATETIME(6) NOT NULL,
    method VARCHAR(64) NOT NULL DEFAULT '',
    INDEX idx_payments_sale (sale_id)
)`

const mysqlReminders = `
CREATE TABLE IF NOT EXISTS reminders (
    id VARCHAR(64) PRIMARY KEY,
    client_id VARCHAR(64) NOT NULL,
    sale_id VARCHAR(64) NOT NULL DEFAULT '',
    message TEXT NOT NULL,
    due_at DATETIME(6) NOT NULL,
    resolved TINYINT NOT NULL DEFAULT 0,
    created_at DATETIME(6) NOT NULL,
    INDEX idx_reminders_sale (sale_id, resolved)
)`

// AllSchemas returns the portable schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaClients,
		schemaSales,
		schemaPayments,
		schemaReminders,
	}
}

func mysqlSchemas() []string {
	return []string{mysqlClients, mysqlSales, mysqlPayments, mysqlReminders}
}
