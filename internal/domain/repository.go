// Package domain defines the core records, contracts and result types for Tally.
package domain

import (
	"context"
	"time"
)

// Gateway is the read-mostly data access contract the engine consumes.
// The engine never owns storage; it only creates reminders.
type Gateway interface {
	ListClients(ctx context.Context) ([]*Client, error)
	ListSales(ctx context.Context) ([]*Sale, error)
	ListPayments(ctx context.Context) ([]*Payment, error)

	// GetClient returns nil, nil when the client does not exist.
	GetClient(ctx context.Context, id string) (*Client, error)

	ListReminders(ctx context.Context) ([]*Reminder, error)
	CreateReminder(ctx context.Context, reminder *Reminder) (string, error)
}

// Repository is the full store used by the surrounding application.
type Repository interface {
	Gateway

	// Save methods insert or replace by ID.
	SaveClient(ctx context.Context, client *Client) error
	SaveSale(ctx context.Context, sale *Sale) error
	SavePayment(ctx context.Context, payment *Payment) error
	ResolveReminder(ctx context.Context, reminderID string) error

	Ping(ctx context.Context) error
	Close() error
}

// RepositoryConfig selects the SQL driver, "sqlite", "postgres" or "mysql",
// and the fields that driver reads. Zero pool settings keep database/sql
// defaults.
type RepositoryConfig struct {
	Driver string

	SQLitePath string

	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// MySQLDSN is a go-sql-driver DSN or a mysql:// URL.
	MySQLDSN string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
