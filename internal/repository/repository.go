// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/tally/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

var _ domain.Repository = (*SQLRepository)(nil)

// SQLRepository implements domain.Repository over SQLite, PostgreSQL or MySQL.
type SQLRepository struct {
	db      *sql.DB
	dialect dialect
}

// New opens the configured store and applies the schema.
func New(cfg domain.RepositoryConfig) (*SQLRepository, error) {
	d, ok := dialects[cfg.Driver]
	if !ok {
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	db, err := d.open(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{db: db, dialect: d}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, stmt := range r.dialect.schemas {
		if _, err := r.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveClient inserts or updates a client.
func (r *SQLRepository) SaveClient(ctx context.Context, c *domain.Client) error {
	if c == nil || c.ID == "" {
		return fmt.Errorf("%w: client id is required", ErrInvalidInput)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	query := r.upsert("clients", []string{"id", "first_name", "last_name", "phone", "type", "notes", "created_at"})
	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.FirstName, c.LastName, c.Phone, c.Type, c.Notes, c.CreatedAt,
	)
	return err
}

// ListClients returns every client ordered by creation date.
func (r *SQLRepository) ListClients(ctx context.Context) ([]*domain.Client, error) {
	query := `
		SELECT id, first_name, last_name, phone, type, notes, created_at
		FROM clients
		ORDER BY created_at, id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	clients := make([]*domain.Client, 0)
	for rows.Next() {
		var c domain.Client
		if err := rows.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Phone, &c.Type, &c.Notes, &c.CreatedAt); err != nil {
			return nil, err
		}
		clients = append(clients, &c)
	}

	return clients, rows.Err()
}

// GetClient retrieves a client by ID. It returns nil, nil when absent.
func (r *SQLRepository) GetClient(ctx context.Context, id string) (*domain.Client, error) {
	query := `
		SELECT id, first_name, last_name, phone, type, notes, created_at
		FROM clients
		WHERE id = ?
	`

	var c domain.Client
	err := r.db.QueryRowContext(ctx, r.rebind(query), id).Scan(
		&c.ID, &c.FirstName, &c.LastName, &c.Phone, &c.Type, &c.Notes, &c.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// SaveSale inserts or updates a sale. Line items are stored as JSON.
func (r *SQLRepository) SaveSale(ctx context.Context, s *domain.Sale) error {
	if s == nil || s.ID == "" {
		return fmt.Errorf("%w: sale id is required", ErrInvalidInput)
	}
	if s.Total < 0 || s.AmountPaid < 0 {
		return fmt.Errorf("%w: sale amounts must not be negative", ErrInvalidInput)
	}
	switch s.Status {
	case domain.StatusPaid, domain.StatusCredit, domain.StatusPartial:
	default:
		return fmt.Errorf("%w: unknown payment status %q", ErrInvalidInput, s.Status)
	}

	items, err := json.Marshal(s.Items)
	if err != nil {
		return fmt.Errorf("failed to encode sale items: %w", err)
	}

	query := r.upsert("sales", []string{"id", "client_id", "items", "total", "amount_paid", "status", "sale_date"})
	_, err = r.db.ExecContext(ctx, query,
		s.ID, s.ClientID, string(items), s.Total, s.AmountPaid, string(s.Status), s.Date,
	)
	return err
}

// ListSales returns every sale, oldest first.
func (r *SQLRepository) ListSales(ctx context.Context) ([]*domain.Sale, error) {
	query := `
		SELECT id, client_id, items, total, amount_paid, status, sale_date
		FROM sales
		ORDER BY sale_date, id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]*domain.Sale, 0)
	for rows.Next() {
		var s domain.Sale
		var items, status string

		if err := rows.Scan(&s.ID, &s.ClientID, &items, &s.Total, &s.AmountPaid, &status, &s.Date); err != nil {
			return nil, err
		}
		s.Status = domain.PaymentStatus(status)
		if items != "" {
			if err := json.Unmarshal([]byte(items), &s.Items); err != nil {
				return nil, fmt.Errorf("failed to parse items of sale %s: %w", s.ID, err)
			}
		}
		sales = append(sales, &s)
	}

	return sales, rows.Err()
}

// SavePayment records a later payment against a sale.
func (r *SQLRepository) SavePayment(ctx context.Context, p *domain.Payment) error {
	if p == nil || p.ID == "" || p.SaleID == "" {
		return fmt.Errorf("%w: payment id and sale id are required", ErrInvalidInput)
	}
	if p.Amount <= 0 {
		return fmt.Errorf("%w: payment amount must be positive", ErrInvalidInput)
	}

	query := r.upsert("payments", []string{"id", "sale_id", "amount", "paid_at", "method"})
	_, err := r.db.ExecContext(ctx, query, p.ID, p.SaleID, p.Amount, p.Date, p.Method)
	return err
}

// ListPayments returns every payment, oldest first.
func (r *SQLRepository) ListPayments(ctx context.Context) ([]*domain.Payment, error) {
	query := `
		SELECT id, sale_id, amount, paid_at, method
		FROM payments
		ORDER BY paid_at, id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]*domain.Payment, 0)
	for rows.Next() {
		var p domain.Payment
		if err := rows.Scan(&p.ID, &p.SaleID, &p.Amount, &p.Date, &p.Method); err != nil {
			return nil, err
		}
		payments = append(payments, &p)
	}

	return payments, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// newID returns a fresh record identifier.
func newID() string {
	return uuid.New().String()
}

// upsert builds an insert-or-update statement keyed on the first column.
func (r *SQLRepository) upsert(table string, cols []string) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), placeholders)
	return r.rebind(query + r.dialect.onConflict(cols[0], cols[1:]))
}

// rebind rewrites ? placeholders as $n for dialects that number them.
func (r *SQLRepository) rebind(query string) string {
	if !r.dialect.numbered {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}
