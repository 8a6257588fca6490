package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/opensource-finance/tally/internal/domain"
)

// CreateReminder stores a new reminder and returns its ID.
// An ID is generated when the reminder has none.
func (r *SQLRepository) CreateReminder(ctx context.Context, rem *domain.Reminder) (string, error) {
	if rem == nil || rem.ClientID == "" {
		return "", fmt.Errorf("%w: reminder client id is required", ErrInvalidInput)
	}
	if rem.ID == "" {
		rem.ID = newID()
	}
	if rem.CreatedAt.IsZero() {
		rem.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO reminders (id, client_id, sale_id, message, due_at, resolved, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rem.ID, rem.ClientID, rem.SaleID, rem.Message, rem.DueAt, boolInt(rem.Resolved), rem.CreatedAt,
	)
	if err != nil {
		return "", err
	}
	return rem.ID, nil
}

// ListReminders returns every reminder, oldest first.
func (r *SQLRepository) ListReminders(ctx context.Context) ([]*domain.Reminder, error) {
	query := `
		SELECT id, client_id, sale_id, message, due_at, resolved, created_at
		FROM reminders
		ORDER BY created_at, id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reminders := make([]*domain.Reminder, 0)
	for rows.Next() {
		var rem domain.Reminder
		var resolved int

		if err := rows.Scan(
			&rem.ID, &rem.ClientID, &rem.SaleID, &rem.Message,
			&rem.DueAt, &resolved, &rem.CreatedAt,
		); err != nil {
			return nil, err
		}
		rem.Resolved = resolved == 1
		reminders = append(reminders, &rem)
	}

	return reminders, rows.Err()
}

// ResolveReminder marks a reminder as handled.
func (r *SQLRepository) ResolveReminder(ctx context.Context, id string) error {
	query := `UPDATE reminders SET resolved = 1 WHERE id = ?`

	result, err := r.db.ExecContext(ctx, r.rebind(query), id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
