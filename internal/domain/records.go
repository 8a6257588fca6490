package domain

import (
	"strings"
	"time"
)

// PaymentStatus is the settlement state recorded on a sale.
type PaymentStatus string

const (
	StatusPaid    PaymentStatus = "Paid"
	StatusCredit  PaymentStatus = "Credit"
	StatusPartial PaymentStatus = "Partial"
)

// IsCredit reports whether the sale was (at least partly) sold on credit.
func (s PaymentStatus) IsCredit() bool {
	switch s {
	case StatusCredit, StatusPartial:
		return true
	case StatusPaid:
		return false
	default:
		return false
	}
}

// Client is a customer of the business.
type Client struct {
	ID        string    `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Phone     string    `json:"phone"`
	Type      string    `json:"type,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// FullName joins the name parts, skipping empty ones.
func (c *Client) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(c.FirstName) + " " + strings.TrimSpace(c.LastName))
}

// HasPhone reports whether the client can be contacted.
func (c *Client) HasPhone() bool {
	return strings.TrimSpace(c.Phone) != ""
}

// LineItem is one product line of a sale.
type LineItem struct {
	Name      string  `json:"name"`
	Quantity  float64 `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
}

// Sale is a recorded transaction with a client.
// Outstanding balance is Total - (AmountPaid + later payments).
type Sale struct {
	ID         string        `json:"id"`
	ClientID   string        `json:"clientId"`
	Items      []LineItem    `json:"items"`
	Total      float64       `json:"total"`
	AmountPaid float64       `json:"amountPaid"`
	Status     PaymentStatus `json:"status"`
	Date       time.Time     `json:"date"`
}

// Payment settles part or all of a sale after the fact.
type Payment struct {
	ID     string    `json:"id"`
	SaleID string    `json:"saleId"`
	Amount float64   `json:"amount"`
	Date   time.Time `json:"date"`
	Method string    `json:"method,omitempty"`
}

// Reminder is a persisted follow-up tied to one overdue sale.
type Reminder struct {
	ID        string    `json:"id"`
	ClientID  string    `json:"clientId"`
	SaleID    string    `json:"saleId"`
	Message   string    `json:"message"`
	DueAt     time.Time `json:"dueAt"`
	Resolved  bool      `json:"resolved"`
	CreatedAt time.Time `json:"createdAt"`
}
