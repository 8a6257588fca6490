package domain

import "fmt"

// Priority orders collection reminders.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Rank returns a sortable weight, higher is more urgent.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		panic(fmt.Sprintf("unknown priority %q", string(p)))
	}
}

// ReminderSuggestion is a proposed collection contact, never persisted.
type ReminderSuggestion struct {
	ClientID        string   `json:"clientId"`
	ClientName      string   `json:"clientName"`
	Phone           string   `json:"phone"`
	Outstanding     float64  `json:"outstanding"`
	Priority        Priority `json:"priority"`
	ContactWindow   string   `json:"contactWindow"`
	Message         string   `json:"message"`
	DaysSinceOldest int      `json:"daysSinceOldest"`
	OldestSaleID    string   `json:"oldestSaleId"`
}
