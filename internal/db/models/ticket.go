// Package models - ticket.go defines support tickets, their status and
// priority enums, and the JSON-string encoding of ticket tags.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// TicketStatus is the workflow state of a ticket
type TicketStatus string

const (
	TicketStatusOpen               TicketStatus = "open"
	TicketStatusInProgress         TicketStatus = "in_progress"
	TicketStatusWaitingForCustomer TicketStatus = "waiting_for_customer"
	TicketStatusResolved           TicketStatus = "resolved"
	TicketStatusClosed             TicketStatus = "closed"
)

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusWaitingForCustomer,
		TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// TicketPriority orders tickets by urgency
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// Ticket is a support request scoped to an organization
type Ticket struct {
	ID             string         `db:"id" json:"id"`
	OrganizationID string         `db:"organization_id" json:"organization_id"`
	Title          string         `db:"title" json:"title"`
	Description    string         `db:"description" json:"description"`
	Status         TicketStatus   `db:"status" json:"status"`
	Priority       TicketPriority `db:"priority" json:"priority"`
	Type           string         `db:"type" json:"type"`
	Tags           Tags           `db:"tags" json:"tags"`
	RequesterID    string         `db:"requester_id" json:"requester_id"` // user id
	AssigneeID     *string        `db:"assignee_id" json:"assignee_id"`   // member id
	DueDate        *time.Time     `db:"due_date" json:"due_date,omitempty"`
	ResolvedAt     *time.Time     `db:"resolved_at" json:"resolved_at,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// SetStatus moves the ticket to status, stamping ResolvedAt when the ticket
// enters resolved from any other status.
func (t *Ticket) SetStatus(status TicketStatus, now time.Time) {
	if status == TicketStatusResolved && t.Status != TicketStatusResolved {
		t.ResolvedAt = &now
	}
	t.Status = status
	t.UpdatedAt = now
}

// TicketFilter narrows ticket lists. Zero values mean "any".
type TicketFilter struct {
	OrganizationID string
	Status         TicketStatus
	Priority       TicketPriority
	AssigneeID     string
	RequesterID    string
	Search         string
	Limit          int
	Offset         int
	// Sort is one of created_at, updated_at, priority; prefix "-" for descending.
	Sort string
}

// TicketStats summarises ticket counts for a dashboard
type TicketStats struct {
	Total      int `json:"total"`
	Open       int `json:"open"`
	InProgress int `json:"in_progress"`
	Resolved   int `json:"resolved"`
}

// Tags is a list of ticket labels stored as a JSON-encoded string column.
type Tags []string

// EncodeTags serializes tags to the stored JSON string. A nil slice encodes as "[]".
func EncodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("failed to encode tags: %w", err)
	}
	return string(b), nil
}

// DecodeTags parses a stored JSON string. Order and duplicates are kept.
func DecodeTags(s string) ([]string, error) {
	if s == "" {
		return []string{}, nil
	}
	tags := []string{}
	if err := json.Unmarshal([]byte(s), &tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}
	return tags, nil
}

// Value implements driver.Valuer.
func (t Tags) Value() (driver.Value, error) {
	return EncodeTags(t)
}

// Scan implements sql.Scanner.
func (t *Tags) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case nil:
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("unsupported tags type %T", src)
	}
	tags, err := DecodeTags(s)
	if err != nil {
		return err
	}
	*t = tags
	return nil
}
