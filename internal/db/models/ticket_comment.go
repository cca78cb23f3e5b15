// Package models - ticket_comment.go defines comments on tickets.
package models

import "time"

// TicketComment is a message on a ticket. Internal comments are hidden from guests.
type TicketComment struct {
	ID         string    `db:"id" json:"id"`
	TicketID   string    `db:"ticket_id" json:"ticket_id"`
	AuthorID   string    `db:"author_id" json:"author_id"`
	AuthorName string    `db:"author_name" json:"author_name"`
	Body       string    `db:"body" json:"body"`
	IsInternal bool      `db:"is_internal" json:"is_internal"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}
