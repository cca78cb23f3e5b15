// Package models - ticket_attachment.go defines files attached to tickets.
package models

import "time"

// TicketAttachment records a file stored in the attachment storage backend
type TicketAttachment struct {
	ID             string    `db:"id" json:"id"`
	TicketID       string    `db:"ticket_id" json:"ticket_id"`
	UploaderID     string    `db:"uploader_id" json:"uploader_id"`
	FileName       string    `db:"file_name" json:"file_name"`
	ContentType    string    `db:"content_type" json:"content_type"`
	SizeBytes      int64     `db:"size_bytes" json:"size_bytes"`
	StorageBackend string    `db:"storage_backend" json:"-"`
	StoragePath    string    `db:"storage_path" json:"-"`
	Checksum       string    `db:"checksum" json:"checksum"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
