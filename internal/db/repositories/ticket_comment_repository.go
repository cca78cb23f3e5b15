// ticket_comment_repository.go implements TicketCommentRepository and
// TicketAttachmentRepository, the two child tables of a ticket.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/helporbit/helporbit/internal/db/models"
)

// TicketCommentRepository handles database operations for ticket comments
type TicketCommentRepository struct {
	db *sqlx.DB
}

// NewTicketCommentRepository creates a new ticket comment repository
func NewTicketCommentRepository(db *sqlx.DB) *TicketCommentRepository {
	return &TicketCommentRepository{db: db}
}

// Create inserts a comment
func (r *TicketCommentRepository) Create(ctx context.Context, c *models.TicketComment) error {
	query := `
		INSERT INTO ticket_comments (id, ticket_id, author_id, body, is_internal, created_at, updated_at)
		VALUES (:id, :ticket_id, :author_id, :body, :is_internal, :created_at, :updated_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, c); err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}
	return nil
}

// GetByID retrieves a comment of a ticket
func (r *TicketCommentRepository) GetByID(ctx context.Context, ticketID, id string) (*models.TicketComment, error) {
	var c models.TicketComment
	err := r.db.GetContext(ctx, &c, `
		SELECT c.id, c.ticket_id, c.author_id, u.name AS author_name, c.body, c.is_internal, c.created_at, c.updated_at
		FROM ticket_comments c
		JOIN users u ON u.id = c.author_id
		WHERE c.ticket_id = $1 AND c.id = $2
	`, ticketID, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get comment: %w", err)
	}
	return &c, nil
}

// List returns comments of a ticket in posting order. Internal comments are
// dropped unless includeInternal is set.
func (r *TicketCommentRepository) List(ctx context.Context, ticketID string, includeInternal bool) ([]*models.TicketComment, error) {
	comments := make([]*models.TicketComment, 0)
	err := r.db.SelectContext(ctx, &comments, `
		SELECT c.id, c.ticket_id, c.author_id, u.name AS author_name, c.body, c.is_internal, c.created_at, c.updated_at
		FROM ticket_comments c
		JOIN users u ON u.id = c.author_id
		WHERE c.ticket_id = $1 AND ($2 OR NOT c.is_internal)
		ORDER BY c.created_at ASC, c.id
	`, ticketID, includeInternal)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	return comments, nil
}

// Delete removes a comment
func (r *TicketCommentRepository) Delete(ctx context.Context, ticketID, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM ticket_comments WHERE ticket_id = $1 AND id = $2`, ticketID, id)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	if rows, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	} else if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// TicketAttachmentRepository handles database operations for ticket attachments
type TicketAttachmentRepository struct {
	db *sqlx.DB
}

// NewTicketAttachmentRepository creates a new ticket attachment repository
func NewTicketAttachmentRepository(db *sqlx.DB) *TicketAttachmentRepository {
	return &TicketAttachmentRepository{db: db}
}

const attachmentColumns = `id, ticket_id, uploader_id, file_name, content_type, size_bytes,
	storage_backend, storage_path, checksum, created_at`

// Create inserts an attachment record
func (r *TicketAttachmentRepository) Create(ctx context.Context, a *models.TicketAttachment) error {
	query := `
		INSERT INTO ticket_attachments (id, ticket_id, uploader_id, file_name, content_type, size_bytes,
			storage_backend, storage_path, checksum, created_at)
		VALUES (:id, :ticket_id, :uploader_id, :file_name, :content_type, :size_bytes,
			:storage_backend, :storage_path, :checksum, :created_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, a); err != nil {
		return fmt.Errorf("failed to create attachment: %w", err)
	}
	return nil
}

// GetByID retrieves an attachment of a ticket
func (r *TicketAttachmentRepository) GetByID(ctx context.Context, ticketID, id string) (*models.TicketAttachment, error) {
	var a models.TicketAttachment
	err := r.db.GetContext(ctx, &a,
		`SELECT `+attachmentColumns+` FROM ticket_attachments WHERE ticket_id = $1 AND id = $2`, ticketID, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get attachment: %w", err)
	}
	return &a, nil
}

// List returns the attachments of a ticket, oldest first
func (r *TicketAttachmentRepository) List(ctx context.Context, ticketID string) ([]*models.TicketAttachment, error) {
	attachments := make([]*models.TicketAttachment, 0)
	err := r.db.SelectContext(ctx, &attachments,
		`SELECT `+attachmentColumns+` FROM ticket_attachments WHERE ticket_id = $1 ORDER BY created_at ASC, id`, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	return attachments, nil
}

// Delete removes an attachment record. The stored file is removed by the caller.
func (r *TicketAttachmentRepository) Delete(ctx context.Context, ticketID, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM ticket_attachments WHERE ticket_id = $1 AND id = $2`, ticketID, id)
	if err != nil {
		return fmt.Errorf("failed to delete attachment: %w", err)
	}
	if rows, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("failed to delete attachment: %w", err)
	} else if rows == 0 {
		return ErrNotFound
	}
	return nil
}
