// ticket_repository.go implements TicketRepository, providing database queries for
// ticket CRUD, filtered listing and the per-status counts behind ticket stats.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/helporbit/helporbit/internal/db/models"
)

// TicketRepository handles database operations for tickets
type TicketRepository struct {
	db *sqlx.DB
}

// NewTicketRepository creates a new ticket repository
func NewTicketRepository(db *sqlx.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

const ticketColumns = `id, organization_id, title, description, status, priority, type, tags,
	requester_id, assignee_id, due_date, resolved_at, created_at, updated_at`

// ticketSorts whitelists sortable columns; keys are API sort values.
var ticketSorts = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"priority":   "array_position(ARRAY['urgent','high','medium','low'], priority)",
}

// Create inserts a ticket
func (r *TicketRepository) Create(ctx context.Context, t *models.Ticket) error {
	query := `
		INSERT INTO tickets (id, organization_id, title, description, status, priority, type, tags,
			requester_id, assignee_id, due_date, resolved_at, created_at, updated_at)
		VALUES (:id, :organization_id, :title, :description, :status, :priority, :type, :tags,
			:requester_id, :assignee_id, :due_date, :resolved_at, :created_at, :updated_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, t); err != nil {
		return fmt.Errorf("failed to create ticket: %w", err)
	}
	return nil
}

// GetByID retrieves a ticket scoped to its organization
func (r *TicketRepository) GetByID(ctx context.Context, orgID, id string) (*models.Ticket, error) {
	var t models.Ticket
	err := r.db.GetContext(ctx, &t,
		`SELECT `+ticketColumns+` FROM tickets WHERE organization_id = $1 AND id = $2`, orgID, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	return &t, nil
}

// List returns tickets matching filter together with the unpaged total
func (r *TicketRepository) List(ctx context.Context, filter models.TicketFilter) ([]*models.Ticket, int, error) {
	where, args := ticketWhere(filter)

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM tickets`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count tickets: %w", err)
	}

	query := `SELECT ` + ticketColumns + ` FROM tickets` + where + ticketOrderBy(filter.Sort) +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	tickets := make([]*models.Ticket, 0)
	if err := r.db.SelectContext(ctx, &tickets, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list tickets: %w", err)
	}
	return tickets, total, nil
}

func ticketWhere(f models.TicketFilter) (string, []any) {
	clauses := []string{"organization_id = $1"}
	args := []any{f.OrganizationID}
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.Priority != "" {
		add("priority = $%d", f.Priority)
	}
	if f.AssigneeID != "" {
		add("assignee_id = $%d", f.AssigneeID)
	}
	if f.RequesterID != "" {
		add("requester_id = $%d", f.RequesterID)
	}
	if f.Search != "" {
		args = append(args, "%"+escapeLike(f.Search)+"%")
		n := len(args)
		clauses = append(clauses, fmt.Sprintf(`(title ILIKE $%d ESCAPE '\' OR description ILIKE $%d ESCAPE '\')`, n, n))
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func ticketOrderBy(sort string) string {
	dir := "ASC"
	if strings.HasPrefix(sort, "-") {
		dir = "DESC"
		sort = sort[1:]
	}
	col, ok := ticketSorts[sort]
	if !ok {
		return " ORDER BY created_at DESC, id"
	}
	return " ORDER BY " + col + " " + dir + ", id"
}

// Update writes every mutable ticket field
func (r *TicketRepository) Update(ctx context.Context, t *models.Ticket) error {
	query := `
		UPDATE tickets
		SET title = :title, description = :description, status = :status, priority = :priority,
			type = :type, tags = :tags, assignee_id = :assignee_id, due_date = :due_date,
			resolved_at = :resolved_at, updated_at = :updated_at
		WHERE id = :id AND organization_id = :organization_id
	`
	result, err := r.db.NamedExecContext(ctx, query, t)
	if err != nil {
		return fmt.Errorf("failed to update ticket: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update ticket: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a ticket with its comments and attachment rows
func (r *TicketRepository) Delete(ctx context.Context, orgID, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tickets WHERE organization_id = $1 AND id = $2`, orgID, id)
	if err != nil {
		return fmt.Errorf("failed to delete ticket: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete ticket: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns the number of tickets in an organization, optionally
// restricted to one status.
func (r *TicketRepository) Count(ctx context.Context, orgID string, status models.TicketStatus) (int, error) {
	query := `SELECT COUNT(*) FROM tickets WHERE organization_id = $1`
	args := []any{orgID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}

	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count tickets: %w", err)
	}
	return count, nil
}
