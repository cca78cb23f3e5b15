// invitation_repository.go implements InvitationRepository, providing database queries
// for invitations. Status changes are conditional on the row still being pending, so
// terminal states can never be overwritten.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/helporbit/helporbit/internal/db/models"
)

// InvitationRepository handles database operations for invitations
type InvitationRepository struct {
	db *sqlx.DB
}

// NewInvitationRepository creates a new invitation repository
func NewInvitationRepository(db *sqlx.DB) *InvitationRepository {
	return &InvitationRepository{db: db}
}

const invitationDetailsSelect = `
	SELECT i.id, i.email, i.inviter_id, i.organization_id, i.role, i.status,
	       i.expires_at, i.created_at, i.updated_at,
	       o.name AS organization_name, o.slug AS organization_slug,
	       u.name AS inviter_name, u.email AS inviter_email
	FROM invitations i
	JOIN organizations o ON o.id = i.organization_id
	LEFT JOIN members m ON m.id = i.inviter_id
	LEFT JOIN users u ON u.id = m.user_id
`

// Create inserts a new invitation
func (r *InvitationRepository) Create(ctx context.Context, inv *models.Invitation) error {
	query := `
		INSERT INTO invitations (id, email, inviter_id, organization_id, role, status, expires_at, created_at, updated_at)
		VALUES (:id, :email, :inviter_id, :organization_id, :role, :status, :expires_at, :created_at, :updated_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, inv); err != nil {
		return fmt.Errorf("failed to create invitation: %w", err)
	}
	return nil
}

// GetByID retrieves an invitation by ID
func (r *InvitationRepository) GetByID(ctx context.Context, id string) (*models.Invitation, error) {
	var inv models.Invitation
	err := r.db.GetContext(ctx, &inv, `
		SELECT id, email, inviter_id, organization_id, role, status, expires_at, created_at, updated_at
		FROM invitations WHERE id = $1
	`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}
	return &inv, nil
}

// GetDetails retrieves an invitation joined with organization and inviter names
func (r *InvitationRepository) GetDetails(ctx context.Context, id string) (*models.InvitationDetails, error) {
	var inv models.InvitationDetails
	err := r.db.GetContext(ctx, &inv, invitationDetailsSelect+` WHERE i.id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invitation details: %w", err)
	}
	return &inv, nil
}

// ListByOrganization returns every invitation of an organization, newest first
func (r *InvitationRepository) ListByOrganization(ctx context.Context, orgID string) ([]*models.InvitationDetails, error) {
	invitations := make([]*models.InvitationDetails, 0)
	err := r.db.SelectContext(ctx, &invitations,
		invitationDetailsSelect+` WHERE i.organization_id = $1 ORDER BY i.created_at DESC`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	return invitations, nil
}

// ListPendingByEmail returns pending invitations addressed to email
func (r *InvitationRepository) ListPendingByEmail(ctx context.Context, email string) ([]*models.InvitationDetails, error) {
	invitations := make([]*models.InvitationDetails, 0)
	err := r.db.SelectContext(ctx, &invitations,
		invitationDetailsSelect+` WHERE LOWER(i.email) = LOWER($1) AND i.status = 'pending' ORDER BY i.created_at DESC`,
		email)
	if err != nil {
		return nil, fmt.Errorf("failed to list user invitations: %w", err)
	}
	return invitations, nil
}

// FindPending returns the newest pending invitation for email in an
// organization, expired or not.
func (r *InvitationRepository) FindPending(ctx context.Context, orgID, email string) (*models.Invitation, error) {
	var inv models.Invitation
	err := r.db.GetContext(ctx, &inv, `
		SELECT id, email, inviter_id, organization_id, role, status, expires_at, created_at, updated_at
		FROM invitations
		WHERE organization_id = $1 AND LOWER(email) = LOWER($2) AND status = 'pending'
		ORDER BY created_at DESC
		LIMIT 1
	`, orgID, email)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find pending invitation: %w", err)
	}
	return &inv, nil
}

// UpdateStatus moves a pending invitation to status. It returns ErrNotPending
// when the row has already left pending.
func (r *InvitationRepository) UpdateStatus(ctx context.Context, id string, status models.InvitationStatus, now time.Time) error {
	return transitionInvitation(ctx, r.db, id, status, now)
}

// Accept marks the invitation accepted and creates or upgrades the accepting
// user's membership in one transaction. An existing membership is only
// raised, never lowered, so accepting cannot strip the last owner.
func (r *InvitationRepository) Accept(ctx context.Context, id string, member *models.Member, now time.Time) (*models.Member, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	if err := transitionInvitation(ctx, tx, id, models.InvitationStatusAccepted, now); err != nil {
		return nil, err
	}

	result := &models.Member{}
	err = tx.QueryRowxContext(ctx, `
		INSERT INTO members (id, user_id, organization_id, role, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, organization_id) DO UPDATE
		SET role = CASE
			WHEN array_position(ARRAY['owner','admin','member','guest'], EXCLUDED.role)
			   < array_position(ARRAY['owner','admin','member','guest'], members.role)
			THEN EXCLUDED.role
			ELSE members.role
		END
		RETURNING id, user_id, organization_id, role, created_at
	`, member.ID, member.UserID, member.OrganizationID, member.Role, member.CreatedAt).Scan(
		&result.ID, &result.UserID, &result.OrganizationID, &result.Role, &result.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit acceptance: %w", err)
	}
	return result, nil
}

func transitionInvitation(ctx context.Context, ex sqlx.ExecerContext, id string, status models.InvitationStatus, now time.Time) error {
	result, err := ex.ExecContext(ctx, `
		UPDATE invitations SET status = $2, updated_at = $3
		WHERE id = $1 AND status = 'pending'
	`, id, status, now)
	if err != nil {
		return fmt.Errorf("failed to update invitation status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update invitation status: %w", err)
	}
	if rows == 0 {
		return ErrNotPending
	}
	return nil
}
