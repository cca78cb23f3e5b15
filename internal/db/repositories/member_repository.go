// member_repository.go implements MemberRepository, providing database queries for
// organization memberships, including owner-preserving role changes and removals.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/helporbit/helporbit/internal/db/models"
)

// MemberRepository handles database operations for organization members
type MemberRepository struct {
	db *sql.DB
}

// NewMemberRepository creates a new member repository
func NewMemberRepository(db *sql.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

const memberColumns = `id, user_id, organization_id, role, created_at`

func scanMember(row interface{ Scan(...any) error }) (*models.Member, error) {
	m := &models.Member{}
	if err := row.Scan(&m.ID, &m.UserID, &m.OrganizationID, &m.Role, &m.CreatedAt); err != nil {
		return nil, err
	}
	return m, nil
}

// Create inserts a membership. An existing (user, organization) pair returns
// ErrDuplicateMember.
func (r *MemberRepository) Create(ctx context.Context, m *models.Member) error {
	query := `
		INSERT INTO members (id, user_id, organization_id, role, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query, m.ID, m.UserID, m.OrganizationID, m.Role, m.CreatedAt)
	if err != nil {
		if mapped := mapConstraintError(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

// GetByID retrieves a membership by ID within an organization
func (r *MemberRepository) GetByID(ctx context.Context, orgID, memberID string) (*models.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE organization_id = $1 AND id = $2`

	m, err := scanMember(r.db.QueryRowContext(ctx, query, orgID, memberID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return m, nil
}

// GetByUser retrieves the user's membership in an organization
func (r *MemberRepository) GetByUser(ctx context.Context, orgID, userID string) (*models.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE organization_id = $1 AND user_id = $2`

	m, err := scanMember(r.db.QueryRowContext(ctx, query, orgID, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member by user: %w", err)
	}
	return m, nil
}

// GetByEmail retrieves the membership of the user with email, ignoring case
func (r *MemberRepository) GetByEmail(ctx context.Context, orgID, email string) (*models.Member, error) {
	query := `
		SELECT m.id, m.user_id, m.organization_id, m.role, m.created_at
		FROM members m
		JOIN users u ON u.id = m.user_id
		WHERE m.organization_id = $1 AND LOWER(u.email) = LOWER($2)
	`

	m, err := scanMember(r.db.QueryRowContext(ctx, query, orgID, email))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member by email: %w", err)
	}
	return m, nil
}

// List returns members of an organization with user display fields
func (r *MemberRepository) List(ctx context.Context, orgID string, opts models.MemberListOptions) ([]*models.MemberWithUser, error) {
	order := "ASC"
	if opts.Descending {
		order = "DESC"
	}
	query := `
		SELECT m.id, m.user_id, m.organization_id, m.role, m.created_at,
		       u.name, u.email, u.image, u.email_verified
		FROM members m
		JOIN users u ON u.id = m.user_id
		WHERE m.organization_id = $1
		ORDER BY m.created_at ` + order + `, m.id ` + order + `
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, orgID, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	members := make([]*models.MemberWithUser, 0)
	for rows.Next() {
		m := &models.MemberWithUser{}
		if err := rows.Scan(
			&m.ID,
			&m.UserID,
			&m.OrganizationID,
			&m.Role,
			&m.CreatedAt,
			&m.UserName,
			&m.UserEmail,
			&m.UserImage,
			&m.EmailVerified,
		); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}

	return members, rows.Err()
}

// Count returns the number of members in an organization
func (r *MemberRepository) Count(ctx context.Context, orgID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM members WHERE organization_id = $1`, orgID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count members: %w", err)
	}
	return count, nil
}

// UpdateRole changes a member's role. The organization's owner rows are
// locked first so two concurrent demotions cannot both pass the check;
// demoting the last owner returns ErrLastOwner.
func (r *MemberRepository) UpdateRole(ctx context.Context, orgID, memberID string, role models.Role) error {
	return r.withOwnersLocked(ctx, orgID, memberID, func(tx *sql.Tx, current *models.Member, owners int) error {
		if current.Role == models.RoleOwner && role != models.RoleOwner && owners <= 1 {
			return ErrLastOwner
		}
		_, err := tx.ExecContext(ctx, `UPDATE members SET role = $3 WHERE organization_id = $1 AND id = $2`,
			orgID, memberID, role)
		if err != nil {
			return fmt.Errorf("failed to update member role: %w", err)
		}
		return nil
	})
}

// Delete removes a membership, refusing to remove the last owner.
func (r *MemberRepository) Delete(ctx context.Context, orgID, memberID string) error {
	return r.withOwnersLocked(ctx, orgID, memberID, func(tx *sql.Tx, current *models.Member, owners int) error {
		if current.Role == models.RoleOwner && owners <= 1 {
			return ErrLastOwner
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM members WHERE organization_id = $1 AND id = $2`, orgID, memberID)
		if err != nil {
			return fmt.Errorf("failed to remove member: %w", err)
		}
		return nil
	})
}

// withOwnersLocked loads the target member and the current owner count under
// row locks, then runs fn in the same transaction.
func (r *MemberRepository) withOwnersLocked(ctx context.Context, orgID, memberID string,
	fn func(tx *sql.Tx, current *models.Member, owners int) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM members WHERE organization_id = $1 AND role = 'owner' FOR UPDATE`, orgID)
	if err != nil {
		return fmt.Errorf("failed to lock owners: %w", err)
	}
	owners := 0
	for rows.Next() {
		owners++
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("failed to lock owners: %w", err)
	}
	rows.Close()

	current, err := scanMember(tx.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM members WHERE organization_id = $1 AND id = $2 FOR UPDATE`,
		orgID, memberID))
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get member: %w", err)
	}

	if err := fn(tx, current, owners); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit member change: %w", err)
	}
	return nil
}
