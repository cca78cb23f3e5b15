// organization_repository.go implements OrganizationRepository, providing database queries
// for organization CRUD, slug lookups, public search and a user's organization list.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/helporbit/helporbit/internal/db/models"
)

// OrganizationRepository handles database operations for organizations
type OrganizationRepository struct {
	db *sql.DB
}

// NewOrganizationRepository creates a new organization repository
func NewOrganizationRepository(db *sql.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

const organizationColumns = `id, name, slug, logo, metadata, is_public, created_at, updated_at`

func scanOrganization(row interface{ Scan(...any) error }) (*models.Organization, error) {
	org := &models.Organization{}
	err := row.Scan(
		&org.ID,
		&org.Name,
		&org.Slug,
		&org.Logo,
		&org.Metadata,
		&org.IsPublic,
		&org.CreatedAt,
		&org.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return org, nil
}

// CreateWithOwner inserts the organization and the creator's owner membership
// in one transaction. A slug collision returns ErrDuplicateSlug; the unique
// constraint decides, whatever any earlier availability check said.
func (r *OrganizationRepository) CreateWithOwner(ctx context.Context, org *models.Organization, owner *models.Member) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		INSERT INTO organizations (id, name, slug, logo, metadata, is_public, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, org.ID, org.Name, org.Slug, org.Logo, org.Metadata, org.IsPublic, org.CreatedAt, org.UpdatedAt)
	if err != nil {
		if mapped := mapConstraintError(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("failed to create organization: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO members (id, user_id, organization_id, role, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, owner.ID, owner.UserID, org.ID, owner.Role, owner.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create owner membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit organization: %w", err)
	}
	return nil
}

// GetByID retrieves an organization by ID
func (r *OrganizationRepository) GetByID(ctx context.Context, id string) (*models.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE id = $1`

	org, err := scanOrganization(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return org, nil
}

// GetBySlug retrieves an organization by its slug
func (r *OrganizationRepository) GetBySlug(ctx context.Context, slug string) (*models.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE slug = $1`

	org, err := scanOrganization(r.db.QueryRowContext(ctx, query, slug))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization by slug: %w", err)
	}
	return org, nil
}

// SlugExists reports whether any organization uses slug. The answer is
// advisory; concurrent inserts can still collide.
func (r *OrganizationRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM organizations WHERE slug = $1)`, slug,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check slug: %w", err)
	}
	return exists, nil
}

// Update writes every mutable organization field
func (r *OrganizationRepository) Update(ctx context.Context, org *models.Organization) error {
	query := `
		UPDATE organizations
		SET name = $2, slug = $3, logo = $4, metadata = $5, is_public = $6, updated_at = $7
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		org.ID, org.Name, org.Slug, org.Logo, org.Metadata, org.IsPublic, org.UpdatedAt)
	if err != nil {
		if mapped := mapConstraintError(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("failed to update organization: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update organization: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an organization. Members, invitations and tickets go with it
// through ON DELETE CASCADE.
func (r *OrganizationRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM organizations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete organization: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete organization: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// SearchPublic matches term case-insensitively against name, slug and
// metadata.domain of discoverable organizations.
func (r *OrganizationRepository) SearchPublic(ctx context.Context, term string, limit, offset int) ([]*models.Organization, error) {
	searchQuery := `
		SELECT ` + organizationColumns + `
		FROM organizations
		WHERE is_public
		  AND (name ILIKE $1 ESCAPE '\' OR slug ILIKE $1 ESCAPE '\' OR metadata->>'domain' ILIKE $1 ESCAPE '\')
		ORDER BY name ASC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, searchQuery, "%"+escapeLike(term)+"%", limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to search organizations: %w", err)
	}
	defer rows.Close()

	orgs := make([]*models.Organization, 0)
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		orgs = append(orgs, org)
	}

	return orgs, rows.Err()
}

// ListForUser returns every organization the user belongs to with their role
func (r *OrganizationRepository) ListForUser(ctx context.Context, userID string) ([]*models.UserMembership, error) {
	query := `
		SELECT m.id, o.id, o.name, o.slug, o.logo, m.role, m.created_at
		FROM members m
		JOIN organizations o ON o.id = m.organization_id
		WHERE m.user_id = $1
		ORDER BY o.name ASC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user organizations: %w", err)
	}
	defer rows.Close()

	memberships := make([]*models.UserMembership, 0)
	for rows.Next() {
		m := &models.UserMembership{}
		if err := rows.Scan(
			&m.MemberID,
			&m.OrganizationID,
			&m.OrganizationName,
			&m.OrganizationSlug,
			&m.Logo,
			&m.Role,
			&m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		memberships = append(memberships, m)
	}

	return memberships, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes user input literal inside an ILIKE pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
