package services

import (
	"context"
	"time"

	"github.com/helporbit/helporbit/internal/db/models"
	"github.com/helporbit/helporbit/internal/db/repositories"
)

// The store interfaces list the repository methods each service needs. The
// repositories package satisfies them against PostgreSQL and
// internal/testutil/memstore satisfies them in memory. Lookups return
// (nil, nil) when the row does not exist.

type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string, now time.Time) error
	MarkEmailVerified(ctx context.Context, userID string, now time.Time) error
	SetActiveOrganization(ctx context.Context, userID string, orgID *string, now time.Time) error
}

type OrganizationStore interface {
	CreateWithOwner(ctx context.Context, org *models.Organization, owner *models.Member) error
	GetByID(ctx context.Context, id string) (*models.Organization, error)
	GetBySlug(ctx context.Context, slug string) (*models.Organization, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	Update(ctx context.Context, org *models.Organization) error
	Delete(ctx context.Context, id string) error
	SearchPublic(ctx context.Context, term string, limit, offset int) ([]*models.Organization, error)
	ListForUser(ctx context.Context, userID string) ([]*models.UserMembership, error)
}

type MemberStore interface {
	Create(ctx context.Context, m *models.Member) error
	GetByID(ctx context.Context, orgID, memberID string) (*models.Member, error)
	GetByUser(ctx context.Context, orgID, userID string) (*models.Member, error)
	GetByEmail(ctx context.Context, orgID, email string) (*models.Member, error)
	List(ctx context.Context, orgID string, opts models.MemberListOptions) ([]*models.MemberWithUser, error)
	Count(ctx context.Context, orgID string) (int, error)
	UpdateRole(ctx context.Context, orgID, memberID string, role models.Role) error
	Delete(ctx context.Context, orgID, memberID string) error
}

type InvitationStore interface {
	Create(ctx context.Context, inv *models.Invitation) error
	GetByID(ctx context.Context, id string) (*models.Invitation, error)
	GetDetails(ctx context.Context, id string) (*models.InvitationDetails, error)
	ListByOrganization(ctx context.Context, orgID string) ([]*models.InvitationDetails, error)
	ListPendingByEmail(ctx context.Context, email string) ([]*models.InvitationDetails, error)
	FindPending(ctx context.Context, orgID, email string) (*models.Invitation, error)
	UpdateStatus(ctx context.Context, id string, status models.InvitationStatus, now time.Time) error
	Accept(ctx context.Context, id string, member *models.Member, now time.Time) (*models.Member, error)
}

type TicketStore interface {
	Create(ctx context.Context, t *models.Ticket) error
	GetByID(ctx context.Context, orgID, id string) (*models.Ticket, error)
	List(ctx context.Context, filter models.TicketFilter) ([]*models.Ticket, int, error)
	Update(ctx context.Context, t *models.Ticket) error
	Delete(ctx context.Context, orgID, id string) error
	Count(ctx context.Context, orgID string, status models.TicketStatus) (int, error)
}

type CommentStore interface {
	Create(ctx context.Context, c *models.TicketComment) error
	GetByID(ctx context.Context, ticketID, id string) (*models.TicketComment, error)
	List(ctx context.Context, ticketID string, includeInternal bool) ([]*models.TicketComment, error)
	Delete(ctx context.Context, ticketID, id string) error
}

type AttachmentStore interface {
	Create(ctx context.Context, a *models.TicketAttachment) error
	GetByID(ctx context.Context, ticketID, id string) (*models.TicketAttachment, error)
	List(ctx context.Context, ticketID string) ([]*models.TicketAttachment, error)
	Delete(ctx context.Context, ticketID, id string) error
}

type VerificationStore interface {
	Create(ctx context.Context, v *models.Verification) error
	GetByTokenHash(ctx context.Context, purpose models.VerificationPurpose, tokenHash string) (*models.Verification, error)
	Consume(ctx context.Context, id string, now time.Time) error
}

// AuditStore persists and pages the organization audit trail.
type AuditStore interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
	ListByOrganization(ctx context.Context, orgID string, filters repositories.AuditFilters, limit, offset int) ([]*models.AuditLog, int, error)
}

// Stores bundles every store the services use.
type Stores struct {
	Users         UserStore
	Organizations OrganizationStore
	Members       MemberStore
	Invitations   InvitationStore
	Tickets       TicketStore
	Comments      CommentStore
	Attachments   AttachmentStore
	Verifications VerificationStore
	AuditLogs     AuditStore
}
