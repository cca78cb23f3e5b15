// Package services implements HelpOrbit's business rules on top of the
// repositories: the organization directory, memberships, the invitation
// lifecycle, tickets and accounts. Every organization-scoped call resolves
// the acting user's membership and checks it against the role permission
// table before touching data. Writes finish by revalidating the cache tags
// they touched; a failed revalidation is logged and does not undo the write.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/helporbit/helporbit/internal/auth"
	"github.com/helporbit/helporbit/internal/cache"
	"github.com/helporbit/helporbit/internal/config"
	"github.com/helporbit/helporbit/internal/db/models"
	"github.com/helporbit/helporbit/internal/mail"
	"github.com/helporbit/helporbit/internal/storage"
)

// Actor is the signed-in user a call is made for.
type Actor struct {
	UserID string
	Email  string
}

// Mailer sends the transactional emails. *mail.Mailer implements it.
type Mailer interface {
	SendInvitation(ctx context.Context, inv mail.Invitation) error
	SendVerification(ctx context.Context, to, name, token string) error
	SendPasswordReset(ctx context.Context, to, name, token string, expiresAt time.Time) error
}

// Options carries the tunables the services read from configuration.
type Options struct {
	InvitationTTL    time.Duration
	VerificationTTL  time.Duration
	PasswordResetTTL time.Duration
	SessionTTL       time.Duration
	BcryptCost       int

	MaxAttachmentBytes int64
	StorageBackend     string
	AttachmentURLTTL   time.Duration

	MembersCacheTTL  time.Duration
	MembersCacheSize int
	OrgsCacheTTL     time.Duration
	OrgsCacheSize    int
}

// OptionsFromConfig maps the loaded configuration onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		InvitationTTL:      cfg.App.InvitationTTL,
		VerificationTTL:    cfg.App.VerificationTTL,
		PasswordResetTTL:   cfg.App.PasswordResetTTL,
		SessionTTL:         cfg.Auth.TokenTTL,
		BcryptCost:         cfg.Auth.BcryptCost,
		MaxAttachmentBytes: cfg.App.MaxAttachmentBytes(),
		StorageBackend:     cfg.Storage.DefaultBackend,
		AttachmentURLTTL:   15 * time.Minute,
		MembersCacheTTL:    cfg.Cache.MembersTTL,
		MembersCacheSize:   cfg.Cache.MembersSize,
		OrgsCacheTTL:       cfg.Cache.OrgsTTL,
		OrgsCacheSize:      cfg.Cache.OrgsSize,
	}
}

// Dependencies are the collaborators shared by every service.
type Dependencies struct {
	Stores  Stores
	Storage storage.Storage
	Mailer  Mailer
	// Local receives cache handlers; Revalidator is what writes call, which
	// is Local itself or a RedisRevalidator wrapping it.
	Local       *cache.LocalRevalidator
	Revalidator cache.Revalidator
	Clock       clockwork.Clock
	Logger      *slog.Logger
}

// Services groups the HelpOrbit services.
type Services struct {
	Accounts      *AccountService
	Organizations *OrganizationService
	Members       *MemberService
	Invitations   *InvitationService
	Tickets       *TicketService
	Audit         *AuditService
}

// New wires every service over deps.
func New(deps Dependencies, opts Options) (*Services, error) {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Local == nil {
		deps.Local = cache.NewLocalRevalidator()
	}
	if deps.Revalidator == nil {
		deps.Revalidator = deps.Local
	}
	if opts.InvitationTTL <= 0 {
		return nil, fmt.Errorf("invitation TTL must be positive")
	}

	b := base{
		members: deps.Stores.Members,
		reval:   deps.Revalidator,
		clock:   deps.Clock,
		logger:  deps.Logger,
	}

	orgs, err := newOrganizationService(b, deps, opts)
	if err != nil {
		return nil, err
	}
	members, err := newMemberService(b, deps, opts)
	if err != nil {
		return nil, err
	}

	return &Services{
		Accounts:      newAccountService(b, deps, opts),
		Organizations: orgs,
		Members:       members,
		Invitations:   newInvitationService(b, deps, opts),
		Tickets:       newTicketService(b, deps, opts),
		Audit:         newAuditService(b, deps),
	}, nil
}

// base holds what every service needs to authorize and revalidate.
type base struct {
	members MemberStore
	reval   cache.Revalidator
	clock   clockwork.Clock
	logger  *slog.Logger
}

// membership returns the actor's membership in orgID, or ErrPermission when
// the actor does not belong to the organization.
func (b base) membership(ctx context.Context, actor Actor, orgID string) (*models.Member, error) {
	if actor.UserID == "" {
		return nil, ErrUnauthenticated
	}
	m, err := b.members.GetByUser(ctx, orgID, actor.UserID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrPermission
	}
	return m, nil
}

// authorize returns the actor's membership if its role grants action on
// category.
func (b base) authorize(ctx context.Context, actor Actor, orgID string, category auth.Category, action auth.Action) (*models.Member, error) {
	m, err := b.membership(ctx, actor, orgID)
	if err != nil {
		return nil, err
	}
	if !auth.Can(m.Role, category, action) {
		return nil, ErrPermission
	}
	return m, nil
}

func (b base) revalidate(ctx context.Context, tags ...string) {
	if err := b.reval.RevalidateTags(ctx, tags...); err != nil {
		b.logger.Warn("cache revalidation failed", "tags", tags, "error", err)
	}
}

func (b base) now() time.Time {
	return b.clock.Now().UTC()
}

// page clamps limit and offset for list calls.
func page(limit, offset, def, maxLimit int) (int, int) {
	if limit <= 0 {
		limit = def
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
