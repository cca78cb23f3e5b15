package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/helporbit/helporbit/internal/auth"
	"github.com/helporbit/helporbit/internal/cache"
	"github.com/helporbit/helporbit/internal/db/models"
	"github.com/helporbit/helporbit/internal/mail"
	"github.com/helporbit/helporbit/internal/telemetry"
	"github.com/helporbit/helporbit/internal/validation"
)

// Invitation transitions, as recorded in metrics.
const (
	transitionCreate = "create"
	transitionResend = "resend"
	transitionAccept = "accept"
	transitionReject = "reject"
	transitionCancel = "cancel"
)

// InvitationService runs the invitation lifecycle. An invitation starts
// pending and moves at most once, to accepted, rejected or cancelled. Expiry
// is never stored: a pending invitation past ExpiresAt reads as expired.
type InvitationService struct {
	base
	invitations InvitationStore
	orgs        OrganizationStore
	users       UserStore
	mailer      Mailer
	ttl         time.Duration
}

func newInvitationService(b base, deps Dependencies, opts Options) *InvitationService {
	return &InvitationService{
		base:        b,
		invitations: deps.Stores.Invitations,
		orgs:        deps.Stores.Organizations,
		users:       deps.Stores.Users,
		mailer:      deps.Mailer,
		ttl:         opts.InvitationTTL,
	}
}

// CreateInvitationInput is the body of an invite request. Resend allows a
// new invitation while a live one for the same email is still pending.
type CreateInvitationInput struct {
	Email  string      `json:"email" validate:"required,email,max=254"`
	Role   models.Role `json:"role" validate:"required,role"`
	Resend bool        `json:"resend"`
}

func record(transition string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = ErrorCode(err)
	}
	telemetry.InvitationTransitionsTotal.WithLabelValues(transition, outcome).Inc()
}

// Create invites an email address to the organization at a role and emails
// the acceptance link. A failed email is logged; the invitation stays.
func (s *InvitationService) Create(ctx context.Context, actor Actor, orgID string, in CreateInvitationInput) (inv *models.Invitation, err error) {
	transition := transitionCreate
	if in.Resend {
		transition = transitionResend
	}
	defer func() { record(transition, err) }()

	inviter, err := s.authorize(ctx, actor, orgID, auth.CategoryInvitation, auth.ActionCreate)
	if err != nil {
		return nil, err
	}
	in.Email = validation.NormalizeEmail(in.Email)
	if err := validate(in); err != nil {
		return nil, err
	}
	if !auth.CanAssignRole(inviter.Role, in.Role) {
		return nil, ErrPermission
	}

	existing, err := s.members.GetByEmail(ctx, orgID, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s is already a member of this organization", ErrUniqueness, in.Email)
	}

	now := s.now()
	if !in.Resend {
		pending, err := s.invitations.FindPending(ctx, orgID, in.Email)
		if err != nil {
			return nil, err
		}
		if pending != nil && !pending.IsExpired(now) {
			return nil, fmt.Errorf("%w: %s already has a pending invitation", ErrUniqueness, in.Email)
		}
	}

	inv = &models.Invitation{
		ID:             uuid.New().String(),
		Email:          in.Email,
		InviterID:      &inviter.ID,
		OrganizationID: orgID,
		Role:           in.Role,
		Status:         models.InvitationStatusPending,
		ExpiresAt:      now.Add(s.ttl),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.invitations.Create(ctx, inv); err != nil {
		return nil, err
	}

	s.logger.Info("invitation created",
		"invitation_id", inv.ID, "org_id", orgID, "role", inv.Role, "resend", in.Resend)
	s.notify(ctx, actor, inv)
	s.revalidate(ctx, cache.InvitationsTag(orgID))
	return inv, nil
}

// Resend issues a fresh invitation, with a new id and expiry, for the email
// and role of an existing one. The original is left untouched.
func (s *InvitationService) Resend(ctx context.Context, actor Actor, orgID, invitationID string) (*models.Invitation, error) {
	if _, err := s.authorize(ctx, actor, orgID, auth.CategoryInvitation, auth.ActionCreate); err != nil {
		record(transitionResend, err)
		return nil, err
	}
	original, err := s.load(ctx, invitationID)
	if err == nil && original.OrganizationID != orgID {
		err = ErrNotFound
	}
	if err != nil {
		record(transitionResend, err)
		return nil, err
	}
	return s.Create(ctx, actor, orgID, CreateInvitationInput{
		Email:  original.Email,
		Role:   original.Role,
		Resend: true,
	})
}

func (s *InvitationService) notify(ctx context.Context, actor Actor, inv *models.Invitation) {
	org, err := s.orgs.GetByID(ctx, inv.OrganizationID)
	if err != nil || org == nil {
		s.logger.Error("invitation email not sent: organization lookup failed",
			"invitation_id", inv.ID, "org_id", inv.OrganizationID, "error", err)
		return
	}
	msg := mail.Invitation{
		ID:               inv.ID,
		Email:            inv.Email,
		OrganizationName: org.Name,
		OrganizationSlug: org.Slug,
		Role:             string(inv.Role),
		ExpiresAt:        inv.ExpiresAt,
	}
	if inviter, err := s.users.GetUserByID(ctx, actor.UserID); err == nil && inviter != nil {
		msg.InviterName = inviter.Name
	}
	if err := s.mailer.SendInvitation(ctx, msg); err != nil {
		s.logger.Error("failed to send invitation email",
			"invitation_id", inv.ID, "org_id", inv.OrganizationID, "error", err)
	}
}

// Accept accepts an invitation for the signed-in user, whose verified email
// must match the invited one. The user's membership is created, or raised to the
// invited role if they already belong, and the organization becomes their
// active one.
func (s *InvitationService) Accept(ctx context.Context, actor Actor, invitationID string) (member *models.Member, err error) {
	defer func() { record(transitionAccept, err) }()

	if actor.UserID == "" {
		return nil, ErrUnauthenticated
	}
	inv, err := s.load(ctx, invitationID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if !inv.Status.CanTransitionTo(models.InvitationStatusAccepted) {
		return nil, ErrAlreadyProcessed
	}
	if !now.Before(inv.ExpiresAt) {
		return nil, ErrExpired
	}
	if err := s.checkInvitee(ctx, actor, inv); err != nil {
		return nil, err
	}

	member, err = s.invitations.Accept(ctx, inv.ID, &models.Member{
		ID:             uuid.New().String(),
		UserID:         actor.UserID,
		OrganizationID: inv.OrganizationID,
		Role:           inv.Role,
		CreatedAt:      now,
	}, now)
	if err != nil {
		return nil, translate(err)
	}

	orgID := inv.OrganizationID
	if err := s.users.SetActiveOrganization(ctx, actor.UserID, &orgID, now); err != nil {
		s.logger.Warn("failed to set active organization after accepting invitation",
			"invitation_id", inv.ID, "user_id", actor.UserID, "error", err)
	}
	s.logger.Info("invitation accepted", "invitation_id", inv.ID, "org_id", orgID, "member_id", member.ID)
	s.revalidate(ctx, cache.InvitationsTag(orgID), cache.MembersTag(orgID), cache.UserTag(actor.UserID))
	return member, nil
}

// Reject declines an invitation addressed to the signed-in user, who must
// have verified the invited address.
func (s *InvitationService) Reject(ctx context.Context, actor Actor, invitationID string) (err error) {
	defer func() { record(transitionReject, err) }()

	if actor.UserID == "" {
		return ErrUnauthenticated
	}
	inv, err := s.load(ctx, invitationID)
	if err != nil {
		return err
	}
	if !inv.Status.CanTransitionTo(models.InvitationStatusRejected) {
		return ErrAlreadyProcessed
	}
	if err := s.checkInvitee(ctx, actor, inv); err != nil {
		return err
	}
	if err := s.invitations.UpdateStatus(ctx, inv.ID, models.InvitationStatusRejected, s.now()); err != nil {
		return translate(err)
	}
	s.revalidate(ctx, cache.InvitationsTag(inv.OrganizationID))
	return nil
}

// Cancel withdraws a pending invitation. It needs invitation management
// permission in the invitation's organization.
func (s *InvitationService) Cancel(ctx context.Context, actor Actor, orgID, invitationID string) (err error) {
	defer func() { record(transitionCancel, err) }()

	if _, err := s.authorize(ctx, actor, orgID, auth.CategoryInvitation, auth.ActionDelete); err != nil {
		return err
	}
	inv, err := s.load(ctx, invitationID)
	if err != nil {
		return err
	}
	if inv.OrganizationID != orgID {
		return ErrNotFound
	}
	if !inv.Status.CanTransitionTo(models.InvitationStatusCancelled) {
		return ErrAlreadyProcessed
	}
	if err := s.invitations.UpdateStatus(ctx, inv.ID, models.InvitationStatusCancelled, s.now()); err != nil {
		return translate(err)
	}
	s.revalidate(ctx, cache.InvitationsTag(orgID))
	return nil
}

// List returns every invitation of an organization, newest first, with
// IsExpired computed for now.
func (s *InvitationService) List(ctx context.Context, actor Actor, orgID string) ([]*models.InvitationDetails, error) {
	if _, err := s.authorize(ctx, actor, orgID, auth.CategoryInvitation, auth.ActionRead); err != nil {
		return nil, err
	}
	invs, err := s.invitations.ListByOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	s.markExpired(invs...)
	return invs, nil
}

// ListForUser returns the pending invitations addressed to the actor.
func (s *InvitationService) ListForUser(ctx context.Context, actor Actor) ([]*models.InvitationDetails, error) {
	if actor.UserID == "" {
		return nil, ErrUnauthenticated
	}
	invs, err := s.invitations.ListPendingByEmail(ctx, validation.NormalizeEmail(actor.Email))
	if err != nil {
		return nil, err
	}
	s.markExpired(invs...)
	return invs, nil
}

// Get returns the acceptance page view of an invitation. Only the invited
// user and the organization's invitation managers may read it.
func (s *InvitationService) Get(ctx context.Context, actor Actor, invitationID string) (*models.InvitationDetails, error) {
	if actor.UserID == "" {
		return nil, ErrUnauthenticated
	}
	if _, err := uuid.Parse(invitationID); err != nil {
		return nil, ErrNotFound
	}
	inv, err := s.invitations.GetDetails(ctx, invitationID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, ErrNotFound
	}
	if validation.NormalizeEmail(actor.Email) != validation.NormalizeEmail(inv.Email) {
		if _, err := s.authorize(ctx, actor, inv.OrganizationID, auth.CategoryInvitation, auth.ActionRead); err != nil {
			if errors.Is(err, ErrPermission) {
				return nil, ErrWrongUser
			}
			return nil, err
		}
	}
	s.markExpired(inv)
	return inv, nil
}

// load fetches an invitation by id. Ids that are not UUIDs cannot exist.
func (s *InvitationService) load(ctx context.Context, id string) (*models.Invitation, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	inv, err := s.invitations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, ErrNotFound
	}
	return inv, nil
}

// checkInvitee confirms the actor owns the invited address. Signing up with
// an address does not prove ownership until it is verified.
func (s *InvitationService) checkInvitee(ctx context.Context, actor Actor, inv *models.Invitation) error {
	if validation.NormalizeEmail(actor.Email) != validation.NormalizeEmail(inv.Email) {
		return ErrWrongUser
	}
	user, err := s.users.GetUserByID(ctx, actor.UserID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUnauthenticated
	}
	if !user.EmailVerified {
		return ErrEmailUnverified
	}
	return nil
}

func (s *InvitationService) markExpired(invs ...*models.InvitationDetails) {
	now := s.now()
	for _, inv := range invs {
		inv.IsExpired = inv.Invitation.IsExpired(now)
	}
}
