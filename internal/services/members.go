package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/helporbit/helporbit/internal/auth"
	"github.com/helporbit/helporbit/internal/cache"
	"github.com/helporbit/helporbit/internal/db/models"
	"github.com/helporbit/helporbit/internal/validation"
)

// MemberService manages organization memberships. The last owner of an
// organization can be neither demoted nor removed.
type MemberService struct {
	base
	users UserStore
	// lists caches member pages under "{orgID}:{offset}:{limit}:{order}".
	lists *cache.TTLCache[string, []*models.MemberWithUser]
}

func newMemberService(b base, deps Dependencies, opts Options) (*MemberService, error) {
	lists, err := cache.NewTTLCache[string, []*models.MemberWithUser]("members", opts.MembersCacheSize, opts.MembersCacheTTL, b.clock)
	if err != nil {
		return nil, err
	}
	deps.Local.Handle(cache.KindMembers, func(orgID string) { lists.InvalidatePrefix(orgID + ":") })

	// Member pages embed user fields, so a user change drops the pages of
	// every organization the user belongs to.
	orgs := deps.Stores.Organizations
	deps.Local.Handle(cache.KindUser, func(userID string) {
		memberships, err := orgs.ListForUser(context.Background(), userID)
		if err != nil {
			b.logger.Warn("failed to list memberships for cache invalidation; clearing member cache",
				"user_id", userID, "error", err)
			lists.InvalidatePrefix("")
			return
		}
		for _, m := range memberships {
			lists.InvalidatePrefix(m.OrganizationID + ":")
		}
	})

	return &MemberService{base: b, users: deps.Stores.Users, lists: lists}, nil
}

// AddMemberInput adds an existing user directly, without an invitation.
// Either UserID or Email identifies the user.
type AddMemberInput struct {
	UserID string      `json:"user_id" validate:"required_without=Email,omitempty,uuid"`
	Email  string      `json:"email" validate:"required_without=UserID,omitempty,email"`
	Role   models.Role `json:"role" validate:"required,role"`
}

// ListMembersInput pages a member list sorted by join date.
type ListMembersInput struct {
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
	Order  string `form:"order" validate:"omitempty,oneof=asc desc"`
}

// MemberPage is one page of a member list.
type MemberPage struct {
	Members []*models.MemberWithUser `json:"members"`
	Total   int                      `json:"total"`
	Limit   int                      `json:"limit"`
	Offset  int                      `json:"offset"`
}

// List returns a page of members with their user display fields.
func (s *MemberService) List(ctx context.Context, actor Actor, orgID string, in ListMembersInput) (*MemberPage, error) {
	if _, err := s.authorize(ctx, actor, orgID, auth.CategoryMember, auth.ActionRead); err != nil {
		return nil, err
	}
	if err := validate(in); err != nil {
		return nil, err
	}
	limit, offset := page(in.Limit, in.Offset, 50, 200)
	opts := models.MemberListOptions{Limit: limit, Offset: offset, Descending: in.Order == "desc"}

	total, err := s.members.Count(ctx, orgID)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s:%d:%d:%t", orgID, offset, limit, opts.Descending)
	members, ok := s.lists.Get(key)
	if !ok {
		members, err = s.members.List(ctx, orgID, opts)
		if err != nil {
			return nil, err
		}
		s.lists.Set(key, members)
	}

	return &MemberPage{Members: members, Total: total, Limit: limit, Offset: offset}, nil
}

// Add makes an existing user a member. Only owners may add owners.
func (s *MemberService) Add(ctx context.Context, actor Actor, orgID string, in AddMemberInput) (*models.Member, error) {
	caller, err := s.authorize(ctx, actor, orgID, auth.CategoryMember, auth.ActionCreate)
	if err != nil {
		return nil, err
	}
	if err := validate(in); err != nil {
		return nil, err
	}
	if !auth.CanAssignRole(caller.Role, in.Role) {
		return nil, ErrPermission
	}

	var user *models.User
	if in.UserID != "" {
		user, err = s.users.GetUserByID(ctx, in.UserID)
	} else {
		user, err = s.users.GetUserByEmail(ctx, validation.NormalizeEmail(in.Email))
	}
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNotFound
	}

	m := &models.Member{
		ID:             uuid.New().String(),
		UserID:         user.ID,
		OrganizationID: orgID,
		Role:           in.Role,
		CreatedAt:      s.now(),
	}
	if err := s.members.Create(ctx, m); err != nil {
		return nil, translate(err)
	}

	s.revalidate(ctx, cache.MembersTag(orgID), cache.UserTag(user.ID))
	return m, nil
}

// UpdateRole changes a member's role. Callers must be owners or admins; only
// owners may grant the owner role or change an owner's role.
func (s *MemberService) UpdateRole(ctx context.Context, actor Actor, orgID, memberID string, role models.Role) (*models.Member, error) {
	caller, err := s.authorize(ctx, actor, orgID, auth.CategoryMember, auth.ActionUpdate)
	if err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, invalidField("role", "must be one of: owner, admin, member, guest")
	}
	if !auth.CanAssignRole(caller.Role, role) {
		return nil, ErrPermission
	}

	if _, err := uuid.Parse(memberID); err != nil {
		return nil, ErrNotFound
	}
	target, err := s.members.GetByID(ctx, orgID, memberID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, ErrNotFound
	}
	if target.Role == models.RoleOwner && caller.Role != models.RoleOwner {
		return nil, ErrPermission
	}
	if target.Role == role {
		return target, nil
	}

	if err := s.members.UpdateRole(ctx, orgID, memberID, role); err != nil {
		return nil, translate(err)
	}
	target.Role = role

	s.revalidate(ctx, cache.MembersTag(orgID), cache.UserTag(target.UserID))
	return target, nil
}

// Remove deletes a membership identified by member id or by the member's
// email. Callers cannot remove themselves here; they use Leave.
func (s *MemberService) Remove(ctx context.Context, actor Actor, orgID, memberIDOrEmail string) error {
	caller, err := s.authorize(ctx, actor, orgID, auth.CategoryMember, auth.ActionDelete)
	if err != nil {
		return err
	}

	var target *models.Member
	if strings.Contains(memberIDOrEmail, "@") {
		target, err = s.members.GetByEmail(ctx, orgID, validation.NormalizeEmail(memberIDOrEmail))
	} else if _, perr := uuid.Parse(memberIDOrEmail); perr == nil {
		target, err = s.members.GetByID(ctx, orgID, memberIDOrEmail)
	}
	if err != nil {
		return err
	}
	if target == nil {
		return ErrNotFound
	}
	if target.UserID == caller.UserID {
		return ErrSelfRemoval
	}
	if target.Role == models.RoleOwner && caller.Role != models.RoleOwner {
		return ErrPermission
	}

	if err := s.members.Delete(ctx, orgID, target.ID); err != nil {
		return translate(err)
	}

	s.logger.Info("member removed", "org_id", orgID, "member_id", target.ID, "user_id", actor.UserID)
	s.clearActiveOrganization(ctx, target.UserID, orgID)
	s.revalidate(ctx, cache.MembersTag(orgID), cache.UserTag(target.UserID))
	return nil
}

// Leave removes the actor's own membership. The last owner cannot leave.
func (s *MemberService) Leave(ctx context.Context, actor Actor, orgID string) error {
	m, err := s.membership(ctx, actor, orgID)
	if err != nil {
		return err
	}
	if err := s.members.Delete(ctx, orgID, m.ID); err != nil {
		return translate(err)
	}
	s.clearActiveOrganization(ctx, actor.UserID, orgID)
	s.revalidate(ctx, cache.MembersTag(orgID), cache.UserTag(actor.UserID))
	return nil
}

// clearActiveOrganization unsets orgID as the user's active organization.
func (s *MemberService) clearActiveOrganization(ctx context.Context, userID, orgID string) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil || user == nil || user.ActiveOrganizationID == nil || *user.ActiveOrganizationID != orgID {
		return
	}
	if err := s.users.SetActiveOrganization(ctx, userID, nil, s.now()); err != nil {
		s.logger.Warn("failed to clear active organization", "user_id", userID, "org_id", orgID, "error", err)
	}
}
