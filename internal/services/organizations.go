package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/helporbit/helporbit/internal/auth"
	"github.com/helporbit/helporbit/internal/cache"
	"github.com/helporbit/helporbit/internal/db/models"
	"github.com/helporbit/helporbit/internal/validation"
)

// OrganizationService is the organization directory: creation with slug
// uniqueness, lookup, search, update and deletion.
type OrganizationService struct {
	base
	orgs  OrganizationStore
	users UserStore
	// bySlug caches lookups. Any organization tag purges it whole, since a
	// remote instance only knows the id.
	bySlug *cache.TTLCache[string, *models.Organization]
}

func newOrganizationService(b base, deps Dependencies, opts Options) (*OrganizationService, error) {
	bySlug, err := cache.NewTTLCache[string, *models.Organization]("organizations", opts.OrgsCacheSize, opts.OrgsCacheTTL, b.clock)
	if err != nil {
		return nil, err
	}
	deps.Local.Handle(cache.KindOrganization, func(string) { bySlug.InvalidatePrefix("") })

	return &OrganizationService{
		base:   b,
		orgs:   deps.Stores.Organizations,
		users:  deps.Stores.Users,
		bySlug: bySlug,
	}, nil
}

// CreateOrganizationInput is the body of an organization create request.
// An empty slug is derived from the name.
type CreateOrganizationInput struct {
	Name     string                      `json:"name" validate:"required,max=100"`
	Slug     string                      `json:"slug" validate:"max=48"`
	Logo     *string                     `json:"logo" validate:"omitempty,url"`
	Metadata models.OrganizationMetadata `json:"metadata"`
	IsPublic bool                        `json:"is_public"`
}

// UpdateOrganizationInput changes the non-nil fields.
type UpdateOrganizationInput struct {
	Name     *string                     `json:"name" validate:"omitempty,min=1,max=100"`
	Slug     *string                     `json:"slug" validate:"omitempty,max=48"`
	Logo     *string                     `json:"logo" validate:"omitempty,url"`
	Metadata models.OrganizationMetadata `json:"metadata"`
	IsPublic *bool                       `json:"is_public"`
}

// OrganizationView is an organization as seen by one user, with their role
// and permissions when they are a member.
type OrganizationView struct {
	*models.Organization
	Role        models.Role `json:"role,omitempty"`
	Permissions []string    `json:"permissions,omitempty"`
}

func normalizeSlug(slug string) (string, error) {
	slug = validation.NormalizeSlug(slug)
	if err := validation.ValidateSlug(slug); err != nil {
		return "", invalidField("slug", err.Error())
	}
	return slug, nil
}

// Create creates an organization with the actor as its owner. The
// availability pre-check only produces a friendlier early error; the unique
// constraint decides, so a concurrent create with the same slug still fails
// with ErrSlugTaken.
func (s *OrganizationService) Create(ctx context.Context, actor Actor, in CreateOrganizationInput) (*models.Organization, error) {
	if actor.UserID == "" {
		return nil, ErrUnauthenticated
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := validate(in); err != nil {
		return nil, err
	}

	slug := in.Slug
	if strings.TrimSpace(slug) == "" {
		slug = validation.SuggestSlug(in.Name)
		if slug == "" {
			return nil, invalidField("slug", "is required when the name has no usable characters")
		}
	}
	slug, err := normalizeSlug(slug)
	if err != nil {
		return nil, err
	}

	taken, err := s.orgs.SlugExists(ctx, slug)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrSlugTaken
	}

	now := s.now()
	metadata := in.Metadata
	if metadata == nil {
		metadata = models.OrganizationMetadata{}
	}
	org := &models.Organization{
		ID:        uuid.New().String(),
		Name:      in.Name,
		Slug:      slug,
		Logo:      in.Logo,
		Metadata:  metadata,
		IsPublic:  in.IsPublic,
		CreatedAt: now,
		UpdatedAt: now,
	}
	owner := &models.Member{
		ID:             uuid.New().String(),
		UserID:         actor.UserID,
		OrganizationID: org.ID,
		Role:           models.RoleOwner,
		CreatedAt:      now,
	}
	if err := s.orgs.CreateWithOwner(ctx, org, owner); err != nil {
		return nil, translate(err)
	}

	s.logger.Info("organization created", "org_id", org.ID, "slug", org.Slug, "user_id", actor.UserID)
	s.revalidate(ctx, cache.OrganizationTag(org.ID), cache.UserTag(actor.UserID))
	return org, nil
}

// CheckSlug reports whether slug is free. The answer is advisory.
func (s *OrganizationService) CheckSlug(ctx context.Context, slug string) (bool, error) {
	slug, err := normalizeSlug(slug)
	if err != nil {
		return false, err
	}
	taken, err := s.orgs.SlugExists(ctx, slug)
	if err != nil {
		return false, err
	}
	return !taken, nil
}

// Resolve looks an organization up by slug without any access check.
func (s *OrganizationService) Resolve(ctx context.Context, slug string) (*models.Organization, error) {
	slug = validation.NormalizeSlug(slug)
	if org, ok := s.bySlug.Get(slug); ok {
		return org, nil
	}
	org, err := s.orgs.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, ErrNotFound
	}
	s.bySlug.Set(slug, org)
	return org, nil
}

// Get returns the organization for a member, or for anyone when it is
// public. Private organizations look missing to outsiders.
func (s *OrganizationService) Get(ctx context.Context, actor Actor, slug string) (*OrganizationView, error) {
	org, err := s.Resolve(ctx, slug)
	if err != nil {
		return nil, err
	}
	view := &OrganizationView{Organization: org}

	m, err := s.membership(ctx, actor, org.ID)
	switch {
	case err == nil:
		view.Role = m.Role
		for _, p := range auth.Permissions(m.Role) {
			view.Permissions = append(view.Permissions, p.String())
		}
	case errors.Is(err, ErrPermission), errors.Is(err, ErrUnauthenticated):
		if !org.IsPublic {
			return nil, ErrNotFound
		}
	default:
		return nil, err
	}
	return view, nil
}

// Update applies in to the organization. Changing the slug repeats the
// availability check; changing visibility is reserved to owners.
func (s *OrganizationService) Update(ctx context.Context, actor Actor, orgID string, in UpdateOrganizationInput) (*models.Organization, error) {
	m, err := s.authorize(ctx, actor, orgID, auth.CategoryOrganization, auth.ActionUpdate)
	if err != nil {
		return nil, err
	}
	if err := validate(in); err != nil {
		return nil, err
	}
	if in.IsPublic != nil && m.Role != models.RoleOwner {
		return nil, ErrPermission
	}

	current, err := s.orgs.GetByID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrNotFound
	}
	org := *current

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, invalidField("name", "is required")
		}
		org.Name = name
	}
	if in.Slug != nil {
		slug, err := normalizeSlug(*in.Slug)
		if err != nil {
			return nil, err
		}
		if slug != org.Slug {
			taken, err := s.orgs.SlugExists(ctx, slug)
			if err != nil {
				return nil, err
			}
			if taken {
				return nil, ErrSlugTaken
			}
			org.Slug = slug
		}
	}
	if in.Logo != nil {
		if *in.Logo == "" {
			org.Logo = nil
		} else {
			logo := *in.Logo
			org.Logo = &logo
		}
	}
	if in.Metadata != nil {
		org.Metadata = in.Metadata
	}
	if in.IsPublic != nil {
		org.IsPublic = *in.IsPublic
	}
	org.UpdatedAt = s.now()

	if err := s.orgs.Update(ctx, &org); err != nil {
		return nil, translate(err)
	}
	s.revalidate(ctx, cache.OrganizationTag(org.ID))
	return &org, nil
}

// Delete removes the organization; members, invitations and tickets go with
// it through cascading foreign keys.
func (s *OrganizationService) Delete(ctx context.Context, actor Actor, orgID string) error {
	if _, err := s.authorize(ctx, actor, orgID, auth.CategoryOrganization, auth.ActionDelete); err != nil {
		return err
	}
	if err := s.orgs.Delete(ctx, orgID); err != nil {
		return translate(err)
	}
	s.logger.Info("organization deleted", "org_id", orgID, "user_id", actor.UserID)
	s.revalidate(ctx,
		cache.OrganizationTag(orgID),
		cache.MembersTag(orgID),
		cache.InvitationsTag(orgID),
		cache.TicketsTag(orgID),
		cache.UserTag(actor.UserID),
	)
	return nil
}

// Search matches term against the name, slug and domain of public
// organizations. Private organizations never appear.
func (s *OrganizationService) Search(ctx context.Context, term string, limit, offset int) ([]*models.Organization, error) {
	limit, offset = page(limit, offset, 20, 100)
	return s.orgs.SearchPublic(ctx, strings.TrimSpace(term), limit, offset)
}

// ListMine returns the organizations the actor belongs to.
func (s *OrganizationService) ListMine(ctx context.Context, actor Actor) ([]*models.UserMembership, error) {
	if actor.UserID == "" {
		return nil, ErrUnauthenticated
	}
	return s.orgs.ListForUser(ctx, actor.UserID)
}
