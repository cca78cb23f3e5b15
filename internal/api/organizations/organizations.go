// Package organizations implements the organization directory and membership
// endpoints under /api/v1/orgs.
package organizations

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/helporbit/helporbit/internal/api/respond"
	"github.com/helporbit/helporbit/internal/middleware"
	"github.com/helporbit/helporbit/internal/services"
)

// Handlers serves organization and member endpoints
type Handlers struct {
	orgs    *services.OrganizationService
	members *services.MemberService
}

// NewHandlers creates the organization handlers
func NewHandlers(orgs *services.OrganizationService, members *services.MemberService) *Handlers {
	return &Handlers{orgs: orgs, members: members}
}

// queryInt reads an optional integer query parameter. ok is false after a
// 400 has been written.
func queryInt(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		respond.BadRequest(c, "Query parameter "+name+" must be an integer")
		return 0, false
	}
	return n, true
}

// ListMineHandler lists the organizations the caller belongs to with their role
// GET /api/v1/orgs
func (h *Handlers) ListMineHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		memberships, err := h.orgs.ListMine(c.Request.Context(), middleware.ActorFrom(c))
		if err != nil {
			respond.Error(c, err)
			return
		}
		respond.OK(c, gin.H{"organizations": memberships})
	}
}

// CreateHandler creates an organization owned by the caller
// POST /api/v1/orgs
func (h *Handlers) CreateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var in services.CreateOrganizationInput
		if err := c.ShouldBindJSON(&in); err != nil {
			respond.BadRequest(c, "Invalid request body")
			return
		}
		org, err := h.orgs.Create(c.Request.Context(), middleware.ActorFrom(c), in)
		if err != nil {
			respond.Error(c, err)
			return
		}
		respond.Created(c, gin.H{"organization": org})
	}
}

// SearchHandler searches public organizations
// GET /api/v1/orgs/search?q=&limit=&offset=
func (h *Handlers) SearchHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, ok := queryInt(c, "limit")
		if !ok {
			return
		}
		offset, ok := queryInt(c, "offset")
		if !ok {
			return
		}
		orgs, err := h.orgs.Search(c.Request.Context(), c.Query("q"), limit, offset)
		if err != nil {
			respond.Error(c, err)
			return
		}
		respond.OK(c, gin.H{"organizations": orgs})
	}
}

// CheckSlugHandler reports whether a slug is free
// GET /api/v1/orgs/check-slug?slug=
func (h *Handlers) CheckSlugHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		available, err := h.orgs.CheckSlug(c.Request.Context(), c.Query("slug"))
		if err != nil {
			respond.Error(c, err)
			return
		}
		respond.OK(c, gin.H{"slug": c.Query("slug"), "available": available})
	}
}

// GetHandler returns an organization with the caller's role and permissions.
// Anonymous callers see public organizations only.
// GET /api/v1/orgs/:slug
func (h *Handlers) GetHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		view, err := h.orgs.Get(c.Request.Context(), middleware.ActorFrom(c), c.Param("slug"))
		if err != nil {
			respond.Error(c, err)
			return
		}
		respond.OK(c, gin.H{"organization": view})
	}
}

// UpdateHandler changes organization settings
// PATCH /api/v1/orgs/:slug
func (h *Handlers) UpdateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var in services.UpdateOrganizationInput
		if err := c.ShouldBindJSON(&in); err != nil {
			respond.BadRequest(c, "Invalid request body")
			return
		}
		org, err := h.orgs.Update(c.Request.Context(), middleware.ActorFrom(c), c.GetString(middleware.OrganizationIDKey), in)
		if err != nil {
			respond.Error(c, err)
			return
		}
		respond.OK(c, gin.H{"organization": org})
	}
}

// DeleteHandler deletes an organization
// DELETE /api/v1/orgs/:slug
func (h *Handlers) DeleteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.orgs.Delete(c.Request.Context(), middleware.ActorFrom(c), c.GetString(middleware.OrganizationIDKey)); err != nil {
			respond.Error(c, err)
			return
		}
		respond.OK(c, gin.H{"message": "Organization deleted"})
	}
}

// LeaveHandler removes the caller from the organization
// POST /api/v1/orgs/:slug/leave
func (h *Handlers) LeaveHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.members.Leave(c.Request.Context(), middleware.ActorFrom(c), c.GetString(middleware.OrganizationIDKey)); err != nil {
			respond.Error(c, err)
			return
		}
		respond.OK(c, gin.H{"message": "You have left the organization"})
	}
}
