// Package invitations implements the invitation endpoints: management under
// /api/v1/orgs/:slug/invitations and the invitee's side under
// /api/v1/invitations. Failures on the invitee's side carry the acceptance
// page key (not_found, expired, already_processed, wrong_user, needs_login)
// in the error body's code.
package invitations

import (
	"github.com/gin-gonic/gin"

	"github.com/helporbit/helporbit/internal/api/respond"
	"github.com/helporbit/helporbit/internal/middleware"
	"github.com/helporbit/helporbit/internal/services"
)

// Handlers serves invitation endpoints
type Handlers struct {
	invitations *services.InvitationService
}

// NewHandlers creates the invitation handlers
func NewHandlers(invitations *services.InvitationService) *Handlers {
	return &Handlers{invitations: invitations}
}

// ListHandler lists the organization's invitations with is_expired computed
// GET /api/v1/orgs/:slug/invitations
func (h *Handlers) ListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		invs, err := h.invitations.List(c.Request.Context(), middleware.ActorFrom(c), c.GetString(middleware.OrganizationIDKey))
		if err != nil {
			respond.Error(c, err)
			return
		}
		respond.OK(c, gin.H{"invitations": invs})
	}
}

// CreateHandler invites an email address at a role
// POST /api/v1/orgs/:slug/invitations
func (h *Handlers) CreateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var in services.CreateInvitationInput
		if err := c.ShouldBindJSON(&in); err != nil {
			respond.BadRequest(c, "Invalid request body")
			return
		}
		inv, err := h.invitations.Create(c.Request.Context(), middleware.ActorFrom(c), c.GetString(middleware.OrganizationIDKey), in)
		if err != nil {
			respond.Error(c, err)
			return
		}
		respond.Created(c, gin.H{"invitation": inv})
	}
}

// ResendHandler issues a new invitation for the same email and role
// POST /api/v1/orgs/:slug/invitations/:id/resend
func (h *Handlers) ResendHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		inv, err := h.invitations.Resend(c.Request.Context(), middleware.ActorFrom(c),
			c.GetString(middleware.OrganizationIDKey), c.Param("id"))
		if err != nil {
			respond.Error(c, err)
			return
		}
		respond.Created(c, gin.H{"invitation": inv})
	}
}

// CancelHandler withdraws a pending invitation
// POST /api/v1/orgs/:slug/invitations/:id/cancel
func (h *Handlers) CancelHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		err := h.invitations.Cancel(c.Request.Context(), middleware.ActorFrom(c),
			c.GetString(middleware.OrganizationIDKey), c.Param("id"))
		if err != nil {
			respond.Error(c, err)
			return
		}
		respond.OK(c, gin.H{"message": "Invitation cancelled"})
	}
}

// ListMineHandler lists pending invitations addressed to the caller
// GET /api/v1/invitations
func (h *Handlers) ListMineHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		invs, err := h.invitations.ListForUser(c.Request.Context(), middleware.ActorFrom(c))
		if err != nil {
			respond.Error(c, err)
			return
		}
		respond.OK(c, gin.H{"invitations": invs})
	}
}

// GetHandler returns the acceptance page view of one invitation
// GET /api/v1/invitations/:id
func (h *Handlers) GetHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		inv, err := h.invitations.Get(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"))
		if err != nil {
			respond.Error(c, err)
			return
		}
		respond.OK(c, gin.H{"invitation": inv})
	}
}

// AcceptHandler accepts an invitation for the caller
// POST /api/v1/invitations/:id/accept
func (h *Handlers) AcceptHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		member, err := h.invitations.Accept(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"))
		if err != nil {
			respond.Error(c, err)
			return
		}
		respond.OK(c, gin.H{"member": member})
	}
}

// RejectHandler declines an invitation
// POST /api/v1/invitations/:id/reject
func (h *Handlers) RejectHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.invitations.Reject(c.Request.Context(), middleware.ActorFrom(c), c.Param("id")); err != nil {
			respond.Error(c, err)
			return
		}
		respond.OK(c, gin.H{"message": "Invitation rejected"})
	}
}
