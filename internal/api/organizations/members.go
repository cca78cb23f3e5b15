package organizations

import (
	"github.com/gin-gonic/gin"

	"github.com/helporbit/helporbit/internal/api/respond"
	"github.com/helporbit/helporbit/internal/db/models"
	"github.com/helporbit/helporbit/internal/middleware"
	"github.com/helporbit/helporbit/internal/services"
)

// ListMembersHandler pages the member list
// GET /api/v1/orgs/:slug/members?limit=&offset=&order=asc|desc
func (h *Handlers) ListMembersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var in services.ListMembersInput
		if err := c.ShouldBindQuery(&in); err != nil {
			respond.BadRequest(c, "Invalid query parameters")
			return
		}
		page, err := h.members.List(c.Request.Context(), middleware.ActorFrom(c), c.GetString(middleware.OrganizationIDKey), in)
		if err != nil {
			respond.Error(c, err)
			return
		}
		respond.OK(c, gin.H{
			"members": page.Members,
			"pagination": gin.H{
				"total":  page.Total,
				"limit":  page.Limit,
				"offset": page.Offset,
			},
		})
	}
}

// AddMemberHandler adds an existing user directly at a role
// POST /api/v1/orgs/:slug/members
func (h *Handlers) AddMemberHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var in services.AddMemberInput
		if err := c.ShouldBindJSON(&in); err != nil {
			respond.BadRequest(c, "Invalid request body")
			return
		}
		member, err := h.members.Add(c.Request.Context(), middleware.ActorFrom(c), c.GetString(middleware.OrganizationIDKey), in)
		if err != nil {
			respond.Error(c, err)
			return
		}
		respond.Created(c, gin.H{"member": member})
	}
}

type updateRoleRequest struct {
	Role models.Role `json:"role"`
}

// UpdateMemberRoleHandler changes a member's role
// PATCH /api/v1/orgs/:slug/members/:member
func (h *Handlers) UpdateMemberRoleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req updateRoleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.BadRequest(c, "Invalid request body")
			return
		}
		member, err := h.members.UpdateRole(c.Request.Context(), middleware.ActorFrom(c),
			c.GetString(middleware.OrganizationIDKey), c.Param("member"), req.Role)
		if err != nil {
			respond.Error(c, err)
			return
		}
		respond.OK(c, gin.H{"member": member})
	}
}

// RemoveMemberHandler removes a member by member id or email
// DELETE /api/v1/orgs/:slug/members/:member
func (h *Handlers) RemoveMemberHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		err := h.members.Remove(c.Request.Context(), middleware.ActorFrom(c),
			c.GetString(middleware.OrganizationIDKey), c.Param("member"))
		if err != nil {
			respond.Error(c, err)
			return
		}
		respond.OK(c, gin.H{"message": "Member removed"})
	}
}
