package tickets

import (
	"github.com/gin-gonic/gin"

	"github.com/helporbit/helporbit/internal/api/respond"
	"github.com/helporbit/helporbit/internal/middleware"
	"github.com/helporbit/helporbit/internal/services"
)

// ListCommentsHandler returns a ticket's comments
// GET /api/v1/orgs/:slug/tickets/:id/comments
func (h *Handlers) ListCommentsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		comments, err := h.tickets.ListComments(c.Request.Context(), middleware.ActorFrom(c), orgID(c), c.Param("id"))
		if err != nil {
			respond.Error(c, err)
			return
		}
		respond.OK(c, gin.H{"comments": comments})
	}
}

// AddCommentHandler posts a comment
// POST /api/v1/orgs/:slug/tickets/:id/comments
func (h *Handlers) AddCommentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var in services.AddCommentInput
		if err := c.ShouldBindJSON(&in); err != nil {
			respond.BadRequest(c, "Invalid request body")
			return
		}
		comment, err := h.tickets.AddComment(c.Request.Context(), middleware.ActorFrom(c), orgID(c), c.Param("id"), in)
		if err != nil {
			respond.Error(c, err)
			return
		}
		respond.Created(c, gin.H{"comment": comment})
	}
}

// DeleteCommentHandler removes a comment
// DELETE /api/v1/orgs/:slug/tickets/:id/comments/:commentId
func (h *Handlers) DeleteCommentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		err := h.tickets.DeleteComment(c.Request.Context(), middleware.ActorFrom(c), orgID(c), c.Param("id"), c.Param("commentId"))
		if err != nil {
			respond.Error(c, err)
			return
		}
		respond.OK(c, gin.H{"message": "Comment deleted"})
	}
}
