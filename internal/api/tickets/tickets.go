// Package tickets implements the ticket endpoints under
// /api/v1/orgs/:slug/tickets, including comments and attachments.
package tickets

import (
	"github.com/gin-gonic/gin"

	"github.com/helporbit/helporbit/internal/api/respond"
	"github.com/helporbit/helporbit/internal/db/models"
	"github.com/helporbit/helporbit/internal/middleware"
	"github.com/helporbit/helporbit/internal/services"
)

// multipartOverhead is the allowance for boundaries and part headers on top
// of the attachment size limit.
const multipartOverhead = 1 << 20

// Handlers serves ticket endpoints
type Handlers struct {
	tickets        *services.TicketService
	maxUploadBytes int64
}

// NewHandlers creates the ticket handlers. maxUploadBytes caps the request
// body of attachment uploads; zero disables the cap.
func NewHandlers(tickets *services.TicketService, maxUploadBytes int64) *Handlers {
	return &Handlers{tickets: tickets, maxUploadBytes: maxUploadBytes}
}

func orgID(c *gin.Context) string {
	return c.GetString(middleware.OrganizationIDKey)
}

// ListHandler returns a filtered page of tickets
// GET /api/v1/orgs/:slug/tickets?status=&priority=&assignee_id=&requester_id=&q=&sort=&limit=&offset=
func (h *Handlers) ListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var in services.ListTicketsInput
		if err := c.ShouldBindQuery(&in); err != nil {
			respond.BadRequest(c, "Invalid query parameters")
			return
		}
		page, err := h.tickets.List(c.Request.Context(), middleware.ActorFrom(c), orgID(c), in)
		if err != nil {
			respond.Error(c, err)
			return
		}
		respond.OK(c, gin.H{
			"tickets": page.Tickets,
			"pagination": gin.H{
				"total":  page.Total,
				"limit":  page.Limit,
				"offset": page.Offset,
			},
		})
	}
}

// CreateHandler opens a ticket
// POST /api/v1/orgs/:slug/tickets
func (h *Handlers) CreateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var in services.CreateTicketInput
		if err := c.ShouldBindJSON(&in); err != nil {
			respond.BadRequest(c, "Invalid request body")
			return
		}
		t, err := h.tickets.Create(c.Request.Context(), middleware.ActorFrom(c), orgID(c), in)
		if err != nil {
			respond.Error(c, err)
			return
		}
		respond.Created(c, gin.H{"ticket": t})
	}
}

// StatsHandler returns ticket counts by status
// GET /api/v1/orgs/:slug/tickets/stats
func (h *Handlers) StatsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := h.tickets.Stats(c.Request.Context(), middleware.ActorFrom(c), orgID(c))
		if err != nil {
			respond.Error(c, err)
			return
		}
		respond.OK(c, gin.H{"stats": stats})
	}
}

// GetHandler returns one ticket
// GET /api/v1/orgs/:slug/tickets/:id
func (h *Handlers) GetHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		t, err := h.tickets.Get(c.Request.Context(), middleware.ActorFrom(c), orgID(c), c.Param("id"))
		if err != nil {
			respond.Error(c, err)
			return
		}
		respond.OK(c, gin.H{"ticket": t})
	}
}

// UpdateHandler edits a ticket's content fields
// PATCH /api/v1/orgs/:slug/tickets/:id
func (h *Handlers) UpdateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var in services.UpdateTicketInput
		if err := c.ShouldBindJSON(&in); err != nil {
			respond.BadRequest(c, "Invalid request body")
			return
		}
		t, err := h.tickets.Update(c.Request.Context(), middleware.ActorFrom(c), orgID(c), c.Param("id"), in)
		if err != nil {
			respond.Error(c, err)
			return
		}
		respond.OK(c, gin.H{"ticket": t})
	}
}

// DeleteHandler removes a ticket with its comments and attachments
// DELETE /api/v1/orgs/:slug/tickets/:id
func (h *Handlers) DeleteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.tickets.Delete(c.Request.Context(), middleware.ActorFrom(c), orgID(c), c.Param("id")); err != nil {
			respond.Error(c, err)
			return
		}
		respond.OK(c, gin.H{"message": "Ticket deleted"})
	}
}

type assignRequest struct {
	AssigneeID *string `json:"assignee_id"`
}

// AssignHandler sets or clears the assignee
// POST /api/v1/orgs/:slug/tickets/:id/assign
func (h *Handlers) AssignHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req assignRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.BadRequest(c, "Invalid request body")
			return
		}
		t, err := h.tickets.Assign(c.Request.Context(), middleware.ActorFrom(c), orgID(c), c.Param("id"), req.AssigneeID)
		if err != nil {
			respond.Error(c, err)
			return
		}
		respond.OK(c, gin.H{"ticket": t})
	}
}

type statusRequest struct {
	Status models.TicketStatus `json:"status"`
}

// StatusHandler moves a ticket through its workflow
// POST /api/v1/orgs/:slug/tickets/:id/status
func (h *Handlers) StatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req statusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.BadRequest(c, "Invalid request body")
			return
		}
		t, err := h.tickets.UpdateStatus(c.Request.Context(), middleware.ActorFrom(c), orgID(c), c.Param("id"), req.Status)
		if err != nil {
			respond.Error(c, err)
			return
		}
		respond.OK(c, gin.H{"ticket": t})
	}
}
