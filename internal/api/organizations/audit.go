package organizations

import (
	"github.com/gin-gonic/gin"

	"github.com/helporbit/helporbit/internal/api/respond"
	"github.com/helporbit/helporbit/internal/middleware"
	"github.com/helporbit/helporbit/internal/services"
)

// AuditLogsHandler pages the organization's audit trail, newest first
// GET /api/v1/orgs/:slug/audit-logs?action=&resource_type=&user_id=&limit=&offset=
func AuditLogsHandler(audit *services.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in services.ListAuditLogsInput
		if err := c.ShouldBindQuery(&in); err != nil {
			respond.BadRequest(c, "Invalid query parameters")
			return
		}
		page, err := audit.List(c.Request.Context(), middleware.ActorFrom(c), c.GetString(middleware.OrganizationIDKey), in)
		if err != nil {
			respond.Error(c, err)
			return
		}
		respond.OK(c, gin.H{
			"audit_logs": page.Entries,
			"pagination": gin.H{
				"total":  page.Total,
				"limit":  page.Limit,
				"offset": page.Offset,
			},
		})
	}
}
