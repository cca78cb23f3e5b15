// audit.go provides Gin middleware that records mutating requests to the
// audit log after the handler has run.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/helporbit/helporbit/internal/config"
	"github.com/helporbit/helporbit/internal/db/models"
	"github.com/helporbit/helporbit/internal/safego"
)

// AuditWriter persists audit entries. *repositories.AuditRepository
// implements it.
type AuditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// resourceTypes maps collection path segments to audit resource types.
var resourceTypes = map[string]string{
	"auth":        "account",
	"orgs":        "organization",
	"members":     "member",
	"invitations": "invitation",
	"tickets":     "ticket",
	"comments":    "comment",
	"attachments": "attachment",
}

var methodVerbs = map[string]string{
	http.MethodPost:   "create",
	http.MethodPut:    "update",
	http.MethodPatch:  "update",
	http.MethodDelete: "delete",
}

// describe derives the resource type, resource id and action name from the
// matched route template. POST /api/v1/orgs/:slug/invitations/:id/resend
// becomes ("invitation", <id>, "invitation.resend"), and
// DELETE /api/v1/orgs/:slug/members/:member becomes
// ("member", <member>, "member.delete").
func describe(c *gin.Context) (resourceType, resourceID, action string) {
	segments := strings.Split(strings.Trim(c.FullPath(), "/"), "/")

	verb := ""
	for i := 0; i < len(segments); i++ {
		kind, ok := resourceTypes[segments[i]]
		if !ok {
			continue
		}
		resourceType, resourceID, verb = kind, "", ""

		if i+1 < len(segments) && strings.HasPrefix(segments[i+1], ":") {
			param := segments[i+1][1:]
			resourceID = c.Param(param)
			if kind == "organization" {
				resourceID = c.GetString(OrganizationIDKey)
			}
			i++
		}
		if i+1 < len(segments) && !strings.HasPrefix(segments[i+1], ":") {
			if _, nested := resourceTypes[segments[i+1]]; !nested {
				verb = segments[i+1]
			}
		}
	}

	if resourceType == "" {
		return "", "", c.Request.Method + " " + c.FullPath()
	}
	if verb == "" {
		verb = methodVerbs[c.Request.Method]
		if verb == "" {
			verb = strings.ToLower(c.Request.Method)
		}
	}
	return resourceType, resourceID, resourceType + "." + strings.ReplaceAll(verb, "-", "_")
}

// AuditMiddleware writes one audit entry per successful mutating request.
// Reads and failures are recorded only when cfg enables them. Writes happen
// in the background so a slow audit table never delays the response.
func AuditMiddleware(writer AuditWriter, cfg config.AuditConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if writer == nil || c.Request.Method == http.MethodOptions || c.FullPath() == "" {
			return
		}
		isRead := c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead
		if isRead && !cfg.LogReadOperations {
			return
		}
		status := c.Writer.Status()
		if status >= 400 && !cfg.LogFailedRequests {
			return
		}

		resourceType, resourceID, action := describe(c)
		ip := c.ClientIP()

		entry := &models.AuditLog{
			Action:    action,
			IPAddress: &ip,
			CreatedAt: time.Now(),
			Metadata: map[string]interface{}{
				"status_code": status,
				"request_id":  c.GetString(RequestIDKey),
			},
		}
		if userID := c.GetString(UserIDKey); userID != "" {
			entry.UserID = &userID
		}
		if orgID := c.GetString(OrganizationIDKey); orgID != "" {
			entry.OrganizationID = &orgID
		}
		if resourceType != "" {
			entry.ResourceType = &resourceType
		}
		if resourceID != "" {
			entry.ResourceID = &resourceID
		}

		safego.Go("audit-log", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := writer.CreateAuditLog(ctx, entry); err != nil {
				slog.Error("failed to write audit log", "action", entry.Action, "error", err)
			}
		})
	}
}
