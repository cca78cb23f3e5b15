package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/helporbit/helporbit/internal/api/respond"
	"github.com/helporbit/helporbit/internal/db/models"
)

// Context keys set by OrganizationMiddleware.
const (
	OrganizationKey   = "organization"
	OrganizationIDKey = "organization_id"
)

// OrganizationResolver looks an organization up by slug, returning
// services.ErrNotFound when there is none.
type OrganizationResolver interface {
	Resolve(ctx context.Context, slug string) (*models.Organization, error)
}

// OrganizationMiddleware resolves the :slug path parameter and stores the
// organization on the context. Membership is not checked here.
func OrganizationMiddleware(orgs OrganizationResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		org, err := orgs.Resolve(c.Request.Context(), c.Param("slug"))
		if err != nil {
			respond.Error(c, err)
			return
		}
		c.Set(OrganizationKey, org)
		c.Set(OrganizationIDKey, org.ID)
		c.Next()
	}
}

// OrganizationFrom returns the organization resolved for this request, or nil.
func OrganizationFrom(c *gin.Context) *models.Organization {
	if v, ok := c.Get(OrganizationKey); ok {
		if org, ok := v.(*models.Organization); ok {
			return org
		}
	}
	return nil
}
