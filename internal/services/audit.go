package services

import (
	"context"

	"github.com/helporbit/helporbit/internal/auth"
	"github.com/helporbit/helporbit/internal/db/models"
	"github.com/helporbit/helporbit/internal/db/repositories"
)

// AuditService reads an organization's audit trail. Entries are written by
// the HTTP audit middleware.
type AuditService struct {
	base
	logs AuditStore
}

func newAuditService(b base, deps Dependencies) *AuditService {
	return &AuditService{base: b, logs: deps.Stores.AuditLogs}
}

// ListAuditLogsInput filters and pages the audit trail.
type ListAuditLogsInput struct {
	Action       string `form:"action" json:"action" validate:"max=100"`
	ResourceType string `form:"resource_type" json:"resource_type" validate:"omitempty,oneof=account organization member invitation ticket comment attachment"`
	UserID       string `form:"user_id" json:"user_id" validate:"omitempty,uuid"`
	Limit        int    `form:"limit" json:"limit"`
	Offset       int    `form:"offset" json:"offset"`
}

// AuditPage is one page of audit entries, newest first.
type AuditPage struct {
	Entries []*models.AuditLog `json:"entries"`
	Total   int                `json:"total"`
	Limit   int                `json:"limit"`
	Offset  int                `json:"offset"`
}

// List returns audit entries for orgID. Only roles that may change
// organization settings can read the trail.
func (s *AuditService) List(ctx context.Context, actor Actor, orgID string, in ListAuditLogsInput) (*AuditPage, error) {
	if _, err := s.authorize(ctx, actor, orgID, auth.CategorySettings, auth.ActionUpdate); err != nil {
		return nil, err
	}
	if err := validate(in); err != nil {
		return nil, err
	}
	if s.logs == nil {
		return &AuditPage{Entries: []*models.AuditLog{}}, nil
	}

	var filters repositories.AuditFilters
	if in.Action != "" {
		filters.Action = &in.Action
	}
	if in.ResourceType != "" {
		filters.ResourceType = &in.ResourceType
	}
	if in.UserID != "" {
		filters.UserID = &in.UserID
	}
	limit, offset := page(in.Limit, in.Offset, 50, 200)
	entries, total, err := s.logs.ListByOrganization(ctx, orgID, filters, limit, offset)
	if err != nil {
		return nil, err
	}
	return &AuditPage{Entries: entries, Total: total, Limit: limit, Offset: offset}, nil
}
