// Package svcstore wires an in-memory store into the services layer for tests
// outside internal/services.
package svcstore

import (
	"github.com/helporbit/helporbit/internal/services"
	"github.com/helporbit/helporbit/internal/testutil/memstore"
)

// New returns every view of s as services.Stores.
func New(s *memstore.Store) services.Stores {
	return services.Stores{
		Users:         s.Users(),
		Organizations: s.Organizations(),
		Members:       s.Members(),
		Invitations:   s.Invitations(),
		Tickets:       s.Tickets(),
		Comments:      s.Comments(),
		Attachments:   s.Attachments(),
		Verifications: s.Verifications(),
		AuditLogs:     s.AuditLogs(),
	}
}
