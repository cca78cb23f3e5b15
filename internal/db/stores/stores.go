// Package stores binds the PostgreSQL repositories to the service store
// interfaces.
package stores

import (
	"database/sql"

	"github.com/helporbit/helporbit/internal/db"
	"github.com/helporbit/helporbit/internal/db/repositories"
	"github.com/helporbit/helporbit/internal/services"
)

// New returns every store backed by database.
func New(database *sql.DB) services.Stores {
	x := db.Wrap(database)
	return services.Stores{
		Users:         repositories.NewUserRepository(database),
		Organizations: repositories.NewOrganizationRepository(database),
		Members:       repositories.NewMemberRepository(database),
		Invitations:   repositories.NewInvitationRepository(x),
		Tickets:       repositories.NewTicketRepository(x),
		Comments:      repositories.NewTicketCommentRepository(x),
		Attachments:   repositories.NewTicketAttachmentRepository(x),
		Verifications: repositories.NewVerificationRepository(x),
		AuditLogs:     repositories.NewAuditRepository(database),
	}
}
