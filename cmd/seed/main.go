// Package main seeds a development database with a demo organization. It goes
// through the service layer, so every row it writes obeys the same rules as
// the API. Rerunning it skips what already exists.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/helporbit/helporbit/internal/auth"
	"github.com/helporbit/helporbit/internal/config"
	"github.com/helporbit/helporbit/internal/db"
	"github.com/helporbit/helporbit/internal/db/models"
	"github.com/helporbit/helporbit/internal/db/stores"
	"github.com/helporbit/helporbit/internal/mail"
	"github.com/helporbit/helporbit/internal/services"
	"github.com/helporbit/helporbit/internal/storage"
	"github.com/helporbit/helporbit/internal/telemetry"

	_ "github.com/helporbit/helporbit/internal/storage/azure"
	_ "github.com/helporbit/helporbit/internal/storage/gcs"
	_ "github.com/helporbit/helporbit/internal/storage/local"
	_ "github.com/helporbit/helporbit/internal/storage/s3"
)

const orgSlug = "acme-corp"

type seedUser struct {
	name  string
	email string
	role  models.Role
}

var people = []seedUser{
	{"Olivia Owner", "owner@acme.test", models.RoleOwner},
	{"Adam Admin", "admin@acme.test", models.RoleAdmin},
	{"Mia Member", "member@acme.test", models.RoleMember},
	{"Gus Guest", "guest@acme.test", models.RoleGuest},
}

var sampleTickets = []services.CreateTicketInput{
	{Title: "Cannot log in after password reset", Description: "The reset link worked but sign-in still fails.", Priority: models.TicketPriorityHigh, Type: "bug", Tags: []string{"auth"}},
	{Title: "Invoice shows the wrong VAT rate", Priority: models.TicketPriorityMedium, Type: "billing", Tags: []string{"billing", "invoices"}},
	{Title: "How do I export my tickets?", Priority: models.TicketPriorityLow, Type: "question"},
	{Title: "Dashboard is down for the whole EU team", Priority: models.TicketPriorityUrgent, Type: "incident", Tags: []string{"outage"}},
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v\n", err)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv("HO_CONFIG_PATH"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	telemetry.SetupLogger(cfg.Logging.Format, cfg.Logging.Level)

	password := os.Getenv("HO_SEED_PASSWORD")
	if password == "" {
		password = "helporbit-demo-password"
	}

	database, err := db.Connect(context.Background(), cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()
	if err := db.RunMigrations(database, db.Up); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	storageBackend, err := storage.NewStorage(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage backend: %w", err)
	}
	svc, err := services.New(services.Dependencies{
		Stores:  stores.New(database),
		Storage: storageBackend,
		Mailer:  mail.NewMailer(mail.NewLogSender(slog.Default()), cfg.App.URL, cfg.App.Name),
	}, services.OptionsFromConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	return seed(context.Background(), svc, password)
}

func seed(ctx context.Context, svc *services.Services, password string) error {
	actors := make([]services.Actor, len(people))
	for i, p := range people {
		a, err := ensureUser(ctx, svc, p, password)
		if err != nil {
			return err
		}
		actors[i] = a
	}
	owner := actors[0]

	org, err := ensureOrganization(ctx, svc, owner)
	if err != nil {
		return err
	}

	for i, p := range people[1:] {
		_, err := svc.Members.Add(ctx, owner, org.ID, services.AddMemberInput{UserID: actors[i+1].UserID, Role: p.role})
		switch {
		case errors.Is(err, services.ErrUniqueness):
			slog.Info("member exists, skipping", "email", p.email)
		case err != nil:
			return fmt.Errorf("failed to add %s: %w", p.email, err)
		default:
			slog.Info("added member", "email", p.email, "role", p.role)
		}
	}

	_, err = svc.Invitations.Create(ctx, owner, org.ID, services.CreateInvitationInput{
		Email: "new.hire@acme.test",
		Role:  models.RoleMember,
	})
	switch {
	case errors.Is(err, services.ErrUniqueness):
		slog.Info("invitation pending, skipping")
	case err != nil:
		return fmt.Errorf("failed to invite: %w", err)
	}

	stats, err := svc.Tickets.Stats(ctx, owner, org.ID)
	if err != nil {
		return err
	}
	if stats.Total > 0 {
		slog.Info("tickets exist, skipping", "count", stats.Total)
		return nil
	}
	// Spread requesters across the roles allowed to open tickets.
	var requesters []services.Actor
	for i, p := range people {
		if auth.Can(p.role, auth.CategoryTicket, auth.ActionCreate) {
			requesters = append(requesters, actors[i])
		}
	}
	for i, in := range sampleTickets {
		requester := requesters[i%len(requesters)]
		if _, err := svc.Tickets.Create(ctx, requester, org.ID, in); err != nil {
			return fmt.Errorf("failed to create ticket %q: %w", in.Title, err)
		}
	}
	slog.Info("seeded tickets", "count", len(sampleTickets))
	return nil
}

// ensureUser signs p up, or signs them in when the email is taken.
func ensureUser(ctx context.Context, svc *services.Services, p seedUser, password string) (services.Actor, error) {
	session, err := svc.Accounts.SignUp(ctx, services.SignUpInput{Name: p.name, Email: p.email, Password: password})
	if errors.Is(err, services.ErrUniqueness) {
		session, err = svc.Accounts.SignIn(ctx, services.SignInInput{Email: p.email, Password: password})
		if err != nil {
			return services.Actor{}, fmt.Errorf("%s exists with a different password: %w", p.email, err)
		}
	} else if err == nil {
		slog.Info("created user", "email", p.email)
	}
	if err != nil {
		return services.Actor{}, fmt.Errorf("failed to create %s: %w", p.email, err)
	}
	return services.Actor{UserID: session.User.ID, Email: session.User.Email}, nil
}

func ensureOrganization(ctx context.Context, svc *services.Services, owner services.Actor) (*models.Organization, error) {
	org, err := svc.Organizations.Create(ctx, owner, services.CreateOrganizationInput{
		Name:     "Acme Corp",
		Slug:     orgSlug,
		IsPublic: true,
		Metadata: models.OrganizationMetadata{"industry": "manufacturing"},
	})
	if errors.Is(err, services.ErrSlugTaken) {
		slog.Info("organization exists, skipping", "slug", orgSlug)
		return svc.Organizations.Resolve(ctx, orgSlug)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create organization: %w", err)
	}
	slog.Info("created organization", "slug", org.Slug)
	return org, nil
}
