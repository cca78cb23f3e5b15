package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"

	"github.com/helporbit/helporbit/internal/telemetry"
)

// Kinds label emails in metrics and logs.
const (
	KindInvitation    = "invitation"
	KindVerification  = "verification"
	KindPasswordReset = "password_reset"
)

var templates = template.Must(template.New("mail").Parse(`
{{define "invitation"}}<p>Hello,</p>
<p>{{if .InviterName}}{{.InviterName}}{{else}}A teammate{{end}} invited you to join <strong>{{.OrganizationName}}</strong> on {{.AppName}} as {{.Role}}.</p>
<p><a href="{{.Link}}">Accept the invitation</a></p>
<p>This invitation expires on {{.ExpiresAt}}.</p>{{end}}
{{define "verification"}}<p>Hello {{.Name}},</p>
<p>Confirm your email address for {{.AppName}}:</p>
<p><a href="{{.Link}}">Verify email</a></p>{{end}}
{{define "password_reset"}}<p>Hello {{.Name}},</p>
<p>Someone asked to reset your {{.AppName}} password. If it was you, use the link below before it expires on {{.ExpiresAt}}.</p>
<p><a href="{{.Link}}">Reset password</a></p>
<p>If you did not ask for this you can ignore this email.</p>{{end}}
`))

// Invitation holds what the invitation email shows.
type Invitation struct {
	ID               string
	Email            string
	OrganizationName string
	OrganizationSlug string
	InviterName      string
	Role             string
	ExpiresAt        time.Time
}

// Mailer renders the transactional templates and hands them to a Sender.
type Mailer struct {
	sender  Sender
	appURL  string
	appName string
}

// NewMailer creates a Mailer. appURL is the public web app root used in links.
func NewMailer(sender Sender, appURL, appName string) *Mailer {
	return &Mailer{sender: sender, appURL: strings.TrimRight(appURL, "/"), appName: appName}
}

// InvitationLink is the acceptance page of an invitation.
func (m *Mailer) InvitationLink(orgSlug, invitationID string) string {
	return fmt.Sprintf("%s/org/%s/accept-invitation/%s", m.appURL, url.PathEscape(orgSlug), url.PathEscape(invitationID))
}

// SendInvitation emails the invited address a link to the acceptance page.
func (m *Mailer) SendInvitation(ctx context.Context, inv Invitation) error {
	return m.send(ctx, KindInvitation, inv.Email,
		fmt.Sprintf("You're invited to join %s on %s", inv.OrganizationName, m.appName),
		map[string]any{
			"AppName":          m.appName,
			"OrganizationName": inv.OrganizationName,
			"InviterName":      inv.InviterName,
			"Role":             inv.Role,
			"Link":             m.InvitationLink(inv.OrganizationSlug, inv.ID),
			"ExpiresAt":        inv.ExpiresAt.UTC().Format(time.RFC1123),
		})
}

// SendVerification emails a single-use address verification link.
func (m *Mailer) SendVerification(ctx context.Context, to, name, token string) error {
	return m.send(ctx, KindVerification, to, "Verify your email address",
		map[string]any{
			"AppName": m.appName,
			"Name":    name,
			"Link":    m.appURL + "/verify-email?token=" + url.QueryEscape(token),
		})
}

// SendPasswordReset emails a single-use password reset link.
func (m *Mailer) SendPasswordReset(ctx context.Context, to, name, token string, expiresAt time.Time) error {
	return m.send(ctx, KindPasswordReset, to, "Reset your password",
		map[string]any{
			"AppName":   m.appName,
			"Name":      name,
			"Link":      m.appURL + "/reset-password?token=" + url.QueryEscape(token),
			"ExpiresAt": expiresAt.UTC().Format(time.RFC1123),
		})
}

func (m *Mailer) send(ctx context.Context, kind, to, subject string, data map[string]any) error {
	var body bytes.Buffer
	if err := templates.ExecuteTemplate(&body, kind, data); err != nil {
		telemetry.EmailsSentTotal.WithLabelValues(kind, "error").Inc()
		return fmt.Errorf("failed to render %s email: %w", kind, err)
	}

	err := m.sender.Send(ctx, Message{To: to, Subject: subject, HTML: body.String()})
	if err != nil {
		telemetry.EmailsSentTotal.WithLabelValues(kind, "error").Inc()
		return err
	}
	telemetry.EmailsSentTotal.WithLabelValues(kind, "sent").Inc()
	return nil
}
