// Package mail sends the transactional emails HelpOrbit needs: invitations,
// address verification and password reset. Delivery goes through a Sender;
// SMTPSender talks to a real relay and LogSender only logs, for development.
package mail

import (
	"context"
	"errors"
	"log/slog"
	netmail "net/mail"
	"strings"
)

// Message is one outbound email with an HTML body.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers messages
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// ErrInvalidHeader is returned for messages whose recipient or subject would
// break the header block.
var ErrInvalidHeader = errors.New("invalid email header value")

func (m Message) validate() error {
	if strings.ContainsAny(m.To, "\r\n") || strings.ContainsAny(m.Subject, "\r\n") {
		return ErrInvalidHeader
	}
	if _, err := netmail.ParseAddress(m.To); err != nil {
		return ErrInvalidHeader
	}
	return nil
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender logs through logger, or slog.Default when nil.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

// Send logs msg at info level
func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "email not delivered (log sender)",
		"to", msg.To, "subject", msg.Subject, "body", msg.HTML)
	return nil
}

// parseFrom extracts the bare address from a "Name <addr>" From value for
// the SMTP envelope.
func parseFrom(from string) (string, error) {
	addr, err := netmail.ParseAddress(from)
	if err != nil {
		return "", err
	}
	return addr.Address, nil
}
