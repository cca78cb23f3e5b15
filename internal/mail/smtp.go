package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/helporbit/helporbit/internal/config"
)

// SMTPSender delivers mail through an SMTP relay.
type SMTPSender struct {
	cfg  config.SMTPConfig
	now  func() time.Time
	send func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPSender creates a sender for cfg. With UseTLS the connection uses
// implicit TLS, falling back to STARTTLS when the TLS handshake fails.
func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	s := &SMTPSender{cfg: cfg, now: time.Now}
	if cfg.UseTLS {
		s.send = func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
			return sendMailTLS(addr, cfg.Host, auth, from, to, msg)
		}
	} else {
		s.send = smtp.SendMail
	}
	return s
}

// Send delivers msg. The context bounds nothing inside net/smtp; it is
// checked once before dialing.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	from := s.cfg.From
	if addr, err := parseFrom(from); err == nil {
		from = addr
	}

	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port))
	if err := s.send(addr, auth, from, []string{msg.To}, s.build(msg)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (s *SMTPSender) build(msg Message) []byte {
	var b strings.Builder
	header := func(k, v string) { b.WriteString(k + ": " + v + "\r\n") }

	header("From", s.cfg.From)
	header("To", msg.To)
	header("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	header("Date", s.now().UTC().Format(time.RFC1123Z))
	header("Message-ID", "<"+uuid.New().String()+"@helporbit>")
	header("MIME-Version", "1.0")
	header("Content-Type", "text/html; charset=utf-8")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(msg.HTML, "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}

// sendMailTLS connects with implicit TLS (SMTPS, port 465). When the TLS
// dial fails it falls back to smtp.SendMail, which upgrades with STARTTLS.
func sendMailTLS(addr, host string, auth smtp.Auth, from string, to []string, msg []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{
		ServerName: host,
		MinVersion: tls.VersionTLS12,
	})
	if err != nil {
		return smtp.SendMail(addr, auth, from, to, msg)
	}
	defer conn.Close()

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		return fmt.Errorf("smtp new client: %w", err)
	}
	defer c.Quit() //nolint:errcheck

	if auth != nil {
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := c.Mail(from); err != nil {
		return fmt.Errorf("smtp MAIL FROM: %w", err)
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp RCPT TO %s: %w", rcpt, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	return w.Close()
}
