// Package mailer sends transactional e-mail.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/angelmondragon/tourbook-backend/pkg/config"
	"github.com/angelmondragon/tourbook-backend/pkg/logger"
)

// Message is a plain-text e-mail.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New returns an SMTP mailer when SMTP is configured and a logging mailer
// otherwise.
func New(cfg config.MailConfig, logg *logger.Logger) Mailer {
	if cfg.SMTPEnabled() {
		return &SMTPMailer{cfg: cfg}
	}
	return &LogMailer{from: cfg.From, logg: logg}
}

// LogMailer writes messages to the log instead of delivering them.
type LogMailer struct {
	from string
	logg *logger.Logger
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	if m.logg != nil {
		ctx = m.logg.WithFields(ctx, map[string]any{"mail_to": msg.To, "mail_from": m.from, "mail_subject": msg.Subject})
		m.logg.Info(ctx, "mail.send")
	}
	return nil
}

// SMTPMailer delivers messages with PLAIN auth.
type SMTPMailer struct {
	cfg  config.MailConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	send := m.send
	if send == nil {
		send = smtp.SendMail
	}
	addr := fmt.Sprintf("%s:%d", m.cfg.SMTPHost, m.cfg.SMTPPort)
	var auth smtp.Auth
	if m.cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", m.cfg.SMTPUser, m.cfg.SMTPPassword, m.cfg.SMTPHost)
	}
	if err := send(addr, auth, m.cfg.From, []string{msg.To}, msg.encode(m.cfg.From)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (msg Message) validate() error {
	if strings.TrimSpace(msg.To) == "" {
		return errors.New("mail recipient is required")
	}
	if strings.ContainsAny(msg.To+msg.Subject, "\r\n") {
		return errors.New("mail headers must not contain line breaks")
	}
	return nil
}

func (msg Message) encode(from string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + msg.To + "\r\n")
	b.WriteString("Subject: " + msg.Subject + "\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	b.WriteString(msg.Body + "\r\n")
	return []byte(b.String())
}

// Welcome greets a new account.
func Welcome(to, name, url string) Message {
	return Message{
		To:      to,
		Subject: "Welcome to the Tourbook family!",
		Body:    fmt.Sprintf("Hi %s,\n\nWelcome to Tourbook! Add a photo to your profile at %s.\n", firstName(name), url),
	}
}

// PasswordReset carries a one-time reset link.
func PasswordReset(to, name, url string, ttl time.Duration) Message {
	return Message{
		To:      to,
		Subject: fmt.Sprintf("Your password reset token (valid for %d minutes)", int(ttl.Minutes())),
		Body: fmt.Sprintf("Hi %s,\n\nForgot your password? Submit a PATCH request with your new password and passwordConfirm to: %s\n"+
			"If you didn't forget your password, please ignore this email.\n", firstName(name), url),
	}
}

func firstName(name string) string {
	if fields := strings.Fields(name); len(fields) > 0 {
		return fields[0]
	}
	return name
}
