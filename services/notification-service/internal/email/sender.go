package email

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Bobtechma/schonheitslokal2/services/notification-service/internal/message"
	"gopkg.in/gomail.v2"
)

const DefaultFromName = "Schönheitslokal"

type Sender interface {
	Send(ctx context.Context, msg message.Message) error
	ProviderID() string
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

// SMTPSender delivers through any SMTP relay. Authentication is used only when
// a username is configured, so an unauthenticated Mailpit works as well.
type SMTPSender struct {
	dialer   *gomail.Dialer
	from     string
	fromName string
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	from := strings.TrimSpace(cfg.From)
	if from == "" {
		from = strings.TrimSpace(cfg.Username)
	}
	if from == "" {
		from = "no-reply@schonheitslokal.local"
	}
	name := strings.TrimSpace(cfg.FromName)
	if name == "" {
		name = DefaultFromName
	}
	return &SMTPSender{
		dialer:   gomail.NewDialer(strings.TrimSpace(cfg.Host), cfg.Port, cfg.Username, cfg.Password),
		from:     from,
		fromName: name,
	}
}

func (s *SMTPSender) ProviderID() string {
	return "smtp"
}

func (s *SMTPSender) Send(ctx context.Context, msg message.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.dialer.DialAndSend(s.build(msg)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	return nil
}

func (s *SMTPSender) build(msg message.Message) *gomail.Message {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.from, s.fromName)
	if msg.ToName != "" {
		m.SetAddressHeader("To", msg.To, msg.ToName)
	} else {
		m.SetHeader("To", msg.To)
	}
	m.SetHeader("Subject", msg.Subject)
	m.SetHeader("Content-Language", msg.Language)
	m.SetBody("text/plain", msg.Body)
	return m
}

// LogSender only logs. It is used when SMTP_HOST is empty.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) ProviderID() string {
	return "log"
}

func (s LogSender) Send(_ context.Context, msg message.Message) error {
	s.Logger.Info("email (no smtp configured)", "to", msg.To, "subject", msg.Subject, "kind", msg.Kind, "language", msg.Language)
	return nil
}
