// Package smtp delivers reminder emails over SMTP.
package smtp

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strings"

	"github.com/google/uuid"

	"github.com/Pasan-pramu/remind/notify"
)

// Config holds SMTP connection settings.
type Config struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// SendFunc has the signature of net/smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Sender delivers rendered reminders through an SMTP relay.
type Sender struct {
	cfg      Config
	renderer *notify.Renderer
	send     SendFunc
	logger   *slog.Logger
}

var _ notify.Sender = (*Sender)(nil)

// Option configures a Sender.
type Option func(*Sender)

// WithSendFunc replaces net/smtp.SendMail.
func WithSendFunc(fn SendFunc) Option {
	return func(s *Sender) { s.send = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sender) { s.logger = l }
}

// New returns an SMTP Sender. From defaults to no-reply@<host>.
func New(cfg Config, renderer *notify.Renderer, opts ...Option) *Sender {
	if cfg.From == "" {
		cfg.From = "no-reply@" + cfg.Host
	}
	s := &Sender{cfg: cfg, renderer: renderer, send: smtp.SendMail, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send renders msg and hands it to the relay.
func (s *Sender) Send(ctx context.Context, msg notify.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	email, err := s.renderer.Render(msg)
	if err != nil {
		return err
	}

	var auth smtp.Auth
	if s.cfg.Username != "" && s.cfg.Password != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	addr := net.JoinHostPort(s.cfg.Host, s.cfg.Port)

	s.logger.Info("sending reminder email",
		slog.String("to", msg.Recipient),
		slog.String("label", msg.Label),
		slog.String("subscription", msg.Subscription.Name),
	)
	if err := s.send(addr, auth, s.cfg.From, []string{msg.Recipient}, s.compose(msg, email)); err != nil {
		return fmt.Errorf("smtp: send to %s via %s: %w", msg.Recipient, addr, err)
	}
	return nil
}

func (s *Sender) compose(msg notify.Message, email notify.Email) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", msg.Recipient)
	fmt.Fprintf(&b, "Subject: %s\r\n", email.Subject)
	fmt.Fprintf(&b, "Message-ID: <%s@%s>\r\n", uuid.NewString(), s.cfg.Host)
	if msg.DedupKey != "" {
		fmt.Fprintf(&b, "X-Reminder-Key: %s\r\n", msg.DedupKey)
	}
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	b.WriteString(email.HTML)
	return []byte(b.String())
}
