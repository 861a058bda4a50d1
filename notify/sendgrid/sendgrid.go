// Package sendgrid delivers reminder emails through the SendGrid v3 API.
package sendgrid

import (
	"context"
	"fmt"
	"log/slog"

	sendgridgo "github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/Pasan-pramu/remind/notify"
)

// Config holds SendGrid settings.
type Config struct {
	APIKey     string `yaml:"api_key"`
	Sender     string `yaml:"sender"`
	SenderName string `yaml:"sender_name"`
}

// Client is the subset of the SendGrid client the Sender uses.
type Client interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// Sender delivers rendered reminders via SendGrid.
type Sender struct {
	client     Client
	renderer   *notify.Renderer
	sender     string
	senderName string
	logger     *slog.Logger
}

var _ notify.Sender = (*Sender)(nil)

// New returns a Sender backed by a SendGrid client for cfg.APIKey.
func New(cfg Config, renderer *notify.Renderer, logger *slog.Logger) *Sender {
	return NewWithClient(sendgridgo.NewSendClient(cfg.APIKey), cfg, renderer, logger)
}

// NewWithClient returns a Sender using client.
func NewWithClient(client Client, cfg Config, renderer *notify.Renderer, logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{
		client:     client,
		renderer:   renderer,
		sender:     cfg.Sender,
		senderName: cfg.SenderName,
		logger:     logger,
	}
}

// Send renders msg and posts it. A non-2xx response is a failure.
func (s *Sender) Send(ctx context.Context, msg notify.Message) error {
	email, err := s.renderer.Render(msg)
	if err != nil {
		return err
	}

	from := mail.NewEmail(s.senderName, s.sender)
	to := mail.NewEmail(msg.Subscription.User.Name, msg.Recipient)
	message := mail.NewSingleEmail(from, email.Subject, to, "", email.HTML)
	if msg.DedupKey != "" && len(message.Personalizations) > 0 {
		message.Personalizations[0].SetCustomArg("reminder_key", msg.DedupKey)
	}

	resp, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		s.logger.Error("send email error", slog.String("error", err.Error()))
		return fmt.Errorf("sendgrid: send to %s: %w", msg.Recipient, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.Error("send email error",
			slog.String("recipient", msg.Recipient),
			slog.Int("status", resp.StatusCode),
			slog.String("response", resp.Body),
		)
		return fmt.Errorf("sendgrid: send to %s: status %d", msg.Recipient, resp.StatusCode)
	}

	s.logger.Info("reminder sent",
		slog.String("recipient", msg.Recipient),
		slog.String("label", msg.Label),
	)
	return nil
}
