package notify

import (
	"context"
	"log/slog"
)

// LogSender renders messages and logs them instead of delivering. It is
// the default sender when no mail transport is configured.
type LogSender struct {
	renderer *Renderer
	logger   *slog.Logger
}

var _ Sender = (*LogSender)(nil)

// NewLogSender returns a LogSender.
func NewLogSender(renderer *Renderer, logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{renderer: renderer, logger: logger}
}

// Send renders msg and logs the subject line.
func (s *LogSender) Send(_ context.Context, msg Message) error {
	email, err := s.renderer.Render(msg)
	if err != nil {
		return err
	}
	s.logger.Info("reminder email",
		slog.String("to", msg.Recipient),
		slog.String("label", msg.Label),
		slog.String("subject", email.Subject),
		slog.String("subscription_id", msg.Subscription.ID),
	)
	return nil
}
