// Package email delivers templated transactional email.
package email

import (
	"context"
	"log/slog"
)

// TemplateMessage is one email rendered by the provider from a stored template.
type TemplateMessage struct {
	To        string
	Template  string
	Variables map[string]any

	// Tag groups messages in the provider's delivery stats. Optional.
	Tag string
}

// Sender delivers template emails.
type Sender interface {
	SendTemplate(ctx context.Context, msg TemplateMessage) error
}

// LogSender is used when no provider is configured. It only logs what would
// have been sent.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) SendTemplate(_ context.Context, msg TemplateMessage) error {
	s.logger.Info("email disabled, skipping send", "to", msg.To, "template", msg.Template)
	return nil
}
