package notification

import (
	"context"

	"github.com/rs/zerolog"
)

// LogEmailSender writes messages to the log instead of delivering them.
// Used when AMQP_URL is empty. The body holds a live download link, so it is
// only logged at debug level.
type LogEmailSender struct {
	logger zerolog.Logger
}

func NewLogEmailSender(logger zerolog.Logger) *LogEmailSender {
	return &LogEmailSender{logger: logger}
}

func (s *LogEmailSender) Send(_ context.Context, msg Message) error {
	s.logger.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Str("template", msg.Template).
		Msg("email not delivered: no mail transport configured")
	s.logger.Debug().Str("to", msg.To).Str("body", msg.Body).Msg("email body")
	return nil
}
