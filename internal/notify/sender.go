package notify

import (
	"github.com/rs/zerolog"
)

// LogEmailSender writes outbound mail to the log instead of an SMTP relay.
// Deployments front a real mail provider with their own sender; this keeps
// local and staging environments observable without one.
type LogEmailSender struct {
	Logger zerolog.Logger
	From   string
}

// Send implements common.EmailSender.
func (s LogEmailSender) Send(to, subject, html string) error {
	s.Logger.Info().
		Str("from", s.From).
		Str("to", to).
		Str("subject", subject).
		Int("body_bytes", len(html)).
		Msg("email dispatched")
	return nil
}
