package mail

import "log/slog"

type Message struct {
	From    string
	To      []string
	Cc      []string
	Subject string
	Body    string
	IsHTML  bool
}

type MailSender interface {
	Send(message *Message) error
}

// NoopSender discards outgoing mail. Used when no mail backend is configured.
type NoopSender struct{}

func (NoopSender) Send(message *Message) error {
	slog.Debug("Mail backend disabled, dropping message", "to", message.To, "subject", message.Subject)
	return nil
}
