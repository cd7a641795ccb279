package common

// EmailSender delivers a rendered notification to one recipient. Payment
// notification flows depend only on this interface, so delivery can be a real
// SMTP/API sender, a log line, or a test outbox.
type EmailSender interface {
	Send(to, subject, html string) error
}

// Email is one captured message.
type Email struct {
	To      string
	Subject string
	HTML    string
}

// InMemoryEmail collects sent messages instead of delivering them. Tests
// inspect the Outbox.
type InMemoryEmail struct {
	Outbox []Email
}

func (m *InMemoryEmail) Send(to, subject, html string) error {
	if m == nil {
		return nil
	}
	m.Outbox = append(m.Outbox, Email{To: to, Subject: subject, HTML: html})
	return nil
}

// NopEmailSender drops every message. Used when notifications are disabled.
type NopEmailSender struct{}

func (NopEmailSender) Send(string, string, string) error { return nil }
