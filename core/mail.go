package core

import "net/mail"

type (
	// EmailMessage is a renderable email. Bodies are built by the caller;
	// plain-text content is required, HTML is optional.
	EmailMessage struct {
		To          []mail.Address
		Cc          []mail.Address
		Bcc         []mail.Address
		Subject     string
		TextContent string
		HTMLContent string
	}

	// EmailService is any service that can send emails.
	EmailService interface {
		// SendMessages sends messages concurrently, fire-and-forget.
		SendMessages(messages ...*EmailMessage)
		// SendMessage sends a single message synchronously so the caller
		// can observe the outcome.
		SendMessage(msg *EmailMessage) error
	}
)

func (m *EmailMessage) HasRecipients() bool { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool    { return (m.TextContent != "") || (m.HTMLContent != "") }
