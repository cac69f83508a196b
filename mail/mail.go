package mail

import (
	"context"
	"io"
)

// Sender sends emails.
type Sender interface {
	Send(ctx context.Context, emails ...Email) error
	io.Closer
}

// Email represents an email message.
type Email struct {
	// Envelope
	From    Address // empty means the sender's default
	To      []Address
	Cc      []Address
	Bcc     []Address
	Subject string

	// Headers
	Headers map[string]string

	// Body
	Body     string    // Plain text body
	HTML     string    // HTML body (optional)
	Template *Template // used when HTML or Subject is empty

	Attachments []Attachment

	// Variables are substituted by providers that support server-side templates.
	Variables map[string]string

	// Task is marked as performed once the email is accepted. Empty means none.
	Task string
}

// Recipients returns all To, Cc and Bcc addresses in that order.
func (e Email) Recipients() []Address {
	all := make([]Address, 0, len(e.To)+len(e.Cc)+len(e.Bcc))
	all = append(all, e.To...)
	all = append(all, e.Cc...)
	return append(all, e.Bcc...)
}

// ResolveHTML returns the HTML body, rendering the template when HTML is empty.
func (e Email) ResolveHTML() (string, error) {
	if e.HTML != "" || e.Template == nil {
		return e.HTML, nil
	}
	return e.Template.HTML()
}

// ResolveSubject returns the subject, falling back to the template's subject.
func (e Email) ResolveSubject() string {
	if e.Subject != "" || e.Template == nil {
		return e.Subject
	}
	return e.Template.Subject
}
