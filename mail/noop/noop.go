package noop

import (
	"context"
	"sync"

	"github.com/pure-golang/mailgun/mail"
)

var _ mail.Sender = (*Sender)(nil)

// Sender is a no-op mail sender that remembers what it was asked to send.
type Sender struct {
	mx     sync.Mutex
	sent   []mail.Email
	err    error
	closed bool
}

// NewSender creates a new no-op Sender.
func NewSender() *Sender {
	return &Sender{}
}

// NewFailingSender creates a Sender whose Send always returns err.
func NewFailingSender(err error) *Sender {
	return &Sender{err: err}
}

// Send records emails and returns the configured error, if any.
func (n *Sender) Send(_ context.Context, emails ...mail.Email) error {
	n.mx.Lock()
	defer n.mx.Unlock()

	n.sent = append(n.sent, emails...)
	return n.err
}

// Sent returns the recorded emails in call order.
func (n *Sender) Sent() []mail.Email {
	n.mx.Lock()
	defer n.mx.Unlock()
	return append([]mail.Email(nil), n.sent...)
}

// Closed reports whether Close was called.
func (n *Sender) Closed() bool {
	n.mx.Lock()
	defer n.mx.Unlock()
	return n.closed
}

// Close is a no-op.
func (n *Sender) Close() error {
	n.mx.Lock()
	defer n.mx.Unlock()
	n.closed = true
	return nil
}
