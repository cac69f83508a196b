package noop

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/pure-golang/mailgun/mail"
)

func TestSender_Send(t *testing.T) {
	sender := NewSender()

	ctx := context.Background()
	emails := []mail.Email{
		{
			From:    mail.Address{Address: "test@example.com"},
			To:      []mail.Address{{Address: "to@example.com"}},
			Subject: "Test",
			Body:    "Test body",
		},
	}

	err := sender.Send(ctx, emails...)
	assert.NoError(t, err)
	assert.Equal(t, emails, sender.Sent())
}

func TestSender_Send_EmptyList(t *testing.T) {
	sender := NewSender()

	ctx := context.Background()
	err := sender.Send(ctx)
	assert.NoError(t, err)
	assert.Empty(t, sender.Sent())
}

func TestFailingSender(t *testing.T) {
	boom := errors.New("boom")
	sender := NewFailingSender(boom)

	err := sender.Send(context.Background(), mail.Email{Subject: "x"})
	assert.Same(t, boom, err)
	assert.Len(t, sender.Sent(), 1)
}

func TestSender_Close(t *testing.T) {
	sender := NewSender()

	err := sender.Close()
	assert.NoError(t, err)

	err = sender.Close()
	assert.NoError(t, err)
	assert.True(t, sender.Closed())
}
