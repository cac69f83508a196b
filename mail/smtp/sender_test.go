package smtp

import (
	"bytes"
	"context"
	"io"
	"mime"
	"mime/multipart"
	netmail "net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pure-golang/mailgun/mail"
)

func TestNewSender_WithDefaultConfig(t *testing.T) {
	cfg := Config{
		Host:     "localhost",
		Port:     2525,
		Username: "test",
		Password: "test",
		TLS:      true,
	}

	sender := NewSender(cfg, nil)

	assert.NotNil(t, sender)
	assert.Equal(t, "localhost", sender.cfg.Host)
	assert.Equal(t, 2525, sender.cfg.Port)
	assert.True(t, sender.cfg.TLS)
	assert.NotNil(t, sender.logger)

	assert.NoError(t, sender.Close())
	assert.NoError(t, sender.Close())
}

func TestSender_Send_WhenClosed(t *testing.T) {
	sender := NewSender(Config{Host: "localhost", Port: 2525}, nil)
	require.NoError(t, sender.Close())

	err := sender.Send(context.Background(), mail.Email{
		From: mail.Address{Address: "sender@example.com"},
		To:   []mail.Address{{Address: "recipient@example.com"}},
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "closed")
}

func TestSender_Send_NoFromAddress(t *testing.T) {
	sender := NewSender(Config{Host: "localhost", Port: 2525}, nil)

	err := sender.Send(context.Background(), mail.Email{
		To: []mail.Address{{Address: "recipient@example.com"}},
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no from address")
}

func TestSender_Send_InvalidDefaultFrom(t *testing.T) {
	sender := NewSender(Config{Host: "localhost", Port: 2525, From: "not an address"}, nil)

	err := sender.Send(context.Background(), mail.Email{
		To: []mail.Address{{Address: "recipient@example.com"}},
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid default from address")
}

func TestSender_Send_NoRecipients(t *testing.T) {
	sender := NewSender(Config{Host: "localhost", Port: 2525}, nil)

	err := sender.Send(context.Background(), mail.Email{
		From: mail.Address{Address: "sender@example.com"},
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no recipients")
}

func TestSender_Send_ContextCancellation(t *testing.T) {
	sender := NewSender(Config{Host: "localhost", Port: 2525, TLS: true}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sender.Send(ctx, mail.Email{
		From: mail.Address{Address: "sender@example.com"},
		To:   []mail.Address{{Address: "recipient@example.com"}},
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSender_ResolveFrom(t *testing.T) {
	sender := NewSender(Config{From: "Support <support@example.com>"}, nil)

	from, err := sender.resolveFrom(mail.Address{})
	require.NoError(t, err)
	assert.Equal(t, mail.Address{Name: "Support", Address: "support@example.com"}, from)

	explicit := mail.Address{Address: "explicit@example.com"}
	from, err = sender.resolveFrom(explicit)
	require.NoError(t, err)
	assert.Equal(t, explicit, from)
}

func readMessage(t *testing.T, raw []byte) *netmail.Message {
	t.Helper()
	msg, err := netmail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)
	return msg
}

func TestSender_BuildMessage(t *testing.T) {
	sender := NewSender(Config{Host: "localhost"}, nil)

	raw, err := sender.buildMessage(mail.Email{
		From:    mail.Address{Name: "Sender", Address: "sender@example.com"},
		To:      []mail.Address{{Name: "Recipient", Address: "recipient@example.com"}},
		Cc:      []mail.Address{{Address: "cc@example.com"}},
		Bcc:     []mail.Address{{Address: "bcc@example.com"}},
		Subject: "Test Subject",
		Body:    "Test Body",
		Headers: map[string]string{"X-Custom": "value"},
	})
	require.NoError(t, err)

	msgStr := string(raw)
	assert.Contains(t, msgStr, "From: Sender <sender@example.com>")
	assert.Contains(t, msgStr, "To: Recipient <recipient@example.com>")
	assert.Contains(t, msgStr, "Cc: cc@example.com")
	assert.Contains(t, msgStr, "Subject: Test Subject")
	assert.Contains(t, msgStr, "X-Custom: value")
	assert.Contains(t, msgStr, "MIME-Version: 1.0")
	assert.Contains(t, msgStr, "\r\n\r\nTest Body")
	assert.NotContains(t, msgStr, "bcc@example.com")
}

func TestSender_BuildMessage_EncodesSubject(t *testing.T) {
	sender := NewSender(Config{Host: "localhost"}, nil)

	raw, err := sender.buildMessage(mail.Email{
		From:    mail.Address{Address: "sender@example.com"},
		To:      []mail.Address{{Address: "recipient@example.com"}},
		Subject: "Тестовое сообщение",
		Body:    "Test",
	})
	require.NoError(t, err)

	msg := readMessage(t, raw)
	subject, err := new(mime.WordDecoder).DecodeHeader(msg.Header.Get("Subject"))
	require.NoError(t, err)
	assert.Equal(t, "Тестовое сообщение", subject)
}

func TestSender_BuildMessage_RejectsHeaderInjection(t *testing.T) {
	sender := NewSender(Config{Host: "localhost"}, nil)

	tests := []struct {
		name    string
		headers map[string]string
	}{
		{"newline in value", map[string]string{"X-Custom": "value\r\nBcc: evil@example.com"}},
		{"newline in key", map[string]string{"X-Custom\nBcc": "evil@example.com"}},
		{"colon in key", map[string]string{"Bcc: evil@example.com\r\nX": "value"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sender.buildMessage(mail.Email{
				From:    mail.Address{Address: "sender@example.com"},
				To:      []mail.Address{{Address: "recipient@example.com"}},
				Subject: "Test",
				Body:    "Test",
				Headers: tt.headers,
			})
			assert.ErrorContains(t, err, "invalid header")
		})
	}
}

func TestSender_BuildMessage_HTMLAndTemplate(t *testing.T) {
	sender := NewSender(Config{Host: "localhost"}, nil)

	raw, err := sender.buildMessage(mail.Email{
		From:     mail.Address{Address: "sender@example.com"},
		To:       []mail.Address{{Address: "recipient@example.com"}},
		Template: &mail.Template{Subject: "Welcome", Content: "Hello *you*"},
	})
	require.NoError(t, err)

	msg := readMessage(t, raw)
	assert.Equal(t, "Welcome", msg.Header.Get("Subject"))

	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/alternative", mediaType)

	r := multipart.NewReader(msg.Body, params["boundary"])

	plain, err := r.NextPart()
	require.NoError(t, err)
	assert.Contains(t, plain.Header.Get("Content-Type"), "text/plain")
	text, err := io.ReadAll(plain)
	require.NoError(t, err)
	assert.Contains(t, string(text), "Hello \nyou")

	html, err := r.NextPart()
	require.NoError(t, err)
	assert.Contains(t, html.Header.Get("Content-Type"), "text/html")
	content, err := io.ReadAll(html)
	require.NoError(t, err)
	assert.Contains(t, string(content), "<em>you</em>")
}

func TestSender_BuildMessage_Attachments(t *testing.T) {
	sender := NewSender(Config{Host: "localhost"}, nil)

	raw := bytes.Repeat([]byte{0x00, 0xff, 0x10, 0x80}, 64)
	msgBytes, err := sender.buildMessage(mail.Email{
		From:        mail.Address{Address: "sender@example.com"},
		To:          []mail.Address{{Address: "recipient@example.com"}},
		Body:        "see attached",
		Attachments: []mail.Attachment{mail.NewAttachment("data.bin", "application/octet-stream", raw)},
	})
	require.NoError(t, err)

	msg := readMessage(t, msgBytes)
	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/mixed", mediaType)

	r := multipart.NewReader(msg.Body, params["boundary"])

	body, err := r.NextPart()
	require.NoError(t, err)
	assert.Contains(t, body.Header.Get("Content-Type"), "text/plain")
	text, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "see attached\r\n", string(text))

	att, err := r.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "data.bin", att.FileName())
	assert.Equal(t, "application/octet-stream", att.Header.Get("Content-Type"))
	assert.Equal(t, "base64", att.Header.Get("Content-Transfer-Encoding"))

	encoded, err := io.ReadAll(att)
	require.NoError(t, err)
	for _, line := range strings.Split(strings.TrimSpace(string(encoded)), "\r\n") {
		assert.LessOrEqual(t, len(line), maxLineLength)
	}
	decoded, err := io.ReadAll(base64Reader(encoded))
	require.NoError(t, err)
	assert.Equal(t, raw, decoded)

	_, err = r.NextPart()
	assert.ErrorIs(t, err, io.EOF)
}

func TestAddresses(t *testing.T) {
	result := addresses([]mail.Address{
		{Name: "John", Address: "john@example.com"},
		{},
		{Name: "Jane", Address: "jane@example.com"},
	})
	assert.Equal(t, []string{"john@example.com", "jane@example.com"}, result)
}

func TestLineWrapper(t *testing.T) {
	var buf bytes.Buffer
	w := &lineWrapper{w: &buf}

	n, err := w.Write([]byte(strings.Repeat("a", 100)))
	require.NoError(t, err)
	assert.Equal(t, 100, n)
	assert.Equal(t, strings.Repeat("a", 76)+"\r\n"+strings.Repeat("a", 24), buf.String())
}
