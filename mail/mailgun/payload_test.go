package mailgun

import (
	"io"
	"mime"
	"mime/multipart"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pure-golang/mailgun/mail"
)

func TestBuildPayload_FieldOrder(t *testing.T) {
	d := NewDispatcher(Config{DefaultSender: "s@x.com", Template: "tmpl"}, nil)

	p, err := d.buildPayload(mail.Email{
		To:   []mail.Address{{Address: "a@x.com"}},
		Bcc:  []mail.Address{{Address: "b@x.com"}},
		HTML: "<p>x</p>",
	})
	require.NoError(t, err)

	names := make([]string, 0, len(p.fields))
	for _, f := range p.fields {
		names = append(names, f.name)
	}
	assert.Equal(t, []string{FieldFrom, FieldTo, FieldSubject, FieldTemplate, FieldText, FieldContent, FieldBcc}, names)

	v, ok := p.Get(FieldTemplate)
	assert.True(t, ok)
	assert.Equal(t, "tmpl", v)

	_, ok = p.Get(FieldCc)
	assert.False(t, ok)
}

func TestPayload_Encode(t *testing.T) {
	p := &payload{
		fields: []field{{name: FieldTo, value: "a@x.com"}},
		attachments: []mail.Attachment{
			mail.NewAttachment("a.txt", "text/plain", []byte("hello")),
		},
	}

	body, contentType, err := p.encode()
	require.NoError(t, err)

	mediaType, params, err := mime.ParseMediaType(contentType)
	require.NoError(t, err)
	assert.Equal(t, "multipart/form-data", mediaType)

	r := multipart.NewReader(body, params["boundary"])

	part, err := r.NextPart()
	require.NoError(t, err)
	assert.Equal(t, FieldTo, part.FormName())
	value, err := io.ReadAll(part)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", string(value))

	part, err = r.NextPart()
	require.NoError(t, err)
	assert.Equal(t, FieldAttachment, part.FormName())
	assert.Equal(t, "a.txt", part.FileName())
	assert.Equal(t, "text/plain", part.Header.Get("Content-Type"))
	content, err := io.ReadAll(part)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))

	_, err = r.NextPart()
	assert.ErrorIs(t, err, io.EOF)
}

type brokenAttachment struct{}

func (brokenAttachment) Filename() string { return "broken" }
func (brokenAttachment) MimeType() string { return mail.DefaultMimeType }
func (brokenAttachment) Open() (io.ReadCloser, error) {
	return nil, io.ErrUnexpectedEOF
}

func TestPayload_EncodeAttachmentError(t *testing.T) {
	p := &payload{attachments: []mail.Attachment{brokenAttachment{}}}

	_, _, err := p.encode()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestStatusError(t *testing.T) {
	assert.Equal(t, "mailgun: unexpected status 500", (&StatusError{StatusCode: 500}).Error())
	assert.Equal(t, "mailgun: unexpected status 400: bad", (&StatusError{StatusCode: 400, Body: "bad"}).Error())
	assert.False(t, IsStatus(io.EOF, 500))
}
