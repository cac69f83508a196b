package mailgun

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/pure-golang/mailgun/mail"
	"github.com/pure-golang/mailgun/mail/htmltext"
)

// Form field names of the Mailgun messages API.
const (
	FieldFrom       = "from"
	FieldTo         = "to"
	FieldCc         = "cc"
	FieldBcc        = "bcc"
	FieldSubject    = "subject"
	FieldTemplate   = "template"
	FieldText       = "text"
	FieldContent    = "v:content"
	FieldAttachment = "attachment"

	variablePrefix = "v:"
	headerPrefix   = "h:"
)

type field struct {
	name  string
	value string
}

// payload is the form sent to the messages endpoint.
type payload struct {
	fields      []field
	attachments []mail.Attachment
}

// Get returns the first value of the named field.
func (p *payload) Get(name string) (string, bool) {
	for _, f := range p.fields {
		if f.name == name {
			return f.value, true
		}
	}
	return "", false
}

func (p *payload) add(name, value string) {
	p.fields = append(p.fields, field{name: name, value: value})
}

func (d *Dispatcher) buildPayload(email mail.Email) (*payload, error) {
	if len(email.To) == 0 {
		return nil, ErrNoRecipients
	}

	html, err := email.ResolveHTML()
	if err != nil {
		return nil, err
	}

	text := email.Body
	if text == "" {
		if html == "" {
			return nil, ErrNoContent
		}
		if text, err = htmltext.Flatten(html); err != nil {
			return nil, err
		}
	}

	from := d.cfg.DefaultSender
	if !email.From.IsZero() {
		from = email.From.String()
	}

	p := &payload{attachments: email.Attachments}
	p.add(FieldFrom, from)
	p.add(FieldTo, mail.JoinAddresses(email.To))
	p.add(FieldSubject, email.ResolveSubject())
	p.add(FieldTemplate, d.cfg.Template)
	p.add(FieldText, text)
	p.add(FieldContent, html)

	if cc := mail.JoinAddresses(email.Cc); cc != "" {
		p.add(FieldCc, cc)
	}
	if bcc := mail.JoinAddresses(email.Bcc); bcc != "" {
		p.add(FieldBcc, bcc)
	}

	for _, name := range sortedKeys(email.Variables) {
		if variablePrefix+name == FieldContent {
			continue
		}
		p.add(variablePrefix+name, email.Variables[name])
	}
	for _, name := range sortedKeys(email.Headers) {
		p.add(headerPrefix+name, email.Headers[name])
	}

	return p, nil
}

// encode writes the payload as multipart/form-data. Attachment content is copied as is.
func (p *payload) encode() (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	for _, f := range p.fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", errors.Wrapf(err, "failed to write field %q", f.name)
		}
	}

	for _, a := range p.attachments {
		if err := writeAttachment(w, a); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", errors.Wrap(err, "failed to close multipart writer")
	}
	return body, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func writeAttachment(w *multipart.Writer, a mail.Attachment) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		FieldAttachment, quoteEscaper.Replace(a.Filename())))
	h.Set("Content-Type", a.MimeType())

	part, err := w.CreatePart(h)
	if err != nil {
		return errors.Wrapf(err, "failed to create part for %q", a.Filename())
	}

	rc, err := a.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	if _, err := io.Copy(part, rc); err != nil {
		return errors.Wrapf(err, "failed to read attachment %q", a.Filename())
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
