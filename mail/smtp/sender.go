package smtp

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pure-golang/mailgun/mail"
	"github.com/pure-golang/mailgun/mail/htmltext"
	"github.com/pure-golang/mailgun/task"
)

var _ mail.Sender = (*Sender)(nil)

var tracer = otel.Tracer("github.com/pure-golang/mailgun/mail/smtp")

// Sender implements mail.Sender using net/smtp.
type Sender struct {
	mx      sync.RWMutex
	cfg     Config
	tracker task.Tracker
	logger  *slog.Logger
	closed  bool
}

// SenderOptions contains options for creating a Sender.
type SenderOptions struct {
	Tracker task.Tracker // marks Email.Task after delivery
	Logger  *slog.Logger
}

// NewSender creates a new SMTP Sender.
func NewSender(cfg Config, options *SenderOptions) *Sender {
	if options == nil {
		options = &SenderOptions{}
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Sender{
		cfg:     cfg,
		tracker: options.Tracker,
		logger:  logger.With("component", "smtp"),
	}
}

// Send sends one or more emails.
func (s *Sender) Send(ctx context.Context, emails ...mail.Email) error {
	s.mx.RLock()
	defer s.mx.RUnlock()

	if s.closed {
		return errors.New("sender is closed")
	}

	for _, email := range emails {
		if err := s.send(ctx, email); err != nil {
			return err
		}
	}
	return nil
}

// send sends a single email.
func (s *Sender) send(ctx context.Context, email mail.Email) error {
	ctx, span := tracer.Start(ctx, "SMTP.Send", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.Int("smtp.to_count", len(email.To)),
		attribute.Int("smtp.cc_count", len(email.Cc)),
		attribute.Int("smtp.bcc_count", len(email.Bcc)),
		attribute.Int("smtp.attachments_count", len(email.Attachments)),
		attribute.String("smtp.host", s.cfg.Host),
		attribute.Int("smtp.port", s.cfg.Port),
		attribute.Bool("smtp.tls", s.cfg.TLS),
	)

	from, err := s.resolveFrom(email.From)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	email.From = from
	span.SetAttributes(attribute.String("smtp.from", from.Address))

	recipients := addresses(email.Recipients())
	if len(recipients) == 0 {
		span.SetStatus(codes.Error, "no recipients specified")
		return errors.New("no recipients specified")
	}

	msg, err := s.buildMessage(email)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to build message")
		return err
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	if s.cfg.TLS {
		err = s.sendWithTLS(ctx, addr, auth, from.Address, recipients, msg)
	} else {
		err = smtp.SendMail(addr, auth, from.Address, recipients, msg)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return errors.Wrap(err, "failed to send email")
	}

	span.SetStatus(codes.Ok, "")

	if email.Task != "" && s.tracker != nil {
		if err := s.tracker.MarkPerformed(ctx, email.Task); err != nil {
			s.logger.WarnContext(ctx, "failed to mark task as performed", "task", email.Task, "error", err.Error())
		}
	}
	return nil
}

// resolveFrom returns from, or the configured default sender when from is empty.
func (s *Sender) resolveFrom(from mail.Address) (mail.Address, error) {
	if !from.IsZero() {
		return from, nil
	}
	if s.cfg.From == "" {
		return mail.Address{}, errors.New("no from address specified")
	}
	parsed, err := mail.ParseAddress(s.cfg.From)
	if err != nil {
		return mail.Address{}, errors.Wrap(err, "invalid default from address")
	}
	return parsed, nil
}

// sendWithTLS sends email using STARTTLS.
func (s *Sender) sendWithTLS(ctx context.Context, addr string, auth smtp.Auth, from string, recipients []string, msg []byte) error {
	ctx, span := tracer.Start(ctx, "SMTP.SendWithTLS")
	defer span.End()

	span.SetAttributes(
		attribute.String("smtp.address", addr),
		attribute.Int("smtp.recipients_count", len(recipients)),
		attribute.Bool("smtp.auth", auth != nil),
	)

	select {
	case <-ctx.Done():
		span.SetStatus(codes.Error, "context canceled")
		return ctx.Err()
	default:
	}

	client, err := smtp.Dial(addr)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to connect")
		return errors.Wrap(err, "failed to connect to SMTP server")
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		span.SetAttributes(attribute.Bool("smtp.starttls", true))

		tlsConfig := &tls.Config{
			ServerName:         s.cfg.Host,
			InsecureSkipVerify: s.cfg.Insecure, // #nosec G402 -- controlled by config
		}
		if err := client.StartTLS(tlsConfig); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to start TLS")
			return errors.Wrap(err, "failed to start TLS")
		}
	} else {
		span.SetAttributes(attribute.Bool("smtp.starttls", false))
	}

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to authenticate")
			return errors.Wrap(err, "failed to authenticate")
		}
	}

	if err := client.Mail(from); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to set sender")
		return errors.Wrap(err, "failed to set sender")
	}

	for _, rcpt := range recipients {
		if err := client.Rcpt(rcpt); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to set recipient")
			return errors.Wrapf(err, "failed to set recipient: %s", rcpt)
		}
	}

	writer, err := client.Data()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get data writer")
		return errors.Wrap(err, "failed to get data writer")
	}

	if _, err := writer.Write(msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to write message")
		return errors.Wrap(err, "failed to write message")
	}
	if err := writer.Close(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "message rejected")
		return errors.Wrap(err, "failed to finish message")
	}

	span.SetStatus(codes.Ok, "")
	return errors.Wrap(client.Quit(), "failed to quit")
}

// buildMessage builds the raw email message. email.From must already be resolved.
func (s *Sender) buildMessage(email mail.Email) ([]byte, error) {
	html, err := email.ResolveHTML()
	if err != nil {
		return nil, err
	}
	text := email.Body
	if text == "" && html != "" {
		if text, err = htmltext.Flatten(html); err != nil {
			return nil, err
		}
	}

	var msg strings.Builder

	// Headers
	fmt.Fprintf(&msg, "From: %s\r\n", email.From.String())
	if len(email.To) > 0 {
		fmt.Fprintf(&msg, "To: %s\r\n", mail.JoinAddresses(email.To))
	}
	if len(email.Cc) > 0 {
		fmt.Fprintf(&msg, "Cc: %s\r\n", mail.JoinAddresses(email.Cc))
	}
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", email.ResolveSubject()))
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))

	keys := make([]string, 0, len(email.Headers))
	for k := range email.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.ContainsAny(k, "\r\n:") || strings.ContainsAny(email.Headers[k], "\r\n") {
			return nil, errors.Errorf("invalid header %q", k)
		}
		fmt.Fprintf(&msg, "%s: %s\r\n", k, email.Headers[k])
	}

	bodyHeader, body, err := buildBody(text, html)
	if err != nil {
		return nil, err
	}

	if len(email.Attachments) == 0 {
		fmt.Fprintf(&msg, "Content-Type: %s\r\n\r\n", bodyHeader.Get("Content-Type"))
		msg.Write(body)
		return []byte(msg.String()), nil
	}

	mixed := multipart.NewWriter(&msg)
	fmt.Fprintf(&msg, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", mixed.Boundary())

	part, err := mixed.CreatePart(bodyHeader)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create body part")
	}
	if _, err := part.Write(body); err != nil {
		return nil, errors.Wrap(err, "failed to write body")
	}

	for _, a := range email.Attachments {
		if err := writeAttachment(mixed, a); err != nil {
			return nil, err
		}
	}
	if err := mixed.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to close multipart writer")
	}

	return []byte(msg.String()), nil
}

// buildBody returns the body entity: plain text alone, or text and HTML alternatives.
func buildBody(text, html string) (textproto.MIMEHeader, []byte, error) {
	if html == "" {
		return textproto.MIMEHeader{"Content-Type": {"text/plain; charset=UTF-8"}}, []byte(text + "\r\n"), nil
	}

	var buf bytes.Buffer
	alt := multipart.NewWriter(&buf)
	for _, p := range []struct{ contentType, content string }{
		{"text/plain; charset=UTF-8", text},
		{"text/html; charset=UTF-8", html},
	} {
		part, err := alt.CreatePart(textproto.MIMEHeader{"Content-Type": {p.contentType}})
		if err != nil {
			return nil, nil, errors.Wrap(err, "failed to create body part")
		}
		if _, err := io.WriteString(part, p.content+"\r\n"); err != nil {
			return nil, nil, errors.Wrap(err, "failed to write body part")
		}
	}
	if err := alt.Close(); err != nil {
		return nil, nil, errors.Wrap(err, "failed to close body")
	}

	header := textproto.MIMEHeader{"Content-Type": {"multipart/alternative; boundary=" + alt.Boundary()}}
	return header, buf.Bytes(), nil
}

// writeAttachment base64-encodes the attachment content without transcoding it.
func writeAttachment(w *multipart.Writer, a mail.Attachment) error {
	part, err := w.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {a.MimeType()},
		"Content-Transfer-Encoding": {"base64"},
		"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": a.Filename()})},
	})
	if err != nil {
		return errors.Wrapf(err, "failed to create part for %q", a.Filename())
	}

	rc, err := a.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	lw := &lineWrapper{w: part}
	enc := base64.NewEncoder(base64.StdEncoding, lw)
	if _, err := io.Copy(enc, rc); err != nil {
		return errors.Wrapf(err, "failed to read attachment %q", a.Filename())
	}
	if err := enc.Close(); err != nil {
		return errors.Wrapf(err, "failed to encode attachment %q", a.Filename())
	}
	_, err = io.WriteString(part, "\r\n")
	return errors.Wrap(err, "failed to write attachment")
}

// lineWrapper breaks base64 output into 76 character lines.
type lineWrapper struct {
	w   io.Writer
	col int
}

const maxLineLength = 76

func (l *lineWrapper) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		n := maxLineLength - l.col
		if n > len(p) {
			n = len(p)
		}
		if _, err := l.w.Write(p[:n]); err != nil {
			return written, err
		}
		written += n
		l.col += n
		p = p[n:]
		if l.col == maxLineLength {
			if _, err := io.WriteString(l.w, "\r\n"); err != nil {
				return written, err
			}
			l.col = 0
		}
	}
	return written, nil
}

// addresses extracts bare addresses for the SMTP envelope.
func addresses(addrs []mail.Address) []string {
	result := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		if !addr.IsZero() {
			result = append(result, addr.Address)
		}
	}
	return result
}

// Close closes the sender.
func (s *Sender) Close() error {
	s.mx.Lock()
	defer s.mx.Unlock()

	s.closed = true
	return nil
}
