package mailgun

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/pure-golang/mailgun/mail"
	"github.com/pure-golang/mailgun/task"
)

var _ mail.Sender = (*Dispatcher)(nil)

// APIUser is the Basic auth username of the Mailgun API.
const APIUser = "api"

// maxErrorBody limits how much of an error response is kept in StatusError.
const maxErrorBody = 4 << 10

// Route is the path an email takes through the Dispatcher.
type Route int

const (
	RouteTemplated Route = iota + 1 // Mailgun template
	RouteFallback                   // fallback sender
)

func (r Route) String() string {
	switch r {
	case RouteTemplated:
		return "templated"
	case RouteFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// Dispatcher sends emails through a Mailgun template, or through a fallback
// sender when Mailgun is not fully configured.
type Dispatcher struct {
	mx       sync.RWMutex
	cfg      Config
	client   *http.Client
	fallback mail.Sender
	tracker  task.Tracker
	logger   *slog.Logger
	closed   bool
}

// DispatcherOptions contains optional collaborators of a Dispatcher.
type DispatcherOptions struct {
	HTTPClient *http.Client // defaults to a client with Config.Timeout
	Fallback   mail.Sender  // used when Config is incomplete
	Tracker    task.Tracker // marks Email.Task after a successful send
	Logger     *slog.Logger // defaults to slog.Default()
}

// NewDispatcher creates a Dispatcher. It performs no I/O.
func NewDispatcher(cfg Config, options *DispatcherOptions) *Dispatcher {
	if options == nil {
		options = &DispatcherOptions{}
	}

	d := &Dispatcher{
		cfg:      cfg,
		client:   options.HTTPClient,
		fallback: options.Fallback,
		tracker:  options.Tracker,
		logger:   options.Logger,
	}
	if d.client == nil {
		d.client = &http.Client{Timeout: cfg.Timeout}
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	d.logger = d.logger.With("component", "mailgun")

	return d
}

// Config returns the configuration the Dispatcher was built with.
func (d *Dispatcher) Config() Config {
	return d.cfg
}

// Route reports which path Send takes.
func (d *Dispatcher) Route() Route {
	if d.cfg.Complete() {
		return RouteTemplated
	}
	return RouteFallback
}

// Send sends each email in order and stops at the first error.
func (d *Dispatcher) Send(ctx context.Context, emails ...mail.Email) error {
	d.mx.RLock()
	defer d.mx.RUnlock()

	if d.closed {
		return ErrClosed
	}

	for _, email := range emails {
		if err := d.send(ctx, email); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) send(ctx context.Context, email mail.Email) (err error) {
	route := d.Route()

	ctx, span := tracer.Start(ctx, "Mailgun.Send", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("mailgun.route", route.String()),
		attribute.String("mailgun.domain", d.cfg.Domain),
		attribute.String("mailgun.template", d.cfg.Template),
		attribute.Int("mailgun.to_count", len(email.To)),
		attribute.Int("mailgun.cc_count", len(email.Cc)),
		attribute.Int("mailgun.bcc_count", len(email.Bcc)),
		attribute.Int("mailgun.attachments_count", len(email.Attachments)),
	)

	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		messagesCount.Add(ctx, 1, metric.WithAttributes(
			attribute.String("route", route.String()),
			attribute.String("outcome", outcome),
		))
	}()

	if route == RouteFallback {
		if d.fallback == nil {
			return ErrNoFallback
		}
		d.logger.DebugContext(ctx, "mailgun is not fully configured, using fallback sender")
		return d.fallback.Send(ctx, email)
	}

	if err := d.post(ctx, email); err != nil {
		return err
	}

	d.markPerformed(ctx, email.Task)
	return nil
}

// post issues a single POST to the messages endpoint.
func (d *Dispatcher) post(ctx context.Context, email mail.Email) error {
	p, err := d.buildPayload(email)
	if err != nil {
		return err
	}

	body, contentType, err := p.encode()
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.Endpoint(), body)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", contentType)
	req.SetBasicAuth(APIUser, d.cfg.APIKey)

	start := time.Now()
	resp, err := d.client.Do(req)
	requestDuration.Record(ctx, time.Since(start).Milliseconds(), metric.WithAttributes(
		attribute.String("domain", d.cfg.Domain),
	))
	if err != nil {
		return errors.Wrap(err, "failed to send email to mailgun")
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(msg)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	return nil
}

// markPerformed never fails the send: the email has already been accepted.
func (d *Dispatcher) markPerformed(ctx context.Context, id string) {
	if id == "" {
		return
	}
	if d.tracker == nil {
		d.logger.DebugContext(ctx, "no task tracker configured", "task", id)
		return
	}
	if err := d.tracker.MarkPerformed(ctx, id); err != nil {
		d.logger.WarnContext(ctx, "failed to mark task as performed", "task", id, "error", err.Error())
	}
}

// Close closes the Dispatcher and its fallback sender.
func (d *Dispatcher) Close() error {
	d.mx.Lock()
	defer d.mx.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	if d.fallback != nil {
		return errors.Wrap(d.fallback.Close(), "failed to close fallback sender")
	}
	return nil
}
