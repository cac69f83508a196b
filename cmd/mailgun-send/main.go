// Command mailgun-send sends one email through the Mailgun template, falling back to SMTP
// when Mailgun is not fully configured.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/pure-golang/mailgun/env"
	"github.com/pure-golang/mailgun/logger"
	"github.com/pure-golang/mailgun/mail"
	"github.com/pure-golang/mailgun/mail/mailgun"
	"github.com/pure-golang/mailgun/mail/noop"
	"github.com/pure-golang/mailgun/mail/smtp"
	"github.com/pure-golang/mailgun/metrics"
	"github.com/pure-golang/mailgun/task"
	"github.com/pure-golang/mailgun/tracing"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		logger.FromContextWithErr(ctx, err).Error("mailgun-send failed")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	files := []string{env.DefaultEnvFile}
	if opts.envFile != "" {
		files = append(files, opts.envFile)
	}

	var logCfg logger.Config
	if err := env.InitConfigFrom(&logCfg, files...); err != nil {
		return err
	}
	logger.InitDefault(logCfg)
	log := slog.Default()

	var tracingCfg tracing.Config
	if err := env.InitConfigFrom(&tracingCfg, files...); err != nil {
		return err
	}
	tp, err := tracing.InitDefault(tracingCfg)
	if err != nil {
		log.Warn("tracing disabled", "error", err.Error())
	}
	defer closeQuietly(log, "tracing", tp)

	var metricsCfg metrics.Config
	if err := env.InitConfigFrom(&metricsCfg, files...); err != nil {
		return err
	}
	m, err := metrics.InitDefault(metricsCfg)
	if err != nil {
		return err
	}
	defer closeQuietly(log, "metrics", m)

	var taskCfg task.Config
	if err := env.InitConfigFrom(&taskCfg, files...); err != nil {
		return err
	}
	tracker, err := task.New(ctx, taskCfg)
	if err != nil {
		return errors.Wrap(err, "failed to init task tracker")
	}
	defer closeQuietly(log, "task tracker", tracker)

	var mgCfg mailgun.Config
	if err := env.InitConfigFrom(&mgCfg, files...); err != nil {
		return err
	}
	// Keyed lookups fill whatever the MAILGUN_* variables left empty; DefaultURL comes last.
	mgCfg = mailgun.Resolve(mgCfg, mailgun.EnvSource{Prefix: "DA_"}, mailgun.DefaultKeys()).WithDefaults()

	fallback := newFallback(log, tracker, files)
	dispatcher := mailgun.NewDispatcher(mgCfg, &mailgun.DispatcherOptions{
		Fallback: fallback,
		Tracker:  tracker,
		Logger:   log,
	})
	defer closeQuietly(log, "dispatcher", dispatcher)

	email, err := opts.email()
	if err != nil {
		return err
	}

	log.Info("sending email",
		"route", dispatcher.Route().String(),
		"to", mail.JoinAddresses(email.To),
		"task", email.Task,
	)
	if err := dispatcher.Send(ctx, email); err != nil {
		return err
	}
	log.Info("email sent", "task", email.Task)

	return nil
}

// newFallback returns an SMTP sender when SMTP is configured, a dry-run sender otherwise.
func newFallback(log *slog.Logger, tracker task.Tracker, files []string) mail.Sender {
	var cfg smtp.Config
	if err := env.InitConfigFrom(&cfg, files...); err != nil {
		log.Warn("smtp is not configured, fallback emails are discarded", "error", err.Error())
		return noop.NewSender()
	}
	return smtp.NewSender(cfg, &smtp.SenderOptions{Tracker: tracker, Logger: log})
}

type closer interface {
	Close() error
}

func closeQuietly(log *slog.Logger, name string, c closer) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		log.Warn("failed to close "+name, "error", err.Error())
	}
}

// listFlag collects repeated flag values.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(v string) error {
	*l = append(*l, v)
	return nil
}

type options struct {
	to, cc, bcc     listFlag
	from            string
	subject         string
	text            string
	html            string
	templateFile    string
	templateSubject string
	attachments     listFlag
	vars            listFlag
	headers         listFlag
	task            string
	envFile         string
}

func parseFlags(args []string) (*options, error) {
	opts := &options{}
	fs := flag.NewFlagSet("mailgun-send", flag.ContinueOnError)
	fs.Var(&opts.to, "to", "recipient, repeatable or comma separated")
	fs.Var(&opts.cc, "cc", "cc recipient, repeatable or comma separated")
	fs.Var(&opts.bcc, "bcc", "bcc recipient, repeatable or comma separated")
	fs.StringVar(&opts.from, "from", "", "sender, defaults to MAIL_DEFAULT_SENDER")
	fs.StringVar(&opts.subject, "subject", "", "subject, defaults to the template subject")
	fs.StringVar(&opts.text, "text", "", "plain text body, derived from html when empty")
	fs.StringVar(&opts.html, "html", "", "html body")
	fs.StringVar(&opts.templateFile, "template-file", "", "markdown file rendered when -html is empty")
	fs.StringVar(&opts.templateSubject, "template-subject", "", "default subject of -template-file")
	fs.Var(&opts.attachments, "attach", "file to attach, repeatable")
	fs.Var(&opts.vars, "var", "template variable key=value, repeatable")
	fs.Var(&opts.headers, "header", "custom header Name=value, repeatable")
	fs.StringVar(&opts.task, "task", "", `task id to mark as performed, "auto" generates one`)
	fs.StringVar(&opts.envFile, "env-file", "", "extra env file to load")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if len(opts.to) == 0 {
		return nil, errors.New("at least one -to is required")
	}
	return opts, nil
}

func (o *options) email() (mail.Email, error) {
	email := mail.Email{
		Subject: o.subject,
		Body:    o.text,
		HTML:    o.html,
		Task:    o.task,
	}
	if email.Task == "auto" {
		email.Task = uuid.NewString()
	}

	var err error
	if email.To, err = mail.ParseAddressList(o.to...); err != nil {
		return mail.Email{}, err
	}
	if email.Cc, err = mail.ParseAddressList(o.cc...); err != nil {
		return mail.Email{}, err
	}
	if email.Bcc, err = mail.ParseAddressList(o.bcc...); err != nil {
		return mail.Email{}, err
	}
	if o.from != "" {
		if email.From, err = mail.ParseAddress(o.from); err != nil {
			return mail.Email{}, err
		}
	}

	if o.templateFile != "" {
		content, err := os.ReadFile(o.templateFile)
		if err != nil {
			return mail.Email{}, errors.Wrap(err, "failed to read template")
		}
		email.Template = &mail.Template{
			Name:    o.templateFile,
			Subject: o.templateSubject,
			Content: string(content),
		}
	}

	for _, path := range o.attachments {
		email.Attachments = append(email.Attachments, mail.NewFileAttachment(path, ""))
	}

	if email.Variables, err = keyValues(o.vars); err != nil {
		return mail.Email{}, err
	}
	if email.Headers, err = keyValues(o.headers); err != nil {
		return mail.Email{}, err
	}

	return email, nil
}

func keyValues(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	m := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, errors.Errorf("invalid key=value pair %q", pair)
		}
		m[k] = v
	}
	return m, nil
}
