package logger

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/golang-cz/devslog"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
)

type Level string
type Provider string
type contextKeyT string

var contextKey = contextKeyT("github.com/pure-golang/mailgun/logger")

const (
	INFO  Level = "info"
	ERROR Level = "error"
	WARN  Level = "warn"
	DEBUG Level = "debug"

	ProviderDevSlog Provider = "dev"      // for dev
	ProviderStdJson Provider = "std_json" // for production
	ProviderNoop    Provider = "noop"     // for unit tests
)

type Config struct {
	Provider Provider `envconfig:"LOG_PROVIDER" default:"std_json"`
	Level    Level    `envconfig:"LOG_LEVEL" default:"info"`
}

// NewDefault creates a logger writing to stdout.
func NewDefault(c Config) *slog.Logger {
	return New(c, os.Stdout)
}

// New creates a logger for the configured provider writing to w.
func New(c Config, w io.Writer) *slog.Logger {
	level := convertLevel(c.Level)
	switch c.Provider {
	case ProviderDevSlog:
		return slog.New(devslog.NewHandler(w, &devslog.Options{
			HandlerOptions: &slog.HandlerOptions{
				AddSource: true,
				Level:     level,
			},
			NewLineAfterLog:    true,
			MaxErrorStackTrace: 40,
			SortKeys:           true,
			TimeFormat:         "[15:04:05]",
			DebugColor:         devslog.Magenta,
		}))
	case ProviderNoop:
		return NewNoop()
	case ProviderStdJson:
		fallthrough
	default:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}
}

// NewNoop returns a logger that discards everything.
func NewNoop() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// InitDefault creates a logger, sets it as slog default and routes otel errors to it.
func InitDefault(c Config) {
	slog.SetDefault(NewDefault(c))
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		slog.Default().Error(err.Error())
	}))
}

// FromContext extracts the logger from ctx, or returns the default one.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(contextKey).(*slog.Logger); ok {
		return l
	}

	return slog.Default()
}

// NewContext packs the logger into ctx.
func NewContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey, l)
}

// FromContextWithErr extracts the logger from ctx and attaches the error and its stack.
func FromContextWithErr(ctx context.Context, err error) *slog.Logger {
	return appendErr(FromContext(ctx), err)
}

func appendErr(l *slog.Logger, err error) *slog.Logger {
	var stackTracer interface {
		StackTrace() errors.StackTrace
	}

	if errors.As(err, &stackTracer) {
		l = l.With("stack", stackTracer.StackTrace())
	}

	return l.With("error", err.Error())
}

func convertLevel(level Level) slog.Level {
	switch level {
	case ERROR:
		return slog.LevelError
	case WARN:
		return slog.LevelWarn
	case DEBUG:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}
