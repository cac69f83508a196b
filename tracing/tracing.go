package tracing

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.12.0"
	"go.opentelemetry.io/otel/trace"
)

type Provider interface {
	trace.TracerProvider
	io.Closer
}

type Config struct {
	EndPoint    string `envconfig:"TRACING_ENDPOINT"` // empty disables export
	ServiceName string `envconfig:"SERVICE_NAME" default:"mailgun-send"`
	AppVersion  string `envconfig:"APP_VERSION" default:"dev"`
}

// ProviderBuilder wraps all construction details of a Provider.
type ProviderBuilder func() (Provider, error)

// Init builds a provider and installs it globally. On error a NoopProvider is returned
// together with the error, so callers can log and continue.
func Init(creator ProviderBuilder) (Provider, error) {
	provider, err := creator()
	if err != nil || provider == nil {
		return &NoopProvider{TracerProvider: tracesdk.NewTracerProvider()}, errors.Wrap(err, "failed to load tracing provider")
	}

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return provider, nil
}

// InitDefault installs an OTLP provider when cfg.EndPoint is set, a NoopProvider otherwise.
func InitDefault(cfg Config) (Provider, error) {
	if cfg.EndPoint == "" {
		return &NoopProvider{TracerProvider: tracesdk.NewTracerProvider()}, nil
	}
	return Init(NewOTLPProviderBuilder(cfg))
}

type NoopProvider struct{ *tracesdk.TracerProvider }

func (NoopProvider) Close() error { return nil }

// OTLPProvider exports spans over OTLP/HTTP.
type OTLPProvider struct {
	*tracesdk.TracerProvider
}

func (p *OTLPProvider) Close() error {
	ctx := context.Background()
	if err := p.ForceFlush(ctx); err != nil {
		if shutdownErr := p.Shutdown(ctx); shutdownErr != nil {
			return errors.Wrap(err, "otlp force flush failed (also shutdown failed)")
		}
		return errors.Wrap(err, "otlp force flush failed")
	}
	return errors.Wrap(p.Shutdown(ctx), "shutdown otlp")
}

func NewOTLPProviderBuilder(conf Config) ProviderBuilder {
	return func() (Provider, error) {
		if conf.EndPoint == "" {
			return nil, errors.New("empty connection string")
		}
		if conf.ServiceName == "" {
			return nil, errors.New("service name is empty")
		}

		exp, err := otlptrace.New(
			context.Background(),
			otlptracehttp.NewClient(otlptracehttp.WithEndpointURL(conf.EndPoint)),
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create otlp exporter")
		}

		tp := tracesdk.NewTracerProvider(
			tracesdk.WithBatcher(exp),
			tracesdk.WithResource(resource.NewWithAttributes(
				semconv.SchemaURL,
				semconv.ServiceNameKey.String(conf.ServiceName),
				semconv.ServiceVersionKey.String(conf.AppVersion),
			)),
			tracesdk.WithSampler(tracesdk.AlwaysSample()),
		)

		return &OTLPProvider{TracerProvider: tp}, nil
	}
}
