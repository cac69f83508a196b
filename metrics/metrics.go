package metrics

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
)

type Config struct {
	Enabled               bool   `envconfig:"METRICS_ENABLED" default:"false"`
	Host                  string `envconfig:"METRICS_HOST" default:"0.0.0.0"`
	Port                  int    `envconfig:"METRICS_PORT" default:"9090"`
	HttpServerReadTimeout int    `envconfig:"METRICS_READ_TIMEOUT" default:"30"`
}

type Metrics struct {
	config Config
	server *http.Server
}

// InitDefault starts the metrics server when enabled. A disabled config yields a no-op closer.
func InitDefault(config Config) (io.Closer, error) {
	if !config.Enabled {
		return noopCloser{}, nil
	}

	provider := New(config)
	if err := provider.Start(); err != nil {
		return nil, errors.Wrap(err, "failed to start metrics server")
	}

	return provider, nil
}

type noopCloser struct{}

func (noopCloser) Close() error { return nil }

func New(config Config) *Metrics {
	return &Metrics{
		config: config,
		server: NewHttpServer(config),
	}
}

func (s *Metrics) Start() error {
	if err := InitPrometheus(); err != nil {
		return errors.Wrap(err, "failed to init prometheus")
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Default().Warn("metrics server failed", "error", err.Error())
		}
	}()

	return nil
}

func (s *Metrics) Close() error {
	return errors.Wrap(s.server.Close(), "failed to close metrics")
}

func NewHttpServer(conf Config) *http.Server {
	r := http.NewServeMux()
	r.Handle("/metrics", promhttp.Handler())
	return &http.Server{
		Addr:        fmt.Sprintf("%s:%d", conf.Host, conf.Port),
		Handler:     r,
		ReadTimeout: time.Duration(conf.HttpServerReadTimeout) * time.Second,
	}
}

// InitPrometheus installs a global otel MeterProvider backed by the Prometheus exporter.
func InitPrometheus() error {
	exporter, err := prometheus.New()
	if err != nil {
		return errors.Wrap(err, "failed to create prometheus instance")
	}
	otel.SetMeterProvider(metric.NewMeterProvider(metric.WithReader(exporter)))

	if err := runtime.Start(); err != nil {
		return errors.Wrap(err, "failed to start runtime")
	}

	return nil
}
