package mailgun

import (
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/pure-golang/mailgun/mail/mailgun"

var (
	tracer = otel.Tracer(instrumentationName)
	meter  = otel.Meter(instrumentationName)

	messagesCount   metric.Int64Counter
	requestDuration metric.Int64Histogram
)

func init() {
	var err error

	messagesCount, err = meter.Int64Counter(
		"mailgun.messages_total",
		metric.WithDescription("Total number of emails handled, by route and outcome"),
	)
	if err != nil {
		panic(errors.Wrap(err, "failed to create messages counter"))
	}

	requestDuration, err = meter.Int64Histogram(
		"mailgun.request.duration_ms",
		metric.WithDescription("Mailgun API request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		panic(errors.Wrap(err, "failed to create request duration histogram"))
	}
}
