package mailgun

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrClosed is returned by Send after Close.
	ErrClosed = errors.New("sender is closed")
	// ErrNoFallback is returned when the configuration is incomplete and no fallback is set.
	ErrNoFallback = errors.New("mailgun is not configured and no fallback sender is set")
	// ErrNoContent is returned when an email has no HTML, template or text body.
	ErrNoContent = errors.New("email has no html, template or text body")
	// ErrNoRecipients is returned when an email has no To address.
	ErrNoRecipients = errors.New("no recipients specified")
)

// StatusError is returned when the API answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("mailgun: unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("mailgun: unexpected status %d: %s", e.StatusCode, e.Body)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == code
}
