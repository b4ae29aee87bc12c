package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// TransientError marks an error as retryable, carrying the HTTP status
// that triggered it when one exists (429, 5xx, or 0 for network faults).
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError wraps err as retryable. statusCode may be 0 when the
// failure happened below the HTTP layer.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// transientFragments matches errors the net/http client surfaces only as
// strings. Kept to the failure modes seen against the survey hosts and
// the OCR and vision APIs.
var transientFragments = []string{
	"connection reset by peer",
	"broken pipe",
	"no such host",
	"tls handshake timeout",
	"i/o timeout",
}

// IsTransient reports whether err is worth retrying: an explicit
// TransientError anywhere in the chain, a net.Error timeout, a reset or
// refused connection, or a known transient message from the HTTP client.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, frag := range transientFragments {
		if strings.Contains(msg, frag) {
			return true
		}
	}
	return false
}

// IsTransientHTTPStatus reports whether the status code is one the
// server may stop returning on its own: request timeout, rate limiting,
// or a 5xx family error.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	}
	return false
}
