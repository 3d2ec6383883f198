package ups

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed UPS call. Classification happens in this
// package; retry and failover policy belong to the batch processor.
type ErrorKind string

const (
	// KindRateLimited marks an HTTP 429 from the tracking API.
	KindRateLimited ErrorKind = "rate_limited"
	// KindHTTPError marks any other non-2xx tracking response.
	KindHTTPError ErrorKind = "http_error"
	// KindNetworkError marks timeouts and connection failures.
	KindNetworkError ErrorKind = "network_error"
	// KindProtocolError marks a 2xx response whose body could not be parsed.
	KindProtocolError ErrorKind = "protocol_error"
	// KindAuthError marks a rejected or unreachable credential pair.
	KindAuthError ErrorKind = "auth_error"
)

// ErrAuthRejected tags token failures caused by the credential pair itself
// (401/403 from the auth endpoint) or by unreachability after bounded
// retries. errors.Is(err, ErrAuthRejected) identifies them.
var ErrAuthRejected = errors.New("credential pair rejected")

// QueryError is the classified failure for one UPS call. It is a value the
// scan loop routes on, not an exceptional condition.
type QueryError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Err        error
}

func (e *QueryError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (HTTP %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}
