package upstream

import (
	"fmt"
	"net/http"
)

// StatusError is a non-2xx response from the upstream API. It carries its
// own retry classification: 429 and the transient 5xx family are worth
// repeating, every other status is permanent and surfaces immediately.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream api error %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the resilience layer should repeat the call.
func (e *StatusError) Retryable() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
