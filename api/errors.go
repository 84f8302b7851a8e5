package api

import (
	"errors"
	"fmt"
)

// Transport-level errors.
var (
	// ErrTransport wraps network-level failures.
	ErrTransport = errors.New("transport failure")
	// ErrServerRejected matches every *ServerError.
	ErrServerRejected = errors.New("server rejected request")
	// ErrDecode is returned when a 2xx response body cannot be decoded.
	ErrDecode = errors.New("failed to decode response")
	// ErrEndpointMissing is returned when an operation's URL is not configured.
	ErrEndpointMissing = errors.New("endpoint not configured")
)

// Operation errors. Each wraps the underlying transport, server or
// identity error.
var (
	ErrCatalogFetchFailed = errors.New("catalog fetch failed")
	ErrRatingSubmitFailed = errors.New("rating submit failed")
	ErrMacroLogFailed     = errors.New("macro log failed")
	ErrMacroFetchFailed   = errors.New("macro fetch failed")
	ErrMacroResetFailed   = errors.New("macro reset failed")
	ErrHistoryFetchFailed = errors.New("rated history fetch failed")
	ErrRegisterFailed     = errors.New("identity registration failed")
)

// ServerError is a non-2xx response. Body is the server's error text,
// kept verbatim for display.
type ServerError struct {
	Status int
	Body   string
}

func (e *ServerError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.Status)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Body)
}

// Is reports whether target is ErrServerRejected.
func (e *ServerError) Is(target error) bool {
	return target == ErrServerRejected
}
