package provider

import (
	"errors"
	"fmt"
)

// Sentinel errors for provider calls. All are recoverable at the gateway
// level: a failed call is a single terminal attempt per user turn.
var (
	// ErrMissingCredential indicates the provider has no API key configured.
	ErrMissingCredential = errors.New("provider credential is not configured")

	// ErrTransport indicates the request never produced an HTTP response
	// (network failure, timeout, connection refused).
	ErrTransport = errors.New("provider transport failure")

	// ErrInvalidResponse indicates the backend returned 2xx but the body did
	// not have the expected shape.
	ErrInvalidResponse = errors.New("invalid response from provider")

	// ErrUnknownKind indicates a provider kind outside the supported set.
	// This is a local configuration error, not an upstream failure.
	ErrUnknownKind = errors.New("unknown provider kind")

	// ErrNoMessages indicates a chat call with an empty message list.
	ErrNoMessages = errors.New("chat requires at least one message")

	// ErrNoModel indicates a chat call with an empty model identifier.
	ErrNoModel = errors.New("chat requires a model identifier")
)

// UpstreamError carries a non-2xx status and the backend's own error message.
// The message is for server-side logging; it must not be echoed verbatim to
// end users outside admin-initiated calls.
type UpstreamError struct {
	Provider string
	Status   int
	Message  string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s upstream error (status %d): %s", e.Provider, e.Status, e.Message)
}
