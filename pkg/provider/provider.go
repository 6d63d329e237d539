package provider

import (
	"context"
	"fmt"
)

// Client is the AI gateway that generates replies.
type Client interface {
	// Health reports whether the gateway is reachable. It must return fast
	// regardless of how slow completions are.
	Health(ctx context.Context) error
	// Complete sends one user message and returns the generated reply text.
	// Failures are *GatewayError values.
	Complete(ctx context.Context, text string) (string, error)
}

// ErrorKind classifies a failed completion attempt.
type ErrorKind string

const (
	// KindBadStatus is a non-2xx gateway response.
	KindBadStatus ErrorKind = "bad_status"
	// KindEmptyCompletion is a 2xx response carrying no usable text.
	KindEmptyCompletion ErrorKind = "empty_completion"
	// KindTimeout is a completion that exceeded the request deadline.
	KindTimeout ErrorKind = "timeout"
	// KindUnreachable is any other transport failure (refused connection,
	// DNS, reset).
	KindUnreachable ErrorKind = "unreachable"
)

// GatewayError describes why a completion failed. The bridge drops the event
// and stays silent toward the chat user; the error detail is for logs only.
type GatewayError struct {
	Kind   ErrorKind
	Status int    // HTTP status, set for KindBadStatus
	Detail string // response-body excerpt or transport error text
}

func (e *GatewayError) Error() string {
	if e.Kind == KindBadStatus {
		return fmt.Sprintf("gateway: %s (status %d): %s", e.Kind, e.Status, e.Detail)
	}
	return fmt.Sprintf("gateway: %s: %s", e.Kind, e.Detail)
}

// Timeout reports whether the failure was a deadline expiry.
func (e *GatewayError) Timeout() bool {
	return e.Kind == KindTimeout
}
