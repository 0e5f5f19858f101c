package payment

import (
	"fmt"
	"strings"
)

// ConfigurationError means required gateway settings are absent. It is never retried.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return "mpesa: gateway not configured: missing " + strings.Join(e.Missing, ", ")
}

// GatewayAuthError is returned when the OAuth endpoint answers with a non-2xx status.
type GatewayAuthError struct {
	StatusCode int
	Body       string
}

func (e *GatewayAuthError) Error() string {
	return fmt.Sprintf("mpesa: access token request failed: %d", e.StatusCode)
}

// ValidationError is malformed caller input. Message is safe to show to the customer.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// GatewayRejection means the gateway answered but declined the request.
type GatewayRejection struct {
	Code    string
	Message string
}

func (e *GatewayRejection) Error() string { return e.Message }

// TransportError wraps network and decoding failures talking to the gateway.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("mpesa %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
