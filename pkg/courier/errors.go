package courier

import (
	"errors"
	"fmt"
)

// CourierError represents an error from a carrier integration.
type CourierError struct {
	Courier    CourierType
	Code       string
	Message    string
	StatusCode int
	Retryable  bool
	Cause      error
}

// Error implements the error interface.
func (e *CourierError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error (%s): %s: %v", e.Courier, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error (%s): %s", e.Courier, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *CourierError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for CourierError.
func (e *CourierError) Is(target error) bool {
	t, ok := target.(*CourierError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewCourierError creates a new CourierError.
func NewCourierError(courier CourierType, code, message string) *CourierError {
	return &CourierError{
		Courier: courier,
		Code:    code,
		Message: message,
	}
}

// WithCause adds a cause to the error.
func (e *CourierError) WithCause(err error) *CourierError {
	e.Cause = err
	return e
}

// WithStatusCode adds an HTTP status code to the error.
func (e *CourierError) WithStatusCode(code int) *CourierError {
	e.StatusCode = code
	return e
}

// WithRetryable marks the error as retryable.
func (e *CourierError) WithRetryable(retryable bool) *CourierError {
	e.Retryable = retryable
	return e
}

// Sentinel errors for the integration core's error taxonomy.
var (
	// ErrInvalidCredentials indicates carrier authentication failed.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrTransport indicates a network or timeout failure reaching a carrier
	// or a webhook subscriber. Retry policy belongs to the caller.
	ErrTransport = errors.New("transport failure")

	// ErrNotServiceable indicates no carrier can deliver on the route.
	ErrNotServiceable = errors.New("route not serviceable")

	// ErrInvalidTransition indicates a state-machine guard rejected a change.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrDuplicateEvent indicates an idempotency hit. It is a no-op signal,
	// not a failure.
	ErrDuplicateEvent = errors.New("duplicate event")

	// ErrSignatureInvalid indicates webhook signature verification failed.
	ErrSignatureInvalid = errors.New("invalid webhook signature")

	// ErrExhaustedRetries indicates an outbound delivery gave up after its
	// configured retry budget.
	ErrExhaustedRetries = errors.New("retries exhausted")

	// ErrCourierNotFound indicates the requested carrier is not registered.
	ErrCourierNotFound = errors.New("courier not found")

	// ErrAWBNotAssigned indicates an operation that needs a tracking number
	// was attempted on a shipment without one.
	ErrAWBNotAssigned = errors.New("awb not assigned")
)

// IsRetryable returns true if the error is retryable.
func IsRetryable(err error) bool {
	var courierErr *CourierError
	if errors.As(err, &courierErr) {
		return courierErr.Retryable
	}
	return errors.Is(err, ErrTransport)
}
