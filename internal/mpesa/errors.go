package mpesa

import (
	"errors"
	"fmt"
)

var (
	// ErrNoAuthenticatedUser is returned when the caller identity cannot be
	// resolved from the request's authentication context
	ErrNoAuthenticatedUser = errors.New("no authenticated user")

	// ErrTransactionNotFound is returned when a callback references a
	// CheckoutRequestID that no transaction carries
	ErrTransactionNotFound = errors.New("transaction not found")
)

// ValidationError indicates malformed or missing caller input. No side
// effects have occurred when one is returned.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationErrorf(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// GatewayError indicates the token exchange or STK push call was rejected,
// returned a non-2xx status, or produced an unparseable response. No
// transaction record is created when one is returned.
type GatewayError struct {
	Op  string // "token" or "stkpush"
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("mpesa %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// PersistenceError indicates the transaction record write failed after the
// gateway already accepted the push. The gateway-side payment exists with no
// local record to reconcile it against, so the caller must be told.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to create transaction record: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
