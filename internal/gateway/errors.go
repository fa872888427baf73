package gateway

import (
	"errors"
	"fmt"
)

// Sentinels for server responses the sync engine reacts to specifically.
var (
	// ErrStaleCheckpoint signals the server rejected a push because the
	// client's checkpoint is behind the server's state. Retryable: the next
	// cycle pulls first and catches up.
	ErrStaleCheckpoint = errors.New("gateway: checkpoint stale, pull required")

	// ErrSchemaUnsupported signals the server cannot serve this client's
	// schema version. Not retryable for this app build.
	ErrSchemaUnsupported = errors.New("gateway: schema version unsupported")

	// ErrUnauthorized signals a rejected or missing credential. Not
	// retryable without re-login.
	ErrUnauthorized = errors.New("gateway: unauthorized")
)

// Error wraps a failed gateway call with its retry classification.
// Transient errors (network failures, timeouts, 5xx, 429) are worth
// retrying with backoff; fatal ones (auth, schema, other 4xx) need
// app-level intervention.
type Error struct {
	Op         string // "pull", "push", or "log"
	StatusCode int    // zero for transport-level failures
	Err        error
	transient  bool
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("gateway %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Transient reports whether retrying the operation later can succeed
// without intervention.
func (e *Error) Transient() bool { return e.transient }

// NewTransientError builds a retryable gateway error. Exposed so other
// transports (and tests) can participate in the same taxonomy.
func NewTransientError(op string, err error) *Error {
	return transientErr(op, 0, err)
}

// NewFatalError builds a non-retryable gateway error.
func NewFatalError(op string, err error) *Error {
	return fatalErr(op, 0, err)
}

func transientErr(op string, status int, err error) *Error {
	return &Error{Op: op, StatusCode: status, Err: err, transient: true}
}

func fatalErr(op string, status int, err error) *Error {
	return &Error{Op: op, StatusCode: status, Err: err, transient: false}
}

// IsTransient reports whether err is a retryable gateway failure.
func IsTransient(err error) bool {
	var ge *Error
	return errors.As(err, &ge) && ge.Transient()
}

// IsFatal reports whether err is a gateway failure that retrying cannot
// fix (auth, schema, malformed request).
func IsFatal(err error) bool {
	var ge *Error
	return errors.As(err, &ge) && !ge.Transient()
}
