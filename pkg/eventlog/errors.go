package eventlog

import "errors"

// Sentinel errors for the EventLog error taxonomy (see error handling design).
var (
	ErrInvalidKind      = errors.New("eventlog: invalid kind")
	ErrTypeMismatch     = errors.New("eventlog: content must be a string")
	ErrPolicyForbidden  = errors.New("eventlog: write forbidden by policy")
	ErrNotFound         = errors.New("eventlog: event not found")
	ErrInvalidQuery     = errors.New("eventlog: invalid query parameters")
)

// AppendError wraps a failed append with the offending kind for diagnostics.
type AppendError struct {
	Kind Kind
	Err  error
}

func (e *AppendError) Error() string {
	return "eventlog: append " + string(e.Kind) + ": " + e.Err.Error()
}

func (e *AppendError) Unwrap() error { return e.Err }
