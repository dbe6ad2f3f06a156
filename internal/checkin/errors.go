package checkin

import (
	"errors"
	"fmt"
)

// Validation errors. The desk surfaces a warning notice and makes no gateway call.
var (
	ErrNoSession       = errors.New("checkin: no active session")
	ErrSessionActive   = errors.New("checkin: session already active")
	ErrNoInstance      = errors.New("checkin: no event instance selected")
	ErrUnknownInstance = errors.New("checkin: instance is not among the loaded options")
	ErrInvalidDate     = errors.New("checkin: invalid date")
	ErrEmptyCode       = errors.New("checkin: empty code")
	ErrEmptyCriteria   = errors.New("checkin: no search criteria")
	ErrNoPending       = errors.New("checkin: no pending result")
	ErrUnknownResult   = errors.New("checkin: search result not found")
	ErrBusy            = errors.New("checkin: another request is in flight")
)

var (
	// ErrTransport wraps any failure to reach the gateway.
	ErrTransport = errors.New("checkin: gateway request failed")
	// ErrStale is returned when a stop, reset or restart happened while the
	// request was in flight; its response is discarded.
	ErrStale = errors.New("checkin: session changed while request was in flight")
)

// RejectedError is a business-rule failure reported by the gateway.
type RejectedError struct {
	Op      string
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("checkin: %s rejected: %s", e.Op, e.Message)
}

// IsValidation reports whether err is a guard failure raised before any
// gateway call.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrNoSession, ErrSessionActive, ErrNoInstance, ErrUnknownInstance, ErrInvalidDate,
		ErrEmptyCode, ErrEmptyCriteria, ErrNoPending, ErrUnknownResult,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsRejected reports whether err carries a gateway business failure.
func IsRejected(err error) bool {
	var rej *RejectedError
	return errors.As(err, &rej)
}

var errEmptyResponse = errors.New("empty gateway response")
