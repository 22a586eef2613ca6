package analysis

import (
	"errors"
	"fmt"
)

// Caller-side errors, raised before anything is sent.
var (
	ErrEmptyInput   = errors.New("input is empty")
	ErrInvalidMode  = errors.New("invalid input type")
	ErrInvalidInput = errors.New("invalid input")
)

// Dispatch errors.
var (
	ErrUnreachable       = errors.New("inference service unreachable")
	ErrServiceError      = errors.New("inference service returned an error status")
	ErrMalformedResponse = errors.New("malformed inference response")
)

// Submission gating errors.
var (
	ErrSubmissionInFlight = errors.New("a submission is already in progress")
	ErrBusy               = errors.New("too many analyses in progress")
)

// UnreachableError is a transport-level failure: DNS, refused connection, timeout.
type UnreachableError struct {
	Message string
	Err     error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("%s: %s", ErrUnreachable, e.Message)
}

func (e *UnreachableError) Is(target error) bool { return target == ErrUnreachable }
func (e *UnreachableError) Unwrap() error        { return e.Err }

// ServiceError carries the non-200 status code returned by the service.
type ServiceError struct {
	Status int
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: status %d", ErrServiceError, e.Status)
}

func (e *ServiceError) Is(target error) bool { return target == ErrServiceError }

// MalformedError is a 200 response that could not be decoded or did not match the contract.
type MalformedError struct {
	Reason string
	Err    error
}

func (e *MalformedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrMalformedResponse, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrMalformedResponse, e.Reason)
}

func (e *MalformedError) Is(target error) bool { return target == ErrMalformedResponse }
func (e *MalformedError) Unwrap() error        { return e.Err }

// Malformed is shorthand used by the contract decoders.
func Malformed(reason string, err error) error {
	return &MalformedError{Reason: reason, Err: err}
}

// Kind returns a stable label for logs, metrics and API payloads.
func Kind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrEmptyInput):
		return "empty_input"
	case errors.Is(err, ErrInvalidMode):
		return "invalid_mode"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrSubmissionInFlight):
		return "in_flight"
	case errors.Is(err, ErrBusy):
		return "busy"
	case errors.Is(err, ErrUnreachable):
		return "unreachable"
	case errors.Is(err, ErrServiceError):
		return "service_error"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed_response"
	default:
		return "internal"
	}
}

// StatusOf extracts the upstream status from a ServiceError, or 0.
func StatusOf(err error) int {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}
