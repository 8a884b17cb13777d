// Package errors contains helper functions and types to work with errors
package errors

import (
	"errors"
	"net/http"
)

// Category defines error category
type Category int

const (
	// CategoryNoError is used by request tracking when a call succeeds.
	CategoryNoError Category = iota
	// CategoryValidation The caller sent invalid data: unregistered chain,
	// zero amount or address, malformed batch, expired deadline,
	// out-of-bound parameters.
	CategoryValidation
	// CategoryUnauthorized The caller does not hold the credential required
	// for a privileged operation.
	CategoryUnauthorized
	// CategoryResourceNotFound The requested entity (price record, swap id)
	// does not exist.
	CategoryResourceNotFound
	// CategoryStaleness Price or oracle data is older than its declared
	// validity window and a definitive value was required.
	CategoryStaleness
	// CategoryStateConflict The operation is invalid for the swap's current
	// status; safe to retry once the precondition is met.
	CategoryStateConflict
	// CategoryTimeoutGate Recovery was requested before the minimum elapsed
	// time since initiation.
	CategoryTimeoutGate
	// CategoryPaused The system is administratively halted; surfaced
	// distinctly so operators can tell "halted" from "bad input".
	CategoryPaused
	// CategoryDependencyFailure A dependent service (oracle, bridge) is
	// throwing errors.
	CategoryDependencyFailure
	// CategoryGeneralError The service failed in an unexpected way.
	CategoryGeneralError
)

func (c Category) String() string {
	switch c {
	case CategoryValidation:
		return "CategoryValidation"
	case CategoryUnauthorized:
		return "CategoryUnauthorized"
	case CategoryResourceNotFound:
		return "CategoryResourceNotFound"
	case CategoryStaleness:
		return "CategoryStaleness"
	case CategoryStateConflict:
		return "CategoryStateConflict"
	case CategoryTimeoutGate:
		return "CategoryTimeoutGate"
	case CategoryPaused:
		return "CategoryPaused"
	case CategoryDependencyFailure:
		return "CategoryDependencyFailure"
	default:
		return "CategoryGeneralError"
	}
}

// ServiceError represents service specific type that
// is used all over the services.
type ServiceError struct {
	Category Category
	Message  string
	Err      error
}

// Error method to comply with error interface
func (err ServiceError) Error() string {
	if err.Err != nil {
		return err.Err.Error()
	}
	return err.Message
}

// Unwrap returns the underlying error
func (err ServiceError) Unwrap() error {
	return err.Err
}

// Is implements the custom condition to check an error is equal to a service error
func (err ServiceError) Is(target error) bool {
	return err.Message == target.Error()
}

// Is checks that provided error is a ServiceError with desired Category
func Is(err error, cat Category) bool {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) && svcErr.Category == cat {
		return true
	}
	return false
}

// ValidationError returns an error with category Validation.
// The message provided is returned to the caller, the err object is logged.
func ValidationError(err error, message string) error {
	if err == nil {
		err = errors.New("validation failed: " + message)
	}
	return &ServiceError{
		Category: CategoryValidation,
		Message:  message,
		Err:      err,
	}
}

// UnauthorizedError returns an error with category Unauthorized
func UnauthorizedError(err error, message string) error {
	if err == nil {
		err = errors.New("unauthorized")
	}
	return &ServiceError{
		Category: CategoryUnauthorized,
		Message:  message,
		Err:      err,
	}
}

// NotFoundError returns an error with category ResourceNotFound
func NotFoundError(err error, message string) error {
	if err == nil {
		err = errors.New("resource not found: " + message)
	}
	return &ServiceError{
		Category: CategoryResourceNotFound,
		Message:  message,
		Err:      err,
	}
}

// StalenessError returns an error with category Staleness
func StalenessError(err error, message string) error {
	if err == nil {
		err = errors.New("stale data: " + message)
	}
	return &ServiceError{
		Category: CategoryStaleness,
		Message:  message,
		Err:      err,
	}
}

// StateConflictError returns an error with category StateConflict
func StateConflictError(err error, message string) error {
	if err == nil {
		err = errors.New("state conflict: " + message)
	}
	return &ServiceError{
		Category: CategoryStateConflict,
		Message:  message,
		Err:      err,
	}
}

// TimeoutGateError returns an error with category TimeoutGate
func TimeoutGateError(err error, message string) error {
	if err == nil {
		err = errors.New("timeout gate: " + message)
	}
	return &ServiceError{
		Category: CategoryTimeoutGate,
		Message:  message,
		Err:      err,
	}
}

// PausedError returns an error with category Paused
func PausedError(message string) error {
	return &ServiceError{
		Category: CategoryPaused,
		Message:  message,
		Err:      errors.New("system paused"),
	}
}

// DependencyError returns an error with category DependencyFailure
func DependencyError(err error, message string) error {
	if err == nil {
		err = errors.New("dependency failure: " + message)
	}
	return &ServiceError{
		Category: CategoryDependencyFailure,
		Message:  message,
		Err:      err,
	}
}

// GeneralError returns a general service error
// this error message sent to the user is "Internal Server Error"
// the error passed is logged in the logger
func GeneralError(err error) error {
	if err == nil {
		err = errors.New("internal server error")
	}
	return &ServiceError{
		Category: CategoryGeneralError,
		Message:  "Internal Server Error",
		Err:      err,
	}
}

// StatusCode returns the HTTP status code for the error category
func (err ServiceError) StatusCode() int {
	switch err.Category {
	case CategoryValidation:
		return http.StatusBadRequest
	case CategoryUnauthorized:
		return http.StatusUnauthorized
	case CategoryResourceNotFound:
		return http.StatusNotFound
	case CategoryStaleness:
		return http.StatusFailedDependency
	case CategoryStateConflict:
		return http.StatusConflict
	case CategoryTimeoutGate:
		return http.StatusTooEarly
	case CategoryPaused:
		return http.StatusServiceUnavailable
	case CategoryDependencyFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
