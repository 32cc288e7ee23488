package cli

import (
	"errors"
	"fmt"

	"github.com/fastygo/places/domain"
	"github.com/fastygo/places/internal/config"
	"github.com/fastygo/places/pkg/backend/auth"
	"github.com/fastygo/places/pkg/backend/transport"
)

// Process exit codes.
const (
	exitRuntime     = 1
	exitUsage       = 2
	exitAuth        = 3
	exitUnavailable = 4
	exitNotFound    = 5
)

// ExitError is an error that carries a specific process exit code.
// Cobra's RunE returns this to signal the desired exit code to main.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// exitError creates a new ExitError with the given code and formatted message.
func exitError(code int, format string, args ...any) *ExitError {
	return &ExitError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// asExitError attaches an exit code to err based on what failed.
func asExitError(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}
	return &ExitError{Code: exitCode(err), Message: err.Error(), Err: err}
}

func exitCode(err error) int {
	var dErr *domain.Error
	if errors.As(err, &dErr) {
		return codeFor(dErr.Code)
	}

	var aErr *auth.Error
	if errors.As(err, &aErr) {
		var tErr *transport.Error
		if errors.As(aErr, &tErr) && tErr.Code() == domain.ErrCodeUnavailable {
			return exitUnavailable
		}
		return exitAuth
	}

	var tErr *transport.Error
	if errors.As(err, &tErr) {
		return codeFor(tErr.Code())
	}

	switch {
	case errors.Is(err, config.ErrMissingBackendURL),
		errors.Is(err, config.ErrMissingAnonKey),
		errors.Is(err, config.ErrUnknownStore):
		return exitUsage
	}
	return exitRuntime
}

func codeFor(code domain.ErrorCode) int {
	switch code {
	case domain.ErrCodeInvalid:
		return exitUsage
	case domain.ErrCodeUnauthorized, domain.ErrCodeForbidden:
		return exitAuth
	case domain.ErrCodeUnavailable:
		return exitUnavailable
	case domain.ErrCodeNotFound:
		return exitNotFound
	default:
		return exitRuntime
	}
}
