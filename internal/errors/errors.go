package errors

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/julianstephens/filialwatch/internal/logger"
)

var (
	// ErrValidation marks input rejected before it reaches the backend.
	ErrValidation = stderrors.New("validation failed")
	// ErrForbidden is returned when the current session may not perform the operation.
	ErrForbidden = stderrors.New("operation not permitted for the current session")
	// ErrOffline is returned when the backend cannot be reached.
	ErrOffline = stderrors.New("backend unreachable")
	// ErrWriteFailed is returned when the backend rejected a mutation.
	ErrWriteFailed = stderrors.New("backend rejected the write")
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = stderrors.New("not found")
)

// Validationf builds an error wrapping ErrValidation.
func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return stderrors.As(err, target)
}

// Format formats an error message with a consistent "Error: " prefix
func Format(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Error: %v", err)
}

// Formatf formats an error message with a consistent "Error: " prefix using a format string
func Formatf(format string, args ...interface{}) string {
	return fmt.Sprintf("Error: "+format, args...)
}

// Fatal logs an error and exits the program with exit code 1
func Fatal(err error) {
	if err != nil {
		logger.Error("Command execution failed", "error", err)
		fmt.Fprintf(os.Stderr, "%s\n", Format(err))
		os.Exit(1)
	}
}

// Fatalf logs and formats an error message, then exits the program with exit code 1
func Fatalf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	logger.Error("Command execution failed", "error", msg)
	fmt.Fprintf(os.Stderr, "%s\n", Formatf(format, args...))
	os.Exit(1)
}
