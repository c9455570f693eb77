package errors

import (
	"errors"
	"fmt"
	"os"

	"github.com/julianstephens/microhabits/internal/logger"
)

var (
	// ErrNotFound is returned when a habit id does not exist for the given owner
	ErrNotFound = errors.New("habit not found")
	// ErrCapExceeded is returned when an unsubscribed owner is already at the free-tier limit
	ErrCapExceeded = errors.New("free-tier habit limit reached")
	// ErrConflict is returned when a conditional update lost a race with another write to the same habit
	ErrConflict = errors.New("habit was modified concurrently")
	// ErrInvalidHabit is returned when habit input fails validation
	ErrInvalidHabit = errors.New("invalid habit")
)

// PersistenceError wraps a failure of the storage backend
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Persistence wraps err as a PersistenceError unless it is nil or already classified
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) {
		return err
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// IsPersistence reports whether err is (or wraps) a PersistenceError
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
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
