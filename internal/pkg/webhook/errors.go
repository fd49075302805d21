package webhook

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorClass partitions pipeline failures into the classes the retry and
// dead-letter logic act on, independent of any storage backend's native
// error vocabulary.
type ErrorClass string

const (
	// ClassValidation marks malformed upstream data. Retrying will not fix
	// it; the event goes straight to the dead-letter sink.
	ClassValidation ErrorClass = "validation"
	// ClassTransient marks failures worth retrying (storage unavailable,
	// downstream timeout).
	ClassTransient ErrorClass = "transient"
	// ClassConflict marks a conditional-write "already exists" outcome. It
	// is not an error for the reconciler, which treats it as success.
	ClassConflict ErrorClass = "conflict"
)

// ClassifiedError carries an ErrorClass alongside the underlying cause.
type ClassifiedError struct {
	Class ErrorClass
	Err   error
}

func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("%s: %v", e.Class, e.Err)
}

func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

// Validationf builds a non-retryable validation error.
func Validationf(format string, args ...interface{}) error {
	return &ClassifiedError{Class: ClassValidation, Err: fmt.Errorf(format, args...)}
}

// Transientf builds a retryable transient error.
func Transientf(format string, args ...interface{}) error {
	return &ClassifiedError{Class: ClassTransient, Err: fmt.Errorf(format, args...)}
}

// Conflictf builds a benign conflict error.
func Conflictf(format string, args ...interface{}) error {
	return &ClassifiedError{Class: ClassConflict, Err: fmt.Errorf(format, args...)}
}

// Classify wraps err with the given class unless it is already classified.
func Classify(class ErrorClass, err error) error {
	if err == nil {
		return nil
	}
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return err
	}
	return &ClassifiedError{Class: class, Err: err}
}

// ClassOf returns the class of err, defaulting unclassified errors to
// transient so unknown failures get the benefit of the retry budget.
func ClassOf(err error) ErrorClass {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class
	}
	return ClassTransient
}

// IsRetryable reports whether err should consume retry budget.
func IsRetryable(err error) bool {
	return ClassOf(err) == ClassTransient
}

// IsConflict reports whether err is a benign already-exists outcome.
func IsConflict(err error) bool {
	return ClassOf(err) == ClassConflict
}

// summarizeError trims an error message to a bounded, single-line summary
// suitable for processing-history entries.
func summarizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	const maxLen = 500
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return msg
}
