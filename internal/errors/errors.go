// Package errors is the error taxonomy shared by the task store, the
// dispatcher and the CLI. Each semantic error type matches a sentinel via
// errors.Is, so callers can branch on the sentinel or unpack the type with
// errors.As when they need the fields.
//
//   - NotFoundError: a task ID is absent from the partition an operation
//     expected it in (stale claim, double complete, typo)
//   - IOError: an underlying read, write, rename or remove failed
//   - MalformedRecordError: a partition file does not parse as a task record
//   - DependencyError: a claim was refused because dependencies are unmet
//   - ValidationError: invalid caller input
//
// Typical use:
//
//	err := errors.NewNotFoundError("task", id).WithPartition("pending")
//	if errors.Is(err, errors.ErrTaskNotFound) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Aliases for the standard library so callers need a single errors import.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Sentinels matched by the typed errors below.
var (
	ErrTaskNotFound      = New("task not found")
	ErrIO                = New("i/o failure")
	ErrMalformedRecord   = New("malformed task record")
	ErrDependenciesUnmet = New("dependencies not satisfied")
	ErrInvalidInput      = New("invalid input")
)

// wrapped carries the optional cause shared by every typed error.
type wrapped struct {
	cause error
}

func (w *wrapped) Unwrap() error { return w.cause }

func (w *wrapped) causeIs(target error) bool {
	return w.cause != nil && errors.Is(w.cause, target)
}

// withCause appends ": cause" to msg when a cause is set.
func (w *wrapped) withCause(msg string) string {
	if w.cause == nil {
		return msg
	}
	return fmt.Sprintf("%s: %v", msg, w.cause)
}

// NotFoundError reports a resource missing from where an operation looked.
//
//	errors.NewNotFoundError("task", "scan-20260101T000000-42").WithPartition("pending")
//	// task 'scan-20260101T000000-42' not found in pending
type NotFoundError struct {
	wrapped
	ResourceType string
	ResourceID   string
	Partition    string
}

// NewNotFoundError returns a NotFoundError for the given resource.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{ResourceType: resourceType, ResourceID: resourceID}
}

// WithPartition records the partition the resource was expected in.
func (e *NotFoundError) WithPartition(partition string) *NotFoundError {
	e.Partition = partition
	return e
}

// WithCause attaches the underlying error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
	if e.Partition != "" {
		msg += " in " + e.Partition
	}
	return e.withCause(msg)
}

// Is matches any *NotFoundError, and ErrTaskNotFound when the resource is a task.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	if target == ErrTaskNotFound {
		return e.ResourceType == "task"
	}
	return e.causeIs(target)
}

// IOError reports a failed filesystem operation. It is retryable; the
// caller decides whether to retry.
type IOError struct {
	wrapped
	Op   string
	Path string
}

// NewIOError returns an IOError for op on path.
func NewIOError(op, path string, cause error) *IOError {
	return &IOError{wrapped: wrapped{cause: cause}, Op: op, Path: path}
}

func (e *IOError) Error() string {
	return e.withCause("io error" + bracket("op", e.Op, "path", e.Path))
}

func (e *IOError) Is(target error) bool {
	if _, ok := target.(*IOError); ok || target == ErrIO {
		return true
	}
	return e.causeIs(target)
}

// Retryable is always true for I/O failures.
func (e *IOError) Retryable() bool { return true }

// MalformedRecordError reports a partition file that is not a valid task
// record, usually corruption or a foreign file.
type MalformedRecordError struct {
	wrapped
	Path string
}

// NewMalformedRecordError returns a MalformedRecordError for path.
func NewMalformedRecordError(path string, cause error) *MalformedRecordError {
	return &MalformedRecordError{wrapped: wrapped{cause: cause}, Path: path}
}

func (e *MalformedRecordError) Error() string {
	return e.withCause("malformed task record " + e.Path)
}

func (e *MalformedRecordError) Is(target error) bool {
	if _, ok := target.(*MalformedRecordError); ok || target == ErrMalformedRecord {
		return true
	}
	return e.causeIs(target)
}

// DependencyError is returned when a claim is refused because some of the
// task's dependencies have not completed. Failed lists the subset that
// landed in the failed partition, and Missing the subset that exists in no
// partition and left no result (swept after failing, or never created).
// Neither can ever be satisfied.
type DependencyError struct {
	wrapped
	TaskID  string
	Unmet   []string
	Failed  []string
	Missing []string
}

// NewDependencyError returns a DependencyError for taskID.
func NewDependencyError(taskID string, unmet, failed []string) *DependencyError {
	return &DependencyError{TaskID: taskID, Unmet: unmet, Failed: failed}
}

// WithMissing records the dependencies that no longer exist anywhere.
func (e *DependencyError) WithMissing(missing []string) *DependencyError {
	e.Missing = missing
	return e
}

func (e *DependencyError) Error() string {
	msg := fmt.Sprintf("task '%s' blocked: waiting on %s", e.TaskID, strings.Join(e.Unmet, ", "))
	if len(e.Failed) > 0 {
		msg += fmt.Sprintf(" (failed: %s)", strings.Join(e.Failed, ", "))
	}
	if len(e.Missing) > 0 {
		msg += fmt.Sprintf(" (missing: %s)", strings.Join(e.Missing, ", "))
	}
	return msg
}

func (e *DependencyError) Is(target error) bool {
	if _, ok := target.(*DependencyError); ok || target == ErrDependenciesUnmet {
		return true
	}
	return e.causeIs(target)
}

// Retryable reports whether waiting could ever unblock the task.
func (e *DependencyError) Retryable() bool { return len(e.Failed) == 0 && len(e.Missing) == 0 }

// ValidationError reports invalid caller input.
//
//	errors.NewValidationError("task type must not be empty").WithField("type")
type ValidationError struct {
	wrapped
	Message string
	Field   string
	Value   any
}

// NewValidationError returns a ValidationError with the given message.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

// WithField names the offending field.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue records the offending value.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

func (e *ValidationError) Error() string {
	var value string
	if e.Value != nil {
		value = fmt.Sprint(e.Value)
	}
	return e.withCause("validation error" + bracket("field", e.Field, "value", value) + ": " + e.Message)
}

func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok || target == ErrInvalidInput {
		return true
	}
	return e.causeIs(target)
}

// bracket renders non-empty key/value pairs as " [k=v, k=v]".
func bracket(kv ...string) string {
	var parts []string
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] != "" {
			parts = append(parts, kv[i]+"="+kv[i+1])
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return " [" + strings.Join(parts, ", ") + "]"
}

// IsRetryable reports whether err, or anything it wraps, is a transient
// condition that may succeed on retry.
func IsRetryable(err error) bool {
	var r interface{ Retryable() bool }
	return As(err, &r) && r.Retryable()
}

// IsNotFound reports whether err is, or wraps, a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return As(err, &nf)
}

// IsMalformed reports whether err is, or wraps, a MalformedRecordError.
func IsMalformed(err error) bool {
	var mr *MalformedRecordError
	return As(err, &mr)
}

// Wrap prefixes err with message, keeping it reachable through Is and As.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf is Wrap with a format string.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
