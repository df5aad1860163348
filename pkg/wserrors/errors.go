// Package wserrors provides structured error handling for the session client.
// It defines the seven error kinds named by the connection supervisor's error
// handling design and gives each one rich, loggable context.
package wserrors

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind classifies a SessionError into one of the supervisor's named error kinds.
type Kind string

const (
	// KindConfigMissing indicates a required configuration value was absent at construction.
	KindConfigMissing Kind = "config_missing"
	// KindTransientTransport indicates a recoverable transport failure that should trigger Reconnecting.
	KindTransientTransport Kind = "transient_transport"
	// KindConnectionTimeout indicates the Connecting phase exceeded connection_timeout.
	KindConnectionTimeout Kind = "connection_timeout"
	// KindQueueFull indicates an enqueue attempt hit capacity and the overflow policy applied.
	KindQueueFull Kind = "queue_full"
	// KindCallbackFailure indicates the user-supplied message handler panicked or returned an error.
	KindCallbackFailure Kind = "callback_failure"
	// KindUnknownOverflowPolicy indicates a queue was configured with an unrecognized overflow policy.
	KindUnknownOverflowPolicy Kind = "unknown_overflow_policy"
	// KindMaxRetriesExceeded indicates the Supervisor exhausted retry_limit consecutive attempts.
	KindMaxRetriesExceeded Kind = "max_retries_exceeded"
)

// Severity indicates how critical an error is.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
	SeverityFatal   Severity = "fatal"
)

// Context carries structured metadata about where and when an error occurred.
type Context struct {
	Component string    `json:"component,omitempty"`
	Operation string    `json:"operation,omitempty"`
	AttemptID string    `json:"attempt_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionError is the interface satisfied by all errors raised by the session client.
type SessionError interface {
	error
	Kind() Kind
	Severity() Severity
	Context() *Context
	WithContext(ctx *Context) SessionError
	Unwrap() error
}

type sessionError struct {
	kind     Kind
	message  string
	severity Severity
	context  *Context
	cause    error
}

func (e *sessionError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s", e.message, e.cause.Error())
	}
	return e.message
}

func (e *sessionError) Kind() Kind         { return e.kind }
func (e *sessionError) Severity() Severity { return e.severity }
func (e *sessionError) Context() *Context  { return e.context }
func (e *sessionError) Unwrap() error      { return e.cause }

func (e *sessionError) WithContext(ctx *Context) SessionError {
	newErr := *e
	newErr.context = ctx
	return &newErr
}

// MarshalJSON renders the error as a structured record, convenient for logging sinks.
func (e *sessionError) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"kind":     e.kind,
		"message":  e.message,
		"severity": e.severity,
		"context":  e.context,
	})
}

// New creates a SessionError of the given kind.
func New(kind Kind, severity Severity, message string) SessionError {
	return &sessionError{
		kind:     kind,
		message:  message,
		severity: severity,
		context:  &Context{Timestamp: time.Now()},
	}
}

// Newf creates a SessionError with a formatted message.
func Newf(kind Kind, severity Severity, format string, args ...interface{}) SessionError {
	return New(kind, severity, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error as a SessionError of the given kind.
func Wrap(cause error, kind Kind, severity Severity, message string) SessionError {
	e := &sessionError{
		kind:     kind,
		message:  message,
		severity: severity,
		cause:    cause,
		context:  &Context{Timestamp: time.Now()},
	}
	return e
}

// As extracts a SessionError from err, if it is one.
func As(err error) (SessionError, bool) {
	if err == nil {
		return nil, false
	}
	se, ok := err.(SessionError)
	return se, ok
}

// Is reports whether err is a SessionError of the given kind.
func Is(err error, kind Kind) bool {
	se, ok := As(err)
	return ok && se.Kind() == kind
}

// ConfigMissing builds a KindConfigMissing error naming the missing field.
func ConfigMissing(field string) SessionError {
	return Newf(KindConfigMissing, SeverityFatal, "required configuration value %q is missing", field)
}

// TransientTransport wraps a recoverable transport error.
func TransientTransport(op string, cause error) SessionError {
	return Wrap(cause, KindTransientTransport, SeverityWarning,
		fmt.Sprintf("transient transport failure during %s", op))
}

// ConnectionTimeoutErr builds a KindConnectionTimeout error for a Connecting phase that overran.
func ConnectionTimeoutErr(timeout time.Duration) SessionError {
	return Newf(KindConnectionTimeout, SeverityWarning, "connection attempt exceeded timeout of %s", timeout)
}

// QueueFullErr builds a KindQueueFull error naming the policy applied.
func QueueFullErr(policy string) SessionError {
	return Newf(KindQueueFull, SeverityWarning, "outbound queue is full, applying overflow policy %q", policy)
}

// CallbackFailure wraps a panic or error raised by a user-supplied callback.
func CallbackFailure(component string, cause error) SessionError {
	return Wrap(cause, KindCallbackFailure, SeverityError,
		fmt.Sprintf("user callback failed in %s", component)).
		WithContext(&Context{Component: component, Timestamp: time.Now()}).(SessionError)
}

// UnknownOverflowPolicy builds a KindUnknownOverflowPolicy error naming the offending value.
func UnknownOverflowPolicy(policy string) SessionError {
	return Newf(KindUnknownOverflowPolicy, SeverityError, "unrecognized overflow policy %q", policy)
}

// MaxRetriesExceededErr builds the terminal KindMaxRetriesExceeded error.
func MaxRetriesExceededErr(limit int) SessionError {
	return Newf(KindMaxRetriesExceeded, SeverityFatal, "exceeded retry limit of %d consecutive attempts", limit)
}
