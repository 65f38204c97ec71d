// Package errors provides domain-specific error types for netmoded.
//
// These types carry structured context (command line, exit code, captured
// stderr, transition endpoints) that lets callers map failures to HTTP
// statuses and status-screen messages instead of string-matching.
package errors

import (
	"errors"
	"fmt"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	// ErrTimeout marks an external command that exceeded its deadline.
	ErrTimeout = errors.New("operation timed out")

	// ErrBusy marks a mode change rejected because another transition
	// holds the gate.
	ErrBusy = errors.New("a mode transition is already in progress")

	// ErrNoSuchProfile marks activation of a connection profile that is
	// not provisioned on the device.
	ErrNoSuchProfile = errors.New("no such connection profile")
)

// ── Error kinds ──────────────────────────────────────────────────────

// Kinds are stable machine-readable labels for error classes, used in
// API payloads and the state snapshot.
const (
	KindTimeout       = "timeout"
	KindNonZeroExit   = "non-zero-exit"
	KindBusy          = "busy"
	KindNoSuchProfile = "no-such-profile"
	KindInternal      = "internal"
)

// Kind classifies err into one of the Kind constants. A nil error
// yields the empty string.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoSuchProfile):
		return KindNoSuchProfile
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrBusy):
		return KindBusy
	}
	var ee *ExecError
	if errors.As(err, &ee) && ee.ExitCode > 0 {
		return KindNonZeroExit
	}
	return KindInternal
}

// ── Structured error types ───────────────────────────────────────────

// ExecError represents a failed external command.
type ExecError struct {
	Cmd      string // full command line, space-joined
	ExitCode int    // process exit code, -1 if the process never exited cleanly
	Stderr   string // trimmed stderr tail, empty if nothing was written
	Err      error  // underlying cause (ErrTimeout, spawn failure, exit error)
}

func (e *ExecError) Error() string {
	msg := e.Cmd
	switch {
	case errors.Is(e.Err, ErrTimeout):
		msg += ": " + e.Err.Error()
	case e.ExitCode > 0:
		msg += fmt.Sprintf(": exit status %d", e.ExitCode)
	case e.Err != nil:
		msg += ": " + e.Err.Error()
	}
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *ExecError) Unwrap() error { return e.Err }

// TransitionError represents a mode change that did not complete. The
// device keeps its previous mode when one of these is returned.
type TransitionError struct {
	From    string // mode the device was in
	To      string // mode that was requested
	Trigger string // who asked: "button", "web", "monitor", "startup"
	Err     error  // underlying cause
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("transition %s -> %s (%s): %v", e.From, e.To, e.Trigger, e.Err)
}

func (e *TransitionError) Unwrap() error { return e.Err }

// ConfigError represents an invalid configuration value.
type ConfigError struct {
	Field   string      // config field path, e.g. "monitor.failure_threshold"
	Value   interface{} // the invalid value (nil if missing)
	Message string      // human-readable explanation
	Hint    string      // suggestion for the user (optional)
}

func (e *ConfigError) Error() string {
	msg := "config: " + e.Field
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// ── Constructors ─────────────────────────────────────────────────────

// WrapTransition creates a TransitionError around err.
func WrapTransition(from, to, trigger string, err error) *TransitionError {
	return &TransitionError{From: from, To: to, Trigger: trigger, Err: err}
}

// ── Re-exports for convenience ───────────────────────────────────────
//
// These allow callers to use netmoded/internal/errors as a drop-in
// replacement for the standard library in common operations.

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }

// New is [errors.New].
func New(text string) error { return errors.New(text) }

// Unwrap is [errors.Unwrap].
func Unwrap(err error) error { return errors.Unwrap(err) }

// Join is [errors.Join].
func Join(errs ...error) error { return errors.Join(errs...) }
