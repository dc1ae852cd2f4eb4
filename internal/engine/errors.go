package engine

import (
	"errors"
	"fmt"

	"github.com/re-cinq/burl/internal/lock"
)

// Kind distinguishes the four error categories §7 maps onto exit codes.
type Kind int

const (
	KindUser Kind = iota
	KindValidation
	KindGit
	KindLock
)

// Error is the single error type every engine operation returns, carrying
// enough information for the CLI layer to pick an exit code and print a
// useful message without inspecting string contents.
type Error struct {
	Kind    Kind
	Message string
	Wrapped error
}

func (e *Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Wrapped)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Wrapped }

// ExitCode maps an error's Kind to the §6 exit code policy. A nil error is
// exit 0 and a bare *lock.ContentionError is exit 4; any other error that
// isn't *Error is exit 1, the conservative default for an error this
// package didn't classify.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var e *Error
	if errors.As(err, &e) {
		switch e.Kind {
		case KindUser:
			return 1
		case KindValidation:
			return 2
		case KindGit:
			return 3
		case KindLock:
			return 4
		}
	}
	var contention *lock.ContentionError
	if errors.As(err, &contention) {
		return 4
	}
	return 1
}

// UserError wraps msg as a user error (exit 1): bad arguments, uninitialized
// workflow, invalid config, bucket mismatch.
func UserError(msg string, args ...any) *Error {
	return &Error{Kind: KindUser, Message: fmt.Sprintf(msg, args...)}
}

// ValidationError wraps msg as a validation error (exit 2): scope, stub, or
// command-step pipeline failure.
func ValidationError(msg string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(msg, args...)}
}

// GitError wraps an underlying git failure (exit 3).
func GitError(msg string, wrapped error) *Error {
	return &Error{Kind: KindGit, Message: msg, Wrapped: wrapped}
}

// LockError wraps a lock-contention failure (exit 4).
func LockError(msg string, wrapped error) *Error {
	return &Error{Kind: KindLock, Message: msg, Wrapped: wrapped}
}

// wrapLockErr converts a raw error from the lock package into an engine
// *Error, preserving lock contention as KindLock.
func wrapLockErr(action string, err error) error {
	if err == nil {
		return nil
	}
	var contention *lock.ContentionError
	if errors.As(err, &contention) {
		return LockError(fmt.Sprintf("could not acquire lock for %s", action), err)
	}
	return UserError("acquiring lock for %s: %v", action, err)
}
