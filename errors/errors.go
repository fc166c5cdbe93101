// Package errors provides error handling for scrapstudio.
//
// This package re-exports github.com/cockroachdb/errors so that every error
// carries a stack trace, wrapping context and optional operator hints.
//
// Usage:
//
//	if err := repo.Save(name, content); err != nil {
//	    return errors.Wrapf(err, "save %s", name)
//	}
//
//	if errors.IsInvalidName(err) {
//	    // reject before touching the filesystem
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
	Mark         = crdb.Mark
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
)

// Sentinel errors. Match them with errors.Is; wrap them to add context.
var (
	// ErrAlreadyRunning rejects a launch while another job is still running.
	// Not fatal: the caller may poll and retry.
	ErrAlreadyRunning = New("a job is already running")

	// ErrStopped rejects a launch once the orchestrator's worker is gone,
	// either through Stop or a cancelled parent context. Fatal for that
	// orchestrator.
	ErrStopped = New("orchestrator is stopped")

	// ErrInvalidParameters rejects a launch whose parameters cannot be run.
	ErrInvalidParameters = New("invalid job parameters")

	// ErrInvalidName is a script name that is not a single segment with the
	// script extension. Always raised before any filesystem access.
	ErrInvalidName = New("invalid script name")

	// ErrNotFound is a missing script, backup or script root
	ErrNotFound = New("not found")

	// ErrWriteFailed means the backup or the replace step of a save failed.
	// The live file is left unmodified.
	ErrWriteFailed = New("write failed")

	// ErrSyntax is returned when the syntax check rejects script content
	ErrSyntax = New("syntax error")

	// ErrEngineFault is a failure raised inside the scraping engine. It is
	// recorded on the job and never returned to the launcher.
	ErrEngineFault = New("engine fault")
)

// IsAlreadyRunning checks if an error is or wraps ErrAlreadyRunning
func IsAlreadyRunning(err error) bool {
	return err != nil && Is(err, ErrAlreadyRunning)
}

// IsStopped checks if an error is or wraps ErrStopped
func IsStopped(err error) bool {
	return err != nil && Is(err, ErrStopped)
}

// IsInvalidParameters checks if an error is or wraps ErrInvalidParameters
func IsInvalidParameters(err error) bool {
	return err != nil && Is(err, ErrInvalidParameters)
}

// IsInvalidName checks if an error is or wraps ErrInvalidName
func IsInvalidName(err error) bool {
	return err != nil && Is(err, ErrInvalidName)
}

// IsNotFound checks if an error is or wraps ErrNotFound
func IsNotFound(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsWriteFailed checks if an error is or wraps ErrWriteFailed
func IsWriteFailed(err error) bool {
	return err != nil && Is(err, ErrWriteFailed)
}

// IsSyntax checks if an error is or wraps ErrSyntax
func IsSyntax(err error) bool {
	return err != nil && Is(err, ErrSyntax)
}

// IsEngineFault checks if an error is or wraps ErrEngineFault
func IsEngineFault(err error) bool {
	return err != nil && Is(err, ErrEngineFault)
}

// NewNotFoundError creates a not-found error with a formatted message
func NewNotFoundError(format string, args ...interface{}) error {
	return Wrap(ErrNotFound, Newf(format, args...).Error())
}

// NewInvalidNameError creates an invalid-name error with a formatted message
func NewInvalidNameError(format string, args ...interface{}) error {
	return Wrap(ErrInvalidName, Newf(format, args...).Error())
}

// WrapWriteFailed marks err as a write failure while keeping its chain, so
// both errors.Is(err, ErrWriteFailed) and checks against the cause succeed.
func WrapWriteFailed(err error, msg string) error {
	if err == nil {
		return nil
	}
	return Mark(Wrap(err, msg), ErrWriteFailed)
}

// WrapEngineFault marks err as an engine fault while keeping its chain
func WrapEngineFault(err error, msg string) error {
	if err == nil {
		return nil
	}
	return Mark(Wrap(err, msg), ErrEngineFault)
}
