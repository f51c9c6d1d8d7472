package fencex

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadySignaled      = errors.New("fence already signaled")
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrCancelled            = errors.New("transaction cancelled")
	ErrFenceNotFound        = errors.New("fence not found")
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrTransactionCompleted = errors.New("transaction already completed")
	ErrEngineClosed         = errors.New("engine closed")
	ErrIllegalState         = errors.New("illegal state")
)

// ErrorCode is the outcome carried by a signaled fence.  Zero means success,
// anything else is a failure code which is propagated unchanged through
// dependent transactions.
type ErrorCode int32

const (
	ErrorCodeOK ErrorCode = 0

	// ErrorCodeInvalid mirrors -EINVAL.
	ErrorCodeInvalid ErrorCode = -22

	// ErrorCodeCancelled mirrors -ECANCELED and is what cancelled
	// transactions report to their completion fences.
	ErrorCodeCancelled ErrorCode = -125
)

// Err returns nil for ErrorCodeOK and a PropagatedError otherwise.
func (c ErrorCode) Err() error {
	if c == ErrorCodeOK {
		return nil
	}
	return PropagatedError{Code: c}
}

// PropagatedError is the error form of a failed fence or transaction outcome.
type PropagatedError struct {
	Code ErrorCode
}

func (e PropagatedError) Error() string {
	if e.Code == ErrorCodeCancelled {
		return fmt.Sprintf("propagated error code %d (cancelled)", e.Code)
	}
	return fmt.Sprintf("propagated error code %d", e.Code)
}

func (e PropagatedError) Unwrap() error {
	if e.Code == ErrorCodeCancelled {
		return ErrCancelled
	}
	return nil
}

type invalidArgumentError struct {
	Message string
}

func (e invalidArgumentError) Error() string {
	return fmt.Sprintf("invalid argument: %s", e.Message)
}

func (e invalidArgumentError) Unwrap() error {
	return ErrInvalidArgument
}

type alreadySignaledError struct {
	FenceID FenceID
	Status  FenceStatus
}

func (e alreadySignaledError) Error() string {
	return fmt.Sprintf("fence %d already signaled (%s)", e.FenceID, e.Status)
}

func (e alreadySignaledError) Unwrap() error {
	return ErrAlreadySignaled
}

type fenceNotFoundError struct {
	FenceID FenceID
}

func (e fenceNotFoundError) Error() string {
	return fmt.Sprintf("fence %d not found", e.FenceID)
}

func (e fenceNotFoundError) Unwrap() error {
	return ErrFenceNotFound
}

type illegalStateError struct {
	Message string
}

func (e illegalStateError) Error() string {
	return fmt.Sprintf("illegal state: %s", e.Message)
}

func (e illegalStateError) Unwrap() error {
	return ErrIllegalState
}
