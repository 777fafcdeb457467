package models

import (
	"errors"
	"fmt"
)

// Kind enumerates every failure a customer can report, locally or over the wire.
type Kind string

const (
	KindNotInitialized          Kind = "NOT_INITIALIZED"
	KindInvalidAmount           Kind = "INVALID_AMOUNT"
	KindInsufficientFunds       Kind = "INSUFFICIENT_FUNDS"
	KindNoCohort                Kind = "NO_COHORT"
	KindRecipientUnknown        Kind = "RECIPIENT_UNKNOWN"
	KindCheckpointConflict      Kind = "CHECKPOINT_CONFLICT"
	KindCheckpointNotConsistent Kind = "CHECKPOINT_NOT_CONSISTENT"
	KindNoTentativeCheckpoint   Kind = "NO_TENTATIVE_CHECKPOINT"
	KindTentativeRejected       Kind = "TENTATIVE_REJECTED"
	KindCommitFailed            Kind = "COMMIT_FAILED"
	KindRollbackConflict        Kind = "ROLLBACK_CONFLICT"
	KindRollbackRefused         Kind = "ROLLBACK_REFUSED"
	KindNoPreparedRollback      Kind = "NO_PREPARED_ROLLBACK"
	KindRollbackFailed          Kind = "ROLLBACK_FAILED"
	KindExecutionSuspended      Kind = "EXECUTION_SUSPENDED"
	KindNoReply                 Kind = "NO_REPLY"
	KindMalformed               Kind = "MALFORMED"
	KindUnknownCommand          Kind = "UNKNOWN_COMMAND"
	KindPeerFailure             Kind = "PEER_FAILURE"
)

// Error is the tagged failure result of a customer operation.
// Two errors match under errors.Is when their kinds are equal.
type Error struct {
	Kind   Kind
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Errorf builds an *Error of the given kind with a formatted detail.
func Errorf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

var (
	ErrNotInitialized          = &Error{Kind: KindNotInitialized}
	ErrInvalidAmount           = &Error{Kind: KindInvalidAmount}
	ErrInsufficientFunds       = &Error{Kind: KindInsufficientFunds}
	ErrNoCohort                = &Error{Kind: KindNoCohort}
	ErrRecipientUnknown        = &Error{Kind: KindRecipientUnknown}
	ErrCheckpointConflict      = &Error{Kind: KindCheckpointConflict}
	ErrCheckpointNotConsistent = &Error{Kind: KindCheckpointNotConsistent}
	ErrNoTentativeCheckpoint   = &Error{Kind: KindNoTentativeCheckpoint}
	ErrTentativeRejected       = &Error{Kind: KindTentativeRejected}
	ErrCommitFailed            = &Error{Kind: KindCommitFailed}
	ErrRollbackConflict        = &Error{Kind: KindRollbackConflict}
	ErrRollbackRefused         = &Error{Kind: KindRollbackRefused}
	ErrNoPreparedRollback      = &Error{Kind: KindNoPreparedRollback}
	ErrRollbackFailed          = &Error{Kind: KindRollbackFailed}
	ErrExecutionSuspended      = &Error{Kind: KindExecutionSuspended}
	ErrNoReply                 = &Error{Kind: KindNoReply}
	ErrMalformed               = &Error{Kind: KindMalformed}
	ErrUnknownCommand          = &Error{Kind: KindUnknownCommand}
)

// KindOf extracts the kind of err. Errors that are not *Error report PEER_FAILURE.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindPeerFailure
}
