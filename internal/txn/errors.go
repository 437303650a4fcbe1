package txn

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/shayonpal/lifeos-vault-core/internal/wal"
	"github.com/shayonpal/lifeos-vault-core/pkg/fs"
)

// ErrorKind is the error taxonomy every transactional failure is mapped
// onto before it reaches the front door.
type ErrorKind string

const (
	KindInvalidPath      ErrorKind = "INVALID_PATH"
	KindFileNotFound     ErrorKind = "FILE_NOT_FOUND"
	KindFileExists       ErrorKind = "FILE_EXISTS"
	KindPermissionDenied ErrorKind = "PERMISSION_DENIED"
	KindPlanFailed       ErrorKind = "TRANSACTION_PLAN_FAILED"
	KindPrepareFailed    ErrorKind = "TRANSACTION_PREPARE_FAILED"
	KindValidateFailed   ErrorKind = "TRANSACTION_VALIDATE_FAILED"
	KindStaleContent     ErrorKind = "TRANSACTION_STALE_CONTENT"
	KindCommitFailed     ErrorKind = "TRANSACTION_COMMIT_FAILED"
	KindRollbackFailed   ErrorKind = "TRANSACTION_ROLLBACK_FAILED"
	KindFailed           ErrorKind = "TRANSACTION_FAILED"
)

// RollbackStatus records what happened when a failed transaction tried to
// undo its own effects.
type RollbackStatus string

const (
	RollbackNotAttempted RollbackStatus = "not_attempted"
	RollbackSucceeded    RollbackStatus = "succeeded"
	RollbackFailed       RollbackStatus = "failed"
)

// Error is the structured error every transactional failure surfaces.
// It always carries enough for a caller to reproduce or resume: the
// correlation ID (once assigned), the phase that failed, every file the
// transaction touched, whether rollback ran and what happened, and,
// when rollback left state behind, the WAL path and recovery instructions.
type Error struct {
	Kind                 ErrorKind
	CorrelationID        uuid.UUID
	Phase                wal.Phase
	AffectedFiles        []string
	RollbackStatus       RollbackStatus
	WALPath              string
	RecoveryInstructions string
	Err                  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}

	msg := string(e.Kind)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}

	if e.CorrelationID != uuid.Nil {
		msg += fmt.Sprintf(" (correlation_id=%s phase=%s)", e.CorrelationID, e.Phase)
	}

	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.Err
}

// Is lets errors.Is(err, txn.ErrKind(KindStaleContent)) style checks work
// by comparing Kind alone, the same pattern pkg/fs.WriteError uses.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return t.Err == nil && t.Kind == e.Kind
}

// ErrKind builds a sentinel *Error carrying only a Kind, for use with
// errors.Is.
func ErrKind(k ErrorKind) *Error {
	return &Error{Kind: k}
}

// phaseErrKind maps a lower-level write failure onto the ErrorKind a given
// phase should report, so a *fs.WriteError's own taxonomy (BadPath,
// Transient, Fatal) is reflected in what the caller sees rather than
// collapsed into one generic per-phase kind.
//
// A BadPath failure means the parent directory the writer expected (the
// vault directory a note lives in, or the WAL/staging directory) doesn't
// exist - that's a misconfigured or missing path, not a transient or
// mid-transaction I/O fault, so it is reported as KindInvalidPath even
// though it surfaced from inside prepare or commit. Everything else keeps
// the phase's own default kind.
func phaseErrKind(defaultKind ErrorKind, err error) ErrorKind {
	var writeErr *fs.WriteError
	if errors.As(err, &writeErr) && writeErr.Kind == fs.WriteErrorBadPath {
		return KindInvalidPath
	}

	return defaultKind
}
