package txn

import (
	"context"
	"errors"
	"time"

	"github.com/shayonpal/lifeos-vault-core/internal/wal"
)

// Run executes phases 2 through 5 against an already-built plan: prepare,
// validate, commit, success. Any failure triggers rollback (the
// abort/rollback path) and returns a *Error carrying the original
// failure's Kind alongside the rollback's outcome.
func (m *Manager) Run(ctx context.Context, plan PlanResult) (Result, error) {
	var timings []PhaseTiming

	timed := func(phase string, fn func() error) error {
		start := time.Now()
		err := fn()
		timings = append(timings, PhaseTiming{Phase: phase, Duration: time.Since(start)})

		return err
	}

	var entry wal.Entry

	if err := timed("prepare", func() error {
		var err error
		entry, err = m.Prepare(ctx, plan)

		return err
	}); err != nil {
		return Result{}, m.abortAndWrap(ctx, plan.Manifest, err)
	}

	if err := timed("validate", func() error {
		var err error
		entry, err = m.Validate(ctx, plan.Manifest, entry)

		return err
	}); err != nil {
		return Result{}, m.abortAndWrap(ctx, plan.Manifest, err)
	}

	if err := timed("commit", func() error {
		var err error
		entry, err = m.Commit(ctx, plan.Manifest, entry)

		return err
	}); err != nil {
		return Result{}, m.abortAndWrap(ctx, plan.Manifest, err)
	}

	if err := timed("success", func() error {
		return m.Success(entry)
	}); err != nil {
		return Result{}, err
	}

	return Result{
		CorrelationID: plan.Manifest.CorrelationID,
		OldPath:       plan.Manifest.OldPath,
		NewPath:       plan.Manifest.NewPath,
		FilesAffected: len(plan.Manifest.AffectedFiles),
		PhaseTimings:  timings,
	}, nil
}

// abortAndWrap rolls back the transaction after a phase failure and
// attaches the rollback outcome to the original error, never letting a
// later rollback success mask what actually failed.
func (m *Manager) abortAndWrap(ctx context.Context, manifest Manifest, original error) error {
	var txErr *Error
	if !errors.As(original, &txErr) {
		txErr = &Error{Kind: KindFailed, CorrelationID: manifest.CorrelationID, Err: original}
	}

	outcome, rbErr := m.Rollback(ctx, manifest.CorrelationID)

	switch {
	case rbErr != nil:
		txErr.RollbackStatus = RollbackFailed
		txErr.RecoveryInstructions = rbErr.Error()
	case outcome.AlreadyClean, outcome.Succeeded:
		txErr.RollbackStatus = RollbackSucceeded
	default:
		txErr.RollbackStatus = RollbackFailed
		txErr.AffectedFiles = outcome.Failed
		txErr.RecoveryInstructions = outcome.Instructions

		if path, err := m.walMgr.Path(manifest.CorrelationID); err == nil {
			txErr.WALPath = path
		}
	}

	return txErr
}
