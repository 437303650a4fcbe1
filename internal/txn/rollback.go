package txn

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/shayonpal/lifeos-vault-core/internal/wal"
	"github.com/shayonpal/lifeos-vault-core/pkg/fs"
)

// RollbackOutcome reports what happened when a transaction's effects were
// undone, either as part of the same process's abort path or from a
// later boot-recovery pass inspecting a leftover WAL entry.
type RollbackOutcome struct {
	CorrelationID uuid.UUID
	AlreadyClean  bool // no WAL entry existed; nothing to do
	Succeeded     bool
	RestoredCount int
	Failed        []string
	Instructions  string
}

// Rollback performs the abort/rollback path: mark the WAL entry aborted,
// undo the rename if it happened, and restore every promoted file from
// its prepare-time backup. If every step succeeds the WAL entry is
// deleted; if any step fails, the WAL entry is retained with phase=abort
// and the returned outcome carries human-readable recovery instructions
// (Instructions). The instructions are not written into the retained WAL
// entry itself.
//
// Rollback is idempotent: running it twice on an already-clean
// correlation ID is a no-op reporting AlreadyClean.
func (m *Manager) Rollback(ctx context.Context, id uuid.UUID) (RollbackOutcome, error) {
	entry, err := m.walMgr.Read(id)
	if err != nil {
		if errors.Is(err, wal.ErrNotFound) {
			return RollbackOutcome{CorrelationID: id, AlreadyClean: true, Succeeded: true}, nil
		}

		return RollbackOutcome{}, &Error{Kind: KindRollbackFailed, CorrelationID: id, Err: err}
	}

	entry.Phase = wal.PhaseAborted
	if err := m.walMgr.Update(entry, wal.PhaseAborted, m.now()); err != nil {
		return RollbackOutcome{}, &Error{Kind: KindRollbackFailed, CorrelationID: id, Phase: wal.PhaseAborted, Err: err}
	}

	renameRestored := true

	if entry.RenameDone {
		if err := m.fsys.Rename(entry.NewPath, entry.OldPath); err != nil {
			renameRestored = false
		} else {
			entry.RenameDone = false
		}
	}

	var failed []string

	opts := fs.DurableOptions(m.perm)

	restored := 0

	for i := range entry.Changes {
		c := &entry.Changes[i]

		if !c.Promoted {
			m.cleanupStageFiles(*c)

			continue
		}

		target := c.Path
		if c.Path == entry.OldPath && !renameRestored {
			target = entry.NewPath
		}

		backup, err := m.reader.ReadFile(ctx, c.BackupPath)
		if err != nil {
			failed = append(failed, target)

			continue
		}

		if err := m.retry.WriteBytes(ctx, target, backup, opts); err != nil {
			failed = append(failed, target)

			continue
		}

		c.Promoted = false
		restored++
		m.cleanupStageFiles(*c)
	}

	if !renameRestored {
		failed = append([]string{fmt.Sprintf("rename: %s -> %s", entry.NewPath, entry.OldPath)}, failed...)
	}

	if len(failed) == 0 {
		if err := m.walMgr.Delete(id); err != nil {
			return RollbackOutcome{}, &Error{Kind: KindRollbackFailed, CorrelationID: id, Err: err}
		}

		return RollbackOutcome{CorrelationID: id, Succeeded: true, RestoredCount: restored}, nil
	}

	instructions := m.manualRecoveryInstructions(id, failed)

	if err := m.walMgr.Update(entry, wal.PhaseAborted, m.now()); err != nil {
		return RollbackOutcome{}, &Error{Kind: KindRollbackFailed, CorrelationID: id, Err: err}
	}

	return RollbackOutcome{
		CorrelationID: id,
		Succeeded:     false,
		RestoredCount: restored,
		Failed:        failed,
		Instructions:  instructions,
	}, nil
}

func (m *Manager) cleanupStageFiles(c wal.FileChange) {
	if c.StagedPath != "" {
		_ = m.fsys.Remove(c.StagedPath)
	}

	if c.BackupPath != "" {
		_ = m.fsys.Remove(c.BackupPath)
	}
}

// manualRecoveryInstructions builds the human-readable text attached to a
// failed rollback. Retention is indefinite, a conservative default; the
// operator is expected to fix the listed files and delete the WAL entry
// by hand once done.
func (m *Manager) manualRecoveryInstructions(id uuid.UUID, failed []string) string {
	walPath, _ := m.walMgr.Path(id)

	return fmt.Sprintf(
		"rollback for transaction %s could not restore: %v. "+
			"The WAL entry at %s has been retained indefinitely; "+
			"restore the listed paths from their .orig backup siblings by hand, "+
			"then delete the WAL entry once verified.",
		id, failed, walPath,
	)
}
