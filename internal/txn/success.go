package txn

import (
	"github.com/shayonpal/lifeos-vault-core/internal/wal"
)

// Success performs phase 5 of the rename transaction: record the terminal phase,
// remove residual staged/backup files, and delete the WAL entry. A
// "success-with-warnings" shape is deliberately not supported: failures to
// remove staged/backup files are ignored, not surfaced as a partial
// result, since the rename and every link update already landed.
func (m *Manager) Success(entry wal.Entry) error {
	entry.Phase = wal.PhaseSucceeded

	if err := m.walMgr.Update(entry, wal.PhaseSucceeded, m.now()); err != nil {
		return &Error{Kind: KindFailed, CorrelationID: entry.CorrelationID, Phase: wal.PhaseSucceeded, Err: err}
	}

	for _, c := range entry.Changes {
		_ = m.fsys.Remove(c.StagedPath)
		_ = m.fsys.Remove(c.BackupPath)
	}

	if err := m.walMgr.Delete(entry.CorrelationID); err != nil {
		return &Error{Kind: KindFailed, CorrelationID: entry.CorrelationID, Phase: wal.PhaseSucceeded, Err: err}
	}

	return nil
}
