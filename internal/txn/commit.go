package txn

import (
	"context"
	"sort"

	"github.com/shayonpal/lifeos-vault-core/internal/wal"
	"github.com/shayonpal/lifeos-vault-core/pkg/fs"
)

// Commit performs phase 4 of the rename transaction: rename the note, then promote
// every staged post-image onto its target, in lexicographic target-path
// order. Each step updates the WAL before the next one runs, so a crash
// mid-commit leaves Rollback enough information to know exactly how far
// it got.
func (m *Manager) Commit(ctx context.Context, manifest Manifest, entry wal.Entry) (wal.Entry, error) {
	entry.Phase = wal.PhaseCommitted

	if err := m.walMgr.Update(entry, wal.PhaseCommitted, m.now()); err != nil {
		return entry, m.commitErr(manifest, err)
	}

	if !entry.RenameDone {
		if err := m.fsys.Rename(manifest.OldPath, manifest.NewPath); err != nil {
			return entry, m.commitErr(manifest, err)
		}

		entry.RenameDone = true

		if err := m.walMgr.Update(entry, wal.PhaseCommitted, m.now()); err != nil {
			return entry, m.commitErr(manifest, err)
		}
	}

	ordered := append([]wal.FileChange(nil), entry.Changes...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].TargetPath < ordered[j].TargetPath })

	opts := fs.DurableOptions(m.perm)

	for _, c := range ordered {
		if c.Promoted {
			continue
		}

		select {
		case <-ctx.Done():
			return entry, m.commitErr(manifest, ctx.Err())
		default:
		}

		data, err := m.reader.ReadFile(ctx, c.StagedPath)
		if err != nil {
			return entry, m.commitErr(manifest, err)
		}

		if err := m.retry.WriteBytes(ctx, c.TargetPath, data, opts); err != nil {
			return entry, m.commitErr(manifest, err)
		}

		markPromoted(&entry, c.Path)
		entry.Committed = append(entry.Committed, c.TargetPath)

		if err := m.walMgr.Update(entry, wal.PhaseCommitted, m.now()); err != nil {
			return entry, m.commitErr(manifest, err)
		}
	}

	return entry, nil
}

func markPromoted(entry *wal.Entry, path string) {
	for i := range entry.Changes {
		if entry.Changes[i].Path == path {
			entry.Changes[i].Promoted = true

			return
		}
	}
}

func (m *Manager) commitErr(manifest Manifest, err error) *Error {
	return &Error{
		Kind:          phaseErrKind(KindCommitFailed, err),
		CorrelationID: manifest.CorrelationID,
		Phase:         wal.PhaseCommitted,
		Err:           err,
	}
}
