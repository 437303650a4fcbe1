package txn

import (
	"context"
	"fmt"

	"github.com/shayonpal/lifeos-vault-core/internal/wal"
	"github.com/shayonpal/lifeos-vault-core/pkg/fs"
)

// Prepare performs phase 2 of the rename transaction: write the WAL entry (a crash past
// this point leaves a recoverable transaction), then materialize a staged
// temp file and a pre-image backup for every rendered change.
func (m *Manager) Prepare(ctx context.Context, plan PlanResult) (wal.Entry, error) {
	now := m.now()

	entry := wal.Entry{
		CorrelationID: plan.Manifest.CorrelationID,
		Phase:         wal.PhasePrepared,
		OldPath:       plan.Manifest.OldPath,
		NewPath:       plan.Manifest.NewPath,
		OldStem:       plan.Manifest.OldStem,
		NewStem:       plan.Manifest.NewStem,
		UpdateLinks:   plan.Manifest.UpdateLinks,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := m.walMgr.Write(entry); err != nil {
		return wal.Entry{}, m.prepareErr(plan.Manifest, err)
	}

	changes, err := m.stageChanges(ctx, plan)
	if err != nil {
		return entry, m.prepareErr(plan.Manifest, err)
	}

	entry.Changes = changes

	if err := m.walMgr.Update(entry, wal.PhasePrepared, m.now()); err != nil {
		return entry, m.prepareErr(plan.Manifest, err)
	}

	return entry, nil
}

func (m *Manager) stageChanges(ctx context.Context, plan PlanResult) ([]wal.FileChange, error) {
	id := plan.Manifest.CorrelationID
	changes := make([]wal.FileChange, 0, len(plan.Changes))

	for _, c := range plan.Changes {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		original, ok := plan.Originals[c.Path]
		if !ok {
			return nil, fmt.Errorf("missing original content for %q", c.Path)
		}

		staged := stagedPath(c.Path, id)
		backup := backupPath(c.Path, id)

		opts := fs.DurableOptions(m.perm)

		if err := m.retry.WriteBytes(ctx, backup, original, opts); err != nil {
			return nil, fmt.Errorf("stage backup for %q: %w", c.Path, err)
		}

		if err := m.retry.WriteBytes(ctx, staged, c.NewContent, opts); err != nil {
			return nil, fmt.Errorf("stage content for %q: %w", c.Path, err)
		}

		target := c.Path
		if c.Path == plan.Manifest.OldPath {
			target = plan.Manifest.NewPath
		}

		changes = append(changes, wal.FileChange{
			Path:         c.Path,
			OriginalHash: c.OriginalHash,
			NewHash:      c.NewHash,
			StagedPath:   staged,
			BackupPath:   backup,
			TargetPath:   target,
		})
	}

	return changes, nil
}

func (m *Manager) prepareErr(manifest Manifest, err error) *Error {
	return &Error{
		Kind:          phaseErrKind(KindPrepareFailed, err),
		CorrelationID: manifest.CorrelationID,
		Phase:         wal.PhasePrepared,
		Err:           err,
	}
}
