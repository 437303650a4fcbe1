package txn

import (
	"context"
	"fmt"

	"github.com/shayonpal/lifeos-vault-core/internal/wal"
)

// Validate performs phase 3 of the rename transaction: re-read every affected file and
// compare its hash against the manifest's pre-image. Any mismatch means a
// concurrent sync process touched the file since Plan, and the
// transaction must abort rather than overwrite that change.
func (m *Manager) Validate(ctx context.Context, manifest Manifest, entry wal.Entry) (wal.Entry, error) {
	entry.Phase = wal.PhaseValidated

	if err := m.walMgr.Update(entry, wal.PhaseValidated, m.now()); err != nil {
		return entry, m.validateErr(manifest, KindValidateFailed, nil, err)
	}

	for _, af := range manifest.AffectedFiles {
		select {
		case <-ctx.Done():
			return entry, m.validateErr(manifest, KindValidateFailed, []string{af.Path}, ctx.Err())
		default:
		}

		content, err := m.reader.ReadFile(ctx, af.Path)
		if err != nil {
			return entry, m.validateErr(manifest, KindValidateFailed, []string{af.Path}, err)
		}

		if wal.HashBytes(content) != af.PreImageSHA256 {
			return entry, m.validateErr(manifest, KindStaleContent, []string{af.Path},
				fmt.Errorf("content of %q changed since plan", af.Path))
		}
	}

	return entry, nil
}

func (m *Manager) validateErr(manifest Manifest, kind ErrorKind, affected []string, err error) *Error {
	return &Error{
		Kind:          kind,
		CorrelationID: manifest.CorrelationID,
		Phase:         wal.PhaseValidated,
		AffectedFiles: affected,
		Err:           err,
	}
}
