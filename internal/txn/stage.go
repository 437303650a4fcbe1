package txn

import (
	"path/filepath"

	"github.com/google/uuid"
)

// stagedPath returns the sibling temp file Prepare writes an affected
// file's rendered post-image to: a file in the same directory as path,
// carrying the correlation ID so boot recovery can identify orphans by
// transaction.
func stagedPath(path string, id uuid.UUID) string {
	dir, base := filepath.Split(path)

	return filepath.Join(dir, ".stage-"+id.String()+"-"+base)
}

// backupPath returns the sibling file Prepare writes an affected file's
// pre-image to. Rollback reads from here once the staged post-image has
// already been promoted onto the target and consumed.
func backupPath(path string, id uuid.UUID) string {
	dir, base := filepath.Split(path)

	return filepath.Join(dir, ".stage-"+id.String()+"-"+base+".orig")
}
