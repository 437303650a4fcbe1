package txn_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/shayonpal/lifeos-vault-core/internal/testutil"
	"github.com/shayonpal/lifeos-vault-core/internal/txn"
	"github.com/shayonpal/lifeos-vault-core/pkg/fs"
)

func newTestManager(t *testing.T) *txn.Manager {
	t.Helper()

	walDir := filepath.Join(t.TempDir(), "wal")

	ids := make(chan uuid.UUID, 64)
	for i := 0; i < cap(ids); i++ {
		ids <- uuid.New()
	}

	clock := testutil.NewClock()

	return txn.NewManager(fs.NewReal(), walDir,
		txn.WithClock(clock.Now),
		txn.WithIDGen(func() uuid.UUID { return <-ids }),
	)
}

func writeNote(t *testing.T, root, rel, content string) string {
	t.Helper()

	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestRun_RenamesFileAndRewritesInboundLinks(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeNote(t, root, "Old Name.md", "hello\n")
	linker := writeNote(t, root, "Linker.md", "see [[Old Name]] for details\n")

	mgr := newTestManager(t)

	plan, err := mgr.Plan(context.Background(), txn.Input{
		VaultRoot:   root,
		OldPath:     "Old Name.md",
		NewFilename: "New Name.md",
		UpdateLinks: true,
	})
	require.NoError(t, err)
	require.Len(t, plan.Manifest.AffectedFiles, 2)

	result, err := mgr.Run(context.Background(), plan)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "New Name.md"), result.NewPath)
	require.Equal(t, 2, result.FilesAffected)

	_, err = os.Stat(filepath.Join(root, "Old Name.md"))
	require.True(t, os.IsNotExist(err))

	newContent, err := os.ReadFile(filepath.Join(root, "New Name.md"))
	require.NoError(t, err)
	require.Equal(t, "hello\n", string(newContent))

	linkerContent, err := os.ReadFile(linker)
	require.NoError(t, err)
	require.Equal(t, "see [[New Name]] for details\n", string(linkerContent))

	entries, err := os.ReadDir(mgr.WAL().Dir())
	require.NoError(t, err)
	require.Len(t, entries, 1) // README.txt only, transaction's own entry deleted by Success
}

func TestRun_WithoutUpdateLinks_LeavesOtherNotesUntouched(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeNote(t, root, "Old Name.md", "hello\n")
	linker := writeNote(t, root, "Linker.md", "see [[Old Name]]\n")

	mgr := newTestManager(t)

	plan, err := mgr.Plan(context.Background(), txn.Input{
		VaultRoot:   root,
		OldPath:     "Old Name.md",
		NewFilename: "New Name.md",
		UpdateLinks: false,
	})
	require.NoError(t, err)
	require.Len(t, plan.Manifest.AffectedFiles, 1)

	_, err = mgr.Run(context.Background(), plan)
	require.NoError(t, err)

	linkerContent, err := os.ReadFile(linker)
	require.NoError(t, err)
	require.Equal(t, "see [[Old Name]]\n", string(linkerContent))
}

func TestRun_PreservesEmbedAnchorAndAlias(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeNote(t, root, "Old.md", "x")
	n1 := writeNote(t, root, "N1.md", "see [[Old]] now")
	n2 := writeNote(t, root, "N2.md", "![[Old#Section|Label]] and [[Old#^abc|Alias]]")

	mgr := newTestManager(t)

	plan, err := mgr.Plan(context.Background(), txn.Input{
		VaultRoot:   root,
		OldPath:     "Old.md",
		NewFilename: "New",
		UpdateLinks: true,
	})
	require.NoError(t, err)

	result, err := mgr.Run(context.Background(), plan)
	require.NoError(t, err)
	require.Equal(t, 3, result.FilesAffected)

	content, err := os.ReadFile(n1)
	require.NoError(t, err)
	require.Equal(t, "see [[New]] now", string(content))

	content, err = os.ReadFile(n2)
	require.NoError(t, err)
	require.Equal(t, "![[New#Section|Label]] and [[New#^abc|Alias]]", string(content))

	renamed, err := os.ReadFile(filepath.Join(root, "New.md"))
	require.NoError(t, err)
	require.Equal(t, "x", string(renamed))
}

func TestRun_RewritesSelfLinkAtNewPath(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeNote(t, root, "Old.md", "see also [[Old#History]]\n")

	mgr := newTestManager(t)

	plan, err := mgr.Plan(context.Background(), txn.Input{
		VaultRoot:   root,
		OldPath:     "Old.md",
		NewFilename: "New",
		UpdateLinks: true,
	})
	require.NoError(t, err)
	require.Len(t, plan.Manifest.AffectedFiles, 1)
	require.Len(t, plan.Changes, 1)

	_, err = mgr.Run(context.Background(), plan)
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(root, "Old.md"))
	require.True(t, os.IsNotExist(statErr))

	content, err := os.ReadFile(filepath.Join(root, "New.md"))
	require.NoError(t, err)
	require.Equal(t, "see also [[New#History]]\n", string(content))
}

func TestPlan_AcceptsStemWithoutExtension(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeNote(t, root, "Old.md", "x\n")

	mgr := newTestManager(t)

	plan, err := mgr.Plan(context.Background(), txn.Input{
		VaultRoot:   root,
		OldPath:     "Old",
		NewFilename: "New",
	})
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(plan.Manifest.OldPath, "Old.md"))
	require.True(t, strings.HasSuffix(plan.Manifest.NewPath, "New.md"))
}

func TestPlan_RejectsMissingSource(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	mgr := newTestManager(t)

	_, err := mgr.Plan(context.Background(), txn.Input{
		VaultRoot:   root,
		OldPath:     "Nope.md",
		NewFilename: "Also Nope.md",
	})
	require.ErrorIs(t, err, txn.ErrKind(txn.KindFileNotFound))
}

func TestPlan_RejectsExistingTarget(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeNote(t, root, "A.md", "a\n")
	writeNote(t, root, "B.md", "b\n")

	mgr := newTestManager(t)

	_, err := mgr.Plan(context.Background(), txn.Input{
		VaultRoot:   root,
		OldPath:     "A.md",
		NewFilename: "B.md",
	})
	require.ErrorIs(t, err, txn.ErrKind(txn.KindFileExists))
}

func TestValidate_AbortsOnStaleContent(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeNote(t, root, "Old Name.md", "hello\n")
	linker := writeNote(t, root, "Linker.md", "see [[Old Name]]\n")

	mgr := newTestManager(t)

	plan, err := mgr.Plan(context.Background(), txn.Input{
		VaultRoot:   root,
		OldPath:     "Old Name.md",
		NewFilename: "New Name.md",
		UpdateLinks: true,
	})
	require.NoError(t, err)

	// Simulate a concurrent edit of the linking note between Plan and Run.
	require.NoError(t, os.WriteFile(linker, []byte("see [[Old Name]] but edited\n"), 0o644))

	_, err = mgr.Run(context.Background(), plan)
	require.ErrorIs(t, err, txn.ErrKind(txn.KindStaleContent))

	// The renamed note itself must be untouched: rollback restores state.
	_, statErr := os.Stat(filepath.Join(root, "Old Name.md"))
	require.NoError(t, statErr)

	content, err := os.ReadFile(linker)
	require.NoError(t, err)
	require.Equal(t, "see [[Old Name]] but edited\n", string(content))
}

func TestRollback_UndoesAFullyCommittedTransaction(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeNote(t, root, "Old.md", "content\n")
	linker := writeNote(t, root, "Linker.md", "[[Old]] here\n")

	mgr := newTestManager(t)

	plan, err := mgr.Plan(context.Background(), txn.Input{
		VaultRoot:   root,
		OldPath:     "Old.md",
		NewFilename: "New",
		UpdateLinks: true,
	})
	require.NoError(t, err)

	entry, err := mgr.Prepare(context.Background(), plan)
	require.NoError(t, err)

	entry, err = mgr.Commit(context.Background(), plan.Manifest, entry)
	require.NoError(t, err)

	// The commit landed: rename done, link rewritten.
	rewritten, err := os.ReadFile(linker)
	require.NoError(t, err)
	require.Equal(t, "[[New]] here\n", string(rewritten))

	// Walking it back restores every pre-image and the original name.
	outcome, err := mgr.Rollback(context.Background(), plan.Manifest.CorrelationID)
	require.NoError(t, err)
	require.True(t, outcome.Succeeded)

	restored, err := os.ReadFile(linker)
	require.NoError(t, err)
	require.Equal(t, "[[Old]] here\n", string(restored))

	original, err := os.ReadFile(filepath.Join(root, "Old.md"))
	require.NoError(t, err)
	require.Equal(t, "content\n", string(original))

	_, statErr := os.Stat(filepath.Join(root, "New.md"))
	require.True(t, os.IsNotExist(statErr))
}

func TestRollback_IsIdempotentAgainstAlreadyCleanID(t *testing.T) {
	t.Parallel()

	mgr := newTestManager(t)

	outcome, err := mgr.Rollback(context.Background(), uuid.New())
	require.NoError(t, err)
	require.True(t, outcome.AlreadyClean)
	require.True(t, outcome.Succeeded)

	// Running it again reports the same thing.
	outcome2, err := mgr.Rollback(context.Background(), outcome.CorrelationID)
	require.NoError(t, err)
	require.True(t, outcome2.AlreadyClean)
}
