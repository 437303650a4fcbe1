package rewrite_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shayonpal/lifeos-vault-core/internal/rewrite"
	"github.com/shayonpal/lifeos-vault-core/internal/scan"
	"github.com/shayonpal/lifeos-vault-core/internal/wikilink"
	"github.com/shayonpal/lifeos-vault-core/pkg/fs"
)

func noteLinks(path string, content []byte) scan.NoteLinks {
	return scan.NoteLinks{Path: path, Links: wikilink.FindAll(content, path, false)}
}

func TestRender_RewritesMatchingLinksOnly(t *testing.T) {
	t.Parallel()

	contentA := []byte("see [[Old Name]] and [[Unrelated]]\n")
	contentB := []byte("no links here\n")

	notes := []scan.NoteLinks{
		noteLinks("a.md", contentA),
		noteLinks("b.md", contentB),
	}

	original := map[string][]byte{"a.md": contentA, "b.md": contentB}

	changes, err := rewrite.Render(notes, original, "Old Name", "New Name", scan.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, changes, 1)

	got := changes[0]
	require.Equal(t, "a.md", got.Path)
	require.Equal(t, "see [[New Name]] and [[Unrelated]]\n", string(got.NewContent))
	require.Equal(t, 1, got.LinksUpdated)
}

func TestRender_PreservesAnchorAndAlias(t *testing.T) {
	t.Parallel()

	content := []byte("[[Old Name#^block|Shown Text]]\n")

	notes := []scan.NoteLinks{noteLinks("a.md", content)}
	original := map[string][]byte{"a.md": content}

	changes, err := rewrite.Render(notes, original, "Old Name", "New Name", scan.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, changes, 1)
	require.Equal(t, "[[New Name#^block|Shown Text]]\n", string(changes[0].NewContent))
}

func TestRender_MultipleOccurrencesInOneFile(t *testing.T) {
	t.Parallel()

	content := []byte("[[Old]] then later [[Old|alias]] and [[Old#heading]]\n")

	notes := []scan.NoteLinks{noteLinks("a.md", content)}
	original := map[string][]byte{"a.md": content}

	changes, err := rewrite.Render(notes, original, "Old", "New", scan.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, changes, 1)
	require.Equal(t, 3, changes[0].LinksUpdated)
	require.Equal(t, "[[New]] then later [[New|alias]] and [[New#heading]]\n", string(changes[0].NewContent))
}

func TestRender_UnmatchedNoteProducesNoChange(t *testing.T) {
	t.Parallel()

	content := []byte("[[Unrelated]]\n")
	notes := []scan.NoteLinks{noteLinks("a.md", content)}
	original := map[string][]byte{"a.md": content}

	changes, err := rewrite.Render(notes, original, "Target", "Renamed", scan.DefaultOptions())
	require.NoError(t, err)
	require.Empty(t, changes)
}

func TestRender_MissingOriginalIsAnError(t *testing.T) {
	t.Parallel()

	content := []byte("[[Target]]\n")
	notes := []scan.NoteLinks{noteLinks("a.md", content)}

	_, err := rewrite.Render(notes, map[string][]byte{}, "Target", "Renamed", scan.DefaultOptions())
	require.Error(t, err)
}

func TestCommit_WritesInLexicographicOrder(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	real := fs.NewReal()
	writer := fs.NewAtomicWriter(real)

	changes := []rewrite.FileChange{
		{Path: dir + "/b.md", NewContent: []byte("b")},
		{Path: dir + "/a.md", NewContent: []byte("a")},
	}

	written, err := rewrite.Commit(context.Background(), writer, changes, 0o644)
	require.NoError(t, err)
	require.Equal(t, []string{dir + "/a.md", dir + "/b.md"}, written)

	got, err := real.ReadFile(dir + "/a.md")
	require.NoError(t, err)
	require.Equal(t, "a", string(got))
}

func TestDirect_RendersAndWrites(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	real := fs.NewReal()

	path := dir + "/a.md"
	content := []byte("[[Old]]\n")
	require.NoError(t, real.MkdirAll(dir, 0o755))
	require.NoError(t, real.WriteFile(path, content, 0o644))

	notes := []scan.NoteLinks{noteLinks(path, content)}
	original := map[string][]byte{path: content}

	changes, err := rewrite.Direct(context.Background(), real, notes, original, "Old", "New", scan.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, changes, 1)

	got, err := real.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "[[New]]\n", string(got))
}
