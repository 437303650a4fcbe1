package vaultpath_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shayonpal/lifeos-vault-core/internal/vaultpath"
)

func TestNormalize_RelativeUnderRoot(t *testing.T) {
	t.Parallel()

	got, err := vaultpath.Normalize("/vault", "notes/foo.md")
	require.NoError(t, err)
	assert.Equal(t, "/vault/notes/foo.md", got)
}

func TestNormalize_AbsoluteUnderRoot(t *testing.T) {
	t.Parallel()

	got, err := vaultpath.Normalize("/vault", "/vault/notes/foo.md")
	require.NoError(t, err)
	assert.Equal(t, "/vault/notes/foo.md", got)
}

func TestNormalize_RejectsEscape(t *testing.T) {
	t.Parallel()

	_, err := vaultpath.Normalize("/vault", "../outside.md")
	require.Error(t, err)
	assert.ErrorIs(t, err, vaultpath.ErrEscapesRoot)
}

func TestNormalize_RejectsAbsoluteEscape(t *testing.T) {
	t.Parallel()

	_, err := vaultpath.Normalize("/vault", "/etc/passwd")
	require.Error(t, err)
	assert.ErrorIs(t, err, vaultpath.ErrEscapesRoot)
}

func TestNormalize_Idempotent(t *testing.T) {
	t.Parallel()

	first, err := vaultpath.Normalize("/vault", "notes/../notes/foo.md")
	require.NoError(t, err)

	second, err := vaultpath.Normalize("/vault", first)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestNormalize_RootItselfIsNotAnEscape(t *testing.T) {
	t.Parallel()

	got, err := vaultpath.Normalize("/vault", ".")
	require.NoError(t, err)
	assert.Equal(t, "/vault", got)
}

func TestStem(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "foo", vaultpath.Stem("notes/foo.md"))
	assert.Equal(t, "foo", vaultpath.Stem("notes/foo.MD"))
	assert.Equal(t, "foo.txt", vaultpath.Stem("notes/foo.txt"))
}

func TestWithMarkdownExt(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "foo.md", vaultpath.WithMarkdownExt("foo"))
	assert.Equal(t, "foo.md", vaultpath.WithMarkdownExt("foo.md"))
	assert.Equal(t, "foo.MD", vaultpath.WithMarkdownExt("foo.MD"))
}

func TestEqualStem(t *testing.T) {
	t.Parallel()

	assert.True(t, vaultpath.EqualStem("Foo", "foo", false))
	assert.False(t, vaultpath.EqualStem("Foo", "foo", true))
}

func TestEscapeRegex(t *testing.T) {
	t.Parallel()

	got := vaultpath.EscapeRegex("a.b+c(d)")
	assert.Equal(t, `a\.b\+c\(d\)`, got)
}

func TestClassifyAnchor(t *testing.T) {
	t.Parallel()

	kind, val := vaultpath.ClassifyAnchor("")
	assert.Equal(t, vaultpath.AnchorNone, kind)
	assert.Empty(t, val)

	kind, val = vaultpath.ClassifyAnchor("Heading One")
	assert.Equal(t, vaultpath.AnchorHeading, kind)
	assert.Equal(t, "Heading One", val)

	kind, val = vaultpath.ClassifyAnchor("^abc123")
	assert.Equal(t, vaultpath.AnchorBlock, kind)
	assert.Equal(t, "^abc123", val)
}
