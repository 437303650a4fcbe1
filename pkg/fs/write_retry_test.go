package fs_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shayonpal/lifeos-vault-core/pkg/fs"
)

// flakyRenameFS fails the first n Rename calls with EBUSY, then delegates.
type flakyRenameFS struct {
	fs.FS
	failures int
}

func (f *flakyRenameFS) Rename(oldpath, newpath string) error {
	if f.failures > 0 {
		f.failures--

		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: syscall.EBUSY}
	}

	return f.FS.Rename(oldpath, newpath)
}

func TestRetryingWriter_RetriesTransientRenameError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	flaky := &flakyRenameFS{FS: fs.NewReal(), failures: 2}
	writer := fs.NewRetryingWriter(fs.NewAtomicWriter(flaky), flaky, fs.RetryPolicy{MaxAttempts: 5})

	path := filepath.Join(dir, "note.md")

	err := writer.WriteBytes(context.Background(), path, []byte("hello"), fs.AtomicWriteOptions{Perm: 0o644})
	require.NoError(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "hello", string(got))
}

func TestRetryingWriter_ExhaustsRetriesOnPersistentTransientError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	flaky := &flakyRenameFS{FS: fs.NewReal(), failures: 100}
	writer := fs.NewRetryingWriter(fs.NewAtomicWriter(flaky), flaky, fs.RetryPolicy{MaxAttempts: 3, BaseDelay: 0, MaxDelay: 0})

	path := filepath.Join(dir, "note.md")

	err := writer.WriteBytes(context.Background(), path, []byte("hello"), fs.AtomicWriteOptions{Perm: 0o644})
	require.Error(t, err)

	var writeErr *fs.WriteError

	require.True(t, errors.As(err, &writeErr))
	require.Equal(t, fs.WriteErrorTransient, writeErr.Kind)
	require.Equal(t, 3, writeErr.Attempts)
	require.True(t, errors.Is(err, fs.ErrWriteTransient))
}

func TestRetryingWriter_BadPathNoRetry(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	real := fs.NewReal()
	writer := fs.NewRetryingWriter(fs.NewAtomicWriter(real), real, fs.RetryPolicy{MaxAttempts: 5})

	path := filepath.Join(dir, "missing-dir", "note.md")

	err := writer.WriteBytes(context.Background(), path, []byte("hello"), fs.AtomicWriteOptions{Perm: 0o644})
	require.Error(t, err)

	var writeErr *fs.WriteError

	require.True(t, errors.As(err, &writeErr))
	require.Equal(t, fs.WriteErrorBadPath, writeErr.Kind)
	require.Equal(t, 0, writeErr.Attempts)
}
