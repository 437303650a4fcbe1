package txn

import (
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/shayonpal/lifeos-vault-core/internal/scan"
	"github.com/shayonpal/lifeos-vault-core/internal/wal"
	"github.com/shayonpal/lifeos-vault-core/pkg/fs"
)

// Manager orchestrates the five-phase rename transaction protocol: Plan
// builds an immutable manifest and a pure render of every affected
// file's new content; Run executes prepare → validate → commit →
// success, rolling back automatically on any failure in between.
type Manager struct {
	fsys     fs.FS
	writer   *fs.AtomicWriter
	retry    *fs.RetryingWriter
	reader   *fs.RetryingReader
	walMgr   *wal.Manager
	scanOpts scan.Options
	now      func() time.Time
	newID    func() uuid.UUID
	perm     os.FileMode
}

// Option configures a Manager beyond its required dependencies.
type Option func(*Manager)

// WithClock overrides the timestamp source Manager uses for WAL entries.
// Tests inject a deterministic clock; production uses time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithIDGen overrides the correlation-ID generator. Tests inject a
// deterministic sequence; production uses uuid.New (v4).
func WithIDGen(gen func() uuid.UUID) Option {
	return func(m *Manager) { m.newID = gen }
}

// WithScanOptions overrides the wikilink-scan options the rename flow
// uses to find affected files. Defaults to scan.DefaultOptions(), which
// enables frontmatter scanning for rename, since a stale `related:`
// field is exactly the kind of reference a rename should catch.
func WithScanOptions(opts scan.Options) Option {
	return func(m *Manager) { m.scanOpts = opts }
}

// WithRetryPolicy overrides the bounded-retry policy used for the
// transaction's own note reads (pre-image, validate, staged, backup) and
// staged/backup/promoted/restored writes. The vault scan in Plan keeps
// fs.DefaultRetryPolicy(); WAL writes and the note rename are not retried.
func WithRetryPolicy(policy fs.RetryPolicy) Option {
	return func(m *Manager) {
		m.retry = fs.NewRetryingWriter(m.writer, m.fsys, policy)
		m.reader = fs.NewRetryingReader(m.fsys, policy)
	}
}

// NewManager builds a Manager over fsys, persisting its WAL entries under
// walDir (a directory outside the vault).
func NewManager(fsys fs.FS, walDir string, opts ...Option) *Manager {
	if fsys == nil {
		panic("fsys is nil")
	}

	writer := fs.NewAtomicWriter(fsys)

	m := &Manager{
		fsys:     fsys,
		writer:   writer,
		retry:    fs.NewRetryingWriter(writer, fsys, fs.DefaultRetryPolicy()),
		reader:   fs.NewRetryingReader(fsys, fs.DefaultRetryPolicy()),
		walMgr:   wal.NewManager(fsys, walDir),
		scanOpts: scan.DefaultOptions(),
		now:      time.Now,
		newID:    uuid.New,
		perm:     0o644,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// WAL exposes the underlying WAL manager, so boot recovery and tests can
// inspect pending entries without the
// transaction manager needing to re-export every WAL method itself.
func (m *Manager) WAL() *wal.Manager {
	return m.walMgr
}
