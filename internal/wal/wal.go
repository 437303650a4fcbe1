// Package wal persists one YAML file per in-flight rename transaction, so a
// process that crashes mid-rename can find and roll back the work on its
// next start. Unlike a classic append-only write-ahead log, each
// transaction gets its own file: a crashed rename leaves exactly one file an
// operator can read and understand without replaying a journal.
package wal

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/shayonpal/lifeos-vault-core/pkg/fs"
)

// SchemaVersion is written into every entry and checked on Read. A file
// written by a newer, incompatible version is treated as corrupt rather
// than guessed at.
const SchemaVersion = 1

const walExt = ".yaml"
const walKind = "rename"
const walTimestampLayout = "20060102T150405.000000000Z"

// Phase is where a transaction was when its entry was last written.
type Phase string

const (
	PhasePlanned   Phase = "plan"
	PhasePrepared  Phase = "prepare"
	PhaseValidated Phase = "validate"
	PhaseCommitted Phase = "commit"
	PhaseSucceeded Phase = "success"
	PhaseAborted   Phase = "abort"
)

// FileChange is the planned or applied new content hash for one note,
// mirroring internal/rewrite.FileChange without importing it (the WAL
// format must stay stable even if the rewriter's internals change).
//
// StagedPath and BackupPath are the two sibling files Prepare materializes
// next to Path: StagedPath holds the rendered post-image, ready to be
// promoted onto Path at commit time; BackupPath holds a copy of the
// pre-image, so Rollback can restore Path even after StagedPath has
// already been promoted and consumed.
type FileChange struct {
	Path         string `yaml:"path"`
	OriginalHash string `yaml:"original_hash"`
	NewHash      string `yaml:"new_hash"`
	StagedPath   string `yaml:"staged_path,omitempty"`
	BackupPath   string `yaml:"backup_path,omitempty"`
	// TargetPath is where the staged content is promoted at commit time.
	// Equal to Path for every affected file except the renamed note itself,
	// whose content (if it self-links) is promoted onto NewPath.
	TargetPath string `yaml:"target_path"`
	Promoted   bool   `yaml:"promoted,omitempty"`
}

// Entry is the full persisted state of one rename transaction.
type Entry struct {
	SchemaVersion int          `yaml:"schema_version"`
	CorrelationID uuid.UUID    `yaml:"correlation_id"`
	Phase         Phase        `yaml:"phase"`
	OldPath       string       `yaml:"old_path"`
	NewPath       string       `yaml:"new_path"`
	OldStem       string       `yaml:"old_stem"`
	NewStem       string       `yaml:"new_stem"`
	UpdateLinks   bool         `yaml:"update_links"`
	Changes       []FileChange `yaml:"changes"`
	Committed     []string     `yaml:"committed,omitempty"`
	RenameDone    bool         `yaml:"rename_done,omitempty"`
	CreatedAt     time.Time    `yaml:"created_at"`
	UpdatedAt     time.Time    `yaml:"updated_at"`
}

// filename returns the deterministic, sortable-by-age filename for e.
func filename(e Entry) string {
	return fmt.Sprintf("%s-%s-%s%s", e.CreatedAt.UTC().Format(walTimestampLayout), walKind, e.CorrelationID.String(), walExt)
}

// Manager reads and writes WAL entries under a fixed directory, outside the
// vault itself (the journal is kept separate from the content it
// protects, so a vault sync tool never sees it).
type Manager struct {
	dir    string
	fsys   fs.FS
	writer *fs.AtomicWriter
}

// NewManager builds a Manager rooted at dir. The directory is created
// (with a README, written once) the first time Write is called.
func NewManager(fsys fs.FS, dir string) *Manager {
	if fsys == nil {
		panic("fsys is nil")
	}

	return &Manager{dir: dir, fsys: fsys, writer: fs.NewAtomicWriter(fsys)}
}

const readmeContents = `This directory holds one YAML file per in-progress or
recently-finished vault rename transaction. Each file is named

    <timestamp>-rename-<correlation-id>.yaml

and is safe to read with any text editor. A file left behind after a crash
describes exactly what that rename was doing; the engine rolls it back
automatically on its next start. You normally never need to
touch these files by hand.
`

// ensureDir creates the WAL directory and its README on first use.
func (m *Manager) ensureDir() error {
	if err := m.fsys.MkdirAll(m.dir, 0o755); err != nil {
		return fmt.Errorf("wal: create dir %q: %w", m.dir, err)
	}

	readmePath := filepath.Join(m.dir, "README.txt")

	exists, err := m.fsys.Exists(readmePath)
	if err != nil {
		return fmt.Errorf("wal: stat readme: %w", err)
	}

	if exists {
		return nil
	}

	if err := m.fsys.WriteFile(readmePath, []byte(readmeContents), 0o644); err != nil {
		return fmt.Errorf("wal: write readme: %w", err)
	}

	return nil
}

// Write creates a new entry's file. CorrelationID and CreatedAt must already
// be set; Write fails if a file for this correlation ID already exists.
func (m *Manager) Write(e Entry) error {
	if e.CorrelationID == uuid.Nil {
		return errors.New("wal: entry has no correlation id")
	}

	if e.CreatedAt.IsZero() {
		return errors.New("wal: entry has no created_at")
	}

	e.SchemaVersion = SchemaVersion
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = e.CreatedAt
	}

	if err := m.ensureDir(); err != nil {
		return err
	}

	if _, err := m.pathFor(e.CorrelationID); err == nil {
		return fmt.Errorf("wal: entry for %s already exists", e.CorrelationID)
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	return m.writeEntry(e)
}

// Update rewrites the entry's file in place with a new phase (and optional
// additional committed paths), bumping UpdatedAt.
func (m *Manager) Update(e Entry, phase Phase, updatedAt time.Time) error {
	e.SchemaVersion = SchemaVersion
	e.Phase = phase
	e.UpdatedAt = updatedAt

	return m.writeEntry(e)
}

func (m *Manager) writeEntry(e Entry) error {
	data, err := yaml.Marshal(e)
	if err != nil {
		return fmt.Errorf("wal: marshal entry %s: %w", e.CorrelationID, err)
	}

	path := filepath.Join(m.dir, filename(e))

	if err := m.writer.Write(path, bytes.NewReader(data), fs.DurableOptions(0o644)); err != nil {
		return fmt.Errorf("wal: write %q: %w", path, err)
	}

	return nil
}

// Read loads the entry for id, searching the WAL directory for its file
// (the timestamp prefix is not known to the caller).
func (m *Manager) Read(id uuid.UUID) (Entry, error) {
	path, err := m.pathFor(id)
	if err != nil {
		return Entry{}, err
	}

	return m.readFile(path)
}

// Path returns the on-disk path of id's WAL file, for surfacing in
// manual-recovery error messages. Returns ErrNotFound if no file exists.
func (m *Manager) Path(id uuid.UUID) (string, error) {
	return m.pathFor(id)
}

// Dir returns the directory this Manager persists entries under.
func (m *Manager) Dir() string {
	return m.dir
}

// Delete removes id's WAL file. Deleting a non-existent entry is not an
// error (Delete is called as part of Success, which may race a concurrent
// recovery pass cleaning up the same entry).
func (m *Manager) Delete(id uuid.UUID) error {
	path, err := m.pathFor(id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}

		return err
	}

	if err := m.fsys.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("wal: delete %q: %w", path, err)
	}

	return nil
}

// ErrNotFound is returned when no WAL file exists for a given correlation ID.
var ErrNotFound = errors.New("wal: entry not found")

// ErrCorrupt is returned (wrapped) when a WAL file exists but cannot be
// parsed as a valid Entry, or its filename disagrees with its contents.
var ErrCorrupt = errors.New("wal: entry corrupt")

func (m *Manager) pathFor(id uuid.UUID) (string, error) {
	entries, err := m.fsys.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}

		return "", fmt.Errorf("wal: read dir %q: %w", m.dir, err)
	}

	suffix := id.String() + walExt

	for _, e := range entries {
		if strings.HasSuffix(e.Name(), suffix) {
			return filepath.Join(m.dir, e.Name()), nil
		}
	}

	return "", ErrNotFound
}

func (m *Manager) readFile(path string) (Entry, error) {
	data, err := m.fsys.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Entry{}, ErrNotFound
		}

		return Entry{}, fmt.Errorf("wal: read %q: %w", path, err)
	}

	var e Entry

	if err := yaml.Unmarshal(data, &e); err != nil {
		return Entry{}, fmt.Errorf("%w: %q: %v", ErrCorrupt, path, err)
	}

	if e.SchemaVersion != SchemaVersion {
		return Entry{}, fmt.Errorf("%w: %q: schema_version=%d, want %d", ErrCorrupt, path, e.SchemaVersion, SchemaVersion)
	}

	wantName := filepath.Base(path)
	if !strings.HasSuffix(wantName, e.CorrelationID.String()+walExt) {
		return Entry{}, fmt.Errorf("%w: %q: filename does not match correlation_id %s", ErrCorrupt, path, e.CorrelationID)
	}

	return e, nil
}

// ScanPending returns every entry whose UpdatedAt is at least minAge old,
// oldest first. Entries touched more recently are assumed to belong to a
// transaction still in flight in another process and are not reported.
// A file that fails to parse is skipped (not returned as an error):
// recovery proceeds with whatever is readable, and a corrupt leftover WAL
// file should never block the rest of the vault from coming up. skipped
// reports the paths that were skipped for that reason, so the caller can
// log them.
func (m *Manager) ScanPending(minAge time.Duration, now time.Time) (entries []Entry, skipped []string, err error) {
	dirEntries, readErr := m.fsys.ReadDir(m.dir)
	if readErr != nil {
		if os.IsNotExist(readErr) {
			return nil, nil, nil
		}

		return nil, nil, fmt.Errorf("wal: read dir %q: %w", m.dir, readErr)
	}

	type candidate struct {
		path string
		ts   time.Time
	}

	var candidates []candidate

	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), walExt) || !strings.Contains(de.Name(), "-"+walKind+"-") {
			continue
		}

		ts, ok := parseTimestampPrefix(de.Name())
		if !ok {
			skipped = append(skipped, filepath.Join(m.dir, de.Name()))

			continue
		}

		candidates = append(candidates, candidate{path: filepath.Join(m.dir, de.Name()), ts: ts})
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ts.Before(candidates[j].ts) })

	for _, c := range candidates {
		e, readErr := m.readFile(c.path)
		if readErr != nil {
			skipped = append(skipped, c.path)

			continue
		}

		if now.Sub(e.UpdatedAt) < minAge {
			continue
		}

		entries = append(entries, e)
	}

	return entries, skipped, nil
}

func parseTimestampPrefix(name string) (time.Time, bool) {
	idx := strings.Index(name, "-"+walKind+"-")
	if idx < 0 {
		return time.Time{}, false
	}

	ts, err := time.Parse(walTimestampLayout, name[:idx])
	if err != nil {
		return time.Time{}, false
	}

	return ts, true
}

// HashBytes is a small convenience computing the same SHA-256 hex digest
// internal/rewrite records for rendered changes, so WAL entries and
// rendered changes agree on the hash function.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)

	return hex.EncodeToString(sum[:])
}
