// Package rewrite turns a set of matched wikilinks into new file contents,
// in two deliberately separated phases: Render computes the new bytes for
// every affected note with no disk I/O at all, and Commit writes them out
// in a fixed, deterministic order. Keeping them apart lets a transaction
// manager validate a render before it touches disk, and lets a dry run call
// Render alone.
package rewrite

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sort"

	"github.com/shayonpal/lifeos-vault-core/internal/scan"
	"github.com/shayonpal/lifeos-vault-core/internal/vaultpath"
	"github.com/shayonpal/lifeos-vault-core/internal/wikilink"
	"github.com/shayonpal/lifeos-vault-core/pkg/fs"
)

// FileChange is the rendered new content for one note, plus the hash of
// its pre-image so a committer can detect it changed underneath us.
type FileChange struct {
	Path         string
	OriginalHash string // sha256 hex of the content Render read
	NewContent   []byte
	NewHash      string // sha256 hex of NewContent
	LinksUpdated int
}

// Render computes the new content for every note in notes that contains a
// link targeting oldStem, with that target renamed to newStem. It performs
// no disk I/O: original is the exact byte content Render used to find and
// rewrite links, keyed by path, and must match what ScanVault read.
//
// Render only rewrites link targets whose stem matches oldStem per opts'
// case sensitivity; anchors and aliases are preserved verbatim.
func Render(notes []scan.NoteLinks, original map[string][]byte, oldStem, newStem string, opts scan.Options) ([]FileChange, error) {
	var changes []FileChange

	for _, note := range notes {
		content, ok := original[note.Path]
		if !ok {
			return nil, fmt.Errorf("render: missing original content for %q", note.Path)
		}

		matching := matchingLinks(note.Links, oldStem, opts.CaseSensitiveTargetMatch)
		if len(matching) == 0 {
			continue
		}

		newContent := applyRewrites(content, matching, newStem)

		changes = append(changes, FileChange{
			Path:         note.Path,
			OriginalHash: hashHex(content),
			NewContent:   newContent,
			NewHash:      hashHex(newContent),
			LinksUpdated: len(matching),
		})
	}

	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })

	return changes, nil
}

func matchingLinks(links []wikilink.Wikilink, targetStem string, caseSensitive bool) []wikilink.Wikilink {
	var matched []wikilink.Wikilink

	for _, l := range links {
		if vaultpath.EqualStem(vaultpath.Stem(l.Target), targetStem, caseSensitive) {
			matched = append(matched, l)
		}
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].ByteStart < matched[j].ByteStart })

	return matched
}

// applyRewrites splices each matching link's reconstructed text (with its
// target renamed) back into content, working from the end of the file
// toward the start so earlier byte offsets stay valid as the slice grows
// or shrinks.
func applyRewrites(content []byte, matching []wikilink.Wikilink, newStem string) []byte {
	out := append([]byte(nil), content...)

	for i := len(matching) - 1; i >= 0; i-- {
		link := matching[i]
		newTarget := renamedTarget(link.Target, newStem)
		replacement := []byte(wikilink.Reconstruct(wikilink.WithTarget(link, newTarget)))

		out = append(out[:link.ByteStart], append(replacement, out[link.ByteEnd:]...)...)
	}

	return out
}

// renamedTarget substitutes the new stem for the old one while preserving
// any directory prefix or explicit extension the original target carried.
func renamedTarget(oldTarget, newStem string) string {
	dir, _, ext := splitTarget(oldTarget)

	renamed := newStem
	if dir != "" {
		renamed = dir + "/" + renamed
	}

	if ext != "" {
		renamed += ext
	}

	return renamed
}

// splitTarget breaks a wikilink target into directory prefix, stem, and an
// explicit extension if the author included one (rare, but legal: "[[notes/Foo.md]]").
func splitTarget(target string) (dir, stem, ext string) {
	slash := -1

	for i := len(target) - 1; i >= 0; i-- {
		if target[i] == '/' {
			slash = i

			break
		}
	}

	base := target
	if slash >= 0 {
		dir = target[:slash]
		base = target[slash+1:]
	}

	dot := -1

	for i := len(base) - 1; i >= 0; i-- {
		if base[i] == '.' {
			dot = i

			break
		}
	}

	if dot > 0 && vaultpath.IsNote(base) {
		return dir, base[:dot], base[dot:]
	}

	return dir, base, ""
}

func hashHex(b []byte) string {
	sum := sha256.Sum256(b)

	return hex.EncodeToString(sum[:])
}

// Commit writes every change to fsys via an atomic writer, in lexicographic
// path order, stopping at the first failure. It returns the paths that were
// successfully written before any failure, so a caller can decide what to
// roll back.
func Commit(ctx context.Context, writer *fs.AtomicWriter, changes []FileChange, perm os.FileMode) ([]string, error) {
	ordered := append([]FileChange(nil), changes...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Path < ordered[j].Path })

	var written []string

	for _, c := range ordered {
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		default:
		}

		if err := writeChange(writer, c, perm); err != nil {
			return written, fmt.Errorf("commit %q: %w", c.Path, err)
		}

		written = append(written, c.Path)
	}

	return written, nil
}

func writeChange(writer *fs.AtomicWriter, c FileChange, perm os.FileMode) error {
	return writer.Write(c.Path, bytes.NewReader(c.NewContent), fs.DurableOptions(perm))
}

// Direct applies a single rename's rewrite straight to disk without a
// surrounding transaction: it renders then commits in one call. This is a
// legacy, non-transactional convenience path kept for callers that accept
// best-effort semantics (no WAL entry, no rollback).
func Direct(ctx context.Context, fsys fs.FS, notes []scan.NoteLinks, original map[string][]byte, oldStem, newStem string, opts scan.Options) ([]FileChange, error) {
	changes, err := Render(notes, original, oldStem, newStem, opts)
	if err != nil {
		return nil, err
	}

	writer := fs.NewAtomicWriter(fsys)

	if _, err := Commit(ctx, writer, changes, os.FileMode(0o644)); err != nil {
		return changes, err
	}

	return changes, nil
}
