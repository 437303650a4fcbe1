// Package vaultpath normalizes and validates paths relative to a vault root,
// and provides the small text helpers (regex escaping, anchor classification)
// the rest of the rename engine shares.
package vaultpath

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// MarkdownExt is the only extension the engine treats as a note.
const MarkdownExt = ".md"

// ErrEscapesRoot is returned when a path, once normalized, would resolve
// outside the vault root.
var ErrEscapesRoot = errors.New("path escapes vault root")

// Normalize resolves p (absolute or vault-relative) to an absolute, cleaned
// path under root, rejecting anything that would escape it.
//
// Normalize is idempotent: Normalize(root, Normalize(root, p)) == Normalize(root, p).
func Normalize(root, p string) (string, error) {
	if root == "" {
		return "", errors.New("vault root is empty")
	}

	absRoot, err := filepath.Abs(filepath.Clean(root))
	if err != nil {
		return "", fmt.Errorf("normalize: resolve root: %w", err)
	}

	var candidate string

	if filepath.IsAbs(p) {
		candidate = filepath.Clean(p)
	} else {
		candidate = filepath.Clean(filepath.Join(absRoot, p))
	}

	rel, err := filepath.Rel(absRoot, candidate)
	if err != nil {
		return "", fmt.Errorf("normalize: %w", err)
	}

	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrEscapesRoot, p)
	}

	return candidate, nil
}

// Rel returns p's path relative to root, assuming p is already normalized
// and under root.
func Rel(root, p string) (string, error) {
	absRoot, err := filepath.Abs(filepath.Clean(root))
	if err != nil {
		return "", fmt.Errorf("rel: %w", err)
	}

	rel, err := filepath.Rel(absRoot, p)
	if err != nil {
		return "", fmt.Errorf("rel: %w", err)
	}

	return filepath.ToSlash(rel), nil
}

// IsNote reports whether p has the markdown extension.
func IsNote(p string) bool {
	return strings.EqualFold(filepath.Ext(p), MarkdownExt)
}

// Stem returns the filename without its markdown extension - the link
// target identity notes are addressed by.
func Stem(p string) string {
	base := filepath.Base(p)
	ext := filepath.Ext(base)

	if strings.EqualFold(ext, MarkdownExt) {
		return strings.TrimSuffix(base, ext)
	}

	return base
}

// WithMarkdownExt appends the markdown extension if p doesn't already have
// one (case-insensitively). Any other extension-looking suffix is kept as
// part of the stem ("foo.txt" becomes "foo.txt.md") - callers are expected
// to pass a stem or an already-suffixed path.
func WithMarkdownExt(p string) string {
	if strings.EqualFold(filepath.Ext(p), MarkdownExt) {
		return p
	}

	return p + MarkdownExt
}

// EqualStem compares two stems the way wikilink target matching does:
// case-insensitively, unless caseSensitive is set.
func EqualStem(a, b string, caseSensitive bool) bool {
	if caseSensitive {
		return a == b
	}

	return strings.EqualFold(a, b)
}

// EscapeRegex escapes s for literal use inside a regexp pattern.
//
// Delegates to [regexp.QuoteMeta]; kept as a named helper (rather than
// calling QuoteMeta at every call site) so the one escaping policy the
// engine uses is grep-able in one place.
func EscapeRegex(s string) string {
	return regexp.QuoteMeta(s)
}

// AnchorKind classifies a wikilink's anchor fragment.
type AnchorKind uint8

const (
	AnchorNone AnchorKind = iota
	AnchorHeading
	AnchorBlock
)

// ClassifyAnchor inspects a raw anchor capture (the text after '#', before
// any '|') and reports its kind plus the stored value.
//
// A block reference is distinguished solely by a leading '^'; the stored
// value keeps that sigil, since a block anchor's stored form retains the
// '^' it was written with. An empty raw string means no anchor was present.
func ClassifyAnchor(raw string) (AnchorKind, string) {
	if raw == "" {
		return AnchorNone, ""
	}

	if strings.HasPrefix(raw, "^") {
		return AnchorBlock, raw
	}

	return AnchorHeading, raw
}
