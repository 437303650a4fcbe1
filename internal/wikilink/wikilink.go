// Package wikilink provides the Wikilink value object and the single
// regular expression every other package in this module uses to find and
// rebuild `[[target]]` links, so there is exactly one place that defines
// what a wikilink looks like.
package wikilink

import (
	"regexp"
	"sort"
	"strings"

	"github.com/shayonpal/lifeos-vault-core/internal/vaultpath"
)

// Pattern is the bit-exact wikilink grammar this module matches against.
// Capture groups: 1=embed marker "!", 2=target, 3=anchor (heading or
// "^block"), 4=alias.
const Pattern = `(!)?\[\[(.+?)(?:#(\^[^\]|]+|[^\]|]+))?(?:\|(.+?))?\]\]`

var re = regexp.MustCompile(Pattern)

// Anchor is the optional `#heading` or `#^block` fragment of a wikilink.
type Anchor struct {
	Kind  vaultpath.AnchorKind
	Value string
}

// Wikilink is one parsed `[[...]]` occurrence inside a note.
type Wikilink struct {
	SourcePath    string
	Line          int // 1-based
	ColStart      int // 0-based, byte offset within Line
	ColEnd        int // 0-based, exclusive
	ByteStart     int // 0-based, absolute offset within the scanned slice
	ByteEnd       int // 0-based, exclusive
	IsEmbed       bool
	Target        string
	Anchor        Anchor
	Alias         string
	InFrontmatter bool
	Raw           string // the exact matched text, e.g. "![[a#^b|c]]"
}

// HasAnchor reports whether w carries a heading or block anchor.
func (w Wikilink) HasAnchor() bool {
	return w.Anchor.Kind != vaultpath.AnchorNone
}

// HasAlias reports whether w carries a display alias.
func (w Wikilink) HasAlias() bool {
	return w.Alias != ""
}

// FindAll scans content for every wikilink occurrence and returns them in
// document order, with Line/ColStart/ColEnd computed against content's own
// newlines. sourcePath and inFrontmatter are stamped onto every result as
// given; callers scanning a whole note call this once for the body and
// once for any frontmatter block, setting inFrontmatter accordingly.
func FindAll(content []byte, sourcePath string, inFrontmatter bool) []Wikilink {
	matches := re.FindAllSubmatchIndex(content, -1)
	if len(matches) == 0 {
		return nil
	}

	lineStarts := newlineIndex(content)

	links := make([]Wikilink, 0, len(matches))

	for _, m := range matches {
		links = append(links, wikilinkFromMatch(content, m, sourcePath, inFrontmatter, lineStarts))
	}

	return links
}

func wikilinkFromMatch(content []byte, m []int, sourcePath string, inFrontmatter bool, lineStarts []int) Wikilink {
	start, end := m[0], m[1]

	embed := submatch(content, m, 1) == "!"
	target := submatch(content, m, 2)
	anchorRaw := submatch(content, m, 3)
	alias := submatch(content, m, 4)

	kind, anchorVal := vaultpath.ClassifyAnchor(anchorRaw)
	line, col := position(start, lineStarts)

	return Wikilink{
		SourcePath:    sourcePath,
		Line:          line,
		ColStart:      col,
		ColEnd:        col + (end - start),
		ByteStart:     start,
		ByteEnd:       end,
		IsEmbed:       embed,
		Target:        target,
		Anchor:        Anchor{Kind: kind, Value: anchorVal},
		Alias:         alias,
		InFrontmatter: inFrontmatter,
		Raw:           string(content[start:end]),
	}
}

// submatch returns the text captured by group n, or "" if the group didn't
// participate in the match (regexp reports -1, -1 for it).
func submatch(content []byte, m []int, n int) string {
	lo, hi := m[2*n], m[2*n+1]
	if lo < 0 || hi < 0 {
		return ""
	}

	return string(content[lo:hi])
}

// newlineIndex returns the byte offset of every '\n' in content, so
// position can binary-search it instead of rescanning per match.
func newlineIndex(content []byte) []int {
	var offsets []int

	for i, b := range content {
		if b == '\n' {
			offsets = append(offsets, i)
		}
	}

	return offsets
}

// position converts a byte offset into a 1-based line number and a 0-based
// column within that line.
func position(offset int, lineStarts []int) (line, col int) {
	// lineStarts[i] is the offset of the i-th '\n'; the line containing
	// offset is the count of newlines strictly before it, plus one.
	n := sort.Search(len(lineStarts), func(i int) bool { return lineStarts[i] >= offset })

	line = n + 1
	if n == 0 {
		col = offset
	} else {
		col = offset - lineStarts[n-1] - 1
	}

	return line, col
}

// Reconstruct rebuilds the literal `[[...]]` text for w from its fields.
// Reconstruct(FindAll(content, ...)[i]) must equal that link's Raw when no
// field has been changed - this is the round-trip invariant the rewriter
// relies on to leave untouched links byte-identical.
func Reconstruct(w Wikilink) string {
	var b strings.Builder

	if w.IsEmbed {
		b.WriteString("!")
	}

	b.WriteString("[[")
	b.WriteString(w.Target)

	if w.HasAnchor() {
		b.WriteString("#")
		b.WriteString(w.Anchor.Value)
	}

	if w.HasAlias() {
		b.WriteString("|")
		b.WriteString(w.Alias)
	}

	b.WriteString("]]")

	return b.String()
}

// WithTarget returns a copy of w with its Target replaced and Raw
// recomputed via Reconstruct, ready to be spliced back into a note body.
func WithTarget(w Wikilink, newTarget string) Wikilink {
	w.Target = newTarget
	w.Raw = Reconstruct(w)

	return w
}
