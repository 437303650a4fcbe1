// Package scan walks a vault and extracts every wikilink it contains,
// grouped by the target stem a rename needs to find and rewrite.
package scan

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"sort"

	osfs "github.com/shayonpal/lifeos-vault-core/pkg/fs"

	"github.com/shayonpal/lifeos-vault-core/internal/vaultpath"
	"github.com/shayonpal/lifeos-vault-core/internal/wikilink"
)

// Options controls what ScanNote/ScanVault consider a match.
type Options struct {
	// IncludeEmbeds also reports "![[...]]" embeds, not just "[[...]]" links.
	IncludeEmbeds bool
	// IncludeFrontmatter additionally scans the YAML frontmatter block for
	// wikilinks (e.g. a "related: [[Other Note]]" field), using a raw-byte
	// regex pass rather than a full YAML parse.
	IncludeFrontmatter bool
	// CaseSensitiveTargetMatch controls GroupByTarget's stem comparison.
	CaseSensitiveTargetMatch bool
	// SkipCodeBlocks masks fenced code blocks (``` or ~~~) before matching,
	// so link-looking text inside a code sample isn't treated as a link.
	SkipCodeBlocks bool
}

// DefaultOptions returns the options the rename flow scans with by default: every
// real link form is scanned, code blocks are skipped, and target matching is
// case-insensitive (the common case for a case-preserving, case-insensitive
// vault filesystem).
func DefaultOptions() Options {
	return Options{
		IncludeEmbeds:            true,
		IncludeFrontmatter:       true,
		CaseSensitiveTargetMatch: false,
		SkipCodeBlocks:           true,
	}
}

// NoteLinks is every wikilink found in one note.
type NoteLinks struct {
	Path  string
	Links []wikilink.Wikilink
}

// ScanNote reads path from fsys and returns every wikilink it contains.
// The read goes through the same transient-error retry policy the engine's
// writes use, since a cloud-sync agent can hold a note busy mid-scan just
// as easily as mid-write.
func ScanNote(ctx context.Context, fsys osfs.FS, path string, opts Options) (NoteLinks, error) {
	reader := osfs.NewRetryingReader(fsys, osfs.DefaultRetryPolicy())

	content, err := reader.ReadFile(ctx, path)
	if err != nil {
		return NoteLinks{}, fmt.Errorf("scan note: %w", err)
	}

	return NoteLinks{Path: path, Links: scanContent(content, path, opts)}, nil
}

func scanContent(content []byte, path string, opts Options) []wikilink.Wikilink {
	front, body, frontOffset, bodyOffset := splitFrontmatter(content)

	var links []wikilink.Wikilink

	if opts.IncludeFrontmatter && len(front) > 0 {
		frontLinks := wikilink.FindAll(front, path, true)
		for i := range frontLinks {
			rebase(&frontLinks[i], content, frontOffset)
		}

		links = append(links, frontLinks...)
	}

	scanBody := body
	if opts.SkipCodeBlocks {
		scanBody = maskCodeBlocks(body)
	}

	bodyLinks := wikilink.FindAll(scanBody, path, false)
	for i := range bodyLinks {
		rebase(&bodyLinks[i], content, bodyOffset)
	}

	links = append(links, bodyLinks...)

	if !opts.IncludeEmbeds {
		links = filterEmbeds(links)
	}

	return links
}

// rebase shifts a link found within a sub-slice of content (frontmatter or
// body) back to file-absolute byte offsets and line numbers.
func rebase(l *wikilink.Wikilink, content []byte, sliceOffset int) {
	l.ByteStart += sliceOffset
	l.ByteEnd += sliceOffset
	l.Line += lineOffset(content, sliceOffset)
}

func filterEmbeds(links []wikilink.Wikilink) []wikilink.Wikilink {
	kept := links[:0]

	for _, l := range links {
		if !l.IsEmbed {
			kept = append(kept, l)
		}
	}

	return kept
}

// lineOffset reports how many newlines occur before bodyOffset in the full
// content, so body-relative line numbers can be rebased to file-relative.
func lineOffset(content []byte, bodyOffset int) int {
	if bodyOffset <= 0 {
		return 0
	}

	return bytes.Count(content[:bodyOffset], []byte("\n"))
}

var frontmatterDelim = []byte("---")

// splitFrontmatter splits content into its frontmatter block (without the
// delimiter lines) and the remaining body, per the common convention: the
// file must start with a line that is exactly "---", and the frontmatter
// ends at the next line that is exactly "---". If no such block is found,
// front is nil and body is the whole of content.
func splitFrontmatter(content []byte) (front, body []byte, frontOffset, bodyOffset int) {
	if !bytes.HasPrefix(content, frontmatterDelim) {
		return nil, content, 0, 0
	}

	afterFirstDelim := len(frontmatterDelim)
	if afterFirstDelim >= len(content) || !isLineEnd(content[afterFirstDelim]) {
		return nil, content, 0, 0
	}

	rest := content[afterFirstDelim:]

	nl := bytes.IndexByte(rest, '\n')
	if nl < 0 {
		return nil, content, 0, 0
	}

	frontStart := afterFirstDelim + nl + 1

	closeIdx := findClosingDelim(content, frontStart)
	if closeIdx < 0 {
		return nil, content, 0, 0
	}

	front = content[frontStart:closeIdx]

	bodyStart := closeIdx + len(frontmatterDelim)
	if bodyStart < len(content) && content[bodyStart] == '\n' {
		bodyStart++
	}

	return front, content[bodyStart:], frontStart, bodyStart
}

func isLineEnd(b byte) bool {
	return b == '\n' || b == '\r'
}

// findClosingDelim scans line-by-line from start for a line that is exactly
// "---", returning its byte offset, or -1 if none is found.
func findClosingDelim(content []byte, start int) int {
	pos := start

	for pos < len(content) {
		lineEnd := bytes.IndexByte(content[pos:], '\n')

		var line []byte
		if lineEnd < 0 {
			line = content[pos:]
		} else {
			line = content[pos : pos+lineEnd]
		}

		if bytes.Equal(bytes.TrimRight(line, "\r"), frontmatterDelim) {
			return pos
		}

		if lineEnd < 0 {
			return -1
		}

		pos += lineEnd + 1
	}

	return -1
}

// maskCodeBlocks returns a copy of body with the interior of every fenced
// code block (``` or ~~~, three or more characters, matched fence on its
// own line) overwritten with spaces, preserving length and newlines so
// byte offsets computed against the result still line up with the original.
func maskCodeBlocks(body []byte) []byte {
	out := append([]byte(nil), body...)

	lines := splitLinesKeepOffsets(body)

	var fenceChar byte
	var fenceLen int
	inFence := false

	for _, ln := range lines {
		trimmed := bytes.TrimLeft(body[ln.start:ln.end], " \t")

		if !inFence {
			if ch, n, ok := fenceOpen(trimmed); ok {
				inFence = true
				fenceChar = ch
				fenceLen = n

				continue
			}
		} else {
			if fenceCloses(trimmed, fenceChar, fenceLen) {
				inFence = false

				continue
			}

			maskRange(out, ln.start, ln.end)
		}
	}

	return out
}

func fenceOpen(trimmed []byte) (ch byte, n int, ok bool) {
	if len(trimmed) < 3 {
		return 0, 0, false
	}

	ch = trimmed[0]
	if ch != '`' && ch != '~' {
		return 0, 0, false
	}

	n = 0
	for n < len(trimmed) && trimmed[n] == ch {
		n++
	}

	return ch, n, n >= 3
}

func fenceCloses(trimmed []byte, ch byte, minLen int) bool {
	n := 0
	for n < len(trimmed) && trimmed[n] == ch {
		n++
	}

	if n < minLen {
		return false
	}

	return n == len(bytes.TrimRight(trimmed, "\r"))
}

func maskRange(out []byte, start, end int) {
	for i := start; i < end; i++ {
		if out[i] != '\n' && out[i] != '\r' {
			out[i] = ' '
		}
	}
}

type lineSpan struct{ start, end int }

func splitLinesKeepOffsets(b []byte) []lineSpan {
	var spans []lineSpan

	start := 0

	for i, c := range b {
		if c == '\n' {
			spans = append(spans, lineSpan{start, i})
			start = i + 1
		}
	}

	if start <= len(b) {
		spans = append(spans, lineSpan{start, len(b)})
	}

	return spans
}

// ScanVault walks every markdown note under root and returns its links.
// Notes are visited in lexicographic path order so results are deterministic.
func ScanVault(ctx context.Context, fsys osfs.FS, root string, opts Options) ([]NoteLinks, error) {
	paths, err := listNotes(fsys, root)
	if err != nil {
		return nil, err
	}

	results := make([]NoteLinks, 0, len(paths))

	for _, p := range paths {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		nl, err := ScanNote(ctx, fsys, p, opts)
		if err != nil {
			return nil, err
		}

		results = append(results, nl)
	}

	return results, nil
}

// listNotes walks root (via os.ReadDir through fsys) and returns every
// markdown file path, sorted.
func listNotes(fsys osfs.FS, root string) ([]string, error) {
	var paths []string

	var walk func(dir string) error

	walk = func(dir string) error {
		entries, err := fsys.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("read dir %q: %w", dir, err)
		}

		for _, e := range entries {
			full := filepath.Join(dir, e.Name())

			if e.IsDir() {
				if err := walk(full); err != nil {
					return err
				}

				continue
			}

			if vaultpath.IsNote(full) {
				paths = append(paths, full)
			}
		}

		return nil
	}

	if err := walk(root); err != nil {
		return nil, err
	}

	sort.Strings(paths)

	return paths, nil
}

// GroupByTarget buckets every link across notes by the stem of its Target,
// the identity a rename looks the renamed note's old stem up against.
func GroupByTarget(notes []NoteLinks, opts Options) map[string][]wikilink.Wikilink {
	groups := make(map[string][]wikilink.Wikilink)

	for _, n := range notes {
		for _, l := range n.Links {
			key := targetKey(l.Target, opts.CaseSensitiveTargetMatch)
			groups[key] = append(groups[key], l)
		}
	}

	return groups
}

func targetKey(target string, caseSensitive bool) string {
	stem := vaultpath.Stem(target)
	if caseSensitive {
		return stem
	}

	return lowerASCIIFold(stem)
}

// lowerASCIIFold is a minimal case fold used only as a map key; actual
// comparisons elsewhere use vaultpath.EqualStem (strings.EqualFold), this
// just needs to be stable and collision-free for the common case.
func lowerASCIIFold(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}

	return string(b)
}
