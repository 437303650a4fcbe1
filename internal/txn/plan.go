package txn

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"syscall"

	"github.com/shayonpal/lifeos-vault-core/internal/rewrite"
	"github.com/shayonpal/lifeos-vault-core/internal/scan"
	"github.com/shayonpal/lifeos-vault-core/internal/vaultpath"
	"github.com/shayonpal/lifeos-vault-core/internal/wal"
)

// Input is what a caller asks the transaction manager to do.
type Input struct {
	VaultRoot   string
	OldPath     string
	NewFilename string
	UpdateLinks bool
}

// PlanResult is Phase 1's output: the immutable manifest plus the pure
// render of every affected file's new content, and the original bytes
// Render read (kept only long enough for Prepare to write backup copies,
// never persisted).
type PlanResult struct {
	Manifest  Manifest
	Changes   []rewrite.FileChange
	Originals map[string][]byte
}

// Plan performs phase 1 of the rename transaction: validate and normalize the inputs,
// collect every affected file (the renamed note plus, when UpdateLinks is
// set, every note that links to it), hash each one's current content, and
// compute the render — all without touching disk beyond reading.
func (m *Manager) Plan(ctx context.Context, in Input) (PlanResult, error) {
	oldAbs, err := vaultpath.Normalize(in.VaultRoot, vaultpath.WithMarkdownExt(in.OldPath))
	if err != nil {
		return PlanResult{}, planErr(KindInvalidPath, err)
	}

	newAbs, err := vaultpath.Normalize(in.VaultRoot, vaultpath.WithMarkdownExt(in.NewFilename))
	if err != nil {
		return PlanResult{}, planErr(KindInvalidPath, err)
	}

	if exists, err := m.fsys.Exists(oldAbs); err != nil {
		return PlanResult{}, planErr(KindPlanFailed, err)
	} else if !exists {
		return PlanResult{}, planErr(KindFileNotFound, fmt.Errorf("%q does not exist", oldAbs))
	}

	if exists, err := m.fsys.Exists(newAbs); err != nil {
		return PlanResult{}, planErr(KindPlanFailed, err)
	} else if exists {
		return PlanResult{}, planErr(KindFileExists, fmt.Errorf("%q already exists", newAbs))
	}

	oldStem := vaultpath.Stem(oldAbs)
	newStem := vaultpath.Stem(newAbs)

	sources, notes, err := m.collectAffected(ctx, in.VaultRoot, oldAbs, oldStem, in.UpdateLinks)
	if err != nil {
		return PlanResult{}, planErr(KindPlanFailed, err)
	}

	originals := make(map[string][]byte, len(sources))
	affected := make([]AffectedFile, 0, len(sources))

	for _, p := range sources {
		content, err := m.reader.ReadFile(ctx, p)
		if err != nil {
			return PlanResult{}, planErr(KindPlanFailed, err)
		}

		originals[p] = content
		affected = append(affected, AffectedFile{
			Path:             p,
			PreImageSHA256:   wal.HashBytes(content),
			PreImageBytesLen: len(content),
		})
	}

	sort.Slice(affected, func(i, j int) bool { return affected[i].Path < affected[j].Path })

	manifest := Manifest{
		CorrelationID: m.newID(),
		Operation:     OperationRename,
		OldPath:       oldAbs,
		NewPath:       newAbs,
		OldStem:       oldStem,
		NewStem:       newStem,
		UpdateLinks:   in.UpdateLinks,
		AffectedFiles: affected,
	}

	var changes []rewrite.FileChange

	if in.UpdateLinks {
		changes, err = rewrite.Render(notes, originals, oldStem, newStem, m.scanOpts)
		if err != nil {
			return PlanResult{}, planErr(KindPlanFailed, err)
		}
	}

	return PlanResult{Manifest: manifest, Changes: changes, Originals: originals}, nil
}

// collectAffected returns the sorted, de-duplicated set of paths the
// transaction must track (the renamed note itself, plus every note with a
// link targeting its stem when updateLinks is set), and the NoteLinks
// slice (restricted to that same set) Render needs to do its work.
func (m *Manager) collectAffected(ctx context.Context, root, oldAbs, oldStem string, updateLinks bool) ([]string, []scan.NoteLinks, error) {
	if !updateLinks {
		return []string{oldAbs}, nil, nil
	}

	allNotes, err := scan.ScanVault(ctx, m.fsys, root, m.scanOpts)
	if err != nil {
		return nil, nil, err
	}

	groups := scan.GroupByTarget(allNotes, m.scanOpts)

	key := targetKey(oldStem, m.scanOpts.CaseSensitiveTargetMatch)

	sourceSet := map[string]struct{}{oldAbs: {}}

	for _, l := range groups[key] {
		sourceSet[l.SourcePath] = struct{}{}
	}

	paths := make([]string, 0, len(sourceSet))
	for p := range sourceSet {
		paths = append(paths, p)
	}

	sort.Strings(paths)

	notes := make([]scan.NoteLinks, 0, len(paths))

	byPath := make(map[string]scan.NoteLinks, len(allNotes))
	for _, n := range allNotes {
		byPath[n.Path] = n
	}

	for _, p := range paths {
		if n, ok := byPath[p]; ok {
			notes = append(notes, n)
		}
	}

	return paths, notes, nil
}

// targetKey mirrors scan.GroupByTarget's key derivation so Plan can look
// its own renamed stem up in the grouped map.
func targetKey(stem string, caseSensitive bool) string {
	if caseSensitive {
		return stem
	}

	b := []byte(stem)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}

	return string(b)
}

func planErr(kind ErrorKind, err error) *Error {
	if kind == KindPlanFailed && errors.Is(err, syscall.EACCES) {
		kind = KindPermissionDenied
	}

	return &Error{Kind: kind, Err: err}
}
