// Package txn implements the five-phase rename transaction protocol (plan,
// prepare, validate, commit, success/abort) that gives the rename engine
// its all-or-nothing semantics and crash-safe recovery.
package txn

import "github.com/google/uuid"

// AffectedFile is one file the transaction must keep consistent: the
// renamed note itself, plus every note that links to it when link
// rewriting is enabled.
type AffectedFile struct {
	Path             string
	PreImageSHA256   string
	PreImageBytesLen int
}

// Manifest is the immutable description of a transaction's intended
// effect, built in Plan and never mutated afterward.
type Manifest struct {
	CorrelationID uuid.UUID
	Operation     string
	OldPath       string
	NewPath       string
	OldStem       string
	NewStem       string
	UpdateLinks   bool
	AffectedFiles []AffectedFile
}

// OperationRename is the only Manifest.Operation value this package
// produces; this engine scopes the transaction manager to rename alone.
const OperationRename = "rename"
