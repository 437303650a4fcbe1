// Package rename is the thin facade that fronts the rename engine: the
// only entry point an RPC shell would call, translating its input into a
// transaction-manager plan/run and shaping whatever comes back (success,
// dry-run preview, or a structured error) into RPC-friendly values.
package rename

import (
	"context"
	"errors"
	"time"

	"github.com/shayonpal/lifeos-vault-core/internal/txn"
)

// Input is what a caller (the RPC shell, or this repo's CLI standing in
// for it) asks for.
type Input struct {
	Old         string
	NewFilename string
	UpdateLinks bool
	DryRun      bool
}

// Result is the shape returned on a successful rename.
type Result struct {
	Success       bool
	CorrelationID string
	OldPath       string
	NewPath       string
	FilesAffected int
	PhaseTimings  []txn.PhaseTiming
}

// LinkUpdates is the dry-run preview's link-rewrite summary.
type LinkUpdates struct {
	FilesWithLinks  int
	AffectedPaths   []string
	TotalReferences int
}

// EstimatedTime is a {min,max} millisecond pair; Min is always <= Max.
type EstimatedTime struct {
	MinMS int64
	MaxMS int64
}

// Preview is returned instead of a Result when Input.DryRun is set.
type Preview struct {
	Operation         string
	OldPath           string
	NewPath           string
	WillUpdateLinks   bool
	FilesAffected     int
	LinkUpdates       *LinkUpdates
	TransactionPhases []string
	EstimatedTime     EstimatedTime
}

// transactionPhases is the fixed phase sequence a successful rename
// transaction walks through, in order; a failure stops the sequence and
// aborts instead.
var transactionPhases = []string{"plan", "prepare", "validate", "commit", "success"}

// Engine is the front door: construct one per vault root and reuse it
// across requests (one in-flight rename per process; Engine itself holds
// no per-call mutable state).
type Engine struct {
	txnMgr    *txn.Manager
	vaultRoot string
}

// NewEngine builds the front door over an already-configured transaction
// manager and the vault root it operates on.
func NewEngine(txnMgr *txn.Manager, vaultRoot string) *Engine {
	if txnMgr == nil {
		panic("txnMgr is nil")
	}

	return &Engine{txnMgr: txnMgr, vaultRoot: vaultRoot}
}

// Rename performs the rename engine's single operation. Exactly one of
// the three return values is non-nil: Result on success, Preview when
// in.DryRun is set, or an error (always a *txn.Error) otherwise.
func (e *Engine) Rename(ctx context.Context, in Input) (*Result, *Preview, error) {
	if in.Old == "" || in.NewFilename == "" {
		return nil, nil, &txn.Error{Kind: txn.KindInvalidPath, Err: errors.New("old and new_filename are required")}
	}

	planStart := time.Now()

	plan, err := e.txnMgr.Plan(ctx, txn.Input{
		VaultRoot:   e.vaultRoot,
		OldPath:     in.Old,
		NewFilename: in.NewFilename,
		UpdateLinks: in.UpdateLinks,
	})
	if err != nil {
		return nil, nil, err
	}

	planTiming := txn.PhaseTiming{Phase: "plan", Duration: time.Since(planStart)}

	if in.DryRun {
		return nil, buildPreview(plan, in.UpdateLinks), nil
	}

	result, err := e.txnMgr.Run(ctx, plan)
	if err != nil {
		return nil, nil, err
	}

	return &Result{
		Success:       true,
		CorrelationID: result.CorrelationID.String(),
		OldPath:       result.OldPath,
		NewPath:       result.NewPath,
		FilesAffected: result.FilesAffected,
		PhaseTimings:  append([]txn.PhaseTiming{planTiming}, result.PhaseTimings...),
	}, nil, nil
}

func buildPreview(plan txn.PlanResult, updateLinks bool) *Preview {
	preview := &Preview{
		Operation:         txn.OperationRename,
		OldPath:           plan.Manifest.OldPath,
		NewPath:           plan.Manifest.NewPath,
		WillUpdateLinks:   updateLinks,
		FilesAffected:     len(plan.Manifest.AffectedFiles),
		TransactionPhases: transactionPhases,
		EstimatedTime:     estimateDuration(len(plan.Manifest.AffectedFiles)),
	}

	if updateLinks {
		preview.LinkUpdates = buildLinkUpdates(plan)
	}

	return preview
}

func buildLinkUpdates(plan txn.PlanResult) *LinkUpdates {
	paths := make([]string, 0, len(plan.Changes))
	total := 0

	for _, c := range plan.Changes {
		if c.Path == plan.Manifest.OldPath {
			continue // the renamed note's own self-links aren't an "inbound" update
		}

		paths = append(paths, c.Path)
		total += c.LinksUpdated
	}

	return &LinkUpdates{
		FilesWithLinks:  len(paths),
		AffectedPaths:   paths,
		TotalReferences: total,
	}
}

// Estimate parameters: a fixed overhead per transaction plus a range
// that scales linearly with the number of affected files.
const (
	estimateOverheadMS   = 50
	estimatePerFileMinMS = 5
	estimatePerFileMaxMS = 25
)

func estimateDuration(filesAffected int) EstimatedTime {
	return EstimatedTime{
		MinMS: estimateOverheadMS + int64(filesAffected)*estimatePerFileMinMS,
		MaxMS: estimateOverheadMS + int64(filesAffected)*estimatePerFileMaxMS,
	}
}
