// Package recovery implements the boot recovery pass: a one-shot scan of
// the WAL directory, run once per process before the RPC shell starts
// accepting traffic, that rolls back every transaction left behind by a
// crash.
package recovery

import (
	"context"
	"time"

	"github.com/shayonpal/lifeos-vault-core/internal/txn"
)

// MinAge is the default grace window before a WAL entry is eligible for
// recovery: an entry younger than this is assumed to belong to a
// transaction still in flight in another process, and is left alone.
const MinAge = time.Minute

// Outcome is the outcome recorded for one recovered WAL entry.
type Outcome struct {
	CorrelationID string
	Status        string // "succeeded", "partial", or "failed"
	Detail        string
}

// Report is the full result of one Run call.
type Report struct {
	Outcomes []Outcome
	Skipped  []string // WAL files that failed to parse and were skipped
}

// Run scans mgr's WAL directory for every entry older than minAge and
// rolls each one back via txnMgr.Rollback. It never blocks process
// startup on a failure: every entry is attempted and its outcome
// recorded, regardless of what happened to entries before it.
//
// Run is idempotent: running it twice in a row has the same effect as
// running it once, because Rollback itself is idempotent against an
// already-clean correlation ID.
func Run(ctx context.Context, txnMgr *txn.Manager, minAge time.Duration, now time.Time) Report {
	entries, skipped, err := txnMgr.WAL().ScanPending(minAge, now)
	if err != nil {
		return Report{Skipped: skipped}
	}

	report := Report{Skipped: skipped}

	for _, e := range entries {
		outcome, rbErr := txnMgr.Rollback(ctx, e.CorrelationID)

		report.Outcomes = append(report.Outcomes, toOutcome(e.CorrelationID.String(), outcome, rbErr))
	}

	return report
}

func toOutcome(id string, outcome txn.RollbackOutcome, err error) Outcome {
	if err != nil {
		return Outcome{CorrelationID: id, Status: "failed", Detail: err.Error()}
	}

	if outcome.Succeeded {
		return Outcome{CorrelationID: id, Status: "succeeded"}
	}

	return Outcome{CorrelationID: id, Status: "partial", Detail: outcome.Instructions}
}
