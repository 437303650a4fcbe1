package txn

import (
	"time"

	"github.com/google/uuid"
)

// PhaseTiming records how long one phase of a completed transaction took.
type PhaseTiming struct {
	Phase    string
	Duration time.Duration
}

// Result is what a successful Run returns.
type Result struct {
	CorrelationID uuid.UUID
	OldPath       string
	NewPath       string
	FilesAffected int
	PhaseTimings  []PhaseTiming
}
