package ibk

import "time"

// Operation status values recorded in the history.
const (
	OperationRunning = "running"
	OperationSuccess = "success"
	OperationPartial = "partial"
	OperationError   = "error"
)

// Operation is one recorded backup, verify or restore invocation.
type Operation struct {
	ID         int64
	Kind       string // "backup", "verify" or "restore"
	Parameters string
	StartedAt  time.Time
	FinishedAt time.Time // zero while the operation is running
	Status     string
	Summary    string // JSON rendering of the run's summary or report
	Failures   int
}

// Finished reports whether FinishOperation was called for this operation.
func (o Operation) Finished() bool {
	return !o.FinishedAt.IsZero()
}

// History persists a log of operations and their per-file failures.
// It is advisory: the manifest remains the only source of truth for what
// is stored in a destination.
type History interface {
	StartOperation(kind, parameters string, startedAt time.Time) (int64, error)
	FinishOperation(id int64, status, summary string, failures []Failure, finishedAt time.Time) error
	ListOperations(limit int) ([]Operation, error)
	OperationFailures(id int64) ([]Failure, error)
	// BackupTo writes a self-contained copy of the history to destPath,
	// which must not exist yet.
	BackupTo(destPath string) error
	Close() error
}
