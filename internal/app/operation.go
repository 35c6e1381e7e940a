package app

import (
	"encoding/json"
	"time"

	"ibk-go/internal/ibk"
)

// Operation kinds recorded in the history.
const (
	KindBackup  = "backup"
	KindVerify  = "verify"
	KindRestore = "restore"
)

// Operation tracks one CLI operation. It is created in memory with ID=0 and
// gets its ID once the history database accepts it.
type Operation struct {
	ID         int64
	Kind       string
	Parameters string
	Status     string
	StartedAt  time.Time
}

// NewOperation creates a new in-memory operation.
func NewOperation(kind, parameters string, startedAt time.Time) *Operation {
	return &Operation{
		Kind:       kind,
		Parameters: parameters,
		Status:     ibk.OperationRunning,
		StartedAt:  startedAt,
	}
}

// Persisted returns true if this operation has been saved to the history.
func (op *Operation) Persisted() bool {
	return op.ID != 0
}

// operationStatus maps the outcome of a run to a history status.
func operationStatus(err error, clean bool) string {
	switch {
	case err != nil:
		return ibk.OperationError
	case !clean:
		return ibk.OperationPartial
	default:
		return ibk.OperationSuccess
	}
}

// begin records op as running. History is advisory: a failure is logged
// and the operation continues unrecorded.
func (a *App) begin(op *Operation) {
	if a.history == nil {
		return
	}
	id, err := a.history.StartOperation(op.Kind, op.Parameters, op.StartedAt)
	if err != nil {
		a.logger.Warn("recording operation failed", "kind", op.Kind, "error", err)
		return
	}
	op.ID = id
	a.logger.Debug("operation started", "id", id, "kind", op.Kind)
}

// end stores the final status, a JSON rendering of result and failures.
func (a *App) end(op *Operation, status string, result any, failures []ibk.Failure) {
	op.Status = status
	if a.history == nil || !op.Persisted() {
		return
	}
	summary, err := json.Marshal(result)
	if err != nil {
		a.logger.Warn("encoding operation summary failed", "id", op.ID, "error", err)
		summary = nil
	}
	if err := a.history.FinishOperation(op.ID, status, string(summary), failures, a.clock.Now()); err != nil {
		a.logger.Warn("finishing operation failed", "id", op.ID, "error", err)
	}
}
