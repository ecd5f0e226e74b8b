package ingest

import "fmt"

// Stage names the pipeline step a batch failure occurred in.
type Stage string

const (
	StageParse     Stage = "parse"
	StageDedup     Stage = "dedup"
	StagePersist   Stage = "persist"
	StageReconcile Stage = "reconcile"
)

// Error is a batch-level ingestion failure. Row-level problems are
// absorbed and logged; these surface to the caller.
type Error struct {
	Stage  Stage
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Stage, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }
