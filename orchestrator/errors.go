package orchestrator

import (
	"errors"
	"fmt"
)

var (
	// ErrResolution is terminal for the job; it is not retried.
	ErrResolution = errors.New("media resolution failed")
	ErrDownload   = errors.New("media download failed")
)

// StageError records where a job aborted.
type StageError struct {
	JobID  string
	Target string
	Stage  Stage
	Err    error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("job %s (%s) failed at %s: %v", e.JobID, e.Target, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// PanicError wraps a panic recovered from a pipeline task.
type PanicError struct {
	Task  string
	Value any
}

func (e PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Task, e.Value)
}
