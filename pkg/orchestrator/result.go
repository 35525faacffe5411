package orchestrator

import (
	"errors"
	"time"

	"github.com/3leaps/qpsrunner/pkg/cluster"
)

// Outcome is the terminal classification of a run.
type Outcome string

const (
	// OutcomeSucceeded means the pre-check and the workload both exited 0.
	OutcomeSucceeded Outcome = "succeeded"

	// OutcomeInitFailed means the connectivity pre-check failed or timed
	// out; the workload never ran.
	OutcomeInitFailed Outcome = "init_failed"

	// OutcomeWorkloadFailed means the workload terminated non-zero.
	OutcomeWorkloadFailed Outcome = "workload_failed"

	// OutcomeTimedOut means one of the run deadlines elapsed.
	OutcomeTimedOut Outcome = "timed_out"

	// OutcomeAborted means provisioning failed or the operator
	// interrupted the run before completion.
	OutcomeAborted Outcome = "aborted"
)

// Terminal run errors, one per failure class. The run's Result carries
// the detail; these classify it for callers choosing an exit code.
var (
	// ErrProvisioning indicates secret or job creation failed. No
	// polling occurred; partial resources were still torn down.
	ErrProvisioning = errors.New("provisioning failed")

	// ErrInitCheckFailed indicates the connectivity pre-check terminated
	// non-zero.
	ErrInitCheckFailed = errors.New("connectivity pre-check failed")

	// ErrWorkloadFailed indicates the benchmark workload terminated
	// non-zero.
	ErrWorkloadFailed = errors.New("workload failed")

	// ErrTimedOut indicates a run deadline elapsed.
	ErrTimedOut = errors.New("run timed out")

	// ErrAborted indicates the run was interrupted before completion.
	ErrAborted = errors.New("run aborted")
)

// Result is the terminal record of one run. It is produced exactly once
// and never mutated afterwards.
type Result struct {
	// RunID echoes the request's correlation ID.
	RunID string

	// Outcome classifies how the run ended.
	Outcome Outcome

	// InitExitCode is the pre-check container's exit code. Valid only
	// when InitObserved is true.
	InitExitCode int32

	// InitObserved reports whether the pre-check container was seen
	// terminating at all.
	InitObserved bool

	// MainExitCode is the workload's exit code, nil when the workload
	// never terminated (timeout, abort, init failure).
	MainExitCode *int32

	// Logs is the accumulated output: pre-check diagnostics, the
	// relayed workload stream, and the final post-completion fetch.
	Logs []byte

	// Duration is the wall-clock time of the run, cleanup included.
	Duration time.Duration

	// Leaked lists resources whose best-effort deletion failed. An
	// empty list means full teardown.
	Leaked []cluster.ResourceRef
}

// Err maps the outcome to its terminal error class, nil for success.
func (r *Result) Err() error {
	switch r.Outcome {
	case OutcomeSucceeded:
		return nil
	case OutcomeInitFailed:
		return ErrInitCheckFailed
	case OutcomeWorkloadFailed:
		return ErrWorkloadFailed
	case OutcomeTimedOut:
		return ErrTimedOut
	default:
		return ErrAborted
	}
}

// ExitCode derives the process exit code for the run: the workload's
// code when one exists, else the pre-check's non-zero code, else a
// sentinel (124 for timeouts, 130 for aborts, 0 for success).
func (r *Result) ExitCode() int {
	switch r.Outcome {
	case OutcomeSucceeded:
		return 0
	case OutcomeWorkloadFailed:
		if r.MainExitCode != nil && *r.MainExitCode != 0 {
			return int(*r.MainExitCode)
		}
		return 1
	case OutcomeInitFailed:
		if r.InitObserved && r.InitExitCode != 0 {
			return int(r.InitExitCode)
		}
		return 1
	case OutcomeTimedOut:
		return 124
	default:
		return 130
	}
}
