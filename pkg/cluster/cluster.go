// Package cluster defines the capability interface between the run
// orchestrator and the Kubernetes control plane.
//
// The orchestrator never talks to the cluster except through the Gateway
// interface. This keeps the orchestration logic independent of the client
// transport and allows a fake gateway in tests.
package cluster

import (
	"context"
	"io"
	"time"

	batchv1 "k8s.io/api/batch/v1"
)

// Kind identifies the type of a cluster-side resource.
type Kind string

const (
	KindSecret    Kind = "secret"
	KindConfigMap Kind = "configmap"
	KindJob       Kind = "job"
	KindPod       Kind = "pod"
)

// ResourceRef is a typed handle to a namespaced cluster resource.
type ResourceRef struct {
	Kind      Kind
	Name      string
	Namespace string
}

// String returns "kind/namespace/name" for logs and error messages.
func (r ResourceRef) String() string {
	return string(r.Kind) + "/" + r.Namespace + "/" + r.Name
}

// Phase is the observed lifecycle phase of a container.
type Phase string

const (
	// PhasePending means the container has not started yet.
	PhasePending Phase = "pending"

	// PhaseRunning means the container is executing.
	PhaseRunning Phase = "running"

	// PhaseTerminated means the container has exited. ExitCode is valid.
	PhaseTerminated Phase = "terminated"

	// PhaseUnknown means the observation failed transiently. Callers must
	// treat this as "no information", not as a failure.
	PhaseUnknown Phase = "unknown"
)

// PhaseStatus is a single observation of a container's lifecycle phase.
//
// A PhaseStatus is valid for one poll cycle only. Callers must re-fetch
// rather than cache: a stale observation would corrupt gating decisions.
type PhaseStatus struct {
	// Phase is the observed phase.
	Phase Phase

	// ExitCode is the container exit code. Only meaningful when Phase is
	// PhaseTerminated.
	ExitCode int32
}

// Terminated reports whether the observation is a terminal one.
func (s PhaseStatus) Terminated() bool {
	return s.Phase == PhaseTerminated
}

// Gateway is the capability interface over the cluster control plane.
//
// Implementations must be stateless with respect to runs: the same
// Gateway value is invoked concurrently from the completion poller and
// the log streamer without additional locking.
type Gateway interface {
	// CreateSecret creates an opaque secret with the given string data.
	// Returns ErrAlreadyExists if a secret with that name exists; callers
	// that need idempotent re-runs delete before creating.
	CreateSecret(ctx context.Context, name, namespace string, data map[string]string) error

	// ApplyJob submits the job object to the cluster.
	// Returns ErrInvalidManifest if the control plane rejects the spec,
	// or ErrAlreadyExists if a job with that name exists.
	ApplyJob(ctx context.Context, job *batchv1.Job) error

	// FindJobPod resolves the pod created for the named job.
	// Returns ErrNotFound until the control plane has scheduled one.
	FindJobPod(ctx context.Context, jobName, namespace string) (ResourceRef, error)

	// GetPhase observes the lifecycle phase of one container of a pod.
	// It never blocks and never returns an error: transient lookup
	// failures yield PhaseUnknown so the poller can retry.
	GetPhase(ctx context.Context, ref ResourceRef, container string) PhaseStatus

	// FetchLogs returns the currently available logs of a container as a
	// single read. Returns ErrNotReady if the container has not started.
	FetchLogs(ctx context.Context, ref ResourceRef, container string) ([]byte, error)

	// StreamLogs opens a follow-mode log stream for a container. The
	// returned reader ends when the container terminates, the stream
	// drops, or ctx is cancelled. Returns ErrNotReady if the container
	// has not started.
	StreamLogs(ctx context.Context, ref ResourceRef, container string) (io.ReadCloser, error)

	// Delete removes a resource. Deletion is idempotent: a missing
	// resource is success, not ErrNotFound.
	Delete(ctx context.Context, ref ResourceRef) error

	// WaitUntilReady blocks until the named container of the pod is
	// running or terminated, up to timeout. Returns ErrWaitTimeout when
	// the deadline elapses first.
	WaitUntilReady(ctx context.Context, ref ResourceRef, container string, timeout time.Duration) error
}
