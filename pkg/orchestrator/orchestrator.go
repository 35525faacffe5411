package orchestrator

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/3leaps/qpsrunner/pkg/cluster"
	"github.com/3leaps/qpsrunner/pkg/manifest"
)

// State names a position in the run state machine. States are logged at
// every transition; transitions are strictly sequential except for the
// streamer running alongside the completion poller during Streaming.
type State string

const (
	StateIdle         State = "idle"
	StateProvisioning State = "provisioning"
	StateAwaitingInit State = "awaiting_init"
	StateInitFailed   State = "init_failed"
	StateAwaitingMain State = "awaiting_main"
	StateStreaming    State = "streaming"
	StateCompleted    State = "completed"
	StateCleaningUp   State = "cleaning_up"
	StateDone         State = "done"
)

// Orchestrator drives one benchmark run. It owns the provisioned
// resource set for the duration of the run; no other component creates
// or deletes cluster resources.
//
// An Orchestrator is safe for single use only. Create a new one per run.
type Orchestrator struct {
	gateway cluster.Gateway
	sink    io.Writer
	clock   Clock
	log     *zap.Logger

	state     State
	resources []cluster.ResourceRef
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithClock injects a clock, used by tests to avoid real waits.
func WithClock(c Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

// WithLogger sets the structured logger for state transitions.
func WithLogger(log *zap.Logger) Option {
	return func(o *Orchestrator) { o.log = log }
}

// New creates an orchestrator writing relayed workload output to sink.
func New(gateway cluster.Gateway, sink io.Writer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		gateway: gateway,
		sink:    sink,
		clock:   realClock{},
		log:     zap.NewNop(),
		state:   StateIdle,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// transition moves the state machine and logs the edge.
func (o *Orchestrator) transition(next State) {
	o.log.Info("State transition",
		zap.String("from", string(o.state)),
		zap.String("to", string(next)))
	o.state = next
}

// track records a successfully created resource for teardown.
func (o *Orchestrator) track(ref cluster.ResourceRef) {
	o.resources = append(o.resources, ref)
}

// Run executes the full lifecycle for one request and always returns a
// Result. The returned error classifies a failed run (ErrProvisioning,
// ErrInitCheckFailed, ErrWorkloadFailed, ErrTimedOut, ErrAborted) and
// is nil for success.
//
// Cleanup is unconditional: it runs on success, failure, deadline
// expiry, and ctx cancellation, on a fresh context so an interrupt
// cannot skip teardown.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	req = req.withDefaults()
	start := o.clock.Now()

	capture := &captureWriter{tee: o.sink}
	result := &Result{RunID: req.RunID, Outcome: OutcomeAborted}

	defer func() {
		o.cleanup(ctx, req, result)
		result.Logs = capture.Bytes()
		result.Duration = o.clock.Now().Sub(start)
		o.transition(StateDone)
	}()

	// Provisioning: delete-before-create so a re-run after a crash never
	// fails on AlreadyExists.
	o.transition(StateProvisioning)
	podRef, err := o.provision(ctx, req)
	if err != nil {
		o.log.Error("Provisioning failed", zap.Error(err))
		result.Outcome = OutcomeAborted
		return result, fmt.Errorf("%w: %v", ErrProvisioning, err)
	}

	poller := NewPoller(o.gateway, req.PollInterval, o.clock, o.log)

	// Init gate: the workload is only allowed to start when the
	// connectivity pre-check terminates successfully.
	o.transition(StateAwaitingInit)
	initRes, err := poller.Poll(ctx, podRef, manifest.InitContainerName, req.InitDeadline)
	if err != nil {
		return result, fmt.Errorf("%w: %v", ErrAborted, err)
	}
	switch initRes.State {
	case PollReady:
		result.InitObserved = true
		result.InitExitCode = 0
	case PollFailed:
		o.transition(StateInitFailed)
		result.Outcome = OutcomeInitFailed
		result.InitObserved = true
		result.InitExitCode = initRes.ExitCode
		o.surfaceLogs(ctx, capture, podRef, manifest.InitContainerName)
		return result, ErrInitCheckFailed
	case PollTimedOut:
		o.transition(StateInitFailed)
		result.Outcome = OutcomeTimedOut
		o.surfaceLogs(ctx, capture, podRef, manifest.InitContainerName)
		return result, ErrTimedOut
	}

	// The main container becoming ready is a separate bounded wait:
	// "ready" is not "terminated", so this is not a poll phase.
	o.transition(StateAwaitingMain)
	if err := o.gateway.WaitUntilReady(ctx, podRef, manifest.MainContainerName, req.ReadyDeadline); err != nil {
		if ctx.Err() != nil {
			return result, fmt.Errorf("%w: %v", ErrAborted, ctx.Err())
		}
		result.Outcome = OutcomeTimedOut
		o.surfaceLogs(ctx, capture, podRef, manifest.MainContainerName)
		return result, fmt.Errorf("%w: %v", ErrTimedOut, err)
	}

	// Streaming: relay output while polling for completion. Completion
	// detection belongs to the poller alone; a dropped stream does not
	// end the run.
	o.transition(StateStreaming)
	streamCtx, cancelStream := context.WithCancel(ctx)
	streamer := NewStreamer(o.gateway, req.PollInterval, o.clock, o.log)
	streamDone := make(chan struct{})
	go func() {
		defer close(streamDone)
		if err := streamer.Stream(streamCtx, podRef, manifest.MainContainerName, capture); err != nil {
			o.log.Warn("Log streaming failed", zap.Error(err))
		}
	}()

	mainRes, pollErr := poller.Poll(ctx, podRef, manifest.MainContainerName, req.OverallDeadline)

	// Cancel the streamer first, then do one unconditional fetch: log
	// delivery over a live stream is not gap-free, and the fetch
	// captures bytes emitted between stream closure and termination.
	cancelStream()
	<-streamDone
	o.finalLogFetch(ctx, capture, podRef)

	if pollErr != nil {
		return result, fmt.Errorf("%w: %v", ErrAborted, pollErr)
	}

	o.transition(StateCompleted)
	switch mainRes.State {
	case PollReady:
		code := int32(0)
		result.Outcome = OutcomeSucceeded
		result.MainExitCode = &code
		return result, nil
	case PollFailed:
		code := mainRes.ExitCode
		result.Outcome = OutcomeWorkloadFailed
		result.MainExitCode = &code
		return result, ErrWorkloadFailed
	default:
		result.Outcome = OutcomeTimedOut
		return result, ErrTimedOut
	}
}

// provision creates the secret and the job, tracks each created
// resource, and resolves the job's pod.
func (o *Orchestrator) provision(ctx context.Context, req Request) (cluster.ResourceRef, error) {
	var none cluster.ResourceRef
	secretRef := cluster.ResourceRef{
		Kind:      cluster.KindSecret,
		Name:      req.Manifest.SecretName,
		Namespace: req.Manifest.Namespace,
	}
	jobRef := cluster.ResourceRef{
		Kind:      cluster.KindJob,
		Name:      req.Manifest.JobName,
		Namespace: req.Manifest.Namespace,
	}

	// Leftovers from a crashed previous run are deleted first. Both
	// deletes treat NotFound as success.
	if err := o.gateway.Delete(ctx, jobRef); err != nil {
		return none, err
	}
	if err := o.gateway.Delete(ctx, secretRef); err != nil {
		return none, err
	}

	if err := o.gateway.CreateSecret(ctx, req.Manifest.SecretName, req.Manifest.Namespace, req.SecretData); err != nil {
		return none, err
	}
	o.track(secretRef)

	job, err := manifest.Build(req.Manifest)
	if err != nil {
		return none, err
	}
	if err := o.gateway.ApplyJob(ctx, job); err != nil {
		return none, err
	}
	o.track(jobRef)

	return o.awaitPod(ctx, req)
}

// awaitPod polls for the job's pod until the control plane schedules
// one, bounded by the init deadline.
func (o *Orchestrator) awaitPod(ctx context.Context, req Request) (cluster.ResourceRef, error) {
	start := o.clock.Now()
	for {
		podRef, err := o.gateway.FindJobPod(ctx, req.Manifest.JobName, req.Manifest.Namespace)
		if err == nil {
			return podRef, nil
		}
		if !cluster.IsNotFound(err) {
			return cluster.ResourceRef{}, err
		}
		if o.clock.Now().Sub(start) >= req.InitDeadline {
			return cluster.ResourceRef{}, fmt.Errorf("no pod scheduled for job %s within %s", req.Manifest.JobName, req.InitDeadline)
		}
		if err := o.clock.Sleep(ctx, req.PollInterval); err != nil {
			return cluster.ResourceRef{}, err
		}
	}
}

// surfaceLogs fetches a failed container's logs into the capture. The
// logs are the operator's only diagnostic signal, so this runs before
// teardown; fetch failures are logged and swallowed.
func (o *Orchestrator) surfaceLogs(ctx context.Context, capture io.Writer, ref cluster.ResourceRef, container string) {
	fetchCtx := context.WithoutCancel(ctx)
	data, err := o.gateway.FetchLogs(fetchCtx, ref, container)
	if err != nil {
		o.log.Warn("Could not fetch diagnostic logs",
			zap.String("container", container),
			zap.Error(err))
		return
	}
	_, _ = capture.Write(data)
}

// finalLogFetch is the one unconditional post-stream fetch of the
// workload's full output.
func (o *Orchestrator) finalLogFetch(ctx context.Context, capture io.Writer, ref cluster.ResourceRef) {
	fetchCtx := context.WithoutCancel(ctx)
	data, err := o.gateway.FetchLogs(fetchCtx, ref, manifest.MainContainerName)
	if err != nil {
		o.log.Warn("Final log fetch failed", zap.Error(err))
		return
	}
	_, _ = capture.Write(data)
}

// cleanup deletes every tracked resource, best-effort. It runs on a
// fresh context so a cancelled run context cannot skip teardown.
// Failures are recorded on the result and never escalate: a failed
// deletion must not mask the run's actual outcome.
func (o *Orchestrator) cleanup(ctx context.Context, req Request, result *Result) {
	o.transition(StateCleaningUp)
	if len(o.resources) == 0 {
		return
	}

	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), req.CleanupTimeout)
	defer cancel()

	// Reverse creation order: the job goes before the secret it
	// references.
	var remaining []cluster.ResourceRef
	for i := len(o.resources) - 1; i >= 0; i-- {
		ref := o.resources[i]
		if err := o.gateway.Delete(cleanupCtx, ref); err != nil {
			o.log.Error("Cleanup deletion failed",
				zap.String("resource", ref.String()),
				zap.Error(err))
			result.Leaked = append(result.Leaked, ref)
			remaining = append(remaining, ref)
			continue
		}
		o.log.Info("Deleted resource", zap.String("resource", ref.String()))
	}
	o.resources = remaining
}

// Resources returns the currently tracked provisioned resources. Empty
// after a clean run.
func (o *Orchestrator) Resources() []cluster.ResourceRef {
	return o.resources
}

// captureWriter accumulates all relayed bytes for the Result while
// teeing them to the run sink. Safe for concurrent writers.
type captureWriter struct {
	mu  sync.Mutex
	buf bytes.Buffer
	tee io.Writer
}

func (c *captureWriter) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf.Write(p)
	if c.tee != nil {
		_, _ = c.tee.Write(p)
	}
	return len(p), nil
}

func (c *captureWriter) Bytes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]byte, c.buf.Len())
	copy(out, c.buf.Bytes())
	return out
}
