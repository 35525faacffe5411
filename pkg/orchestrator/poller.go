package orchestrator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/3leaps/qpsrunner/pkg/cluster"
)

// PollState is the poller's terminal classification of a phase.
type PollState string

const (
	// PollReady means the container terminated with exit code 0.
	PollReady PollState = "ready"

	// PollFailed means the container terminated non-zero.
	PollFailed PollState = "failed"

	// PollTimedOut means the phase deadline elapsed first.
	PollTimedOut PollState = "timed_out"
)

// PollResult is the outcome of one polling phase.
type PollResult struct {
	State PollState

	// ExitCode is valid for PollReady (always 0) and PollFailed.
	ExitCode int32
}

// Poller watches one container's lifecycle phase until it terminates or
// a deadline elapses. The same poller drives both the pre-check phase
// and the workload phase; only the target container and deadline differ.
type Poller struct {
	gateway  cluster.Gateway
	interval time.Duration
	clock    Clock
	log      *zap.Logger
}

// NewPoller creates a poller observing through the given gateway every
// interval.
func NewPoller(gateway cluster.Gateway, interval time.Duration, clock Clock, log *zap.Logger) *Poller {
	if clock == nil {
		clock = realClock{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Poller{gateway: gateway, interval: interval, clock: clock, log: log}
}

// Poll observes the container every interval until it terminates or
// deadline elapses.
//
// Each cycle re-fetches the phase; observations are never cached.
// PhaseUnknown keeps waiting: a transient control-plane read failure
// must not fail the run. A terminated observation always wins over a
// deadline expiring in the same cycle.
//
// The returned error is non-nil only when ctx was cancelled, which the
// caller treats as an operator abort.
func (p *Poller) Poll(ctx context.Context, ref cluster.ResourceRef, container string, deadline time.Duration) (PollResult, error) {
	start := p.clock.Now()
	for {
		status := p.gateway.GetPhase(ctx, ref, container)
		if status.Terminated() {
			if status.ExitCode == 0 {
				return PollResult{State: PollReady}, nil
			}
			p.log.Debug("Container terminated non-zero",
				zap.String("container", container),
				zap.Int32("exit_code", status.ExitCode))
			return PollResult{State: PollFailed, ExitCode: status.ExitCode}, nil
		}

		if p.clock.Now().Sub(start) >= deadline {
			p.log.Debug("Phase deadline elapsed",
				zap.String("container", container),
				zap.Duration("deadline", deadline))
			return PollResult{State: PollTimedOut}, nil
		}

		if err := p.clock.Sleep(ctx, p.interval); err != nil {
			return PollResult{State: PollTimedOut}, err
		}
	}
}
