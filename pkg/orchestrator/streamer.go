package orchestrator

import (
	"context"
	"errors"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/3leaps/qpsrunner/pkg/cluster"
)

// Streamer relays a container's log stream into an output sink while
// the completion poller runs alongside it.
//
// The streamer never decides run completion: if the stream ends while
// ctx is still alive (the kubelet dropped it, or the container finished
// before the poller observed it), the streamer simply returns and the
// orchestrator's final log fetch captures anything that was missed.
type Streamer struct {
	gateway cluster.Gateway
	clock   Clock
	retry   time.Duration
	log     *zap.Logger
}

// NewStreamer creates a streamer. retry paces re-attempts while the
// container has not started yet.
func NewStreamer(gateway cluster.Gateway, retry time.Duration, clock Clock, log *zap.Logger) *Streamer {
	if clock == nil {
		clock = realClock{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Streamer{gateway: gateway, clock: clock, retry: retry, log: log}
}

// Stream opens the container's follow-mode log stream and copies it
// into sink until the stream ends or ctx is cancelled. ErrNotReady from
// the gateway is retried every retry interval.
//
// Stream never returns ctx.Err(): cancellation is the expected shutdown
// path, not a failure.
func (s *Streamer) Stream(ctx context.Context, ref cluster.ResourceRef, container string, sink io.Writer) error {
	var rc io.ReadCloser
	for {
		var err error
		rc, err = s.gateway.StreamLogs(ctx, ref, container)
		if err == nil {
			break
		}
		if !cluster.IsNotReady(err) {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if serr := s.clock.Sleep(ctx, s.retry); serr != nil {
			return nil
		}
	}
	defer func() { _ = rc.Close() }()

	_, err := io.Copy(sink, rc)
	if err != nil && !errors.Is(err, context.Canceled) && ctx.Err() == nil {
		s.log.Debug("Log stream ended with error", zap.Error(err))
	}
	return nil
}
