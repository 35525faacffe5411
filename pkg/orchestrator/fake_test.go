package orchestrator_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	batchv1 "k8s.io/api/batch/v1"

	"github.com/3leaps/qpsrunner/pkg/cluster"
	"github.com/3leaps/qpsrunner/pkg/orchestrator"
)

// fakeClock advances instantly on Sleep so poll cycles are deterministic
// and tests never wait on real time.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
	return nil
}

var _ orchestrator.Clock = (*fakeClock)(nil)

// fakeGateway is an in-memory cluster.Gateway scripted per container.
// Phase sequences are consumed one observation per GetPhase call; the
// last entry repeats once the sequence is exhausted.
type fakeGateway struct {
	mu sync.Mutex

	phases     map[string][]cluster.PhaseStatus
	phaseIdx   map[string]int
	phaseCalls map[string]int

	logs         map[string][]byte
	streamChunks [][]byte

	secrets map[string]bool
	jobs    map[string]bool

	deleted   []cluster.ResourceRef
	deleteErr map[string]error

	createSecretErr error
	applyErr        error
	waitReadyErr    error
	waitReadyCalls  int

	podDelayCalls int
	findPodCalls  int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		phases:     map[string][]cluster.PhaseStatus{},
		phaseIdx:   map[string]int{},
		phaseCalls: map[string]int{},
		logs:       map[string][]byte{},
		secrets:    map[string]bool{},
		jobs:       map[string]bool{},
		deleteErr:  map[string]error{},
	}
}

var _ cluster.Gateway = (*fakeGateway)(nil)

func (g *fakeGateway) CreateSecret(ctx context.Context, name, namespace string, data map[string]string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createSecretErr != nil {
		return g.createSecretErr
	}
	key := namespace + "/" + name
	if g.secrets[key] {
		return fmt.Errorf("%w: secret %s", cluster.ErrAlreadyExists, key)
	}
	g.secrets[key] = true
	return nil
}

func (g *fakeGateway) ApplyJob(ctx context.Context, job *batchv1.Job) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.applyErr != nil {
		return g.applyErr
	}
	key := job.Namespace + "/" + job.Name
	if g.jobs[key] {
		return fmt.Errorf("%w: job %s", cluster.ErrAlreadyExists, key)
	}
	g.jobs[key] = true
	return nil
}

func (g *fakeGateway) FindJobPod(ctx context.Context, jobName, namespace string) (cluster.ResourceRef, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.findPodCalls++
	if g.findPodCalls <= g.podDelayCalls {
		return cluster.ResourceRef{}, fmt.Errorf("%w: no pod yet", cluster.ErrNotFound)
	}
	return cluster.ResourceRef{Kind: cluster.KindPod, Name: jobName + "-pod", Namespace: namespace}, nil
}

func (g *fakeGateway) GetPhase(ctx context.Context, ref cluster.ResourceRef, container string) cluster.PhaseStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.phaseCalls[container]++
	seq := g.phases[container]
	if len(seq) == 0 {
		return cluster.PhaseStatus{Phase: cluster.PhaseUnknown}
	}
	i := g.phaseIdx[container]
	if i >= len(seq) {
		i = len(seq) - 1
	} else {
		g.phaseIdx[container]++
	}
	return seq[i]
}

func (g *fakeGateway) FetchLogs(ctx context.Context, ref cluster.ResourceRef, container string) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	data, ok := g.logs[container]
	if !ok {
		return nil, fmt.Errorf("%w: %s", cluster.ErrNotReady, container)
	}
	return data, nil
}

func (g *fakeGateway) StreamLogs(ctx context.Context, ref cluster.ResourceRef, container string) (io.ReadCloser, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var buf bytes.Buffer
	for _, chunk := range g.streamChunks {
		buf.Write(chunk)
	}
	return io.NopCloser(&buf), nil
}

func (g *fakeGateway) Delete(ctx context.Context, ref cluster.ResourceRef) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.deleteErr[ref.String()]; err != nil {
		return err
	}
	g.deleted = append(g.deleted, ref)
	switch ref.Kind {
	case cluster.KindSecret:
		delete(g.secrets, ref.Namespace+"/"+ref.Name)
	case cluster.KindJob:
		delete(g.jobs, ref.Namespace+"/"+ref.Name)
	}
	return nil
}

func (g *fakeGateway) WaitUntilReady(ctx context.Context, ref cluster.ResourceRef, container string, timeout time.Duration) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.waitReadyCalls++
	return g.waitReadyErr
}

func (g *fakeGateway) phaseCallCount(container string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.phaseCalls[container]
}

func (g *fakeGateway) deletedRefs() []cluster.ResourceRef {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]cluster.ResourceRef, len(g.deleted))
	copy(out, g.deleted)
	return out
}
