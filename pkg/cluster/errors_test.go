package cluster_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/3leaps/qpsrunner/pkg/cluster"
)

func TestGatewayError_WrapsSentinels(t *testing.T) {
	ref := cluster.ResourceRef{Kind: cluster.KindSecret, Name: "creds", Namespace: "bench"}
	err := &cluster.GatewayError{
		Op:  "CreateSecret",
		Ref: ref,
		Err: fmt.Errorf("%w: secrets \"creds\" already exists", cluster.ErrAlreadyExists),
	}

	assert.True(t, cluster.IsAlreadyExists(err))
	assert.False(t, cluster.IsNotFound(err))
	assert.Contains(t, err.Error(), "CreateSecret")
	assert.Contains(t, err.Error(), "secret/bench/creds")
	assert.ErrorIs(t, err, cluster.ErrAlreadyExists)
}

func TestIsHelpers(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		check    func(error) bool
		expected bool
	}{
		{"not found", cluster.ErrNotFound, cluster.IsNotFound, true},
		{"wrapped not found", fmt.Errorf("delete: %w", cluster.ErrNotFound), cluster.IsNotFound, true},
		{"not ready", cluster.ErrNotReady, cluster.IsNotReady, true},
		{"unauthorized", cluster.ErrUnauthorized, cluster.IsUnauthorized, true},
		{"wait timeout", cluster.ErrWaitTimeout, cluster.IsWaitTimeout, true},
		{"unrelated", errors.New("boom"), cluster.IsNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.check(tt.err))
		})
	}
}

func TestResourceRefString(t *testing.T) {
	ref := cluster.ResourceRef{Kind: cluster.KindJob, Name: "qps-bench", Namespace: "bench"}
	assert.Equal(t, "job/bench/qps-bench", ref.String())
}

func TestPhaseStatusTerminated(t *testing.T) {
	assert.True(t, cluster.PhaseStatus{Phase: cluster.PhaseTerminated}.Terminated())
	assert.False(t, cluster.PhaseStatus{Phase: cluster.PhaseRunning}.Terminated())
	assert.False(t, cluster.PhaseStatus{Phase: cluster.PhaseUnknown}.Terminated())
}
