// Package orchestrator runs one benchmark job on a cluster from start
// to finish: provision credentials and the job object, gate on the
// connectivity pre-check, stream workload output while polling for
// completion, and tear down everything that was provisioned on every
// exit path.
package orchestrator

import (
	"time"

	"github.com/3leaps/qpsrunner/pkg/manifest"
)

// Default deadlines and pacing for a run.
const (
	DefaultPollInterval    = 2 * time.Second
	DefaultInitDeadline    = 60 * time.Second
	DefaultReadyDeadline   = 2 * time.Minute
	DefaultOverallDeadline = 15 * time.Minute
	DefaultCleanupTimeout  = 2 * time.Minute
)

// Request is the immutable input for one run.
//
// A Request is created once per invocation and never mutated. The
// orchestrator copies it by value; deadline defaults are applied to the
// copy.
type Request struct {
	// RunID correlates log lines and the run artifact. Assigned by the
	// caller, typically a UUID.
	RunID string

	// Manifest parameterizes the generated job object.
	Manifest manifest.Params

	// SecretData is the credential payload for the provisioned secret.
	// Expected keys: access_key, secret_key, and optionally
	// session_token.
	SecretData map[string]string

	// PollInterval paces phase observations. Default: 2s.
	PollInterval time.Duration

	// InitDeadline bounds the connectivity pre-check phase. Default: 60s.
	InitDeadline time.Duration

	// ReadyDeadline bounds the wait for the main container to start
	// after the pre-check passes. Default: 2m.
	ReadyDeadline time.Duration

	// OverallDeadline bounds the main workload phase. Default: 15m.
	OverallDeadline time.Duration

	// CleanupTimeout bounds best-effort teardown. Cleanup runs on a
	// fresh context so an interrupted run still tears down. Default: 2m.
	CleanupTimeout time.Duration
}

// withDefaults returns a copy with zero durations replaced by defaults.
func (r Request) withDefaults() Request {
	if r.PollInterval <= 0 {
		r.PollInterval = DefaultPollInterval
	}
	if r.InitDeadline <= 0 {
		r.InitDeadline = DefaultInitDeadline
	}
	if r.ReadyDeadline <= 0 {
		r.ReadyDeadline = DefaultReadyDeadline
	}
	if r.OverallDeadline <= 0 {
		r.OverallDeadline = DefaultOverallDeadline
	}
	if r.CleanupTimeout <= 0 {
		r.CleanupTimeout = DefaultCleanupTimeout
	}
	return r
}
