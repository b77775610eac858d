package render

import (
	"context"
	"fmt"

	"github.com/sofmeright/buildfreight/src/manifest"
)

// Phase is the lifecycle state of a submitted build.
type Phase string

const (
	PhaseNew       Phase = "New"
	PhasePending   Phase = "Pending"
	PhaseRunning   Phase = "Running"
	PhaseComplete  Phase = "Complete"
	PhaseFailed    Phase = "Failed"
	PhaseError     Phase = "Error"
	PhaseCancelled Phase = "Cancelled"
)

// Status is what the cluster reports about a build.
type Status struct {
	Name    string
	Phase   Phase
	Message string
}

// Terminal reports whether the build has stopped for good.
func (s Status) Terminal() bool {
	switch s.Phase {
	case PhaseComplete, PhaseFailed, PhaseError, PhaseCancelled:
		return true
	}
	return false
}

// Succeeded reports whether the build completed.
func (s Status) Succeeded() bool { return s.Phase == PhaseComplete }

// Transport submits rendered manifests to a cluster. Rendering never calls
// it; retries belong to implementations.
type Transport interface {
	Submit(ctx context.Context, m *manifest.Manifest) (handle string, err error)
	Get(ctx context.Context, handle string) (Status, error)
	WatchUntilTerminal(ctx context.Context, handle string) (Status, error)
}

// SubmitAndWait submits m and waits for the build to finish. A build that
// ends in any phase but Complete is an error.
func SubmitAndWait(ctx context.Context, t Transport, m *manifest.Manifest) (Status, error) {
	handle, err := t.Submit(ctx, m)
	if err != nil {
		return Status{}, fmt.Errorf("submitting %s: %w", m.Name(), err)
	}
	st, err := t.WatchUntilTerminal(ctx, handle)
	if err != nil {
		return st, fmt.Errorf("watching %s: %w", handle, err)
	}
	if !st.Succeeded() {
		return st, fmt.Errorf("build %s ended %s: %s", handle, st.Phase, st.Message)
	}
	return st, nil
}
