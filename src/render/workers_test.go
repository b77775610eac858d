package render

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sofmeright/buildfreight/src/manifest"
	"github.com/sofmeright/buildfreight/src/params"
)

func TestRenderWorkers(t *testing.T) {
	orch := userParams(t, map[string]any{
		params.Platforms:    []string{"x86_64", "ppc64le", "aarch64"},
		params.RegistryURIs: []string{"https://registry.example.com/v2"},
	})
	results, err := newEngine().RenderWorkers(context.Background(), Request{Params: orch}, orch.Strings(params.Platforms), 2)
	if err != nil {
		t.Fatalf("RenderWorkers: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d workers", len(results))
	}
	for _, platform := range []string{"x86_64", "ppc64le", "aarch64"} {
		res := results[platform]
		if res == nil {
			t.Fatalf("no result for %s", platform)
		}
		if got, want := res.Manifest.Name(), testName+"-"+platform; got != want {
			t.Errorf("%s name = %q, want %q", platform, got, want)
		}
		if got, want := res.Manifest.OutputTag(), testImageTag+"-"+platform; got != want {
			t.Errorf("%s output tag = %q, want %q", platform, got, want)
		}
	}
	if orch.String(params.Platform) != "" || len(orch.Strings(params.Platforms)) != 3 {
		t.Error("orchestrator parameters were modified")
	}
}

func TestRenderWorkersFailsAsAWhole(t *testing.T) {
	orch := userParams(t, map[string]any{params.Isolated: true, params.Release: "abc"})
	results, err := newEngine().RenderWorkers(context.Background(), Request{Params: orch}, []string{"x86_64", "ppc64le"}, 0)
	if results != nil {
		t.Error("failed fan-out returned results")
	}
	var verr *params.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("err = %v, want ValidationError", err)
	}
}

type fakeTransport struct {
	submitted []*manifest.Manifest
	final     Status
}

func (f *fakeTransport) Submit(_ context.Context, m *manifest.Manifest) (string, error) {
	f.submitted = append(f.submitted, m)
	return "build-1", nil
}

func (f *fakeTransport) Get(_ context.Context, handle string) (Status, error) {
	return Status{Name: handle, Phase: PhaseRunning}, nil
}

func (f *fakeTransport) WatchUntilTerminal(_ context.Context, handle string) (Status, error) {
	st := f.final
	st.Name = handle
	return st, nil
}

func TestSubmitAndWait(t *testing.T) {
	res := render(t, newEngine(), Orchestrator, userParams(t, nil), nil)

	ok := &fakeTransport{final: Status{Phase: PhaseComplete}}
	st, err := SubmitAndWait(context.Background(), ok, res.Manifest)
	if err != nil || !st.Terminal() || !st.Succeeded() {
		t.Errorf("SubmitAndWait = %+v, %v", st, err)
	}
	if len(ok.submitted) != 1 || ok.submitted[0] != res.Manifest {
		t.Error("manifest not submitted")
	}

	failed := &fakeTransport{final: Status{Phase: PhaseFailed, Message: "boom"}}
	_, err = SubmitAndWait(context.Background(), failed, res.Manifest)
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("err = %v", err)
	}
}

func TestStatusTerminal(t *testing.T) {
	for phase, want := range map[Phase]bool{
		PhaseNew: false, PhasePending: false, PhaseRunning: false,
		PhaseComplete: true, PhaseFailed: true, PhaseError: true, PhaseCancelled: true,
	} {
		if got := (Status{Phase: phase}).Terminal(); got != want {
			t.Errorf("%s Terminal = %v, want %v", phase, got, want)
		}
	}
}
