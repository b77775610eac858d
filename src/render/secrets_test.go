package render

import (
	"encoding/json"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"

	"github.com/sofmeright/buildfreight/src/manifest"
	"github.com/sofmeright/buildfreight/src/pipeline"
	"github.com/sofmeright/buildfreight/src/templates"
)

func strategyManifest(extra map[string]any) *manifest.Manifest {
	cs := map[string]any{"env": []any{}}
	for k, v := range extra {
		cs[k] = v
	}
	return manifest.FromMap(map[string]any{
		"spec": map[string]any{"strategy": map[string]any{"customStrategy": cs}},
	})
}

func TestBindSecrets(t *testing.T) {
	m := strategyManifest(nil)
	p := pipeline.New()
	p.AddOrReplacePlugin(pipeline.PreBuild, "koji", nil)

	reqs := []SecretRequest{
		{Target: SecretTarget{Phase: pipeline.PreBuild, Plugin: "koji", Arg: "koji_ssl_certs"}, Names: []string{"kojisecret"}},
		{Target: SecretTarget{Phase: pipeline.Exit, Plugin: "koji_import", Arg: "koji_ssl_certs"}, Names: []string{"importsecret"}},
		{Target: SecretTarget{Phase: pipeline.PostBuild, Plugin: "tag_and_push"}, Names: []string{"regsecret"}},
		{Target: SecretTarget{Phase: pipeline.PreBuild, Plugin: "koji", Arg: "again"}, Names: []string{"kojisecret"}},
		{Target: SecretTarget{Phase: pipeline.PreBuild, Plugin: "reactor_config"}, Names: []string{"token"}, MountPath: "/var/run/secrets/tokens/token"},
	}
	if err := BindSecrets(m, p, reqs, quietLogger()); err != nil {
		t.Fatalf("BindSecrets: %v", err)
	}

	want := []manifest.SecretBinding{
		{SecretName: "kojisecret", MountPath: "/var/run/secrets/atomic-reactor/kojisecret"},
		{SecretName: "regsecret", MountPath: "/var/run/secrets/atomic-reactor/regsecret"},
		{SecretName: "token", MountPath: "/var/run/secrets/tokens/token"},
	}
	if diff := cmp.Diff(want, m.Secrets()); diff != "" {
		t.Errorf("secrets mismatch (-want +got):\n%s", diff)
	}

	for _, arg := range []string{"koji_ssl_certs", "again"} {
		got, _ := p.Arg(pipeline.PreBuild, "koji", arg)
		if got != want[0].MountPath {
			t.Errorf("koji %s = %v, want %s", arg, got, want[0].MountPath)
		}
	}
}

func TestBindSecretsIsIdempotent(t *testing.T) {
	m := strategyManifest(nil)
	p := pipeline.New()
	reqs := []SecretRequest{
		{Target: SecretTarget{Phase: pipeline.PostBuild, Plugin: "tag_and_push"}, Names: []string{"a", "b"}},
	}
	for i := 0; i < 2; i++ {
		if err := BindSecrets(m, p, reqs, nil); err != nil {
			t.Fatal(err)
		}
	}
	if got := len(m.Secrets()); got != 2 {
		t.Errorf("bound %d secrets, want 2", got)
	}
}

func TestBindSecretsMultipleNamesWriteList(t *testing.T) {
	m := strategyManifest(nil)
	p := pipeline.New()
	p.AddOrReplacePlugin(pipeline.PreBuild, "resolve_composes", nil)
	reqs := []SecretRequest{
		{Target: SecretTarget{Phase: pipeline.PreBuild, Plugin: "resolve_composes", Arg: "paths"}, Names: []string{"a", "b"}},
	}
	if err := BindSecrets(m, p, reqs, nil); err != nil {
		t.Fatal(err)
	}
	got, _ := p.Arg(pipeline.PreBuild, "resolve_composes", "paths")
	want := []string{"/var/run/secrets/atomic-reactor/a", "/var/run/secrets/atomic-reactor/b"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("paths mismatch:\n%s", diff)
	}
}

func TestBindSecretsRemovesEmptyCollection(t *testing.T) {
	m := strategyManifest(map[string]any{"secrets": []any{}})
	p := pipeline.New()
	reqs := []SecretRequest{
		{Target: SecretTarget{Phase: pipeline.Exit, Plugin: "koji_import", Arg: "koji_ssl_certs"}, Names: []string{"certs"}},
	}
	if err := BindSecrets(m, p, reqs, nil); err != nil {
		t.Fatal(err)
	}
	cs := m.Body()["spec"].(map[string]any)["strategy"].(map[string]any)["customStrategy"].(map[string]any)
	if _, ok := cs["secrets"]; ok {
		t.Errorf("secrets collection kept: %v", cs["secrets"])
	}
}

func TestBindSecretsSkipsBlankNames(t *testing.T) {
	m := strategyManifest(nil)
	p := pipeline.New()
	p.AddOrReplacePlugin(pipeline.PreBuild, "resolve_composes", nil)
	reqs := []SecretRequest{
		{Target: SecretTarget{Phase: pipeline.PreBuild, Plugin: "resolve_composes", Arg: "path"}, Names: []string{"", "a"}},
	}
	if err := BindSecrets(m, p, reqs, nil); err != nil {
		t.Fatal(err)
	}
	got, _ := p.Arg(pipeline.PreBuild, "resolve_composes", "path")
	if got != "/var/run/secrets/atomic-reactor/a" {
		t.Errorf("path = %#v, want a single path", got)
	}
}

func TestRegistrySecretPathsFollowTemplateBindings(t *testing.T) {
	fsys := inputsFS(t)
	var body map[string]any
	if err := json.Unmarshal(fsys["worker.json"].Data, &body); err != nil {
		t.Fatal(err)
	}
	cs := body["spec"].(map[string]any)["strategy"].(map[string]any)["customStrategy"].(map[string]any)
	cs["secrets"] = []any{
		map[string]any{"secretSource": map[string]any{"name": "newsecret"}, "mountPath": "/custom/newsecret"},
	}
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	fsys["worker.json"] = &fstest.MapFile{Data: data}

	e := New(templates.NewStore(fsys), quietLogger())
	res := render(t, e, Worker, workerRequestParams(t, nil), nil)

	mounts := map[string]string{}
	for _, b := range res.Manifest.Secrets() {
		mounts[b.SecretName] = b.MountPath
	}
	want := map[string]string{
		"newsecret": "/custom/newsecret",
		"oldsecret": "/var/run/secrets/atomic-reactor/oldsecret",
	}
	if diff := cmp.Diff(want, mounts); diff != "" {
		t.Errorf("bindings mismatch (-want +got):\n%s", diff)
	}

	regs, ok := res.Pipeline.Arg(pipeline.PostBuild, PluginTagAndPush, "registries")
	if !ok {
		t.Fatal("tag_and_push has no registries")
	}
	for registry, secret := range map[string]string{
		"registry.example.com":     "newsecret",
		"registry.old.example.com": "oldsecret",
	} {
		entry, _ := regs.(map[string]any)[registry].(map[string]any)
		if entry["secret"] != mounts[secret] {
			t.Errorf("%s secret = %v, want bound path %s", registry, entry["secret"], mounts[secret])
		}
	}
}
