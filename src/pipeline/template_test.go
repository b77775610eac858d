package pipeline

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const sample = `{
  "client_version": "0.1",
  "prebuild_plugins": [
    {"name": "reactor_config", "args": {"config_path": "/var/run/secrets"}},
    {"name": "pull_base_image"},
    {"name": "add_filesystem", "args": {}}
  ],
  "buildstep_plugins": [{"name": "orchestrate_build"}],
  "postbuild_plugins": [
    {"name": "tag_and_push", "args": {"registries": {"{{REGISTRY_URI}}": {"insecure": true}}}},
    {"name": "compress", "required": false}
  ],
  "exit_plugins": []
}`

func mustParse(t *testing.T, s string) *Template {
	t.Helper()
	tpl, err := Parse([]byte(s))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return tpl
}

func TestParseKeepsOrder(t *testing.T) {
	tpl := mustParse(t, sample)
	want := []string{PreBuild, BuildStep, PostBuild, Exit}
	if diff := cmp.Diff(want, tpl.Phases()); diff != "" {
		t.Errorf("phases (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"reactor_config", "pull_base_image", "add_filesystem"}, tpl.PluginNames(PreBuild)); diff != "" {
		t.Errorf("prebuild (-want +got):\n%s", diff)
	}
	if v, ok := tpl.Param("client_version"); !ok || v != "0.1" {
		t.Errorf("client_version = %v %v", v, ok)
	}
}

func TestEncodeDecodeStable(t *testing.T) {
	tpl := mustParse(t, sample)
	first, err := json.Marshal(tpl)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	again := mustParse(t, string(first))
	second, err := json.Marshal(again)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(first) != string(second) {
		t.Errorf("encoding not stable:\n%s\n%s", first, second)
	}
	if p, _ := again.Lookup(PreBuild, "pull_base_image"); p.Args != nil {
		t.Errorf("absent args should stay absent, got %v", p.Args)
	}
	if p, _ := again.Lookup(PreBuild, "add_filesystem"); p.Args == nil {
		t.Error("empty args should stay present")
	}
}

func TestParseRejectsNonObject(t *testing.T) {
	for _, in := range []string{`[]`, `"x"`, `{"prebuild_plugins": {"name": "x"}}`, `{"exit_plugins": [{"args": {}}]}`} {
		if _, err := Parse([]byte(in)); err == nil {
			t.Errorf("Parse(%s): expected error", in)
		}
	}
}

func TestRemovePluginIdempotent(t *testing.T) {
	tpl := mustParse(t, sample)
	if !tpl.RemovePlugin(PostBuild, "compress") {
		t.Fatal("first removal should report true")
	}
	if tpl.RemovePlugin(PostBuild, "compress") {
		t.Error("second removal should report false")
	}
	if tpl.RemovePlugin("missing_plugins", "compress") {
		t.Error("removal from a missing phase should report false")
	}
	if diff := cmp.Diff([]string{"tag_and_push"}, tpl.PluginNames(PostBuild)); diff != "" {
		t.Errorf("postbuild (-want +got):\n%s", diff)
	}
}

func TestRemovePluginOnlyFirstMatch(t *testing.T) {
	tpl := mustParse(t, `{"exit_plugins":[{"name":"a"},{"name":"b"},{"name":"a"}]}`)
	tpl.RemovePlugin(Exit, "a")
	if diff := cmp.Diff([]string{"b", "a"}, tpl.PluginNames(Exit)); diff != "" {
		t.Errorf("exit (-want +got):\n%s", diff)
	}
}

func TestGetPluginConfigOrFail(t *testing.T) {
	tpl := mustParse(t, sample)

	_, err := tpl.GetPluginConfigOrFail(PrePublish, "squash")
	var phaseErr *MissingPhaseError
	if !errors.As(err, &phaseErr) || !errors.Is(err, ErrTemplateIntegrity) {
		t.Errorf("expected MissingPhaseError, got %v", err)
	}

	_, err = tpl.GetPluginConfigOrFail(PreBuild, "squash")
	var pluginErr *MissingPluginError
	if !errors.As(err, &pluginErr) || !errors.Is(err, ErrTemplateIntegrity) {
		t.Errorf("expected MissingPluginError, got %v", err)
	}

	if _, err := tpl.GetPluginConfigOrFail(PreBuild, "reactor_config"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSetArgAndMergeArg(t *testing.T) {
	tpl := mustParse(t, sample)

	if err := tpl.SetArg(PreBuild, "pull_base_image", "parent_registry", "r.example.com"); err != nil {
		t.Fatalf("SetArg: %v", err)
	}
	if v, ok := tpl.Arg(PreBuild, "pull_base_image", "parent_registry"); !ok || v != "r.example.com" {
		t.Errorf("parent_registry = %v %v", v, ok)
	}
	if err := tpl.SetArg(PreBuild, "nope", "x", 1); !errors.Is(err, ErrTemplateIntegrity) {
		t.Errorf("SetArg on missing plugin: %v", err)
	}

	tpl.SetArg(PreBuild, "reactor_config", "labels", "not-a-map")
	if err := tpl.MergeArg(PreBuild, "reactor_config", "labels", map[string]any{"a": "1"}); err != nil {
		t.Fatalf("MergeArg: %v", err)
	}
	if err := tpl.MergeArg(PreBuild, "reactor_config", "labels", map[string]any{"a": "2", "b": "3"}); err != nil {
		t.Fatalf("MergeArg: %v", err)
	}
	got, _ := tpl.Arg(PreBuild, "reactor_config", "labels")
	if diff := cmp.Diff(map[string]any{"a": "2", "b": "3"}, got); diff != "" {
		t.Errorf("labels (-want +got):\n%s", diff)
	}
}

func TestAddOrReplacePlugin(t *testing.T) {
	tpl := mustParse(t, sample)

	tpl.AddOrReplacePlugin(PreBuild, "reactor_config", map[string]any{"x": "y"})
	p, _ := tpl.Lookup(PreBuild, "reactor_config")
	if diff := cmp.Diff(map[string]any{"x": "y"}, p.Args); diff != "" {
		t.Errorf("replaced args (-want +got):\n%s", diff)
	}

	tpl.AddOrReplacePlugin(PrePublish, "squash", nil)
	if diff := cmp.Diff([]string{PreBuild, BuildStep, PostBuild, Exit, PrePublish}, tpl.Phases()); diff != "" {
		t.Errorf("phases (-want +got):\n%s", diff)
	}
	if !tpl.HasPlugin(PrePublish, "squash") {
		t.Error("squash should be added")
	}

	tpl.AddOrReplacePlugin(Exit, "sendmail", map[string]any{"to": "a"})
	if diff := cmp.Diff([]string{"sendmail"}, tpl.PluginNames(Exit)); diff != "" {
		t.Errorf("exit (-want +got):\n%s", diff)
	}
}

func TestAddOrReplaceCopiesArgs(t *testing.T) {
	tpl := New()
	args := map[string]any{"nested": map[string]any{"k": "v"}}
	tpl.AddOrReplacePlugin(Exit, "p", args)
	args["nested"].(map[string]any)["k"] = "changed"
	if v, _ := tpl.Arg(Exit, "p", "nested"); v.(map[string]any)["k"] != "v" {
		t.Error("caller mutation leaked into template")
	}
}

func TestDeepCopyIsIndependent(t *testing.T) {
	tpl := mustParse(t, sample)
	c := tpl.DeepCopy()

	c.RemovePlugin(PreBuild, "pull_base_image")
	c.MergeArg(PostBuild, "tag_and_push", "registries", map[string]any{"extra": map[string]any{}})
	c.SetParam("client_version", "9")

	if !tpl.HasPlugin(PreBuild, "pull_base_image") {
		t.Error("removal leaked into original")
	}
	regs, _ := tpl.Arg(PostBuild, "tag_and_push", "registries")
	if _, ok := regs.(map[string]any)["extra"]; ok {
		t.Error("merge leaked into original")
	}
	if v, _ := tpl.Param("client_version"); v != "0.1" {
		t.Errorf("param leaked into original: %v", v)
	}
}
