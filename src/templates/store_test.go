package templates

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"
)

const outer = `{"kind": "Build", "metadata": {"name": "x"}, "spec": {"strategy": {"customStrategy": {"env": []}}}}`
const inner = `{"prebuild_plugins": [{"name": "reactor_config"}], "exit_plugins": []}`

func fixtureFS() fstest.MapFS {
	return fstest.MapFS{
		"orchestrator.json":          {Data: []byte(outer)},
		"orchestrator_inner:6.json":  {Data: []byte(inner)},
		"orchestrator_inner:5.json":  {Data: []byte(inner)},
		"orchestrator_customize.yml": {Data: []byte("disable_plugins:\n  - plugin_type: prebuild_plugins\n    plugin_name: reactor_config\n")},
		"worker.json":                {Data: []byte(outer)},
		"worker_inner:6.json":        {Data: []byte(inner)},
	}
}

func TestLoadReturnsIndependentCopies(t *testing.T) {
	s := NewStore(fixtureFS())
	a, err := s.Load("orchestrator", 6)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	a.Pipeline.RemovePlugin("prebuild_plugins", "reactor_config")
	a.Manifest.SetName("changed")

	b, err := s.Load("orchestrator", 6)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !b.Pipeline.HasPlugin("prebuild_plugins", "reactor_config") {
		t.Error("pipeline mutation leaked into cache")
	}
	if b.Manifest.Name() != "x" {
		t.Errorf("manifest mutation leaked into cache: %q", b.Manifest.Name())
	}
	if b.Sources["customization"] != "orchestrator_customize.yml" {
		t.Errorf("customization source = %q", b.Sources["customization"])
	}
	if len(b.Customization.Disable) != 1 {
		t.Errorf("disable entries = %d", len(b.Customization.Disable))
	}
}

func TestLoadMissing(t *testing.T) {
	s := NewStore(fixtureFS())
	if _, err := s.Load("worker", 5); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.Load("nope", 6); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	b, err := s.Load("worker", 6)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !b.Customization.Empty() {
		t.Error("worker has no customization file")
	}
}

func TestLoadConcurrent(t *testing.T) {
	s := NewStore(fixtureFS())
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b, err := s.Load("orchestrator", 6)
			if err != nil {
				t.Errorf("Load: %v", err)
				return
			}
			b.Pipeline.RemovePlugin("prebuild_plugins", "reactor_config")
		}()
	}
	wg.Wait()
	b, _ := s.Load("orchestrator", 6)
	if !b.Pipeline.HasPlugin("prebuild_plugins", "reactor_config") {
		t.Error("concurrent mutation leaked into cache")
	}
}

func TestAvailable(t *testing.T) {
	got, err := NewStore(fixtureFS()).Available()
	if err != nil {
		t.Fatalf("Available: %v", err)
	}
	want := map[string][]int{"orchestrator": {5, 6}, "worker": {6}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Available (-want +got):\n%s", diff)
	}
}

func TestParseCustomizationFormats(t *testing.T) {
	docs := map[string]string{
		"c.json": `{"enable_plugins": [{"plugin_type": "exit_plugins", "plugin_name": "sendmail", "plugin_args": {"to": "a"}}]}`,
		"c.yaml": "enable_plugins:\n  - plugin_type: exit_plugins\n    plugin_name: sendmail\n    plugin_args:\n      to: a\n",
		"c.toml": "[[enable_plugins]]\nplugin_type = \"exit_plugins\"\nplugin_name = \"sendmail\"\n[enable_plugins.plugin_args]\nto = \"a\"\n",
	}
	want := []PluginRef{{Type: "exit_plugins", Name: "sendmail", Args: map[string]any{"to": "a"}}}
	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			c, err := ParseCustomization(name, []byte(doc))
			if err != nil {
				t.Fatalf("ParseCustomization: %v", err)
			}
			if diff := cmp.Diff(want, c.Enable); diff != "" {
				t.Errorf("enable (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseCustomizationSkipsMalformedEntries(t *testing.T) {
	doc := `{
	  "disable_plugins": ["bare", {"plugin_type": "exit_plugins"}, {"plugin_type": "exit_plugins", "plugin_name": "ok"}],
	  "enable_plugins": [
	    {"plugin_type": "exit_plugins", "plugin_name": "x", "plugin_args": "nope"},
	    {"plugin_type": "exit", "plugin_name": "verify_media"}
	  ]
	}`
	c, err := ParseCustomization("c.json", []byte(doc))
	if err != nil {
		t.Fatalf("ParseCustomization: %v", err)
	}
	if len(c.Disable) != 1 || c.Disable[0].Name != "ok" {
		t.Errorf("disable = %+v", c.Disable)
	}
	if len(c.Enable) != 0 {
		t.Errorf("enable = %+v", c.Enable)
	}
	if len(c.Skipped) != 4 {
		t.Errorf("skipped = %v", c.Skipped)
	}
	if !strings.Contains(strings.Join(c.Skipped, "\n"), `plugin_type "exit" is not a phase`) {
		t.Errorf("non-phase plugin_type not reported: %v", c.Skipped)
	}
}

func TestParseCustomizationRejectsBadShape(t *testing.T) {
	_, err := ParseCustomization("c.json", []byte(`{"disable_plugins": "all"}`))
	if err == nil || !strings.Contains(err.Error(), "c.json") {
		t.Errorf("expected schema error, got %v", err)
	}
	if _, err := ParseCustomization("c.ini", nil); err == nil {
		t.Error("expected unsupported format error")
	}
}
