package output

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestPipelineTable(t *testing.T) {
	var buf bytes.Buffer
	sec := NewSection(&buf, "Pipeline", 0, false)
	PipelineTable(sec, []PhaseRow{
		{Phase: "prebuild_plugins", Plugins: []string{"reactor_config", "koji"}},
		{Phase: "prepublish_plugins"},
	}, false)
	sec.Close()

	out := buf.String()
	for _, want := range []string{"── Pipeline ", "prebuild_plugins      reactor_config", "koji", "prepublish_plugins    (empty)", "└"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\033[") {
		t.Error("colorless output contains escape codes")
	}
}

func TestLabelTableSorted(t *testing.T) {
	var buf bytes.Buffer
	sec := NewSection(&buf, "Labels", 0, false)
	LabelTable(sec, map[string]string{"vendor": "Acme", "release": "1"}, false)

	out := buf.String()
	if strings.Index(out, "release=1") > strings.Index(out, "vendor=Acme") {
		t.Errorf("labels not sorted:\n%s", out)
	}
}

func TestIssueAndWarningLists(t *testing.T) {
	var buf bytes.Buffer
	sec := NewSection(&buf, "Validation", 0, false)
	IssueList(sec, []string{"missing required parameter: user"}, false)
	WarningList(sec, []string{"leak_scan is disabled"}, false)

	out := buf.String()
	if !strings.Contains(out, "ERR  missing required parameter: user") {
		t.Errorf("issue row missing:\n%s", out)
	}
	if !strings.Contains(out, "WARN leak_scan is disabled") {
		t.Errorf("warning row missing:\n%s", out)
	}
}

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{500 * time.Microsecond, "<1ms"},
		{250 * time.Millisecond, "250ms"},
		{1500 * time.Millisecond, "1.5s"},
		{90 * time.Second, "1m30.0s"},
	}
	for _, tt := range tests {
		if got := formatElapsed(tt.d); got != tt.want {
			t.Errorf("formatElapsed(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestSummaryTotalStatus(t *testing.T) {
	var buf bytes.Buffer
	SummaryTotal(&buf, 2, 1, time.Second, false)
	if !strings.Contains(buf.String(), "2 rendered, 1 failed") || !strings.Contains(buf.String(), "✗") {
		t.Errorf("summary = %q", buf.String())
	}
}

func TestSectionMarkersOnlyInGitLab(t *testing.T) {
	t.Setenv("GITLAB_CI", "")
	var buf bytes.Buffer
	SectionStart(&buf, "render_x", "Rendered x", true)
	SectionEnd(&buf, "render_x")
	if buf.Len() != 0 {
		t.Errorf("markers written outside GitLab: %q", buf.String())
	}

	t.Setenv("GITLAB_CI", "true")
	SectionStart(&buf, "render_x", "Rendered x", true)
	SectionEnd(&buf, "render_x")
	out := buf.String()
	if !strings.Contains(out, ":render_x[collapsed=true]\r") || !strings.Contains(out, "section_end:") {
		t.Errorf("markers = %q", out)
	}
}

func TestSectionID(t *testing.T) {
	if got := SectionID("render", "My-App.f40-x86_64"); got != "render_my_app_f40_x86_64" {
		t.Errorf("SectionID = %q", got)
	}
}
