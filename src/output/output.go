// Package output formats render results for the terminal.
package output

import (
	"fmt"
	"io"
	"os"
	"sort"
)

// Colors for terminal output.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

// PhaseRow is one pipeline phase and its plugins in run order.
type PhaseRow struct {
	Phase   string
	Plugins []string
}

// PipelineTable writes the plugins of each phase inside a section. Empty
// phases are shown as such so a removed plugin set is visible.
func PipelineTable(sec *Section, rows []PhaseRow, color bool) {
	for _, r := range rows {
		if len(r.Plugins) == 0 {
			sec.Row("%-22s%s", r.Phase, Dimmed("(empty)", color))
			continue
		}
		for i, p := range r.Plugins {
			label := ""
			if i == 0 {
				label = r.Phase
			}
			sec.Row("%-22s%s", label, colorize(p, colorCyan, color))
		}
	}
}

// LabelTable writes key=value rows sorted by key.
func LabelTable(sec *Section, labels map[string]string, color bool) {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sec.Row("%s=%s", colorize(k, colorBold, color), labels[k])
	}
}

// IssueList writes validation issues, one per row.
func IssueList(sec *Section, issues []string, color bool) {
	for _, issue := range issues {
		sec.Row("%s %s", colorize("ERR ", colorRed, color), issue)
	}
}

// WarningList writes non-fatal warnings, one per row.
func WarningList(sec *Section, warnings []string, color bool) {
	for _, w := range warnings {
		sec.Row("%s %s", colorize("WARN", colorYellow, color), w)
	}
}

// RowStatus writes a row with label, detail, and a status icon.
func RowStatus(sec *Section, label, detail, status string, color bool) {
	icon := StatusIcon(status, color)
	if detail != "" {
		sec.Row("%-22s%s %s", label, detail, icon)
		return
	}
	sec.Row("%-22s%s", label, icon)
}

// Fail prints a one-line failure to w.
func Fail(w io.Writer, msg string, color bool) {
	fmt.Fprintf(w, "    %s %s\n", StatusIcon("failed", color), colorize(msg, colorGray, color))
}

func colorize(text, code string, color bool) string {
	if !color {
		return text
	}
	return code + text + colorReset
}

func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// UseColor returns true if colored output should be used.
// Respects NO_COLOR env, TERM=dumb, and terminal detection.
func UseColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return isTerminal() || IsCI()
}
