package output

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// boxWidth is the number of rule characters after the box corner.
const boxWidth = 61

const indent = "    "

// Section is a titled box of rows in the render summary.
type Section struct {
	w     io.Writer
	title string
	color bool
}

// NewSection writes the section title bar and returns the section. A
// non-zero elapsed time is shown at the right end of the bar.
func NewSection(w io.Writer, title string, elapsed time.Duration, color bool) *Section {
	s := &Section{w: w, title: title, color: color}
	fmt.Fprintf(w, "\n%s%s\n", indent, colorize(titleBar(title, elapsed), "\033[2;36m", color))
	return s
}

// titleBar renders "── Title ───── elapsed ──".
func titleBar(title string, elapsed time.Duration) string {
	head := "── " + title + " "
	tail := "──"
	if elapsed > 0 {
		tail = " " + formatElapsed(elapsed) + " ──"
	}
	fill := boxWidth + len(indent) - len(head) - len(tail)
	if fill < 1 {
		fill = 1
	}
	return head + strings.Repeat("─", fill) + tail
}

// Row writes one formatted line inside the box.
func (s *Section) Row(format string, args ...any) {
	fmt.Fprintf(s.w, "%s│ %s\n", indent, fmt.Sprintf(format, args...))
}

// Close writes the bottom of the box.
func (s *Section) Close() {
	fmt.Fprintf(s.w, "%s└%s\n", indent, strings.Repeat("─", boxWidth))
}

var statusIcons = map[string]struct{ glyph, code string }{
	"success": {"✓", "\033[32m"},
	"failed":  {"✗", colorRed},
	"skipped": {"⊘", colorYellow},
}

// StatusIcon returns the icon for success, failed or anything else
// (skipped).
func StatusIcon(status string, color bool) string {
	icon, ok := statusIcons[status]
	if !ok {
		icon = statusIcons["skipped"]
	}
	return colorize(icon.glyph, icon.code, color)
}

// Dimmed returns gray text when color is enabled.
func Dimmed(text string, color bool) string {
	return colorize(text, colorGray, color)
}

// KV is one entry of a context block.
type KV struct {
	Key   string
	Value string
}

// ContextBlock writes the render context as two key-value pairs per line.
func ContextBlock(w io.Writer, kv []KV) {
	if len(kv) == 0 {
		return
	}
	fmt.Fprintln(w)
	for i := 0; i < len(kv); i += 2 {
		if i+1 == len(kv) {
			fmt.Fprintf(w, "%s%-12s%s\n", indent, kv[i].Key, kv[i].Value)
			continue
		}
		fmt.Fprintf(w, "%s%-12s%-40s%-11s%s\n", indent, kv[i].Key, kv[i].Value, kv[i+1].Key, kv[i+1].Value)
	}
}

func formatElapsed(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return "<1ms"
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	mins := int(d.Minutes())
	return fmt.Sprintf("%dm%.1fs", mins, d.Seconds()-float64(mins*60))
}

// SummaryTotal writes the final total line.
func SummaryTotal(w io.Writer, rendered, failed int, elapsed time.Duration, color bool) {
	status := "success"
	if failed > 0 {
		status = "failed"
	}
	detail := fmt.Sprintf("%d rendered, %d failed", rendered, failed)
	fmt.Fprintf(w, "%s│ %-12s%-28s%12s   %s\n", indent, "total", detail, formatElapsed(elapsed), StatusIcon(status, color))
}
