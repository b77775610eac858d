package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// IsCI reports whether the process runs under a CI system.
func IsCI() bool {
	return os.Getenv("CI") == "true"
}

// IsGitLabCI reports whether the job log understands GitLab section markers.
func IsGitLabCI() bool {
	return os.Getenv("GITLAB_CI") == "true"
}

// SectionID turns a build name into a GitLab section id: lowercase
// letters, digits and underscores only.
func SectionID(prefix, name string) string {
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteByte('_')
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// SectionStart opens a collapsible job log section. It writes nothing
// outside GitLab CI.
func SectionStart(w io.Writer, id, name string, collapsed bool) {
	if !IsGitLabCI() {
		return
	}
	opts := ""
	if collapsed {
		opts = "[collapsed=true]"
	}
	fmt.Fprintf(w, "\033[0Ksection_start:%d:%s%s\r\033[0K%s\n", time.Now().Unix(), id, opts, name)
}

// SectionEnd closes the section opened with the same id.
func SectionEnd(w io.Writer, id string) {
	if !IsGitLabCI() {
		return
	}
	fmt.Fprintf(w, "\033[0Ksection_end:%d:%s\r\033[0K\n", time.Now().Unix(), id)
}
