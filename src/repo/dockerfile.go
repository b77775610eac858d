package repo

import (
	"bufio"
	"bytes"
	"regexp"
	"strconv"
	"strings"
)

var (
	// FROM [--platform=...] <image> [AS <name>]
	fromRe = regexp.MustCompile(`(?i)^FROM\s+(?:--platform=\S+\s+)?(\S+)(?:\s+AS\s+(\S+))?`)
	// LABEL <key>=<value> ... | LABEL <key> <value>
	labelRe = regexp.MustCompile(`(?i)^LABEL\s+(.+)`)
	// key=value pairs, values optionally quoted
	labelPairRe = regexp.MustCompile(`([^\s=]+)=("(?:[^"\\]|\\.)*"|\S+)`)
)

// Stage is one FROM instruction.
type Stage struct {
	BaseImage string
	Name      string
	Line      int
}

// Dockerfile holds what a render needs from the repository's Dockerfile.
// This is a regex-based reader, not a full parser.
type Dockerfile struct {
	Stages []Stage
	Labels map[string]string
}

// BaseImage returns the base image of the final stage.
func (d *Dockerfile) BaseImage() string {
	if d == nil || len(d.Stages) == 0 {
		return ""
	}
	return d.Stages[len(d.Stages)-1].BaseImage
}

// ParentImages returns the distinct base images of every stage that is not
// built from an earlier stage.
func (d *Dockerfile) ParentImages() []string {
	if d == nil {
		return nil
	}
	stages := map[string]bool{}
	seen := map[string]bool{}
	var out []string
	for _, s := range d.Stages {
		if !stages[strings.ToLower(s.BaseImage)] && !seen[s.BaseImage] {
			seen[s.BaseImage] = true
			out = append(out, s.BaseImage)
		}
		if s.Name != "" {
			stages[strings.ToLower(s.Name)] = true
		}
	}
	return out
}

// IsFromScratch reports whether the final stage starts from an empty image.
func (d *Dockerfile) IsFromScratch() bool {
	return strings.EqualFold(d.BaseImage(), "scratch")
}

// ParseDockerfile reads stages and labels. Continuation lines are joined
// before matching.
func ParseDockerfile(data []byte) (*Dockerfile, error) {
	info := &Dockerfile{Labels: map[string]string{}}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNum := 0
	start := 0
	var pending strings.Builder

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if pending.Len() == 0 && (line == "" || strings.HasPrefix(line, "#")) {
			continue
		}
		if pending.Len() == 0 {
			start = lineNum
		}
		if strings.HasSuffix(line, "\\") {
			pending.WriteString(strings.TrimSuffix(line, "\\"))
			pending.WriteByte(' ')
			continue
		}
		pending.WriteString(line)
		instr := pending.String()
		pending.Reset()

		if m := fromRe.FindStringSubmatch(instr); m != nil {
			info.Stages = append(info.Stages, Stage{BaseImage: m[1], Name: m[2], Line: start})
			continue
		}
		if m := labelRe.FindStringSubmatch(instr); m != nil {
			parseLabels(m[1], info.Labels)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return info, nil
}

func parseLabels(body string, into map[string]string) {
	pairs := labelPairRe.FindAllStringSubmatch(body, -1)
	if len(pairs) == 0 {
		// legacy form: LABEL key value with spaces
		key, value, ok := strings.Cut(strings.TrimSpace(body), " ")
		if ok {
			into[unquote(key)] = unquote(strings.TrimSpace(value))
		}
		return
	}
	for _, p := range pairs {
		into[unquote(p[1])] = unquote(p[2])
	}
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		if u, err := strconv.Unquote(s); err == nil {
			return u
		}
		return s[1 : len(s)-1]
	}
	return s
}
