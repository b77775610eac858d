package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"path"
	"regexp"
	"strings"
)

// LabelMaxChars is the longest label value the cluster accepts.
const LabelMaxChars = 63

const (
	nameLimit    = 53
	nameHashSize = 5
)

var (
	validLabelChars = regexp.MustCompile(`[-a-zA-Z0-9_.]`)
	validNameChars  = regexp.MustCompile(`[-a-z0-9]`)
)

// RepoHumanishPart returns the "humanish" repository name of a git URI:
// the last path element without a trailing ".git".
func RepoHumanishPart(uri string) string {
	uri = strings.TrimRight(uri, "/")
	switch {
	case strings.HasSuffix(uri, "/.git"):
		uri = strings.TrimSuffix(uri, "/.git")
	case strings.HasSuffix(uri, ".git"):
		uri = strings.TrimSuffix(uri, ".git")
	}
	return path.Base(uri)
}

func filterChars(s string, valid *regexp.Regexp) string {
	var b strings.Builder
	for _, r := range s {
		if valid.MatchString(string(r)) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SanitizeLabelPair joins two strings into one label value. Characters
// outside the label alphabet are dropped and the two strings are shortened
// alternately, one character at a time, until the result fits limit.
func SanitizeLabelPair(a, b string, limit int) string {
	return sanitizePair(a, b, limit, validLabelChars)
}

func sanitizePair(a, b string, limit int, valid *regexp.Regexp) string {
	const sep = "-"
	a, b = filterChars(a, valid), filterChars(b, valid)
	if limit > LabelMaxChars {
		limit = LabelMaxChars
	}

	var outA, outB []byte
	size := len(sep)
	longest := max(len(a), len(b))
fill:
	for i := 0; i < longest; i++ {
		for g, src := range []string{a, b} {
			if i >= len(src) {
				continue
			}
			if g == 0 {
				outA = append(outA, src[i])
			} else {
				outB = append(outB, src[i])
			}
			size++
			if size >= limit {
				break fill
			}
		}
	}

	var parts []string
	for _, s := range []string{strings.Trim(string(outA), sep), strings.Trim(string(outB), sep)} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, sep)
}

// MakeNameFromGit derives a stable build configuration name from a git
// repository and branch. The name is limited to 53 characters including a
// 5-character hash of the repository path and branch.
func MakeNameFromGit(repo, branch string) string {
	if branch == "" {
		branch = "unknown"
	}
	repoPath := repo
	if u, err := url.Parse(repo); err == nil {
		repoPath = u.Path
	}
	sum := sha256.Sum256([]byte(strings.TrimLeft(repoPath, "/") + branch))
	hash := hex.EncodeToString(sum[:])[:nameHashSize]

	limit := nameLimit - len(hash) - 1
	sanitized := sanitizePair(RepoHumanishPart(repo), branch, limit, validNameChars)
	if sanitized == "" {
		return hash
	}
	return sanitized + "-" + hash
}
