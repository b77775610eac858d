package params

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationError aggregates every problem found in a parameter set.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "parameter validation failed"
	}
	return "parameter validation failed: " + strings.Join(e.Issues, "; ")
}

// Add records an issue. Blank issues are ignored.
func (e *ValidationError) Add(issue string) {
	if strings.TrimSpace(issue) == "" {
		return
	}
	e.Issues = append(e.Issues, issue)
}

// Addf records a formatted issue.
func (e *ValidationError) Addf(format string, args ...any) {
	e.Add(fmt.Sprintf(format, args...))
}

// OrNil returns nil when no issue was recorded.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Issues) == 0 {
		return nil
	}
	return e
}

// Invalid builds a single-issue ValidationError.
func Invalid(format string, args ...any) *ValidationError {
	e := &ValidationError{}
	e.Addf(format, args...)
	return e
}

// UnknownParameterError is returned when a caller sets a name the kind does
// not declare.
type UnknownParameterError struct {
	Kind  string
	Names []string
}

func (e *UnknownParameterError) Error() string {
	names := append([]string(nil), e.Names...)
	sort.Strings(names)
	return fmt.Sprintf("%s: unknown parameter(s): %s", e.Kind, strings.Join(names, ", "))
}

// ParseError wraps a malformed serialized parameter blob.
type ParseError struct {
	Kind string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: malformed serialized parameters: %v", e.Kind, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// UnknownKindError is returned by Lookup and Decode for unregistered
// discriminators.
type UnknownKindError struct {
	Kind string
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("params: unknown kind: %q", e.Kind)
}
