// Package leakcheck rejects rendered pipelines that carry credentials inline.
// Credentials must reach the build as mounted secrets.
package leakcheck

import (
	"fmt"
	"strings"
	"sync"

	"github.com/zricethezav/gitleaks/v8/detect"
)

// Finding is one suspected credential.
type Finding struct {
	Line        int
	RuleID      string
	Description string
}

// LeakError lists everything the scanner flagged in one document.
type LeakError struct {
	Name     string
	Findings []Finding
}

func (e *LeakError) Error() string {
	parts := make([]string, 0, len(e.Findings))
	for _, f := range e.Findings {
		parts = append(parts, fmt.Sprintf("line %d: %s (%s)", f.Line, f.Description, f.RuleID))
	}
	return fmt.Sprintf("%s carries inline credentials: %s", e.Name, strings.Join(parts, "; "))
}

// Checker scans documents with the default gitleaks rules. The zero value
// is ready to use and safe for concurrent use.
type Checker struct {
	once     sync.Once
	mu       sync.Mutex
	detector *detect.Detector
	initErr  error
}

// New returns a checker.
func New() *Checker { return &Checker{} }

// Scan returns the findings in data.
func (c *Checker) Scan(data []byte) ([]Finding, error) {
	c.once.Do(func() {
		c.detector, c.initErr = detect.NewDetectorDefaultConfig()
	})
	if c.initErr != nil {
		return nil, fmt.Errorf("leakcheck: %w", c.initErr)
	}

	// the detector accumulates findings internally
	c.mu.Lock()
	hits := c.detector.DetectBytes(data)
	c.mu.Unlock()

	if len(hits) == 0 {
		return nil, nil
	}
	findings := make([]Finding, 0, len(hits))
	for _, h := range hits {
		findings = append(findings, Finding{
			Line:        h.StartLine + 1, // gitleaks is 0-indexed
			RuleID:      h.RuleID,
			Description: h.Description,
		})
	}
	return findings, nil
}

// Check returns a *LeakError when data contains anything that looks like a
// credential.
func (c *Checker) Check(name string, data []byte) error {
	findings, err := c.Scan(data)
	if err != nil {
		return err
	}
	if len(findings) > 0 {
		return &LeakError{Name: name, Findings: findings}
	}
	return nil
}
