package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
	log "github.com/sirupsen/logrus"

	"github.com/sofmeright/buildfreight/src/params"
)

// SupportedArrangements is the range of pipeline arrangement versions the
// renderer understands.
const SupportedArrangements = ">= 5, <= 6"

var arrangementConstraint = mustConstraint(SupportedArrangements)

func mustConstraint(c string) *semver.Constraints {
	parsed, err := semver.NewConstraint(c)
	if err != nil {
		panic(err)
	}
	return parsed
}

// CheckArrangement reports whether an arrangement version is supported.
func CheckArrangement(v int) error {
	ver, err := semver.NewVersion(strconv.Itoa(v))
	if err != nil {
		return fmt.Errorf("arrangement_version %d: %w", v, err)
	}
	if !arrangementConstraint.Check(ver) {
		return fmt.Errorf("arrangement_version %d is not supported (want %s)", v, SupportedArrangements)
	}
	return nil
}

// Validate checks structural invariants of a loaded Config.
// Returns warnings (soft issues) and a hard error if the config is invalid.
func Validate(cfg *Config) (warnings []string, err error) {
	var errs []string

	if cfg.Version != 1 {
		errs = append(errs, fmt.Sprintf("version: must be 1, got %d", cfg.Version))
	}
	if cfg.TemplatesDir == "" {
		errs = append(errs, "templates_dir: is required")
	}
	if cfg.BuildType == "" {
		errs = append(errs, "build_type: is required")
	}
	if err := CheckArrangement(cfg.ArrangementVersion); err != nil {
		errs = append(errs, err.Error())
	}
	if _, err := log.ParseLevel(cfg.LogLevel); err != nil {
		errs = append(errs, fmt.Sprintf("log_level: %v", err))
	}

	switch {
	case cfg.WorkerConcurrency < 0:
		errs = append(errs, fmt.Sprintf("worker_concurrency: must not be negative, got %d", cfg.WorkerConcurrency))
	case cfg.WorkerConcurrency == 0:
		warnings = append(warnings, "worker_concurrency: 0 means the default limit")
	}

	if !cfg.LeakScan {
		warnings = append(warnings, "leak_scan: disabled, rendered pipelines are not checked for inline credentials")
	}

	errs = append(errs, validateSite(cfg.Site)...)

	if len(errs) > 0 {
		return warnings, fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return warnings, nil
}

// validateSite accepts only names declared as site parameters by one of the
// build parameter kinds.
func validateSite(site map[string]any) []string {
	var errs []string
	names := make([]string, 0, len(site))
	for name := range site {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		d, ok := params.BuildUserParams.Descriptor(name)
		if !ok {
			errs = append(errs, fmt.Sprintf("site.%s: unknown parameter", name))
			continue
		}
		if d.IncludeInOutput {
			errs = append(errs, fmt.Sprintf("site.%s: is a user parameter, not a site parameter", name))
		}
	}
	return errs
}
