package pipeline

import (
	"errors"
	"fmt"
)

// ErrTemplateIntegrity matches every error caused by a template that lacks
// a phase or plugin the caller depends on.
var ErrTemplateIntegrity = errors.New("pipeline template integrity")

// MissingPhaseError reports an absent phase.
type MissingPhaseError struct {
	Phase string
}

func (e *MissingPhaseError) Error() string {
	return fmt.Sprintf("no phase %s in pipeline template", e.Phase)
}

func (e *MissingPhaseError) Is(target error) bool { return target == ErrTemplateIntegrity }

// MissingPluginError reports a phase without the named plugin.
type MissingPluginError struct {
	Phase  string
	Plugin string
}

func (e *MissingPluginError) Error() string {
	return fmt.Sprintf("no plugin %s in phase %s", e.Plugin, e.Phase)
}

func (e *MissingPluginError) Is(target error) bool { return target == ErrTemplateIntegrity }
