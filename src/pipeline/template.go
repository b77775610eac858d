// Package pipeline holds the ordered, phase-grouped plugin configuration
// that a build executor runs, and the operations rendering rules use to
// edit it.
package pipeline

import "strings"

// Phase keys in execution order.
const (
	PreBuild   = "prebuild_plugins"
	BuildStep  = "buildstep_plugins"
	PrePublish = "prepublish_plugins"
	PostBuild  = "postbuild_plugins"
	Exit       = "exit_plugins"
)

// IsPhaseKey reports whether a top-level template key names a phase.
func IsPhaseKey(key string) bool {
	return strings.HasSuffix(key, "_plugins")
}

// PluginConfig is one plugin entry. Args stays nil until the first write.
type PluginConfig struct {
	Name     string
	Args     map[string]any
	Required *bool
}

// Template is an ordered set of phases plus top-level parameters. Key order
// is preserved through decode and encode.
type Template struct {
	order   []string
	plugins map[string][]*PluginConfig
	params  map[string]any
}

// New returns an empty template.
func New() *Template {
	return &Template{
		plugins: map[string][]*PluginConfig{},
		params:  map[string]any{},
	}
}

// Phases returns the phase keys in template order.
func (t *Template) Phases() []string {
	var out []string
	for _, key := range t.order {
		if IsPhaseKey(key) {
			out = append(out, key)
		}
	}
	return out
}

// Plugins returns the entries of a phase in order, or nil.
func (t *Template) Plugins(phase string) []*PluginConfig {
	return t.plugins[phase]
}

// PluginNames returns the plugin names of a phase in order.
func (t *Template) PluginNames(phase string) []string {
	var out []string
	for _, p := range t.plugins[phase] {
		out = append(out, p.Name)
	}
	return out
}

func (t *Template) hasPhase(phase string) bool {
	_, ok := t.plugins[phase]
	return ok
}

// Lookup returns the first plugin named name within phase.
func (t *Template) Lookup(phase, name string) (*PluginConfig, bool) {
	for _, p := range t.plugins[phase] {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// HasPlugin reports whether phase contains a plugin named name.
func (t *Template) HasPlugin(phase, name string) bool {
	_, ok := t.Lookup(phase, name)
	return ok
}

// GetPluginConfigOrFail is Lookup for callers that require the plugin.
func (t *Template) GetPluginConfigOrFail(phase, name string) (*PluginConfig, error) {
	if !t.hasPhase(phase) {
		return nil, &MissingPhaseError{Phase: phase}
	}
	p, ok := t.Lookup(phase, name)
	if !ok {
		return nil, &MissingPluginError{Phase: phase, Plugin: name}
	}
	return p, nil
}

// Arg returns one argument of a plugin.
func (t *Template) Arg(phase, name, arg string) (any, bool) {
	p, ok := t.Lookup(phase, name)
	if !ok || p.Args == nil {
		return nil, false
	}
	v, ok := p.Args[arg]
	return v, ok
}

// SetArg writes one argument of an existing plugin.
func (t *Template) SetArg(phase, name, arg string, value any) error {
	p, err := t.GetPluginConfigOrFail(phase, name)
	if err != nil {
		return err
	}
	if p.Args == nil {
		p.Args = map[string]any{}
	}
	p.Args[arg] = value
	return nil
}

// MergeArg merges values into a map-valued argument. A missing or non-map
// existing value counts as an empty map; supplied keys win.
func (t *Template) MergeArg(phase, name, arg string, values map[string]any) error {
	p, err := t.GetPluginConfigOrFail(phase, name)
	if err != nil {
		return err
	}
	if p.Args == nil {
		p.Args = map[string]any{}
	}
	merged, _ := p.Args[arg].(map[string]any)
	if merged == nil {
		merged = map[string]any{}
	}
	for k, v := range values {
		merged[k] = v
	}
	p.Args[arg] = merged
	return nil
}

// RemovePlugin deletes the first plugin named name from phase and reports
// whether anything was removed.
func (t *Template) RemovePlugin(phase, name string) bool {
	list := t.plugins[phase]
	for i, p := range list {
		if p.Name == name {
			t.plugins[phase] = append(list[:i:i], list[i+1:]...)
			return true
		}
	}
	return false
}

// AddOrReplacePlugin replaces the arguments of an existing plugin wholesale
// or appends a new entry. A missing phase is created at the end.
func (t *Template) AddOrReplacePlugin(phase, name string, args map[string]any) {
	if !t.hasPhase(phase) {
		t.order = append(t.order, phase)
		t.plugins[phase] = nil
	}
	var copied map[string]any
	if args != nil {
		copied = copyValue(args).(map[string]any)
	}
	if p, ok := t.Lookup(phase, name); ok {
		p.Args = copied
		return
	}
	t.plugins[phase] = append(t.plugins[phase], &PluginConfig{Name: name, Args: copied})
}

// Param returns a top-level non-phase value.
func (t *Template) Param(key string) (any, bool) {
	v, ok := t.params[key]
	return v, ok
}

// SetParam writes a top-level non-phase value.
func (t *Template) SetParam(key string, v any) {
	if _, ok := t.params[key]; !ok {
		t.order = append(t.order, key)
	}
	t.params[key] = v
}

// DeepCopy returns a template sharing no mutable state with t.
func (t *Template) DeepCopy() *Template {
	c := New()
	c.order = append([]string(nil), t.order...)
	for phase, list := range t.plugins {
		cl := make([]*PluginConfig, len(list))
		for i, p := range list {
			cp := &PluginConfig{Name: p.Name}
			if p.Args != nil {
				cp.Args = copyValue(p.Args).(map[string]any)
			}
			if p.Required != nil {
				r := *p.Required
				cp.Required = &r
			}
			cl[i] = cp
		}
		c.plugins[phase] = cl
	}
	for k, v := range t.params {
		c.params[k] = copyValue(v)
	}
	return c
}

func copyValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = copyValue(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = copyValue(val)
		}
		return out
	case []string:
		return append([]string(nil), x...)
	case map[string]string:
		out := make(map[string]string, len(x))
		for k, val := range x {
			out[k] = val
		}
		return out
	default:
		return v
	}
}
