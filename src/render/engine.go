// Package render turns a validated parameter set, the stored templates and
// repository metadata into a cluster build manifest carrying an ordered
// plugin pipeline.
//
// Each build type owns a fixed, named list of rules. Rules run in order
// against private copies of the templates; later rules see what earlier
// ones changed.
package render

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/sofmeright/buildfreight/src/manifest"
	"github.com/sofmeright/buildfreight/src/params"
	"github.com/sofmeright/buildfreight/src/pipeline"
	"github.com/sofmeright/buildfreight/src/repo"
	"github.com/sofmeright/buildfreight/src/templates"
)

// DefaultArrangementVersion selects the pipeline template when the request
// does not name one.
const DefaultArrangementVersion = 6

// LeakChecker inspects the serialized pipeline before it is written into
// the manifest.
type LeakChecker interface {
	Check(name string, data []byte) error
}

// Request is one render.
type Request struct {
	BuildType string
	Params    *params.Set
	Repo      *repo.Info

	// ClientVersion is stamped into the pipeline; defaults to this
	// module's version.
	ClientVersion string
}

// Result is a rendered build.
type Result struct {
	Manifest *manifest.Manifest
	Pipeline *pipeline.Template

	// Applied lists the rules that ran, in order.
	Applied []string
}

// Engine renders build requests.
type Engine struct {
	Templates *templates.Store
	Logger    *log.Entry

	// LeakChecker is optional.
	LeakChecker LeakChecker
}

// New returns an engine reading templates from store.
func New(store *templates.Store, logger *log.Entry) *Engine {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &Engine{Templates: store, Logger: logger}
}

// Render runs the build type's rules. A failed render returns no result.
func (e *Engine) Render(ctx context.Context, req Request) (*Result, error) {
	bt, err := Get(req.BuildType)
	if err != nil {
		return nil, err
	}
	if req.Params == nil {
		return nil, fmt.Errorf("render %s: no parameters", bt.Name)
	}
	if req.Params.Kind() != bt.ParamsKind {
		return nil, fmt.Errorf("render %s: expected %s parameters, got %s", bt.Name, bt.ParamsKind.Name(), req.Params.Kind().Name())
	}

	arrangement, ok := req.Params.Int(params.ArrangementVersion)
	if !ok {
		arrangement = DefaultArrangementVersion
	}
	bundle, err := e.Templates.Load(bt.Name, arrangement)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", bt.Name, err)
	}

	logger := e.Logger
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	s := &state{
		ctx:           ctx,
		log:           logger.WithFields(log.Fields{"build_type": bt.Name, "component": req.Params.String(params.Component)}),
		bt:            bt,
		params:        req.Params,
		repo:          req.Repo,
		manifest:      bundle.Manifest,
		pipeline:      bundle.Pipeline,
		customization: bundle.Customization,
		variation:     params.VariationOf(req.Params),
		clientVersion: req.ClientVersion,
		leaks:         e.LeakChecker,
	}
	if s.repo == nil {
		s.repo = &repo.Info{}
	}
	if s.repo.Configuration == nil {
		info := *s.repo
		info.Configuration = repo.DefaultConfiguration()
		s.repo = &info
	}

	applied := make([]string, 0, len(bt.rules))
	for _, rule := range bt.rules {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.rule = rule.Name
		if err := rule.Apply(s); err != nil {
			return nil, fmt.Errorf("render %s: %s: %w", bt.Name, rule.Name, err)
		}
		applied = append(applied, rule.Name)
	}

	s.log.WithField("name", s.manifest.Name()).Debug("rendered build")
	return &Result{Manifest: s.manifest, Pipeline: s.pipeline, Applied: applied}, nil
}

// state is the working set shared by the rules of one render.
type state struct {
	ctx  context.Context
	log  *log.Entry
	rule string

	bt            *BuildType
	params        *params.Set
	repo          *repo.Info
	manifest      *manifest.Manifest
	pipeline      *pipeline.Template
	customization *templates.Customization
	variation     params.Variation
	clientVersion string
	leaks         LeakChecker

	// forced trigger removal, decided by earlier rules
	removeTriggers bool
}

func (s *state) ruleLog() *log.Entry {
	return s.log.WithField("rule", s.rule)
}

func (s *state) has(plugin string) bool {
	return s.pipeline.HasPlugin(phaseOf(plugin), plugin)
}

// remove drops a plugin from its phase, logging when something went.
func (s *state) remove(plugin, reason string) {
	phase := phaseOf(plugin)
	if s.pipeline.RemovePlugin(phase, plugin) {
		s.ruleLog().WithFields(log.Fields{"phase": phase, "plugin": plugin}).Infof("removed plugin: %s", reason)
	}
}

// setArgs writes the non-empty values into a plugin's arguments. Absent
// plugins are left alone.
func (s *state) setArgs(plugin string, args map[string]any) {
	phase := phaseOf(plugin)
	if !s.pipeline.HasPlugin(phase, plugin) {
		return
	}
	for _, k := range sortedKeys(args) {
		if isEmpty(args[k]) {
			continue
		}
		// the plugin is present, SetArg cannot fail
		_ = s.pipeline.SetArg(phase, plugin, k, args[k])
	}
}

func (s *state) str(name string) string { return s.params.String(name) }

func (s *state) flag(name string) bool { return s.params.Bool(name) }

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case []string:
		return len(x) == 0
	case []int:
		return len(x) == 0
	case []any:
		return len(x) == 0
	case map[string]any:
		return len(x) == 0
	case map[string]string:
		return len(x) == 0
	}
	return false
}
