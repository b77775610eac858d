package render

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sofmeright/buildfreight/src/params"
)

// Role distinguishes builds that fan out to per-platform workers from the
// workers themselves.
type Role int

const (
	RoleOrchestrator Role = iota
	RoleWorker
	RoleSource
)

func (r Role) String() string {
	switch r {
	case RoleOrchestrator:
		return "orchestrator"
	case RoleWorker:
		return "worker"
	case RoleSource:
		return "source"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Rule is one named rendering step.
type Rule struct {
	Name  string
	Apply func(*state) error
}

// BuildType is a registered kind of build with its ordered rules.
type BuildType struct {
	Name       string
	Role       Role
	ParamsKind *params.Kind

	rules []Rule
}

// Rules returns a copy of the ordered rule list.
func (b *BuildType) Rules() []Rule {
	return append([]Rule(nil), b.rules...)
}

// RuleNames returns the rule names in order.
func (b *BuildType) RuleNames() []string {
	names := make([]string, len(b.rules))
	for i, r := range b.rules {
		names[i] = r.Name
	}
	return names
}

var (
	registryMu sync.RWMutex
	registry   = map[string]*BuildType{}
)

// Register adds a build type to the global registry.
// Called from init().
func Register(bt *BuildType) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[bt.Name]; exists {
		panic(fmt.Sprintf("render: duplicate build type registration: %s", bt.Name))
	}
	registry[bt.Name] = bt
}

// Get returns the named build type.
func Get(name string) (*BuildType, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	bt, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("render: unknown build type: %s", name)
	}
	return bt, nil
}

// All returns sorted names of all registered build types.
func All() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
