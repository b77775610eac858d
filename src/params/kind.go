// Package params implements typed parameter sets: static descriptor tables
// per kind, inherited along an explicit parent chain, with bulk population,
// aggregate validation and a JSON serialized form.
package params

import (
	"fmt"
	"sort"
	"sync"
)

// Kind is a parameter-set type. Kinds are defined once at package init and
// are immutable afterwards.
type Kind struct {
	name   string
	parent *Kind
	own    map[string]Descriptor
	hooks  []func(*Set) error

	// flattened registry, child overrides parent
	descriptors map[string]Descriptor
}

// Define creates a kind from a descriptor table. Every table key must equal
// its descriptor's Name; a mismatch is a programming error and panics.
func Define(name string, parent *Kind, table map[string]Descriptor) *Kind {
	for key, d := range table {
		if key != d.Name {
			panic(fmt.Sprintf("params: kind %s: table key %q does not match descriptor name %q", name, key, d.Name))
		}
	}
	k := &Kind{name: name, parent: parent, own: table}
	k.descriptors = k.flatten()
	return k
}

// OnPopulate registers a hook run by SetParams after the bulk write.
// Hooks of ancestor kinds run first.
func (k *Kind) OnPopulate(hook func(*Set) error) *Kind {
	k.hooks = append(k.hooks, hook)
	return k
}

// Name returns the kind's discriminator.
func (k *Kind) Name() string { return k.name }

// Parent returns the parent kind, or nil for a root kind.
func (k *Kind) Parent() *Kind { return k.parent }

// ancestors returns the chain root first, ending with k.
func (k *Kind) ancestors() []*Kind {
	var chain []*Kind
	for cur := k; cur != nil; cur = cur.parent {
		chain = append(chain, cur)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

func (k *Kind) flatten() map[string]Descriptor {
	out := make(map[string]Descriptor)
	for _, a := range k.ancestors() {
		for name, d := range a.own {
			out[name] = d
		}
	}
	return out
}

// Descriptor looks up a descriptor by name.
func (k *Kind) Descriptor(name string) (Descriptor, bool) {
	d, ok := k.descriptors[name]
	return d, ok
}

// Names returns every effective parameter name, sorted.
func (k *Kind) Names() []string {
	names := make([]string, 0, len(k.descriptors))
	for name := range k.descriptors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Required returns the effective required descriptors sorted by name.
func (k *Kind) Required() []Descriptor {
	var out []Descriptor
	for _, name := range k.Names() {
		if d := k.descriptors[name]; d.Required {
			out = append(out, d)
		}
	}
	return out
}

// New returns an empty parameter set of this kind.
func (k *Kind) New() *Set {
	return &Set{kind: k, values: make(map[string]any)}
}

var (
	registryMu sync.RWMutex
	registry   = map[string]*Kind{}
)

// Register makes a kind decodable by its discriminator.
// Called from init() in the file defining the kind.
func Register(k *Kind) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[k.name]; exists {
		panic(fmt.Sprintf("params: duplicate kind registration: %s", k.name))
	}
	registry[k.name] = k
}

// Lookup returns the registered kind for a discriminator.
func Lookup(name string) (*Kind, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	k, ok := registry[name]
	if !ok {
		return nil, &UnknownKindError{Kind: name}
	}
	return k, nil
}

// Kinds returns the sorted discriminators of all registered kinds.
func Kinds() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
