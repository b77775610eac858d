package manifest

import (
	"fmt"
	"path"
	"strings"
)

// CarrierEnv is the env entry that carries the serialized plugin pipeline.
const CarrierEnv = "ATOMIC_REACTOR_PLUGINS"

// SecretsRoot is where secrets are mounted inside the build container.
const SecretsRoot = "/var/run/secrets/atomic-reactor"

// MissingCarrierError is returned when the manifest has no env collection
// to carry the pipeline.
type MissingCarrierError struct {
	Name   string
	Reason string
}

func (e *MissingCarrierError) Error() string {
	return fmt.Sprintf("cannot set %s: %s", e.Name, e.Reason)
}

// SecretBinding records one secret mounted into the build container.
type SecretBinding struct {
	SecretName string
	MountPath  string
}

// DefaultMountPath returns the mount path used for a secret when none is
// given.
func DefaultMountPath(secret string) string {
	return path.Join(SecretsRoot, secret)
}

func (m *Manifest) customStrategy(create bool) map[string]any {
	return m.mapAt(create, "spec", "strategy", "customStrategy")
}

// SetCarrier writes an env entry in the custom strategy, replacing an entry
// with the same name or appending one.
func (m *Manifest) SetCarrier(name, value string) error {
	cs := m.customStrategy(false)
	if cs == nil {
		return &MissingCarrierError{Name: name, Reason: "manifest has no custom strategy"}
	}
	raw, ok := cs["env"]
	if !ok {
		return &MissingCarrierError{Name: name, Reason: "custom strategy has no env collection"}
	}
	env, ok := raw.([]any)
	if !ok {
		return &MissingCarrierError{Name: name, Reason: fmt.Sprintf("env collection is %T, not a list", raw)}
	}
	for _, item := range env {
		entry, ok := item.(map[string]any)
		if ok && entry["name"] == name {
			entry["value"] = value
			return nil
		}
	}
	cs["env"] = append(env, map[string]any{"name": name, "value": value})
	return nil
}

// SetEnvFromConfigMap writes an env entry whose value is read from a key
// of a config map, replacing an entry with the same name.
func (m *Manifest) SetEnvFromConfigMap(name, configMap, key string) error {
	cs := m.customStrategy(false)
	if cs == nil {
		return &MissingCarrierError{Name: name, Reason: "manifest has no custom strategy"}
	}
	env, ok := cs["env"].([]any)
	if !ok {
		return &MissingCarrierError{Name: name, Reason: "custom strategy has no env list"}
	}
	entry := map[string]any{
		"name": name,
		"valueFrom": map[string]any{
			"configMapKeyRef": map[string]any{"name": configMap, "key": key},
		},
	}
	for i, item := range env {
		if e, ok := item.(map[string]any); ok && e["name"] == name {
			env[i] = entry
			return nil
		}
	}
	cs["env"] = append(env, entry)
	return nil
}

// Carrier returns the value of an env entry.
func (m *Manifest) Carrier(name string) (string, bool) {
	env, _ := m.customStrategy(false)["env"].([]any)
	for _, item := range env {
		entry, ok := item.(map[string]any)
		if ok && entry["name"] == name {
			v, ok := entry["value"].(string)
			return v, ok
		}
	}
	return "", false
}

// AddSecret mounts a secret once. It reports false when a binding for the
// name already exists.
func (m *Manifest) AddSecret(name, mountPath string) bool {
	for _, b := range m.Secrets() {
		if b.SecretName == name {
			return false
		}
	}
	cs := m.customStrategy(true)
	list, _ := cs["secrets"].([]any)
	cs["secrets"] = append(list, map[string]any{
		"secretSource": map[string]any{"name": name},
		"mountPath":    mountPath,
	})
	return true
}

// Secrets returns the recorded secret bindings in order.
func (m *Manifest) Secrets() []SecretBinding {
	list, _ := m.customStrategy(false)["secrets"].([]any)
	var out []SecretBinding
	for _, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		src, _ := entry["secretSource"].(map[string]any)
		name, _ := src["name"].(string)
		mount, _ := entry["mountPath"].(string)
		out = append(out, SecretBinding{SecretName: name, MountPath: mount})
	}
	return out
}

// RemoveSecrets drops the secrets collection entirely.
func (m *Manifest) RemoveSecrets() {
	if cs := m.customStrategy(false); cs != nil {
		delete(cs, "secrets")
	}
}

// Triggers returns spec.triggers.
func (m *Manifest) Triggers() []any {
	t, _ := m.mapAt(false, "spec")["triggers"].([]any)
	return t
}

// RemoveTriggers drops spec.triggers.
func (m *Manifest) RemoveTriggers() {
	if spec := m.mapAt(false, "spec"); spec != nil {
		delete(spec, "triggers")
	}
}

// SetTriggerImageStreamTag points the first image change trigger at tag.
func (m *Manifest) SetTriggerImageStreamTag(tag string) error {
	triggers := m.Triggers()
	if len(triggers) == 0 {
		return fmt.Errorf("manifest has no triggers")
	}
	first, ok := triggers[0].(map[string]any)
	if !ok {
		return fmt.Errorf("trigger is %T, not an object", triggers[0])
	}
	ic, _ := first["imageChange"].(map[string]any)
	if ic == nil {
		ic = map[string]any{}
		first["imageChange"] = ic
	}
	from, _ := ic["from"].(map[string]any)
	if from == nil {
		from = map[string]any{"kind": "ImageStreamTag"}
		ic["from"] = from
	}
	from["name"] = tag
	return nil
}

// ParseSelector parses a "key=value, key2=value2" node selector. Entries
// without '=' are ignored.
func ParseSelector(raw string) map[string]string {
	out := map[string]string{}
	for _, part := range strings.Split(raw, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || strings.TrimSpace(k) == "" {
			continue
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out
}

// FormatSelector is the inverse of ParseSelector with sorted keys.
func FormatSelector(sel map[string]string) string {
	parts := make([]string, 0, len(sel))
	for _, k := range sortedKeys(sel) {
		parts = append(parts, k+"="+sel[k])
	}
	return strings.Join(parts, ", ")
}
