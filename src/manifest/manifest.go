// Package manifest edits the cluster build object a render produces: a
// generic JSON body with typed accessors for the collections rules touch.
package manifest

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Manifest wraps the JSON body of a build object.
type Manifest struct {
	body map[string]any
}

// Parse decodes a stored manifest template.
func Parse(data []byte) (*Manifest, error) {
	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("decoding build manifest: %w", err)
	}
	if body == nil {
		return nil, fmt.Errorf("decoding build manifest: expected object")
	}
	return &Manifest{body: body}, nil
}

// FromMap wraps an existing body without copying it.
func FromMap(body map[string]any) *Manifest {
	return &Manifest{body: body}
}

// Body returns the underlying object.
func (m *Manifest) Body() map[string]any { return m.body }

// MarshalJSON encodes the body.
func (m *Manifest) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.body)
}

// DeepCopy returns a manifest sharing no mutable state with m.
func (m *Manifest) DeepCopy() *Manifest {
	return &Manifest{body: copyValue(m.body).(map[string]any)}
}

// mapAt walks path through nested objects. With create set, missing or
// non-object steps are replaced by empty objects.
func (m *Manifest) mapAt(create bool, path ...string) map[string]any {
	cur := m.body
	for _, key := range path {
		next, ok := cur[key].(map[string]any)
		if !ok {
			if !create {
				return nil
			}
			next = map[string]any{}
			cur[key] = next
		}
		cur = next
	}
	return cur
}

func (m *Manifest) stringAt(path ...string) string {
	parent := m.mapAt(false, path[:len(path)-1]...)
	if parent == nil {
		return ""
	}
	s, _ := parent[path[len(path)-1]].(string)
	return s
}

// Kind returns the object kind ("Build" or "BuildConfig").
func (m *Manifest) Kind() string { return m.stringAt("kind") }

// Name returns metadata.name.
func (m *Manifest) Name() string { return m.stringAt("metadata", "name") }

// SetName writes metadata.name.
func (m *Manifest) SetName(name string) {
	m.mapAt(true, "metadata")["name"] = name
}

// Label returns one metadata label.
func (m *Manifest) Label(key string) (string, bool) {
	labels := m.mapAt(false, "metadata", "labels")
	v, ok := labels[key].(string)
	return v, ok
}

// Labels returns a copy of metadata.labels.
func (m *Manifest) Labels() map[string]string {
	return stringMap(m.mapAt(false, "metadata", "labels"))
}

// SetLabel writes one metadata label.
func (m *Manifest) SetLabel(key, value string) {
	m.mapAt(true, "metadata", "labels")[key] = value
}

// SetSource points the build at a git location.
func (m *Manifest) SetSource(uri, ref string) {
	git := m.mapAt(true, "spec", "source", "git")
	git["uri"] = uri
	if ref != "" {
		git["ref"] = ref
	}
}

// SourceURI returns spec.source.git.uri.
func (m *Manifest) SourceURI() string { return m.stringAt("spec", "source", "git", "uri") }

// SetOutputTag writes the output image reference.
func (m *Manifest) SetOutputTag(name string) {
	m.mapAt(true, "spec", "output", "to")["name"] = name
}

// OutputTag returns spec.output.to.name.
func (m *Manifest) OutputTag() string { return m.stringAt("spec", "output", "to", "name") }

// SetBuilderImage selects the image the build runs in. kind is
// "DockerImage" or "ImageStreamTag".
func (m *Manifest) SetBuilderImage(kind, name string) {
	from := m.mapAt(true, "spec", "strategy", "customStrategy", "from")
	from["kind"] = kind
	from["name"] = name
}

// BuilderImage returns the kind and name of the builder image.
func (m *Manifest) BuilderImage() (kind, name string) {
	return m.stringAt("spec", "strategy", "customStrategy", "from", "kind"),
		m.stringAt("spec", "strategy", "customStrategy", "from", "name")
}

// MergeLimits merges the supplied resource limits into spec.resources.limits.
// Empty values are skipped.
func (m *Manifest) MergeLimits(limits map[string]string) {
	keys := make([]string, 0, len(limits))
	for k, v := range limits {
		if v != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return
	}
	dst := m.mapAt(true, "spec", "resources", "limits")
	for _, k := range keys {
		dst[k] = limits[k]
	}
}

// Limits returns a copy of spec.resources.limits.
func (m *Manifest) Limits() map[string]string {
	return stringMap(m.mapAt(false, "spec", "resources", "limits"))
}

// SetNodeSelector replaces spec.nodeSelector.
func (m *Manifest) SetNodeSelector(sel map[string]string) {
	spec := m.mapAt(true, "spec")
	out := make(map[string]any, len(sel))
	for k, v := range sel {
		out[k] = v
	}
	spec["nodeSelector"] = out
}

// NodeSelector returns a copy of spec.nodeSelector.
func (m *Manifest) NodeSelector() map[string]string {
	return stringMap(m.mapAt(false, "spec", "nodeSelector"))
}

func stringMap(src map[string]any) map[string]string {
	if src == nil {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
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
	default:
		return v
	}
}
