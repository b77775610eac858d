package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type pluginJSON struct {
	Name     string         `json:"name"`
	Args     map[string]any `json:"args"`
	Required *bool          `json:"required,omitempty"`
}

// pluginOut keeps an empty args object distinct from absent args.
type pluginOut struct {
	Name     string `json:"name"`
	Args     any    `json:"args,omitempty"`
	Required *bool  `json:"required,omitempty"`
}

// Parse decodes a template from its JSON object form.
func Parse(data []byte) (*Template, error) {
	t := New()
	if err := t.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return t, nil
}

// UnmarshalJSON decodes the object keeping key order. Keys ending in
// "_plugins" are phases; every other key is a top-level parameter.
func (t *Template) UnmarshalJSON(data []byte) error {
	fresh := New()
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("decoding pipeline template: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("decoding pipeline template: expected object, got %v", tok)
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("decoding pipeline template: %w", err)
		}
		key := tok.(string)
		if _, dup := fresh.plugins[key]; dup {
			return fmt.Errorf("decoding pipeline template: duplicate phase %s", key)
		}

		if !IsPhaseKey(key) {
			var v any
			if err := dec.Decode(&v); err != nil {
				return fmt.Errorf("decoding pipeline template key %s: %w", key, err)
			}
			fresh.SetParam(key, v)
			continue
		}

		var entries []pluginJSON
		if err := dec.Decode(&entries); err != nil {
			return fmt.Errorf("decoding phase %s: %w", key, err)
		}
		list := make([]*PluginConfig, 0, len(entries))
		for i, e := range entries {
			if e.Name == "" {
				return fmt.Errorf("decoding phase %s: entry %d has no name", key, i)
			}
			list = append(list, &PluginConfig{Name: e.Name, Args: e.Args, Required: e.Required})
		}
		fresh.order = append(fresh.order, key)
		fresh.plugins[key] = list
	}

	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("decoding pipeline template: %w", err)
	}
	if dec.More() {
		return fmt.Errorf("decoding pipeline template: trailing data")
	}
	*t = *fresh
	return nil
}

// MarshalJSON encodes the template with keys in template order. Argument
// maps are emitted with sorted keys.
func (t *Template) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range t.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')

		var v any
		if IsPhaseKey(key) {
			entries := make([]pluginOut, 0, len(t.plugins[key]))
			for _, p := range t.plugins[key] {
				e := pluginOut{Name: p.Name, Required: p.Required}
				if p.Args != nil {
					e.Args = p.Args
				}
				entries = append(entries, e)
			}
			v = entries
		} else {
			v = t.params[key]
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encoding pipeline template key %s: %w", key, err)
		}
		buf.Write(b)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
