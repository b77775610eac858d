package params

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
)

// KindField is the discriminator key in the serialized form.
const KindField = "kind"

// Set holds the values of one parameter-set instance. An absent key means
// the parameter is unset.
type Set struct {
	kind   *Kind
	values map[string]any
}

// Kind returns the set's kind.
func (s *Set) Kind() *Kind { return s.kind }

// SetParams populates the set in one pass. Every unknown name is reported
// together before anything is written; population hooks run afterwards.
// Nil values are skipped.
func (s *Set) SetParams(kv map[string]any) error {
	var unknown []string
	for name := range kv {
		if _, ok := s.kind.descriptors[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return &UnknownParameterError{Kind: s.kind.name, Names: unknown}
	}

	names := make([]string, 0, len(kv))
	for name := range kv {
		names = append(names, name)
	}
	sort.Strings(names)

	issues := &ValidationError{}
	for _, name := range names {
		if err := s.Set(name, kv[name]); err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				issues.Issues = append(issues.Issues, verr.Issues...)
				continue
			}
			issues.Add(err.Error())
		}
	}
	if err := issues.OrNil(); err != nil {
		return err
	}

	for _, k := range s.kind.ancestors() {
		for _, hook := range k.hooks {
			if err := hook(s); err != nil {
				return err
			}
		}
	}
	return nil
}

// Set writes one parameter. A nil value unsets it.
func (s *Set) Set(name string, v any) error {
	d, ok := s.kind.descriptors[name]
	if !ok {
		return &UnknownParameterError{Kind: s.kind.name, Names: []string{name}}
	}
	if v == nil {
		delete(s.values, name)
		return nil
	}
	out, err := d.write(v)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			return verr
		}
		return Invalid("%v", err)
	}
	s.values[name] = out
	return nil
}

// Unset clears a parameter.
func (s *Set) Unset(name string) {
	delete(s.values, name)
}

// IsSet reports whether a value was written for name.
func (s *Set) IsSet(name string) bool {
	_, ok := s.values[name]
	return ok
}

// Get returns the current value: the written value, else the default, else nil.
func (s *Set) Get(name string) any {
	if v, ok := s.values[name]; ok {
		return v
	}
	if d, ok := s.kind.descriptors[name]; ok {
		return d.Default
	}
	return nil
}

// String returns a string parameter or "".
func (s *Set) String(name string) string {
	v, _ := s.Get(name).(string)
	return v
}

// Bool returns a bool parameter or false.
func (s *Set) Bool(name string) bool {
	v, _ := s.Get(name).(bool)
	return v
}

// Int returns an int parameter and whether one is present.
func (s *Set) Int(name string) (int, bool) {
	v, ok := s.Get(name).(int)
	return v, ok
}

// Strings returns a copy of a string list parameter.
func (s *Set) Strings(name string) []string {
	v, _ := s.Get(name).([]string)
	if v == nil {
		return nil
	}
	return append([]string{}, v...)
}

// Ints returns a copy of an int list parameter.
func (s *Set) Ints(name string) []int {
	v, _ := s.Get(name).([]int)
	if v == nil {
		return nil
	}
	return append([]int{}, v...)
}

// StringMap returns a copy of a string map parameter.
func (s *Set) StringMap(name string) map[string]string {
	v, _ := s.Get(name).(map[string]string)
	if v == nil {
		return nil
	}
	out := make(map[string]string, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Validate reports every required parameter that still has no value.
func (s *Set) Validate() error {
	issues := &ValidationError{}
	for _, d := range s.kind.Required() {
		if s.Get(d.Name) == nil {
			issues.Addf("%s is required", d.Name)
		}
	}
	return issues.OrNil()
}

// Equal reports whether two sets have the same kind and values.
func (s *Set) Equal(o *Set) bool {
	if s == nil || o == nil {
		return s == o
	}
	return s.kind == o.kind && reflect.DeepEqual(s.values, o.values)
}

// Clone returns an independent copy.
func (s *Set) Clone() *Set {
	c := s.kind.New()
	for name, v := range s.values {
		d := s.kind.descriptors[name]
		c.values[name], _ = coerce(d.Type, v)
	}
	return c
}

// Serialize emits the set's serializable values plus the kind discriminator
// as JSON with sorted keys.
func (s *Set) Serialize() ([]byte, error) {
	out := map[string]any{KindField: s.kind.name}
	for name, v := range s.values {
		if s.kind.descriptors[name].IncludeInOutput {
			out[name] = v
		}
	}
	return json.Marshal(out)
}

// Deserialize parses a serialized blob into a new set of this kind. Empty
// input yields an empty set; unknown fields are dropped.
func (k *Kind) Deserialize(blob []byte) (*Set, error) {
	s := k.New()
	raw, err := decodeObject(blob)
	if err != nil {
		return nil, &ParseError{Kind: k.name, Err: err}
	}
	for name, v := range raw {
		if name == KindField || v == nil {
			continue
		}
		d, ok := k.descriptors[name]
		if !ok {
			continue
		}
		out, err := d.write(v)
		if err != nil {
			return nil, &ParseError{Kind: k.name, Err: err}
		}
		s.values[name] = out
	}
	return s, nil
}

// Decode parses a serialized blob, choosing the kind from its discriminator.
func Decode(blob []byte) (*Set, error) {
	raw, err := decodeObject(blob)
	if err != nil {
		return nil, &ParseError{Kind: "params", Err: err}
	}
	name, _ := raw[KindField].(string)
	k, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	return k.Deserialize(blob)
}

func decodeObject(blob []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(blob)) == 0 {
		return map[string]any{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(blob))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return map[string]any{}, nil
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after object")
	}
	return raw, nil
}
