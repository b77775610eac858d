package params

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Type selects the canonical Go representation of a parameter value.
type Type int

const (
	String     Type = iota // string
	Bool                   // bool
	Int                    // int
	StringList             // []string
	IntList                // []int
	StringMap              // map[string]string
)

func (t Type) String() string {
	switch t {
	case String:
		return "string"
	case Bool:
		return "bool"
	case Int:
		return "int"
	case StringList:
		return "string list"
	case IntList:
		return "int list"
	case StringMap:
		return "string map"
	default:
		return fmt.Sprintf("type(%d)", int(t))
	}
}

// Descriptor declares one parameter slot.
type Descriptor struct {
	Name            string
	Type            Type
	Default         any
	Required        bool
	IncludeInOutput bool

	// Normalize runs after type coercion on every write. It may rewrite the
	// value; a non-nil error rejects the write.
	Normalize func(v any) (any, error)
}

// Param declares an optional parameter that is serialized.
func Param(name string, t Type) Descriptor {
	return Descriptor{Name: name, Type: t, IncludeInOutput: true}
}

// RequiredParam declares a required parameter that is serialized.
func RequiredParam(name string, t Type) Descriptor {
	return Descriptor{Name: name, Type: t, Required: true, IncludeInOutput: true}
}

// SiteParam declares a parameter supplied by site configuration. Site
// parameters are never serialized.
func SiteParam(name string, t Type) Descriptor {
	return Descriptor{Name: name, Type: t}
}

// WithDefault returns a copy of d with the given default value.
func (d Descriptor) WithDefault(v any) Descriptor {
	d.Default = v
	return d
}

func (d Descriptor) write(v any) (any, error) {
	out, err := coerce(d.Type, v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", d.Name, err)
	}
	if d.Normalize != nil {
		return d.Normalize(out)
	}
	return out, nil
}

// coerce converts v into the canonical representation for t.
func coerce(t Type, v any) (any, error) {
	switch t {
	case String:
		switch x := v.(type) {
		case string:
			return x, nil
		case json.Number:
			return x.String(), nil
		case fmt.Stringer:
			return x.String(), nil
		}
	case Bool:
		switch x := v.(type) {
		case bool:
			return x, nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(x))
			if err != nil {
				return nil, fmt.Errorf("expected bool, got %q", x)
			}
			return b, nil
		}
	case Int:
		return toInt(v)
	case StringList:
		switch x := v.(type) {
		case []string:
			return append([]string{}, x...), nil
		case string:
			return []string{x}, nil
		case []any:
			out := make([]string, 0, len(x))
			for _, item := range x {
				s, ok := item.(string)
				if !ok {
					return nil, fmt.Errorf("expected string list item, got %T", item)
				}
				out = append(out, s)
			}
			return out, nil
		case map[string]bool:
			// set semantics: sorted members that are true
			out := make([]string, 0, len(x))
			for k, on := range x {
				if on {
					out = append(out, k)
				}
			}
			sort.Strings(out)
			return out, nil
		}
	case IntList:
		switch x := v.(type) {
		case []int:
			return append([]int{}, x...), nil
		case []any:
			out := make([]int, 0, len(x))
			for _, item := range x {
				n, err := toInt(item)
				if err != nil {
					return nil, err
				}
				out = append(out, n.(int))
			}
			return out, nil
		default:
			n, err := toInt(v)
			if err != nil {
				return nil, fmt.Errorf("expected int list, got %T", v)
			}
			return []int{n.(int)}, nil
		}
	case StringMap:
		switch x := v.(type) {
		case map[string]string:
			out := make(map[string]string, len(x))
			for k, val := range x {
				out[k] = val
			}
			return out, nil
		case map[string]any:
			out := make(map[string]string, len(x))
			for k, val := range x {
				s, ok := val.(string)
				if !ok {
					return nil, fmt.Errorf("expected string value for key %q, got %T", k, val)
				}
				out[k] = s
			}
			return out, nil
		}
	}
	return nil, fmt.Errorf("expected %s, got %T", t, v)
}

func toInt(v any) (any, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int32:
		return int(x), nil
	case int64:
		return int(x), nil
	case float64:
		if x != math.Trunc(x) {
			return nil, fmt.Errorf("expected int, got %v", x)
		}
		return int(x), nil
	case json.Number:
		n, err := strconv.Atoi(x.String())
		if err != nil {
			return nil, fmt.Errorf("expected int, got %q", x.String())
		}
		return n, nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return nil, fmt.Errorf("expected int, got %q", x)
		}
		return n, nil
	}
	return nil, fmt.Errorf("expected int, got %T", v)
}
