package params

import "regexp"

// BuildIDMaxLength is the longest build identifier the cluster accepts.
const BuildIDMaxLength = 63

var buildIDRe = regexp.MustCompile(`^[A-Za-z0-9]([-_.A-Za-z0-9]*[A-Za-z0-9])?$`)

// BuildID declares a serialized string parameter holding a cluster object
// name. Values are truncated to BuildIDMaxLength before the pattern check.
func BuildID(name string) Descriptor {
	d := Param(name, String)
	d.Normalize = func(v any) (any, error) {
		s := v.(string)
		if len(s) > BuildIDMaxLength {
			s = s[:BuildIDMaxLength]
		}
		if !buildIDRe.MatchString(s) {
			return nil, Invalid("%s: build id %q must match %s", name, s, buildIDRe.String())
		}
		return s, nil
	}
	return d
}
