package params

import (
	"regexp"
	"strings"
)

// RegistryURI is a container registry location with its API version.
//
//	"https://registry.example.com/v2" → Scheme "https://", DockerURI "registry.example.com", Version "v2"
//	"registry.example.com"            → Version "v1"
type RegistryURI struct {
	Scheme    string
	DockerURI string
	Version   string
}

var registryURIRe = regexp.MustCompile(`^(?P<scheme>[a-z]+://)?(?P<host>[^/]+)(?P<path>/.*)?$`)

// ParseRegistryURI parses a registry URI. The API version defaults to v1
// when the URI has no path.
func ParseRegistryURI(raw string) RegistryURI {
	raw = strings.TrimSpace(raw)
	m := registryURIRe.FindStringSubmatch(raw)
	if m == nil {
		return RegistryURI{}
	}
	r := RegistryURI{Scheme: m[1], DockerURI: m[2], Version: "v1"}
	if p := strings.Trim(m[3], "/"); p != "" {
		r.Version = strings.SplitN(p, "/", 2)[0]
	}
	return r
}

// URI returns the scheme-qualified host.
func (r RegistryURI) URI() string {
	return r.Scheme + r.DockerURI
}

// String returns the URI with its version path.
func (r RegistryURI) String() string {
	if r.DockerURI == "" {
		return ""
	}
	return r.URI() + "/" + r.Version
}
