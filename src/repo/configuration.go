package repo

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// File names read from the repository root.
const (
	ContainerFile      = "container.yaml"
	DockerfileName     = "Dockerfile"
	RepoConfigFile     = ".osbs-repo-config"
	AdditionalTagsFile = "additional-tags"
)

//go:embed schemas/container.schema.json
var containerSchema []byte

// Configuration is the parsed container.yaml.
type Configuration struct {
	Platforms        PlatformFilter `yaml:"platforms"`
	Compose          *Compose       `yaml:"compose"`
	Tags             []string       `yaml:"tags"`
	ImageBuildMethod string         `yaml:"image_build_method"`
	Autorebuild      struct {
		FromLatest bool `yaml:"from_latest"`
	} `yaml:"autorebuild"`
	Flatpak map[string]any `yaml:"flatpak"`

	// AutorebuildEnabled comes from .osbs-repo-config, not container.yaml.
	AutorebuildEnabled bool `yaml:"-"`
}

// Compose describes the composes a build requests.
type Compose struct {
	Packages      []string `yaml:"packages"`
	PulpRepos     bool     `yaml:"pulp_repos"`
	Modules       []string `yaml:"modules"`
	SigningIntent string   `yaml:"signing_intent"`
	Inherit       bool     `yaml:"inherit"`
}

// PlatformFilter restricts the platforms a build runs on.
type PlatformFilter struct {
	Only StringList `yaml:"only"`
	Not  StringList `yaml:"not"`
}

// StringList accepts a scalar or a sequence:
//
//	only: x86_64           → ["x86_64"]
//	only: [x86_64, ppc64le]
type StringList []string

// UnmarshalYAML implements the scalar shorthand.
func (l *StringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Tag == "!!null" {
			*l = nil
			return nil
		}
		*l = StringList{value.Value}
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := value.Decode(&items); err != nil {
			return err
		}
		*l = items
		return nil
	}
	return fmt.Errorf("expected string or list, got YAML kind %d", value.Kind)
}

// DefaultConfiguration is used when the repository has no container.yaml.
func DefaultConfiguration() *Configuration {
	return &Configuration{AutorebuildEnabled: true}
}

// ParseConfiguration decodes and validates container.yaml.
func ParseConfiguration(data []byte) (*Configuration, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%s: %w", ContainerFile, err)
	}
	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(containerSchema), gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("%s: schema: %w", ContainerFile, err)
	}
	if !result.Valid() {
		var msgs []string
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return nil, fmt.Errorf("%s: %s", ContainerFile, strings.Join(msgs, "; "))
	}

	cfg := DefaultConfiguration()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", ContainerFile, err)
	}
	return cfg, nil
}

// ParseRepoConfig reads the autorebuild switch from .osbs-repo-config:
//
//	[autorebuild]
//	enabled = false
//
// A missing section or key leaves autorebuild enabled.
func ParseRepoConfig(data []byte) (bool, error) {
	f, err := ini.Load(data)
	if err != nil {
		return false, fmt.Errorf("%s: %w", RepoConfigFile, err)
	}
	key := f.Section("autorebuild").Key("enabled")
	if key.String() == "" {
		return true, nil
	}
	enabled, err := key.Bool()
	if err != nil {
		return false, fmt.Errorf("%s: autorebuild.enabled: %w", RepoConfigFile, err)
	}
	return enabled, nil
}

// FilterPlatforms applies the only/not lists to the requested platforms,
// keeping request order.
func (c *Configuration) FilterPlatforms(requested []string) []string {
	only := toSet(c.Platforms.Only)
	not := toSet(c.Platforms.Not)
	var out []string
	for _, p := range requested {
		if len(only) > 0 && !only[p] {
			continue
		}
		if not[p] {
			continue
		}
		out = append(out, p)
	}
	return out
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, s := range items {
		set[s] = true
	}
	return set
}

var tagRe = regexp.MustCompile(`^[\w][\w.-]{0,127}$`)

// AdditionalTags are the extra tags a repository asks for.
type AdditionalTags struct {
	Tags []string

	// FromConfiguration is true when the tags came from container.yaml
	// rather than the legacy additional-tags file.
	FromConfiguration bool
}

// ParseAdditionalTagsFile reads whitespace-separated tags, dropping invalid
// ones and duplicates.
func ParseAdditionalTagsFile(data []byte) (tags []string, invalid []string) {
	seen := map[string]bool{}
	for _, tag := range strings.Fields(string(data)) {
		if !tagRe.MatchString(tag) {
			invalid = append(invalid, tag)
			continue
		}
		if seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}
	return tags, invalid
}
