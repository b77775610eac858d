package templates

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/sofmeright/buildfreight/src/pipeline"
)

//go:embed schemas/customization.schema.json
var customizationSchema []byte

// PluginRef names one plugin in a customization document.
type PluginRef struct {
	Type string // phase key, e.g. "prebuild_plugins"
	Name string
	Args map[string]any
}

// Customization is a site-level list of plugins to disable and enable on
// top of the stored pipeline.
type Customization struct {
	Disable []PluginRef
	Enable  []PluginRef

	// Skipped holds one message per malformed entry that was dropped.
	Skipped []string
}

// Empty reports whether the document changes nothing.
func (c *Customization) Empty() bool {
	return c == nil || (len(c.Disable) == 0 && len(c.Enable) == 0)
}

// ParseCustomization decodes a customization document. The format follows
// the file extension: .json, .yaml/.yml or .toml. A document that is not an
// object with list-valued disable_plugins/enable_plugins is rejected;
// malformed entries inside the lists are skipped and recorded.
func ParseCustomization(name string, data []byte) (*Customization, error) {
	doc := map[string]any{}
	var err error
	switch strings.ToLower(path.Ext(name)) {
	case ".json":
		err = json.Unmarshal(data, &doc)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &doc)
	case ".toml":
		err = toml.Unmarshal(data, &doc)
	default:
		return nil, fmt.Errorf("customization %s: unsupported format", name)
	}
	if err != nil {
		return nil, fmt.Errorf("customization %s: %w", name, err)
	}
	if doc == nil {
		doc = map[string]any{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(customizationSchema),
		gojsonschema.NewGoLoader(doc),
	)
	if err != nil {
		return nil, fmt.Errorf("customization %s: schema: %w", name, err)
	}
	if !result.Valid() {
		var msgs []string
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return nil, fmt.Errorf("customization %s: %s", name, strings.Join(msgs, "; "))
	}

	c := &Customization{}
	c.Disable = c.collect(doc["disable_plugins"], "disable_plugins", false)
	c.Enable = c.collect(doc["enable_plugins"], "enable_plugins", true)
	return c, nil
}

func (c *Customization) collect(raw any, section string, withArgs bool) []PluginRef {
	items, _ := raw.([]any)
	var out []PluginRef
	for i, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			c.Skipped = append(c.Skipped, fmt.Sprintf("%s[%d]: entry is not an object", section, i))
			continue
		}
		typ, _ := entry["plugin_type"].(string)
		name, _ := entry["plugin_name"].(string)
		if typ == "" || name == "" {
			c.Skipped = append(c.Skipped, fmt.Sprintf("%s[%d]: plugin_type and plugin_name are required", section, i))
			continue
		}
		if !pipeline.IsPhaseKey(typ) {
			c.Skipped = append(c.Skipped, fmt.Sprintf("%s[%d]: plugin_type %q is not a phase", section, i, typ))
			continue
		}
		ref := PluginRef{Type: typ, Name: name}
		if withArgs {
			switch args := entry["plugin_args"].(type) {
			case nil:
			case map[string]any:
				ref.Args = args
			default:
				c.Skipped = append(c.Skipped, fmt.Sprintf("%s[%d]: plugin_args must be an object", section, i))
				continue
			}
		}
		out = append(out, ref)
	}
	return out
}
