package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// LatestVersion is the config schema version this build reads.
const LatestVersion = 1

// MigrateToLatest upgrades a .buildfreight.yml document to LatestVersion.
// Version 0 (no version field) shares every field with version 1 and only
// gains the version stamp; comments and key order survive.
func MigrateToLatest(data []byte) ([]byte, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("migrate: reading config: %w", err)
	}
	root, ver, err := versionOf(&doc)
	if err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	switch ver {
	case LatestVersion:
		return data, nil
	case 0:
		if root == nil {
			return []byte(fmt.Sprintf("version: %d\n", LatestVersion)), nil
		}
		setVersion(root, LatestVersion)
		out, err := yaml.Marshal(&doc)
		if err != nil {
			return nil, fmt.Errorf("migrate: writing config: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("migrate: unknown config version %d (latest supported: %d)", ver, LatestVersion)
	}
}

// versionOf returns the document's top-level mapping and its version.
// An empty document has no mapping and version 0.
func versionOf(doc *yaml.Node) (*yaml.Node, int, error) {
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return nil, 0, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, 0, fmt.Errorf("config is not a mapping")
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value != "version" {
			continue
		}
		var v int
		if err := root.Content[i+1].Decode(&v); err != nil {
			return nil, 0, fmt.Errorf("reading version: %w", err)
		}
		return root, v, nil
	}
	return root, 0, nil
}

func setVersion(root *yaml.Node, v int) {
	value := fmt.Sprintf("%d", v)
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value == "version" {
			root.Content[i+1].Value = value
			root.Content[i+1].Tag = "!!int"
			return
		}
	}
	root.Content = append([]*yaml.Node{
		{Kind: yaml.ScalarNode, Tag: "!!str", Value: "version"},
		{Kind: yaml.ScalarNode, Tag: "!!int", Value: value},
	}, root.Content...)
}
