package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

const defaultConfigFile = ".buildfreight.yml"

// Config is the top-level buildfreight configuration.
type Config struct {
	Version int `yaml:"version"`

	// TemplatesDir holds the stored manifest, pipeline and customization
	// templates.
	TemplatesDir string `yaml:"templates_dir"`

	BuildType          string `yaml:"build_type"`
	ArrangementVersion int    `yaml:"arrangement_version"`
	LogLevel           string `yaml:"log_level"`

	// LeakScan rejects rendered pipelines that carry inline credentials.
	LeakScan bool `yaml:"leak_scan"`

	WorkerConcurrency int `yaml:"worker_concurrency"`

	// Site holds site parameters (kojihub, registries, secrets, node
	// selectors, ...) merged under every request's user parameters.
	Site map[string]any `yaml:"site"`
}

// Load reads configuration from a YAML file.
// If path is empty, it tries the default file.
// Returns sensible defaults if the file doesn't exist.
func Load(path string) (*Config, error) {
	if path == "" {
		path = defaultConfigFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return defaults(), nil
		}
		return nil, err
	}

	data, err = MigrateToLatest(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Version:            1,
		TemplatesDir:       "inputs",
		BuildType:          "orchestrator",
		ArrangementVersion: 6,
		LogLevel:           "info",
		LeakScan:           true,
		WorkerConcurrency:  4,
	}
}

// Params returns the site parameters with user on top. Neither input is
// modified.
func (c *Config) Params(user map[string]any) map[string]any {
	out := make(map[string]any, len(c.Site)+len(user))
	for k, v := range c.Site {
		out[k] = v
	}
	for k, v := range user {
		out[k] = v
	}
	return out
}
