package render

import (
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/sofmeright/buildfreight/src/manifest"
	"github.com/sofmeright/buildfreight/src/pipeline"
	"github.com/sofmeright/buildfreight/src/version"
)

// ClientVersionParam is the top-level pipeline key carrying the renderer
// version.
const ClientVersionParam = "client_version"

// renderCustomizations applies the site's disable and enable lists on top
// of everything the built-in rules did. Malformed entries were dropped at
// load time and are reported here.
func renderCustomizations(s *state) error {
	c := s.customization
	if c == nil {
		return nil
	}
	logger := s.ruleLog()
	for _, msg := range c.Skipped {
		logger.Warnf("skipped customization entry: %s", msg)
	}
	for _, ref := range c.Disable {
		if s.pipeline.RemovePlugin(ref.Type, ref.Name) {
			logger.WithFields(log.Fields{"phase": ref.Type, "plugin": ref.Name}).Info("disabled plugin by site customization")
		}
	}
	for _, ref := range c.Enable {
		s.pipeline.AddOrReplacePlugin(ref.Type, ref.Name, ref.Args)
		logger.WithFields(log.Fields{"phase": ref.Type, "plugin": ref.Name}).Info("enabled plugin by site customization")
	}
	return nil
}

func renderClientVersion(s *state) error {
	v := s.clientVersion
	if v == "" {
		v = version.Version
	}
	s.pipeline.SetParam(ClientVersionParam, v)
	return nil
}

// renderLeakCheck refuses pipelines carrying inline credentials. Secrets
// must travel as mounts.
func renderLeakCheck(s *state) error {
	if s.leaks == nil {
		return nil
	}
	data, err := json.Marshal(s.pipeline)
	if err != nil {
		return err
	}
	return s.leaks.Check(manifest.CarrierEnv, data)
}

func assemble(s *state) error {
	return AssembleManifest(s.manifest, s.pipeline)
}

// AssembleManifest writes p into m's carrier. It is the last step of every
// render and is exposed for callers that edit a rendered pipeline.
func AssembleManifest(m *manifest.Manifest, p *pipeline.Template) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding pipeline: %w", err)
	}
	return m.SetCarrier(manifest.CarrierEnv, string(data))
}
