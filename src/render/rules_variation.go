package render

import (
	"github.com/sofmeright/buildfreight/src/params"
	"github.com/sofmeright/buildfreight/src/pipeline"
)

// TagSuffixesPlaceholder marks a tag_from_config argument the renderer
// fills in.
const TagSuffixesPlaceholder = "{{TAG_SUFFIXES}}"

func renderRepoAutorebuild(s *state) error {
	if !s.repo.AutorebuildEnabled() {
		s.ruleLog().Info("autorebuild disabled by repository configuration")
		s.removeTriggers = true
	}
	return nil
}

func renderIsolated(s *state) error {
	if s.variation != params.IsolatedBuild {
		return nil
	}
	s.removeTriggers = true
	for _, p := range []string{PluginCheckAndSetRebuild, PluginStopAutorebuildIfDisable, PluginImportImage} {
		s.remove(p, "isolated build")
	}
	s.manifest.SetLabel("isolated", "true")
	s.manifest.SetLabel("isolated-release", s.str(params.Release))
	return nil
}

func renderScratch(s *state) error {
	if s.variation != params.ScratchBuild {
		return nil
	}
	for _, p := range scratchRemoved {
		s.remove(p, "scratch build")
	}
	if !hasTagSuffixesPlaceholder(s.pipeline) {
		s.remove(PluginTagFromConfig, "scratch build without tag suffix placeholder")
	}
	// scratch builds are never rebuilt automatically
	for _, p := range []string{PluginCheckAndSetRebuild, PluginStopAutorebuildIfDisable} {
		s.remove(p, "scratch build")
	}
	s.manifest.SetLabel("scratch", "true")
	return nil
}

func hasTagSuffixesPlaceholder(p *pipeline.Template) bool {
	v, _ := p.Arg(pipeline.PostBuild, PluginTagFromConfig, "tag_suffixes")
	return v == TagSuffixesPlaceholder
}

// renderCustomBaseImage swaps base image pulling for filesystem
// construction when the base image is built by the build system.
func renderCustomBaseImage(s *state) error {
	base := s.baseImage()
	if s.repo.Dockerfile.IsFromScratch() || base == "scratch" {
		s.ruleLog().Info("base image is scratch, removing triggers")
		s.removeTriggers = true
	}
	if !IsCustomBaseImage(base) {
		s.remove(PluginAddFilesystem, "base image is not a custom base image")
		return nil
	}
	for _, p := range []string{PluginPullBaseImage, PluginKojiParent, PluginInjectParentImage} {
		s.remove(p, "custom base image")
	}
	s.removeTriggers = true
	return nil
}

// renderTriggers removes triggers when an earlier rule asked for it and
// otherwise points the image change trigger at the configured tag. The
// build variation never decides removal itself; without a tag the stored
// trigger reference cannot be resolved and is dropped.
func renderTriggers(s *state) error {
	if len(s.manifest.Triggers()) > 0 {
		tag := s.str(params.TriggerImagestreamTag)
		switch {
		case s.removeTriggers:
			s.manifest.RemoveTriggers()
			s.ruleLog().Info("removed triggers")
		case tag == "":
			s.manifest.RemoveTriggers()
			s.ruleLog().Info("removed triggers: no trigger_imagestreamtag")
		default:
			if err := s.manifest.SetTriggerImageStreamTag(tag); err != nil {
				return err
			}
		}
	}
	if len(s.manifest.Triggers()) == 0 {
		s.remove(PluginCheckAndSetRebuild, "no triggers")
		s.remove(PluginStopAutorebuildIfDisable, "no triggers")
	}
	return nil
}

func renderCheckAndSetRebuild(s *state) error {
	s.setArgs(PluginCheckAndSetRebuild, map[string]any{
		"label_key":   "is_autorebuild",
		"label_value": "true",
		"url":         s.str(params.OpenshiftURI),
		"verify_ssl":  s.flag(params.VerifySSL),
		"use_auth":    s.flag(params.UseAuth),
	})
	return nil
}
