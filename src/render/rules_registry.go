package render

import (
	"strings"

	"github.com/sofmeright/buildfreight/src/params"
	"github.com/sofmeright/buildfreight/src/pipeline"
)

// RegistryURIPlaceholder is the registries key a stored pipeline uses for
// "every configured registry".
const RegistryURIPlaceholder = "{{REGISTRY_URI}}"

// registries returns the parsed output registries in configuration order.
func (s *state) registries() []params.RegistryURI {
	var out []params.RegistryURI
	for _, raw := range s.params.Strings(params.RegistryURIs) {
		if r := params.ParseRegistryURI(raw); r.DockerURI != "" {
			out = append(out, r)
		}
	}
	return out
}

// registrySecret returns the mount path of the secret paired with the i-th
// registry, if any.
func (s *state) registrySecret(i int) string {
	secrets := s.params.Strings(params.RegistrySecrets)
	if i >= len(secrets) || secrets[i] == "" {
		return ""
	}
	return s.mountPath(secrets[i])
}

// renderTagAndPush expands the registry placeholder into one entry per
// configured registry. Entries already keyed by a registry act as
// overrides.
func renderTagAndPush(s *state) error {
	if !s.has(PluginTagAndPush) {
		return nil
	}
	regs := s.registries()
	if len(regs) == 0 {
		s.remove(PluginTagAndPush, "no registry_uris")
		return nil
	}

	existing := map[string]any{}
	if v, ok := s.pipeline.Arg(pipeline.PostBuild, PluginTagAndPush, "registries"); ok {
		if m, ok := v.(map[string]any); ok {
			existing = m
		}
	}
	placeholder, _ := existing[RegistryURIPlaceholder].(map[string]any)

	out := map[string]any{}
	for i, reg := range regs {
		entry := map[string]any{}
		for k, v := range placeholder {
			entry[k] = v
		}
		if override, ok := existing[reg.DockerURI].(map[string]any); ok {
			for k, v := range override {
				entry[k] = v
			}
		}
		if reg.Scheme == "http://" {
			entry["insecure"] = true
		}
		entry["version"] = reg.Version
		if secret := s.registrySecret(i); secret != "" {
			entry["secret"] = secret
		}
		out[reg.DockerURI] = entry
	}
	return s.pipeline.SetArg(pipeline.PostBuild, PluginTagAndPush, "registries", out)
}

// renderRegistryAPIVersions drops what the negotiated registry protocols
// cannot serve, then strips the version markers.
func renderRegistryAPIVersions(s *state) error {
	versions := toSet(s.params.Strings(params.RegistryAPIVersions))
	if !versions["v1"] {
		for _, p := range v1OnlyPlugins {
			s.remove(p, "registry API v1 not enabled")
		}
		s.pruneRegistries("v1")
	}
	if !versions["v2"] {
		for _, p := range v2OnlyPlugins {
			s.remove(p, "registry API v2 not enabled")
		}
		s.pruneRegistries("v2")
	}

	regs := s.tagAndPushRegistries()
	for _, v := range regs {
		if entry, ok := v.(map[string]any); ok {
			delete(entry, "version")
		}
	}
	return nil
}

// tagAndPushRegistries returns the live registries argument, or nil when
// tag_and_push is absent.
func (s *state) tagAndPushRegistries() map[string]any {
	v, ok := s.pipeline.Arg(pipeline.PostBuild, PluginTagAndPush, "registries")
	if !ok {
		return nil
	}
	m, _ := v.(map[string]any)
	return m
}

// pruneRegistries deletes tag_and_push registries tagged with version.
// A missing tag_and_push is not an error here.
func (s *state) pruneRegistries(version string) {
	regs := s.tagAndPushRegistries()
	for _, name := range sortedKeys(regs) {
		entry, _ := regs[name].(map[string]any)
		if entry["version"] == version {
			delete(regs, name)
			s.ruleLog().WithField("registry", name).Infof("removed %s registry from %s", version, PluginTagAndPush)
		}
	}
}

// renderPulp configures the pulp family against the site's pulp registry.
func renderPulp(s *state) error {
	pulp := s.str(params.PulpRegistry)
	if pulp == "" {
		for _, p := range []string{PluginPulpPush, PluginPulpSync, PluginPulpPublish, PluginPulpPull} {
			s.remove(p, "no pulp_registry")
		}
		return renderDeleteFromRegistry(s, "")
	}
	secret := ""
	if name := s.str(params.PulpSecret); name != "" {
		secret = s.mountPath(name)
	}

	s.setArgs(PluginPulpPush, map[string]any{
		"pulp_registry_name":  pulp,
		"pulp_secret_path":    secret,
		"load_exported_image": true,
	})
	s.setArgs(PluginPulpPublish, map[string]any{
		"pulp_registry_name": pulp,
		"pulp_secret_path":   secret,
	})
	s.setArgs(PluginPulpPull, map[string]any{
		"insecure": !s.flag(params.VerifySSL),
	})

	source := ""
	if s.has(PluginPulpSync) {
		for i, reg := range s.registries() {
			if reg.Version != "v2" {
				continue
			}
			source = reg.DockerURI
			args := map[string]any{
				"pulp_registry_name": pulp,
				"docker_registry":    reg.URI(),
				"pulp_secret_path":   secret,
			}
			if rs := s.registrySecret(i); rs != "" {
				args["registry_secret_path"] = rs
			}
			s.setArgs(PluginPulpSync, args)
			break
		}
		if source == "" {
			s.remove(PluginPulpSync, "no v2 registry to sync from")
		}
	}
	return renderDeleteFromRegistry(s, source)
}

// renderDeleteFromRegistry schedules deletion from every v2 registry except
// syncSource, the registry pulp_sync reads from.
func renderDeleteFromRegistry(s *state, syncSource string) error {
	if !s.has(PluginDeleteFromRegistry) {
		return nil
	}
	regs := map[string]any{}
	for i, reg := range s.registries() {
		if reg.Version != "v2" || reg.DockerURI == syncSource {
			continue
		}
		entry := map[string]any{}
		if secret := s.registrySecret(i); secret != "" {
			entry["secret"] = secret
		}
		regs[reg.URI()] = entry
	}
	if len(regs) == 0 {
		s.remove(PluginDeleteFromRegistry, "no registry to delete from")
		return nil
	}
	return s.pipeline.SetArg(pipeline.Exit, PluginDeleteFromRegistry, "registries", regs)
}

func renderGroupManifests(s *state) error {
	if !s.has(PluginGroupManifests) {
		return nil
	}
	regs := map[string]any{}
	for i, reg := range s.registries() {
		if reg.Version != "v2" {
			continue
		}
		entry := map[string]any{"insecure": reg.Scheme == "http://"}
		if secret := s.registrySecret(i); secret != "" {
			entry["secret"] = secret
		}
		regs[reg.URI()] = entry
	}
	if len(regs) == 0 {
		s.remove(PluginGroupManifests, "no v2 registry")
		return nil
	}
	if err := s.pipeline.SetArg(pipeline.PostBuild, PluginGroupManifests, "registries", regs); err != nil {
		return err
	}
	return s.pipeline.SetArg(pipeline.PostBuild, PluginGroupManifests, "group", s.flag(params.GroupManifests))
}

// Tag suffix templates filled in by the executor.
const (
	suffixVersionRelease = "{version}-{release}"
	suffixVersion        = "{version}"
	suffixLatest         = "latest"
)

// tagSuffixes returns the tag_from_config suffixes for a build.
//
//	unique   always; the per-build tag part of the image tag
//	primary  "{version}-{release}" plus the repository tags
//	floating "latest" and "{version}", unless the repository tags came from
//	         container.yaml
func (s *state) tagSuffixes() map[string]any {
	unique := []string{}
	if tag := s.str(params.ImageTag); tag != "" {
		if i := strings.LastIndex(tag, ":"); i >= 0 {
			unique = append(unique, tag[i+1:])
		}
	}
	out := map[string]any{"unique": unique, "primary": []string{}, "floating": []string{}}
	if s.bt.Role != RoleOrchestrator || s.variation == params.ScratchBuild {
		return out
	}

	primary := []string{suffixVersionRelease}
	if s.variation == params.IsolatedBuild {
		out["primary"] = primary
		return out
	}

	tags := s.repo.AdditionalTags
	primary = append(primary, tags.Tags...)
	primary = append(primary, s.params.Strings(params.AdditionalTags)...)
	out["primary"] = dedupe(primary)
	if !tags.FromConfiguration {
		out["floating"] = []string{suffixLatest, suffixVersion}
	}
	return out
}

func renderTagFromConfig(s *state) error {
	if !s.has(PluginTagFromConfig) {
		return nil
	}
	suffixes := s.tagSuffixes()
	return s.pipeline.SetArg(pipeline.PostBuild, PluginTagFromConfig, "tag_suffixes", suffixes)
}

func toSet(items []string) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, i := range items {
		out[i] = true
	}
	return out
}

func dedupe(items []string) []string {
	seen := map[string]bool{}
	out := items[:0:0]
	for _, i := range items {
		if i == "" || seen[i] {
			continue
		}
		seen[i] = true
		out = append(out, i)
	}
	return out
}
