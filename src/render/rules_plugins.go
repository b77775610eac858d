package render

import (
	"encoding/json"

	imagespec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/sofmeright/buildfreight/src/manifest"
	"github.com/sofmeright/buildfreight/src/params"
	"github.com/sofmeright/buildfreight/src/pipeline"
)

// ReactorConfigEnv names the env entry the site configuration is mounted
// through.
const ReactorConfigEnv = "REACTOR_CONFIG"

func renderReactorConfig(s *state) error {
	name := s.str(params.ReactorConfigMap)
	if name == "" {
		return nil
	}
	if err := s.manifest.SetEnvFromConfigMap(ReactorConfigEnv, name, "config.yaml"); err != nil {
		return err
	}
	s.setArgs(PluginReactorConfig, map[string]any{"config_path": manifest.DefaultMountPath(name)})
	return nil
}

// renderParentImage configures base image pulling and parent build lookup.
func renderParentImage(s *state) error {
	if src := s.str(params.SourceRegistryURI); src != "" {
		reg := params.ParseRegistryURI(src)
		s.setArgs(PluginPullBaseImage, map[string]any{
			"parent_registry":          reg.DockerURI,
			"parent_registry_insecure": reg.Scheme == "http://",
		})
	}
	if digests := s.params.StringMap(params.ParentImagesDigests); len(digests) > 0 {
		s.setArgs(PluginPullBaseImage, map[string]any{"parent_images_digests": stringMapAny(digests)})
	}

	hub := s.str(params.KojiHub)
	if hub == "" {
		s.remove(PluginKojiParent, "no kojihub")
		s.remove(PluginInjectParentImage, "no kojihub")
		return nil
	}
	s.setArgs(PluginKojiParent, map[string]any{"koji_hub": hub})

	parent := s.str(params.KojiParentBuild)
	if parent == "" {
		s.remove(PluginInjectParentImage, "no koji_parent_build")
		return nil
	}
	s.setArgs(PluginInjectParentImage, map[string]any{
		"koji_parent_build": parent,
		"koji_hub":          hub,
	})
	return nil
}

func renderAddFilesystem(s *state) error {
	if !s.has(PluginAddFilesystem) {
		return nil
	}
	args := map[string]any{
		"koji_hub":      s.str(params.KojiHub),
		"repos":         s.params.Strings(params.YumRepoURLs),
		"architectures": s.workerPlatforms(),
	}
	if id, ok := s.params.Int(params.FilesystemKojiTaskID); ok {
		args["from_task_id"] = id
	}
	if s.bt.Role == RoleWorker {
		args["architecture"] = s.str(params.Platform)
		delete(args, "architectures")
	}
	s.setArgs(PluginAddFilesystem, args)
	return nil
}

// renderAddLabels passes site and source labels to the Dockerfile.
func renderAddLabels(s *state) error {
	if !s.has(PluginAddLabelsInDockerfile) {
		return nil
	}
	labels := map[string]any{}
	for key, param := range map[string]string{
		"vendor":                   params.Vendor,
		"authoritative-source-url": params.AuthoritativeRegistry,
		"distribution-scope":       params.DistributionScope,
	} {
		if v := s.str(param); v != "" {
			labels[key] = v
		}
	}
	if uri := s.str(params.GitURI); uri != "" {
		labels[imagespec.AnnotationSource] = uri
	}
	if ref := s.str(params.GitRef); ref != "" {
		labels[imagespec.AnnotationRevision] = ref
	}
	if len(labels) > 0 {
		if err := s.pipeline.MergeArg(pipeline.PreBuild, PluginAddLabelsInDockerfile, "labels", labels); err != nil {
			return err
		}
	}
	s.setArgs(PluginAddLabelsInDockerfile, map[string]any{"info_url_format": s.str(params.InfoURLFormat)})
	return nil
}

// renderBumpRelease either pins an explicit release label or lets the
// plugin ask the build system for the next release.
func renderBumpRelease(s *state) error {
	if release := s.str(params.Release); release != "" {
		s.remove(PluginBumpRelease, "release given explicitly")
		if s.has(PluginAddLabelsInDockerfile) {
			return s.pipeline.MergeArg(pipeline.PreBuild, PluginAddLabelsInDockerfile, "labels", map[string]any{"release": release})
		}
		return nil
	}
	hub := s.str(params.KojiHub)
	if hub == "" {
		s.remove(PluginBumpRelease, "no kojihub")
		return nil
	}
	s.setArgs(PluginBumpRelease, map[string]any{"hub": hub})
	return nil
}

func renderYumRepos(s *state) error {
	urls := s.params.Strings(params.YumRepoURLs)
	if len(urls) == 0 {
		s.remove(PluginAddYumRepoByURL, "no yum_repourls")
		return nil
	}
	s.setArgs(PluginAddYumRepoByURL, map[string]any{"repourls": urls})
	return nil
}

func renderKoji(s *state) error {
	target, hub := s.str(params.KojiTarget), s.str(params.KojiHub)
	if target == "" || hub == "" {
		s.remove(PluginKoji, "no koji_target or kojihub")
		return nil
	}
	s.setArgs(PluginKoji, map[string]any{
		"target": target,
		"hub":    hub,
		"root":   s.str(params.KojiRoot),
	})
	return nil
}

func renderResolveComposes(s *state) error {
	odcs := s.str(params.ODCSURL)
	if odcs == "" {
		s.remove(PluginResolveComposes, "no odcs_url")
		return nil
	}
	if len(s.params.Strings(params.YumRepoURLs)) > 0 {
		s.remove(PluginResolveComposes, "yum_repourls given")
		return nil
	}
	args := map[string]any{
		"odcs_url":       odcs,
		"koji_target":    s.str(params.KojiTarget),
		"koji_hub":       s.str(params.KojiHub),
		"signing_intent": s.str(params.SigningIntent),
		"compose_ids":    s.params.Ints(params.ComposeIDs),
	}
	if c := s.repo.Configuration.Compose; c != nil && args["signing_intent"] == "" {
		args["signing_intent"] = c.SigningIntent
	}
	s.setArgs(PluginResolveComposes, args)
	return nil
}

func renderFlatpak(s *state) error {
	if !s.flag(params.Flatpak) {
		for _, p := range []string{PluginFlatpakCreateDockerfile, PluginFlatpakUpdateDockerfile, PluginFlatpakCreateOCI} {
			s.remove(p, "not a flatpak build")
		}
		return nil
	}
	s.setArgs(PluginFlatpakCreateDockerfile, map[string]any{"base_image": s.str(params.FlatpakBaseImage)})
	s.setArgs(PluginFlatpakUpdateDockerfile, map[string]any{
		"odcs_url": s.str(params.ODCSURL),
	})
	return nil
}

func renderDistgitFetch(s *state) error {
	cmd := s.str(params.SourcesCommand)
	if cmd == "" {
		s.remove(PluginDistgitFetchArtefacts, "no sources_command")
		return nil
	}
	s.setArgs(PluginDistgitFetchArtefacts, map[string]any{"command": cmd})
	return nil
}

// workerPlatforms returns the requested platforms filtered by the
// repository configuration.
func (s *state) workerPlatforms() []string {
	requested := s.params.Strings(params.Platforms)
	if len(requested) == 0 {
		return nil
	}
	return s.repo.Configuration.FilterPlatforms(requested)
}

// orchestratorOnlyParams are user parameters the orchestrator consumes
// itself instead of passing them to workers.
var orchestratorOnlyParams = []string{
	params.Platforms,
	params.IsAuto,
	params.TriggerImagestreamTag,
	params.ImagestreamName,
	params.AdditionalTags,
	params.TagsFromYAML,
}

// renderOrchestrateBuild hands the worker parameters and site settings to
// the plugin that fans the build out per platform.
func renderOrchestrateBuild(s *state) error {
	if _, err := s.pipeline.GetPluginConfigOrFail(pipeline.BuildStep, PluginOrchestrateBuild); err != nil {
		return err
	}

	blob, err := s.params.Serialize()
	if err != nil {
		return err
	}
	var kwargs map[string]any
	if err := json.Unmarshal(blob, &kwargs); err != nil {
		return err
	}
	delete(kwargs, params.KindField)
	for _, name := range orchestratorOnlyParams {
		delete(kwargs, name)
	}

	args := map[string]any{
		"build_kwargs": kwargs,
		"config_kwargs": map[string]any{
			"openshift_uri":         s.str(params.OpenshiftURI),
			"builder_openshift_url": s.str(params.BuilderOpenshiftURL),
			"verify_ssl":            s.flag(params.VerifySSL),
			"use_auth":              s.flag(params.UseAuth),
			"kojihub":               s.str(params.KojiHub),
			"koji_certs_secret":     s.str(params.KojiCertsSecret),
		},
		"worker_build_image": s.str(params.WorkerBuildImage),
	}
	if requested := s.params.Strings(params.Platforms); len(requested) > 0 {
		platforms := s.workerPlatforms()
		if len(platforms) == 0 {
			return params.Invalid("no platforms left to build for after applying %v", s.repo.Configuration.Platforms)
		}
		args["platforms"] = platforms
	}
	s.setArgs(PluginOrchestrateBuild, args)
	return nil
}

func renderKojiUpload(s *state) error {
	hub, dir := s.str(params.KojiHub), s.str(params.KojiUploadDir)
	if hub == "" || dir == "" {
		s.remove(PluginKojiUpload, "no kojihub or koji_upload_dir")
		return nil
	}
	s.setArgs(PluginKojiUpload, map[string]any{
		"kojihub":         hub,
		"koji_upload_dir": dir,
		"platform":        s.str(params.Platform),
		"url":             s.str(params.OpenshiftURI),
		"build_json_dir":  s.str(params.BuildJSONDir),
		"verify_ssl":      s.flag(params.VerifySSL),
		"use_auth":        s.flag(params.UseAuth),
	})
	return nil
}

func renderFetchSources(s *state) error {
	args := map[string]any{
		"koji_build_nvr": s.str(params.SourcesForKojiBuildNVR),
		"signing_intent": s.str(params.SigningIntent),
		"kojihub":        s.str(params.KojiHub),
		"kojiroot":       s.str(params.KojiRoot),
	}
	if id, ok := s.params.Int(params.SourcesForKojiBuildID); ok {
		args["koji_build_id"] = id
	}
	s.setArgs(PluginFetchSources, args)
	return nil
}

func renderImportImage(s *state) error {
	stream := s.str(params.ImagestreamName)
	if stream == "" {
		s.remove(PluginImportImage, "no imagestream_name")
		return nil
	}
	regs := s.registries()
	if len(regs) == 0 {
		s.remove(PluginImportImage, "no registries to import from")
		return nil
	}
	s.setArgs(PluginImportImage, map[string]any{
		"imagestream":       stream,
		"docker_image_repo": regs[0].DockerURI + "/" + imageRepository(s.str(params.ImageTag)),
		"url":               s.str(params.OpenshiftURI),
		"build_json_dir":    s.str(params.BuildJSONDir),
		"verify_ssl":        s.flag(params.VerifySSL),
		"use_auth":          s.flag(params.UseAuth),
	})
	return nil
}

// renderKojiImport configures the plugins that record the build.
func renderKojiImport(s *state) error {
	hub := s.str(params.KojiHub)
	if hub == "" {
		for _, p := range []string{PluginKojiImport, PluginKojiPromote, PluginKojiTagBuild} {
			s.remove(p, "no kojihub")
		}
		return nil
	}
	common := map[string]any{
		"kojihub":        hub,
		"url":            s.str(params.OpenshiftURI),
		"verify_ssl":     s.flag(params.VerifySSL),
		"use_auth":       s.flag(params.UseAuth),
		"build_json_dir": s.str(params.BuildJSONDir),
	}
	if s.flag(params.KojiUseKerberos) {
		common["koji_principal"] = s.str(params.KojiKerberosPrincipal)
		common["koji_keytab"] = s.str(params.KojiKerberosKeytab)
	}
	s.setArgs(PluginKojiImport, common)
	s.setArgs(PluginKojiPromote, common)

	target := s.str(params.KojiTarget)
	if target == "" {
		s.remove(PluginKojiTagBuild, "no koji_target")
		return nil
	}
	s.setArgs(PluginKojiTagBuild, map[string]any{"kojihub": hub, "target": target})
	return nil
}

func renderSendmail(s *state) error {
	host, from := s.str(params.SMTPHost), s.str(params.SMTPFrom)
	if host == "" || from == "" {
		s.remove(PluginSendmail, "no smtp_host or smtp_from")
		return nil
	}
	s.setArgs(PluginSendmail, map[string]any{
		"url":                  s.str(params.OpenshiftURI),
		"smtp_host":            host,
		"from_address":         from,
		"send_on":              []string{"auto_canceled", "auto_fail"},
		"to_koji_submitter":    s.flag(params.SMTPToSubmitter),
		"to_koji_pkgowner":     s.flag(params.SMTPToPkgowner),
		"email_domain":         s.str(params.SMTPEmailDomain),
		"additional_addresses": s.params.Strings(params.SMTPAdditionalAddresses),
		"error_addresses":      s.params.Strings(params.SMTPErrorAddresses),
		"koji_hub":             s.str(params.KojiHub),
		"koji_root":            s.str(params.KojiRoot),
	})
	return nil
}

func renderStoreMetadata(s *state) error {
	s.setArgs(PluginStoreMetadataInOSv3, map[string]any{
		"url":        s.str(params.OpenshiftURI),
		"verify_ssl": s.flag(params.VerifySSL),
		"use_auth":   s.flag(params.UseAuth),
	})
	return nil
}

// imageRepository strips the tag from "repo/name:tag".
func imageRepository(imageTag string) string {
	for i := len(imageTag) - 1; i >= 0; i-- {
		switch imageTag[i] {
		case ':':
			return imageTag[:i]
		case '/':
			return imageTag
		}
	}
	return imageTag
}

func stringMapAny(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
