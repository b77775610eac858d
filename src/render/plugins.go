package render

import "github.com/sofmeright/buildfreight/src/pipeline"

// Plugin names the rules know about.
const (
	PluginReactorConfig            = "reactor_config"
	PluginCheckAndSetRebuild       = "check_and_set_rebuild"
	PluginStopAutorebuildIfDisable = "stop_autorebuild_if_disabled"
	PluginPullBaseImage            = "pull_base_image"
	PluginKojiParent               = "koji_parent"
	PluginInjectParentImage        = "inject_parent_image"
	PluginAddFilesystem            = "add_filesystem"
	PluginAddLabelsInDockerfile    = "add_labels_in_dockerfile"
	PluginAddYumRepoByURL          = "add_yum_repo_by_url"
	PluginKoji                     = "koji"
	PluginBumpRelease              = "bump_release"
	PluginResolveComposes          = "resolve_composes"
	PluginFlatpakCreateDockerfile  = "flatpak_create_dockerfile"
	PluginFlatpakUpdateDockerfile  = "flatpak_update_dockerfile"
	PluginDistgitFetchArtefacts    = "distgit_fetch_artefacts"
	PluginFetchSources             = "fetch_sources"

	PluginOrchestrateBuild = "orchestrate_build"
	PluginSourceContainer  = "source_container"

	PluginFlatpakCreateOCI = "flatpak_create_oci"

	PluginTagAndPush          = "tag_and_push"
	PluginPulpPush            = "pulp_push"
	PluginPulpSync            = "pulp_sync"
	PluginCompress            = "compress"
	PluginKojiUpload          = "koji_upload"
	PluginFetchWorkerMetadata = "fetch_worker_metadata"
	PluginCompareComponents   = "compare_components"
	PluginTagFromConfig       = "tag_from_config"
	PluginGroupManifests      = "group_manifests"

	PluginDeleteFromRegistry   = "delete_from_registry"
	PluginKojiImport           = "koji_import"
	PluginKojiPromote          = "koji_promote"
	PluginKojiTagBuild         = "koji_tag_build"
	PluginStoreMetadataInOSv3  = "store_metadata_in_osv3"
	PluginImportImage          = "import_image"
	PluginSendmail             = "sendmail"
	PluginRemoveWorkerMetadata = "remove_worker_metadata"
	PluginPulpPublish          = "pulp_publish"
	PluginPulpPull             = "pulp_pull"
)

// pluginPhase is where each plugin lives in the stored pipelines.
var pluginPhase = map[string]string{
	PluginReactorConfig:            pipeline.PreBuild,
	PluginCheckAndSetRebuild:       pipeline.PreBuild,
	PluginStopAutorebuildIfDisable: pipeline.PreBuild,
	PluginPullBaseImage:            pipeline.PreBuild,
	PluginKojiParent:               pipeline.PreBuild,
	PluginInjectParentImage:        pipeline.PreBuild,
	PluginAddFilesystem:            pipeline.PreBuild,
	PluginAddLabelsInDockerfile:    pipeline.PreBuild,
	PluginAddYumRepoByURL:          pipeline.PreBuild,
	PluginKoji:                     pipeline.PreBuild,
	PluginBumpRelease:              pipeline.PreBuild,
	PluginResolveComposes:          pipeline.PreBuild,
	PluginFlatpakCreateDockerfile:  pipeline.PreBuild,
	PluginFlatpakUpdateDockerfile:  pipeline.PreBuild,
	PluginDistgitFetchArtefacts:    pipeline.PreBuild,
	PluginFetchSources:             pipeline.PreBuild,

	PluginOrchestrateBuild: pipeline.BuildStep,
	PluginSourceContainer:  pipeline.BuildStep,

	PluginFlatpakCreateOCI: pipeline.PrePublish,

	PluginTagAndPush:          pipeline.PostBuild,
	PluginPulpPush:            pipeline.PostBuild,
	PluginPulpSync:            pipeline.PostBuild,
	PluginCompress:            pipeline.PostBuild,
	PluginKojiUpload:          pipeline.PostBuild,
	PluginFetchWorkerMetadata: pipeline.PostBuild,
	PluginCompareComponents:   pipeline.PostBuild,
	PluginTagFromConfig:       pipeline.PostBuild,
	PluginGroupManifests:      pipeline.PostBuild,

	PluginDeleteFromRegistry:   pipeline.Exit,
	PluginKojiImport:           pipeline.Exit,
	PluginKojiPromote:          pipeline.Exit,
	PluginKojiTagBuild:         pipeline.Exit,
	PluginStoreMetadataInOSv3:  pipeline.Exit,
	PluginImportImage:          pipeline.Exit,
	PluginSendmail:             pipeline.Exit,
	PluginRemoveWorkerMetadata: pipeline.Exit,
	PluginPulpPublish:          pipeline.Exit,
	PluginPulpPull:             pipeline.Exit,
}

// phaseOf returns the phase a known plugin lives in.
func phaseOf(plugin string) string {
	if phase, ok := pluginPhase[plugin]; ok {
		return phase
	}
	panic("render: unknown plugin " + plugin)
}

// Plugins that persist results into the build-tracking system. Scratch
// builds drop them.
var scratchRemoved = []string{
	PluginKojiParent,
	PluginCompress,
	PluginPulpPull,
	PluginKojiUpload,
	PluginFetchWorkerMetadata,
	PluginCompareComponents,
	PluginImportImage,
	PluginKojiPromote,
	PluginKojiImport,
	PluginKojiTagBuild,
	PluginRemoveWorkerMetadata,
}

// Plugins only meaningful when the matching registry API is available.
var (
	v1OnlyPlugins = []string{PluginPulpPush}
	v2OnlyPlugins = []string{PluginPulpSync, PluginDeleteFromRegistry, PluginGroupManifests, PluginPulpPublish}
)
