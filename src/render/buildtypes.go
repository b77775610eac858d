package render

import "github.com/sofmeright/buildfreight/src/params"

// Build type names.
const (
	Orchestrator     = "orchestrator"
	Worker           = "worker"
	SourceContainers = "source_containers"
)

// Rules shared by the head of every image build. Triggers must be settled
// before anything reads them, so the variation rules run first.
var imageHead = []Rule{
	{"validate", validateRequest},
	{"name", renderName},
	{"labels", renderLabels},
	{"source_output", renderSourceOutput},
	{"resource_limits", renderResourceLimits},
	{"node_selector", renderNodeSelector},
	{"repo_autorebuild", renderRepoAutorebuild},
	{"isolated", renderIsolated},
	{"scratch", renderScratch},
	{"custom_base_image", renderCustomBaseImage},
	{"triggers", renderTriggers},
	{"check_and_set_rebuild", renderCheckAndSetRebuild},
	{"reactor_config", renderReactorConfig},
	{"parent_image", renderParentImage},
	{"add_filesystem", renderAddFilesystem},
	{"add_labels_in_dockerfile", renderAddLabels},
	{"bump_release", renderBumpRelease},
	{"add_yum_repo_by_url", renderYumRepos},
	{"koji", renderKoji},
	{"resolve_composes", renderResolveComposes},
	{"flatpak", renderFlatpak},
	{"distgit_fetch_artefacts", renderDistgitFetch},
}

// Rules shared by the tail of every build. Secrets bind after every plugin
// decision; customization comes after all built-in rules.
var tail = []Rule{
	{"secrets", renderSecrets},
	{"customizations", renderCustomizations},
	{"client_version", renderClientVersion},
	{"leak_check", renderLeakCheck},
	{"assemble", assemble},
}

func rules(parts ...[]Rule) []Rule {
	var out []Rule
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func init() {
	Register(&BuildType{
		Name:       Orchestrator,
		Role:       RoleOrchestrator,
		ParamsKind: params.BuildUserParams,
		rules: rules(imageHead, []Rule{
			{"orchestrate_build", renderOrchestrateBuild},
			{"registry_secrets", renderRegistrySecrets},
			{"tag_and_push", renderTagAndPush},
			{"registry_api_versions", renderRegistryAPIVersions},
			{"pulp", renderPulp},
			{"group_manifests", renderGroupManifests},
			{"import_image", renderImportImage},
			{"tag_from_config", renderTagFromConfig},
			{"koji_import", renderKojiImport},
			{"sendmail", renderSendmail},
			{"store_metadata", renderStoreMetadata},
		}, tail),
	})

	Register(&BuildType{
		Name:       Worker,
		Role:       RoleWorker,
		ParamsKind: params.BuildUserParams,
		rules: rules(imageHead, []Rule{
			{"koji_upload", renderKojiUpload},
			{"registry_secrets", renderRegistrySecrets},
			{"tag_and_push", renderTagAndPush},
			{"registry_api_versions", renderRegistryAPIVersions},
			{"pulp", renderPulp},
			{"tag_from_config", renderTagFromConfig},
			{"store_metadata", renderStoreMetadata},
		}, tail),
	})

	Register(&BuildType{
		Name:       SourceContainers,
		Role:       RoleSource,
		ParamsKind: params.SourceContainerUserParams,
		rules: rules([]Rule{
			{"validate", validateRequest},
			{"name", renderName},
			{"labels", renderLabels},
			{"source_output", renderSourceOutput},
			{"resource_limits", renderResourceLimits},
			{"node_selector", renderNodeSelector},
			{"reactor_config", renderReactorConfig},
			{"fetch_sources", renderFetchSources},
			{"registry_secrets", renderRegistrySecrets},
			{"tag_and_push", renderTagAndPush},
			{"registry_api_versions", renderRegistryAPIVersions},
			{"koji_import", renderKojiImport},
			{"store_metadata", renderStoreMetadata},
		}, tail),
	})
}
