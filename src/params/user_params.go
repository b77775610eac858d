package params

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Parameter names shared by the build kinds.
const (
	ArrangementVersion = "arrangement_version"
	BaseImage          = "base_image"
	BuildFrom          = "build_from"
	BuildImage         = "build_image"
	BuildImagestream   = "build_imagestream"
	BuildJSONDir       = "build_json_dir"
	Component          = "component"
	ImageTag           = "image_tag"
	KojiTarget         = "koji_target"
	KojiTaskID         = "koji_task_id"
	Platform           = "platform"
	ReactorConfigMap   = "reactor_config_map"
	Scratch            = "scratch"
	SigningIntent      = "signing_intent"
	User               = "user"

	GitURI                = "git_uri"
	GitRef                = "git_ref"
	GitBranch             = "git_branch"
	GitCommitDepth        = "git_commit_depth"
	Name                  = "name"
	Isolated              = "isolated"
	IsAuto                = "is_auto"
	Release               = "release"
	AdditionalTags        = "additional_tags"
	TagsFromYAML          = "tags_from_yaml"
	YumRepoURLs           = "yum_repourls"
	ComposeIDs            = "compose_ids"
	FilesystemKojiTaskID  = "filesystem_koji_task_id"
	KojiParentBuild       = "koji_parent_build"
	Flatpak               = "flatpak"
	FlatpakBaseImage      = "flatpak_base_image"
	Platforms             = "platforms"
	TriggerImagestreamTag = "trigger_imagestreamtag"
	ImagestreamName       = "imagestream_name"
	ParentImagesDigests   = "parent_images_digests"

	SourcesForKojiBuildNVR = "sources_for_koji_build_nvr"
	SourcesForKojiBuildID  = "sources_for_koji_build_id"
)

// Site parameter names. These come from site configuration and are never
// serialized.
const (
	KojiHub                   = "kojihub"
	KojiRoot                  = "kojiroot"
	KojiCertsSecret           = "koji_certs_secret"
	KojiUseKerberos           = "koji_use_kerberos"
	KojiKerberosPrincipal     = "koji_kerberos_principal"
	KojiKerberosKeytab        = "koji_kerberos_keytab"
	KojiUploadDir             = "koji_upload_dir"
	RegistryURIs              = "registry_uris"
	RegistrySecrets           = "registry_secrets"
	RegistryAPIVersions       = "registry_api_versions"
	SourceRegistryURI         = "source_registry_uri"
	PulpRegistry              = "pulp_registry"
	PulpSecret                = "pulp_secret"
	OpenshiftURI              = "openshift_uri"
	BuilderOpenshiftURL       = "builder_openshift_url"
	UseAuth                   = "use_auth"
	VerifySSL                 = "verify_ssl"
	TokenSecrets              = "token_secrets"
	ScratchBuildNodeSelector  = "scratch_build_node_selector"
	ExplicitBuildNodeSelector = "explicit_build_node_selector"
	IsolatedBuildNodeSelector = "isolated_build_node_selector"
	AutoBuildNodeSelector     = "auto_build_node_selector"
	PlatformNodeSelector      = "platform_node_selector"
	CPULimit                  = "cpu_limit"
	MemoryLimit               = "memory_limit"
	StorageLimit              = "storage_limit"
	SMTPHost                  = "smtp_host"
	SMTPFrom                  = "smtp_from"
	SMTPEmailDomain           = "smtp_email_domain"
	SMTPToSubmitter           = "smtp_to_submitter"
	SMTPToPkgowner            = "smtp_to_pkgowner"
	SMTPAdditionalAddresses   = "smtp_additional_addresses"
	SMTPErrorAddresses        = "smtp_error_addresses"
	ODCSURL                   = "odcs_url"
	ODCSOpenIDCSecret         = "odcs_openidc_secret"
	ODCSSSLSecret             = "odcs_ssl_secret"
	Vendor                    = "vendor"
	AuthoritativeRegistry     = "authoritative_registry"
	DistributionScope         = "distribution_scope"
	InfoURLFormat             = "info_url_format"
	GroupManifests            = "group_manifests"
	PreferSchema1Digest       = "prefer_schema1_digest"
	WorkerBuildImage          = "worker_build_image"
	SourcesCommand            = "sources_command"
)

// BuildCommon holds the parameters every build kind shares. It is not
// decodable on its own.
var BuildCommon = Define("BuildCommon", nil, map[string]Descriptor{
	ArrangementVersion: Param(ArrangementVersion, Int),
	BaseImage:          Param(BaseImage, String),
	BuildFrom:          Param(BuildFrom, String),
	BuildImage:         Param(BuildImage, String),
	BuildImagestream:   Param(BuildImagestream, String),
	BuildJSONDir:       Param(BuildJSONDir, String),
	Component:          RequiredParam(Component, String),
	ImageTag:           Param(ImageTag, String),
	KojiTarget:         Param(KojiTarget, String),
	KojiTaskID:         Param(KojiTaskID, Int),
	Platform:           Param(Platform, String),
	ReactorConfigMap:   Param(ReactorConfigMap, String),
	Scratch:            Param(Scratch, Bool),
	SigningIntent:      Param(SigningIntent, String),
	User:               RequiredParam(User, String),

	KojiHub:                   SiteParam(KojiHub, String),
	KojiRoot:                  SiteParam(KojiRoot, String),
	KojiCertsSecret:           SiteParam(KojiCertsSecret, String),
	KojiUseKerberos:           SiteParam(KojiUseKerberos, Bool),
	KojiKerberosPrincipal:     SiteParam(KojiKerberosPrincipal, String),
	KojiKerberosKeytab:        SiteParam(KojiKerberosKeytab, String),
	KojiUploadDir:             SiteParam(KojiUploadDir, String),
	RegistryURIs:              SiteParam(RegistryURIs, StringList),
	RegistrySecrets:           SiteParam(RegistrySecrets, StringList),
	RegistryAPIVersions:       SiteParam(RegistryAPIVersions, StringList).WithDefault([]string{"v1", "v2"}),
	SourceRegistryURI:         SiteParam(SourceRegistryURI, String),
	PulpRegistry:              SiteParam(PulpRegistry, String),
	PulpSecret:                SiteParam(PulpSecret, String),
	OpenshiftURI:              SiteParam(OpenshiftURI, String),
	BuilderOpenshiftURL:       SiteParam(BuilderOpenshiftURL, String),
	UseAuth:                   SiteParam(UseAuth, Bool),
	VerifySSL:                 SiteParam(VerifySSL, Bool).WithDefault(true),
	TokenSecrets:              SiteParam(TokenSecrets, StringMap),
	ScratchBuildNodeSelector:  SiteParam(ScratchBuildNodeSelector, String),
	ExplicitBuildNodeSelector: SiteParam(ExplicitBuildNodeSelector, String),
	IsolatedBuildNodeSelector: SiteParam(IsolatedBuildNodeSelector, String),
	AutoBuildNodeSelector:     SiteParam(AutoBuildNodeSelector, String),
	PlatformNodeSelector:      SiteParam(PlatformNodeSelector, StringMap),
	CPULimit:                  SiteParam(CPULimit, String),
	MemoryLimit:               SiteParam(MemoryLimit, String),
	StorageLimit:              SiteParam(StorageLimit, String),
	SMTPHost:                  SiteParam(SMTPHost, String),
	SMTPFrom:                  SiteParam(SMTPFrom, String),
	SMTPEmailDomain:           SiteParam(SMTPEmailDomain, String),
	SMTPToSubmitter:           SiteParam(SMTPToSubmitter, Bool),
	SMTPToPkgowner:            SiteParam(SMTPToPkgowner, Bool),
	SMTPAdditionalAddresses:   SiteParam(SMTPAdditionalAddresses, StringList),
	SMTPErrorAddresses:        SiteParam(SMTPErrorAddresses, StringList),
	ODCSURL:                   SiteParam(ODCSURL, String),
	ODCSOpenIDCSecret:         SiteParam(ODCSOpenIDCSecret, String),
	ODCSSSLSecret:             SiteParam(ODCSSSLSecret, String),
	Vendor:                    SiteParam(Vendor, String),
	AuthoritativeRegistry:     SiteParam(AuthoritativeRegistry, String),
	DistributionScope:         SiteParam(DistributionScope, String),
	InfoURLFormat:             SiteParam(InfoURLFormat, String),
	GroupManifests:            SiteParam(GroupManifests, Bool),
	PreferSchema1Digest:       SiteParam(PreferSchema1Digest, Bool),
	WorkerBuildImage:          SiteParam(WorkerBuildImage, String),
	SourcesCommand:            SiteParam(SourcesCommand, String),
}).OnPopulate(populateImageTag)

// BuildUserParams are the parameters of an image build.
var BuildUserParams = Define("BuildUserParams", BuildCommon, map[string]Descriptor{
	GitURI:                RequiredParam(GitURI, String),
	GitRef:                RequiredParam(GitRef, String),
	GitBranch:             Param(GitBranch, String),
	GitCommitDepth:        Param(GitCommitDepth, Int),
	Name:                  BuildID(Name),
	Isolated:              Param(Isolated, Bool),
	IsAuto:                Param(IsAuto, Bool),
	Release:               Param(Release, String),
	AdditionalTags:        Param(AdditionalTags, StringList),
	TagsFromYAML:          Param(TagsFromYAML, Bool),
	YumRepoURLs:           Param(YumRepoURLs, StringList),
	ComposeIDs:            Param(ComposeIDs, IntList),
	FilesystemKojiTaskID:  Param(FilesystemKojiTaskID, Int),
	KojiParentBuild:       Param(KojiParentBuild, String),
	Flatpak:               Param(Flatpak, Bool),
	FlatpakBaseImage:      Param(FlatpakBaseImage, String),
	Platforms:             Param(Platforms, StringList),
	TriggerImagestreamTag: Param(TriggerImagestreamTag, String),
	ImagestreamName:       Param(ImagestreamName, String),
	ParentImagesDigests:   Param(ParentImagesDigests, StringMap),
}).OnPopulate(CheckVariation)

// SourceContainerUserParams are the parameters of a source container build.
var SourceContainerUserParams = Define("SourceContainerUserParams", BuildCommon, map[string]Descriptor{
	SourcesForKojiBuildNVR: Param(SourcesForKojiBuildNVR, String),
	SourcesForKojiBuildID:  Param(SourcesForKojiBuildID, Int),
})

func init() {
	Register(BuildUserParams)
	Register(SourceContainerUserParams)
}

// Variation is the build mode selected by the scratch, isolated and is_auto
// parameters.
type Variation int

const (
	Ordinary Variation = iota
	ScratchBuild
	IsolatedBuild
	AutoTriggered
)

func (v Variation) String() string {
	switch v {
	case Ordinary:
		return "ordinary"
	case ScratchBuild:
		return "scratch"
	case IsolatedBuild:
		return "isolated"
	case AutoTriggered:
		return "auto"
	default:
		return fmt.Sprintf("variation(%d)", int(v))
	}
}

// VariationOf returns the build variation of s. Callers must have checked
// exclusivity with CheckVariation.
func VariationOf(s *Set) Variation {
	switch {
	case s.Bool(Scratch):
		return ScratchBuild
	case s.Bool(Isolated):
		return IsolatedBuild
	case s.Bool(IsAuto):
		return AutoTriggered
	default:
		return Ordinary
	}
}

// CheckVariation rejects sets selecting more than one build variation.
func CheckVariation(s *Set) error {
	var selected []string
	for _, name := range []string{Scratch, Isolated, IsAuto} {
		if s.Bool(name) {
			selected = append(selected, name)
		}
	}
	if len(selected) > 1 {
		return Invalid("build variations are mutually exclusive, got %s", strings.Join(selected, " and "))
	}
	return nil
}

const (
	tagSaltLength   = 5
	timestampLayout = "20060102150405"
)

// now and newSalt are replaced in tests.
var (
	now     = func() time.Time { return time.Now().UTC() }
	newSalt = func() string {
		return strings.ReplaceAll(uuid.NewString(), "-", "")[:tagSaltLength]
	}
)

// populateImageTag precomputes the unique output tag
// "{user}/{component}:{koji_target|none}-{salt}-{timestamp}[-{platform}]"
// unless the caller supplied one.
func populateImageTag(s *Set) error {
	if s.IsSet(ImageTag) {
		return nil
	}
	user, component := s.String(User), s.String(Component)
	if user == "" || component == "" {
		return nil
	}
	target := s.String(KojiTarget)
	if target == "" {
		target = "none"
	}
	tag := fmt.Sprintf("%s/%s:%s-%s-%s", user, component, target, newSalt(), now().Format(timestampLayout))
	if platform := s.String(Platform); platform != "" {
		tag += "-" + platform
	}
	s.values[ImageTag] = tag
	return nil
}

// UniqueTagSuffix splits the salt and timestamp out of a precomputed image
// tag. The platform suffix, when present, is ignored.
func UniqueTagSuffix(imageTag, platform string) (salt, timestamp string, ok bool) {
	tag := imageTag
	if i := strings.LastIndex(tag, ":"); i >= 0 {
		tag = tag[i+1:]
	}
	if platform != "" {
		tag = strings.TrimSuffix(tag, "-"+platform)
	}
	parts := strings.Split(tag, "-")
	if len(parts) < 3 {
		return "", "", false
	}
	return parts[len(parts)-2], parts[len(parts)-1], true
}
