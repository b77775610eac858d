package render

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/containers/image/v5/docker/reference"
	"github.com/opencontainers/go-digest"

	"github.com/sofmeright/buildfreight/src/manifest"
	"github.com/sofmeright/buildfreight/src/params"
)

var (
	isolatedReleaseRe = regexp.MustCompile(`^\d+\.\d+(\..+)?$`)
	customBaseImageRe = regexp.MustCompile(`^koji/image-build(:.*)?$`)
)

const isolatedReleaseFormat = `^\d+\.\d+(\..+)?$`

// IsCustomBaseImage reports whether a base image reference asks for a
// filesystem built by the build system instead of a pulled image.
func IsCustomBaseImage(image string) bool {
	return customBaseImageRe.MatchString(image)
}

func (s *state) baseImage() string {
	if b := s.str(params.BaseImage); b != "" {
		return b
	}
	return s.repo.BaseImage()
}

// validateRequest reports every parameter problem at once before anything
// is mutated.
func validateRequest(s *state) error {
	issues := &params.ValidationError{}
	collect := func(err error) {
		if err == nil {
			return
		}
		var verr *params.ValidationError
		if errors.As(err, &verr) {
			issues.Issues = append(issues.Issues, verr.Issues...)
			return
		}
		issues.Add(err.Error())
	}

	collect(s.params.Validate())
	collect(params.CheckVariation(s.params))

	if s.variation == params.IsolatedBuild {
		release := s.str(params.Release)
		if !isolatedReleaseRe.MatchString(release) {
			issues.Addf("for isolated builds, release %q must be in the format %s", release, isolatedReleaseFormat)
		}
	}

	if IsCustomBaseImage(s.baseImage()) && s.str(params.KojiHub) == "" {
		issues.Add("kojihub is required for custom base image")
	}

	if len(s.params.Strings(params.YumRepoURLs)) > 0 && len(s.params.Ints(params.ComposeIDs)) > 0 {
		issues.Add("yum_repourls and compose_ids cannot be used together")
	}

	if s.flag(params.Flatpak) && s.str(params.FlatpakBaseImage) == "" {
		issues.Add("flatpak_base_image is required for flatpak builds")
	}

	if from := s.str(params.BuildFrom); from != "" {
		if _, _, err := parseBuildFrom(from); err != nil {
			issues.Add(err.Error())
		}
	}

	for image, d := range s.params.StringMap(params.ParentImagesDigests) {
		if _, err := digest.Parse(d); err != nil {
			issues.Addf("parent_images_digests: %s: %v", image, err)
		}
	}

	if n, m := len(s.params.Strings(params.RegistrySecrets)), len(s.params.Strings(params.RegistryURIs)); n > m {
		issues.Addf("%d registry secrets given for %d registries", n, m)
	}

	switch s.bt.Role {
	case RoleWorker:
		if s.str(params.Platform) == "" {
			issues.Add("platform is required for worker builds")
		}
	case RoleSource:
		_, hasID := s.params.Int(params.SourcesForKojiBuildID)
		if !hasID && s.str(params.SourcesForKojiBuildNVR) == "" {
			issues.Add("sources_for_koji_build_nvr or sources_for_koji_build_id is required")
		}
	}
	return issues.OrNil()
}

// parseBuildFrom splits "image:<pullspec>" or "imagestream:<name>" into the
// builder image kind and name.
func parseBuildFrom(from string) (kind, name string, err error) {
	prefix, value, ok := strings.Cut(from, ":")
	if !ok || value == "" {
		return "", "", fmt.Errorf("build_from %q must be image:<pullspec> or imagestream:<name>", from)
	}
	switch prefix {
	case "image":
		if _, err := reference.ParseNormalizedNamed(value); err != nil {
			return "", "", fmt.Errorf("build_from %q: %v", from, err)
		}
		return "DockerImage", value, nil
	case "imagestream":
		return "ImageStreamTag", value, nil
	}
	return "", "", fmt.Errorf("build_from %q must be image:<pullspec> or imagestream:<name>", from)
}

// renderName computes metadata.name.
func renderName(s *state) error {
	var name string
	switch {
	case s.variation == params.ScratchBuild || s.variation == params.IsolatedBuild:
		name = s.uniqueName(s.variation.String())
	case s.bt.Role == RoleSource:
		name = s.uniqueName("sources")
	case s.str(params.Name) != "":
		name = s.str(params.Name)
	default:
		name = manifest.MakeNameFromGit(s.str(params.GitURI), s.str(params.GitBranch))
	}
	if s.bt.Role == RoleWorker {
		if platform := s.str(params.Platform); platform != "" {
			name += "-" + platform
		}
	}
	if len(name) > params.BuildIDMaxLength {
		name = strings.TrimRight(name[:params.BuildIDMaxLength], "-_.")
	}
	s.manifest.SetName(name)
	return nil
}

// uniqueName builds "<prefix>-<salt>-<timestamp>" from the precomputed image
// tag.
func (s *state) uniqueName(prefix string) string {
	salt, ts, ok := params.UniqueTagSuffix(s.str(params.ImageTag), s.str(params.Platform))
	if !ok {
		return prefix
	}
	return fmt.Sprintf("%s-%s-%s", prefix, salt, ts)
}

// renderLabels writes the git and koji labels.
func renderLabels(s *state) error {
	if uri := s.str(params.GitURI); uri != "" {
		s.manifest.SetLabel("git-repo-name", manifest.SanitizeLabelPair(manifest.RepoHumanishPart(uri), "", manifest.LabelMaxChars))
	}
	if branch := s.str(params.GitBranch); branch != "" {
		s.manifest.SetLabel("git-branch", manifest.SanitizeLabelPair(branch, "", manifest.LabelMaxChars))
	}
	if id, ok := s.params.Int(params.KojiTaskID); ok {
		s.manifest.SetLabel("koji-task-id", strconv.Itoa(id))
	}
	return nil
}

// renderSourceOutput points the build at its source, output tag and
// builder image.
func renderSourceOutput(s *state) error {
	if uri := s.str(params.GitURI); uri != "" {
		s.manifest.SetSource(uri, s.str(params.GitRef))
	}
	if tag := s.str(params.ImageTag); tag != "" {
		s.manifest.SetOutputTag(tag)
	}

	switch {
	case s.str(params.BuildFrom) != "":
		kind, name, err := parseBuildFrom(s.str(params.BuildFrom))
		if err != nil {
			return params.Invalid("%v", err)
		}
		s.manifest.SetBuilderImage(kind, name)
	case s.str(params.BuildImage) != "":
		s.manifest.SetBuilderImage("DockerImage", s.str(params.BuildImage))
	case s.str(params.BuildImagestream) != "":
		s.manifest.SetBuilderImage("ImageStreamTag", s.str(params.BuildImagestream))
	}
	return nil
}

// renderResourceLimits merges the supplied limits.
func renderResourceLimits(s *state) error {
	s.manifest.MergeLimits(map[string]string{
		"cpu":     s.str(params.CPULimit),
		"memory":  s.str(params.MemoryLimit),
		"storage": s.str(params.StorageLimit),
	})
	return nil
}

// renderNodeSelector picks one selector by variation, then merges the
// platform override for worker builds.
func renderNodeSelector(s *state) error {
	var source string
	switch s.variation {
	case params.ScratchBuild:
		source = params.ScratchBuildNodeSelector
	case params.IsolatedBuild:
		source = params.IsolatedBuildNodeSelector
	case params.AutoTriggered:
		source = params.AutoBuildNodeSelector
	default:
		source = params.ExplicitBuildNodeSelector
	}
	sel := manifest.ParseSelector(s.str(source))

	if s.bt.Role == RoleWorker {
		platform := s.str(params.Platform)
		if override, ok := s.params.StringMap(params.PlatformNodeSelector)[platform]; ok {
			for k, v := range manifest.ParseSelector(override) {
				sel[k] = v
			}
		}
	}
	if len(sel) == 0 {
		return nil
	}
	s.manifest.SetNodeSelector(sel)
	s.ruleLog().WithField("selector", manifest.FormatSelector(sel)).Debug("node selector set")
	return nil
}
