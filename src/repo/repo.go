// Package repo reads the build metadata a render needs from a source
// repository: container.yaml, the Dockerfile, .osbs-repo-config and the
// legacy additional-tags file.
package repo

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Info is the read-only repository metadata consumed by a render.
type Info struct {
	GitURI    string
	GitRef    string
	GitBranch string

	Configuration  *Configuration
	Dockerfile     *Dockerfile
	AdditionalTags AdditionalTags

	// Warnings collects non-fatal problems found while reading.
	Warnings []string
}

// BaseImage returns the Dockerfile's final base image.
func (i *Info) BaseImage() string {
	if i == nil {
		return ""
	}
	return i.Dockerfile.BaseImage()
}

// Labels returns the Dockerfile labels.
func (i *Info) Labels() map[string]string {
	if i == nil || i.Dockerfile == nil {
		return nil
	}
	return i.Dockerfile.Labels
}

// AutorebuildEnabled reports the repository's autorebuild switch.
func (i *Info) AutorebuildEnabled() bool {
	if i == nil || i.Configuration == nil {
		return true
	}
	return i.Configuration.AutorebuildEnabled
}

// readFunc returns a file's contents or an error matching fs.ErrNotExist.
type readFunc func(name string) ([]byte, error)

// Load reads the metadata at ref from the git repository in dir. An empty
// ref reads HEAD.
func Load(ctx context.Context, dir, uri, ref, branch string) (*Info, error) {
	r, err := git.PlainOpen(dir)
	if err != nil {
		return nil, fmt.Errorf("opening repository %s: %w", dir, err)
	}

	rev := ref
	if rev == "" {
		rev = "HEAD"
	}
	hash, err := r.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", rev, err)
	}
	commit, err := r.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("getting commit %s: %w", hash, err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("getting tree of %s: %w", hash, err)
	}

	read := func(name string) ([]byte, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := tree.File(name)
		if errors.Is(err, object.ErrFileNotFound) {
			return nil, fs.ErrNotExist
		}
		if err != nil {
			return nil, err
		}
		contents, err := f.Contents()
		if err != nil {
			return nil, err
		}
		return []byte(contents), nil
	}
	return load(read, uri, hash.String(), branch)
}

// LoadDir reads the metadata from a plain directory.
func LoadDir(dir, uri, ref, branch string) (*Info, error) {
	return LoadFS(os.DirFS(dir), uri, ref, branch)
}

// LoadFS reads the metadata from fsys.
func LoadFS(fsys fs.FS, uri, ref, branch string) (*Info, error) {
	return load(func(name string) ([]byte, error) { return fs.ReadFile(fsys, name) }, uri, ref, branch)
}

func load(read readFunc, uri, ref, branch string) (*Info, error) {
	info := &Info{GitURI: uri, GitRef: ref, GitBranch: branch, Configuration: DefaultConfiguration()}

	data, err := read(ContainerFile)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading %s: %w", ContainerFile, err)
	default:
		if info.Configuration, err = ParseConfiguration(data); err != nil {
			return nil, err
		}
	}

	data, err = read(RepoConfigFile)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading %s: %w", RepoConfigFile, err)
	default:
		if info.Configuration.AutorebuildEnabled, err = ParseRepoConfig(data); err != nil {
			return nil, err
		}
	}

	data, err = read(DockerfileName)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		info.Warnings = append(info.Warnings, "repository has no Dockerfile")
	case err != nil:
		return nil, fmt.Errorf("reading %s: %w", DockerfileName, err)
	default:
		if info.Dockerfile, err = ParseDockerfile(data); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", DockerfileName, err)
		}
	}

	if len(info.Configuration.Tags) > 0 {
		info.AdditionalTags = AdditionalTags{Tags: info.Configuration.Tags, FromConfiguration: true}
		return info, nil
	}
	data, err = read(AdditionalTagsFile)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading %s: %w", AdditionalTagsFile, err)
	default:
		tags, invalid := ParseAdditionalTagsFile(data)
		for _, tag := range invalid {
			info.Warnings = append(info.Warnings, fmt.Sprintf("%s: invalid tag %q ignored", AdditionalTagsFile, tag))
		}
		info.AdditionalTags = AdditionalTags{Tags: tags}
	}
	return info, nil
}
