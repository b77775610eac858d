// Package templates loads the stored manifest, pipeline and customization
// templates a render starts from.
//
// Files are looked up by build type and arrangement version:
//
//	{buildType}.json                         outer build manifest
//	{buildType}_inner:{arrangement}.json     plugin pipeline
//	{buildType}_customize.{json,yaml,toml}   optional site customization
package templates

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"

	"github.com/sofmeright/buildfreight/src/manifest"
	"github.com/sofmeright/buildfreight/src/pipeline"
)

// ErrNotFound is returned when a required template file is absent.
var ErrNotFound = errors.New("template not found")

var customizationExts = []string{".json", ".yaml", ".yml", ".toml"}

// Bundle is one render's private copy of the stored templates.
type Bundle struct {
	Manifest      *manifest.Manifest
	Pipeline      *pipeline.Template
	Customization *Customization

	// Sources records the file each part was read from.
	Sources map[string]string
}

type cacheKey struct {
	buildType   string
	arrangement int
}

// Store reads templates from a filesystem and caches the parsed result.
// It is safe for concurrent use; callers always receive deep copies.
type Store struct {
	fsys fs.FS

	mu    sync.RWMutex
	cache map[cacheKey]*Bundle
}

// NewStore creates a store over fsys, typically os.DirFS(templatesDir).
func NewStore(fsys fs.FS) *Store {
	return &Store{fsys: fsys, cache: map[cacheKey]*Bundle{}}
}

// ManifestFile returns the outer manifest file name for a build type.
func ManifestFile(buildType string) string {
	return buildType + ".json"
}

// PipelineFile returns the pipeline file name for a build type and
// arrangement version.
func PipelineFile(buildType string, arrangement int) string {
	return fmt.Sprintf("%s_inner:%d.json", buildType, arrangement)
}

// Load returns deep copies of the templates for a build type.
func (s *Store) Load(buildType string, arrangement int) (*Bundle, error) {
	key := cacheKey{buildType, arrangement}

	s.mu.RLock()
	cached, ok := s.cache[key]
	s.mu.RUnlock()
	if !ok {
		loaded, err := s.read(buildType, arrangement)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		if existing, ok := s.cache[key]; ok {
			loaded = existing
		} else {
			s.cache[key] = loaded
		}
		s.mu.Unlock()
		cached = loaded
	}
	return cached.copy(), nil
}

func (b *Bundle) copy() *Bundle {
	sources := make(map[string]string, len(b.Sources))
	for k, v := range b.Sources {
		sources[k] = v
	}
	return &Bundle{
		Manifest:      b.Manifest.DeepCopy(),
		Pipeline:      b.Pipeline.DeepCopy(),
		Customization: b.Customization,
		Sources:       sources,
	}
}

func (s *Store) read(buildType string, arrangement int) (*Bundle, error) {
	b := &Bundle{Sources: map[string]string{}}

	name := ManifestFile(buildType)
	data, err := s.readFile(name)
	if err != nil {
		return nil, err
	}
	if b.Manifest, err = manifest.Parse(data); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	b.Sources["manifest"] = name

	name = PipelineFile(buildType, arrangement)
	if data, err = s.readFile(name); err != nil {
		return nil, err
	}
	if b.Pipeline, err = pipeline.Parse(data); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	b.Sources["pipeline"] = name

	for _, ext := range customizationExts {
		name = buildType + "_customize" + ext
		data, err = fs.ReadFile(s.fsys, name)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		if b.Customization, err = ParseCustomization(name, data); err != nil {
			return nil, err
		}
		b.Sources["customization"] = name
		break
	}
	return b, nil
}

func (s *Store) readFile(name string) ([]byte, error) {
	data, err := fs.ReadFile(s.fsys, name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return data, nil
}

// Available lists every build type found in the store with the
// arrangement versions of its pipelines.
func (s *Store) Available() (map[string][]int, error) {
	entries, err := fs.ReadDir(s.fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("listing templates: %w", err)
	}
	out := map[string][]int{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		base := strings.TrimSuffix(name, ".json")
		if i := strings.Index(base, "_inner:"); i >= 0 {
			var n int
			if _, err := fmt.Sscanf(base[i+len("_inner:"):], "%d", &n); err == nil {
				out[base[:i]] = append(out[base[:i]], n)
			}
			continue
		}
		if strings.Contains(base, "_customize") {
			continue
		}
		if _, ok := out[base]; !ok {
			out[base] = nil
		}
	}
	for bt := range out {
		sort.Ints(out[bt])
	}
	return out, nil
}
