package registry

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/cargoctl/cargoctl/internal/core/dependency"
	"github.com/cargoctl/cargoctl/internal/core/manifest"
	"github.com/cargoctl/cargoctl/internal/core/resolve"
	"github.com/cargoctl/cargoctl/internal/core/version"
)

// NoMatchingVersionError reports a crate with no published version that
// satisfies the requirement.
type NoMatchingVersionError struct {
	Name string
	Req  string
}

func (e *NoMatchingVersionError) Error() string {
	if e.Req == "" {
		return fmt.Sprintf("no published versions of crate `%s`", e.Name)
	}
	return fmt.Sprintf("no version of crate `%s` matches `%s`", e.Name, e.Req)
}

// indexEntry is one line of a sparse index file, one published version.
type indexEntry struct {
	Name      string              `json:"name"`
	Vers      string              `json:"vers"`
	Yanked    bool                `json:"yanked"`
	Features  map[string][]string `json:"features"`
	Features2 map[string][]string `json:"features2"`
}

// HTTPResolver resolves crates against sparse HTTP registry indexes. It
// implements resolve.SourceResolver.
type HTTPResolver struct {
	Config *Config
	Client *http.Client
}

// NewHTTPResolver builds a resolver over the given cargo config.
func NewHTTPResolver(cfg *Config) *HTTPResolver {
	return &HTTPResolver{Config: cfg, Client: http.DefaultClient}
}

// Latest returns the newest non-yanked version of name matching req. When
// both stable and pre-release versions match, stable wins.
func (r *HTTPResolver) Latest(name, req, registry string) (*resolve.CrateMetadata, error) {
	entries, err := r.fetch(name, registry)
	if err != nil {
		return nil, err
	}

	var matches func(*semver.Version) bool
	if req == "" {
		matches = func(*semver.Version) bool { return true }
	} else {
		parsed, err := version.ParseReq(req)
		if err != nil {
			return nil, err
		}
		matches = parsed.Matches
	}

	var best *indexEntry
	var bestVersion *semver.Version
	for i := range entries {
		e := &entries[i]
		if e.Yanked {
			continue
		}
		v, err := semver.NewVersion(e.Vers)
		if err != nil || !matches(v) {
			continue
		}
		if bestVersion == nil || better(v, bestVersion) {
			best, bestVersion = e, v
		}
	}
	if best == nil {
		return nil, &NoMatchingVersionError{Name: name, Req: req}
	}

	features := map[string][]string{}
	for k, v := range best.Features {
		features[k] = v
	}
	for k, v := range best.Features2 {
		features[k] = v
	}
	return &resolve.CrateMetadata{Name: best.Name, Version: bestVersion, Features: features}, nil
}

// better reports whether a should replace b as the best candidate.
func better(a, b *semver.Version) bool {
	aPre, bPre := a.Prerelease() != "", b.Prerelease() != ""
	if aPre != bPre {
		return bPre
	}
	return a.GreaterThan(b)
}

// AvailableFeatures reports the feature set of whatever source dep carries.
// Git sources have no queryable feature set here.
func (r *HTTPResolver) AvailableFeatures(dep *dependency.Dependency) (map[string][]string, error) {
	switch src := dep.Source.(type) {
	case dependency.Registry:
		meta, err := r.Latest(dep.Name, src.VersionReq, src.Registry)
		if err != nil {
			return nil, err
		}
		return meta.Features, nil
	case dependency.Path:
		m, err := manifest.TryNew(filepath.Join(src.Path, "Cargo.toml"))
		if err != nil {
			return nil, err
		}
		return m.Features(), nil
	default:
		return nil, nil
	}
}

// fetch downloads and decodes the sparse index file for a crate.
func (r *HTTPResolver) fetch(name, registry string) ([]indexEntry, error) {
	index, err := r.Config.IndexURL(registry)
	if err != nil {
		return nil, err
	}
	index = strings.TrimPrefix(index, "sparse+")
	if !strings.HasPrefix(index, "http://") && !strings.HasPrefix(index, "https://") {
		return nil, fmt.Errorf("registry index `%s` is not a sparse index", index)
	}

	url := strings.TrimSuffix(index, "/") + "/" + indexPath(name)
	resp, err := r.Client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("querying index for %s: %w", name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return nil, &NoMatchingVersionError{Name: name}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("querying index for %s: %s", name, resp.Status)
	}

	var entries []indexEntry
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var e indexEntry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			return nil, fmt.Errorf("decoding index entry for %s: %w", name, err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// indexPath is the sparse index layout: 1/x, 2/xy, 3/x/xyz, xy/za/xyzabc.
func indexPath(name string) string {
	name = strings.ToLower(name)
	switch len(name) {
	case 0:
		return name
	case 1:
		return "1/" + name
	case 2:
		return "2/" + name
	case 3:
		return "3/" + name[:1] + "/" + name
	default:
		return name[:2] + "/" + name[2:4] + "/" + name
	}
}
