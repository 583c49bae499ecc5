// Package resolve turns an add request into a fully specified dependency by
// consulting the manifest, the workspace, and a source resolver.
package resolve

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/cargoctl/cargoctl/internal/core/dependency"
	"github.com/cargoctl/cargoctl/internal/core/manifest"
	"github.com/cargoctl/cargoctl/internal/core/printer"
	"github.com/cargoctl/cargoctl/internal/core/spec"
)

// CrateMetadata is what a resolver knows about one version of a crate.
type CrateMetadata struct {
	// Name is the canonical crate name as published.
	Name     string
	Version  *semver.Version
	Features map[string][]string
}

// SourceResolver supplies registry knowledge. Implementations may hit a
// sparse index over the network; tests use an in-memory fake.
type SourceResolver interface {
	// Latest returns metadata for the newest published version of name in
	// the given registry (empty means the default) matching req. An empty
	// req matches any version.
	Latest(name, req, registry string) (*CrateMetadata, error)

	// AvailableFeatures reports the feature set offered by the dependency's
	// source, whatever kind it is.
	AvailableFeatures(dep *dependency.Dependency) (map[string][]string, error)
}

// WorkspacePackage is one member of a workspace.
type WorkspacePackage struct {
	Name         string
	ManifestPath string
	// Version is nil when the member declares none of its own.
	Version *semver.Version
}

// Root returns the directory containing the member's manifest.
func (p WorkspacePackage) Root() string { return filepath.Dir(p.ManifestPath) }

// WorkspaceView enumerates the packages of the surrounding workspace. A
// standalone package is a workspace of one.
type WorkspaceView interface {
	Packages() ([]WorkspacePackage, error)
}

// SelfDependencyError reports a path dependency pointing at the manifest
// being edited.
type SelfDependencyError struct {
	Name string
}

func (e *SelfDependencyError) Error() string {
	return fmt.Sprintf("cannot add `%s` as a dependency to itself", e.Name)
}

// ConflictingSourceError reports mutually exclusive source selectors on one
// request, e.g. a git URL together with a registry version.
type ConflictingSourceError struct {
	Msg string
}

func (e *ConflictingSourceError) Error() string {
	return fmt.Sprintf("conflicting sources: %s", e.Msg)
}

// DepRequest is one dependency to add, as the command line describes it.
type DepRequest struct {
	Spec    *spec.CrateSpec
	Section []string

	Rename          string
	Features        []string
	Optional        *bool
	DefaultFeatures *bool
	Registry        string

	Git    string
	Branch string
	Tag    string
	Rev    string

	// Path forces a path source, independent of the spec.
	Path string
}

// Dependency resolves req against the manifest into a dependency ready for
// LocalManifest.InsertIntoTable. Unknown requested features only warn.
func Dependency(m *manifest.LocalManifest, req DepRequest, ws WorkspaceView, resolver SourceResolver, pr printer.Printer) (*dependency.Dependency, error) {
	if req.Git != "" {
		if req.Spec.VersionReq != "" {
			return nil, &ConflictingSourceError{Msg: "cannot specify a git URL with a version"}
		}
		if req.Registry != "" {
			return nil, &ConflictingSourceError{Msg: "cannot specify a git URL with a registry"}
		}
		if req.Path != "" || req.Spec.IsPath() {
			return nil, &ConflictingSourceError{Msg: "cannot specify a git URL with a path"}
		}
	}

	dep, err := tentative(m, req)
	if err != nil {
		return nil, err
	}

	if existing := findExisting(m, req.Section, dep.TomlKey()); existing != nil {
		if dep.Source == nil {
			dep.Source = existing.Source
		}
	}

	switch {
	case req.Git != "":
		dep.Source = dependency.Git{URL: req.Git, Branch: req.Branch, Tag: req.Tag, Rev: req.Rev}
	case dep.Source == nil:
		if err := resolveSource(m, req, dep, ws, resolver); err != nil {
			return nil, err
		}
	}

	if p, ok := dep.Source.(dependency.Path); ok {
		if filepath.Clean(p.Path) == filepath.Clean(m.Dir()) {
			return nil, &SelfDependencyError{Name: dep.Name}
		}
	}

	if feats, err := resolver.AvailableFeatures(dep); err == nil {
		dep.AvailableFeatures = feats
	}
	warnUnknownFeatures(dep, pr)
	return dep, nil
}

// tentative builds the dependency the request describes before any source
// resolution happens.
func tentative(m *manifest.LocalManifest, req DepRequest) (*dependency.Dependency, error) {
	var dep *dependency.Dependency
	switch {
	case req.Spec.IsPath():
		d, err := fromPath(req.Spec.Path, req.Section)
		if err != nil {
			return nil, err
		}
		dep = d
	case req.Path != "":
		d, err := fromPath(req.Path, req.Section)
		if err != nil {
			return nil, err
		}
		if req.Spec.Name != "" && req.Spec.Name != d.Name {
			return nil, &ConflictingSourceError{
				Msg: fmt.Sprintf("the crate at `%s` is `%s`, not `%s`", req.Path, d.Name, req.Spec.Name),
			}
		}
		dep = d
	default:
		dep = &dependency.Dependency{Name: req.Spec.Name}
		if req.Spec.VersionReq != "" {
			dep.Source = dependency.Registry{VersionReq: req.Spec.VersionReq, Registry: req.Registry}
		}
	}

	dep.Rename = req.Rename
	dep.Features = append(dep.Features, req.Features...)
	dep.Optional = req.Optional
	dep.DefaultFeatures = req.DefaultFeatures
	return dep, nil
}

// fromPath reads the manifest at dir to learn the crate's name and version.
func fromPath(dir string, section []string) (*dependency.Dependency, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	target, err := manifest.TryNew(filepath.Join(abs, "Cargo.toml"))
	if err != nil {
		return nil, err
	}
	name, err := target.PackageName()
	if err != nil {
		return nil, err
	}
	src := dependency.Path{Path: abs}
	if !isDevSection(section) {
		if v, err := target.PackageVersion(); err == nil {
			src.VersionReq = v.String()
		}
	}
	return &dependency.Dependency{Name: name, Source: src}, nil
}

// resolveSource fills in a source for a bare crate name, preferring a
// workspace member over the registry.
func resolveSource(m *manifest.LocalManifest, req DepRequest, dep *dependency.Dependency, ws WorkspaceView, resolver SourceResolver) error {
	if ws != nil {
		members, err := ws.Packages()
		if err != nil {
			return err
		}
		for _, member := range members {
			if member.Name != dep.Name {
				continue
			}
			src := dependency.Path{Path: member.Root(), Registry: req.Registry}
			if member.Version != nil && !isDevSection(req.Section) {
				src.VersionReq = member.Version.String()
			}
			dep.Source = src
			return nil
		}
	}

	meta, err := resolver.Latest(dep.Name, "", req.Registry)
	if err != nil {
		return err
	}
	if meta.Name != "" {
		dep.Name = meta.Name
	}
	dep.Source = dependency.Registry{VersionReq: meta.Version.String(), Registry: req.Registry}
	return nil
}

// findExisting locates an entry with the same key, preferring the target
// section and then scanning the remaining sections in table-kind order.
func findExisting(m *manifest.LocalManifest, section []string, key string) *dependency.Dependency {
	sections := m.GetSections()
	sort.SliceStable(sections, func(i, j int) bool {
		return sectionRank(sections[i], section) < sectionRank(sections[j], section)
	})
	for _, sec := range sections {
		item := sec.Table.Item(key)
		if item == nil {
			continue
		}
		dep, err := dependency.FromToml(m.Dir(), key, item)
		if err != nil {
			continue
		}
		return dep
	}
	return nil
}

func sectionRank(sec manifest.Section, target []string) int {
	if samePath(sec.Path, target) {
		return 0
	}
	base := 0
	if sec.Path[0] == "target" {
		base = 1
	}
	switch sec.Kind() {
	case "dependencies":
		return 1 + base
	case "build-dependencies":
		return 3 + base
	default:
		return 5 + base
	}
}

func samePath(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func isDevSection(section []string) bool {
	return len(section) > 0 && section[len(section)-1] == "dev-dependencies"
}

func warnUnknownFeatures(dep *dependency.Dependency, pr printer.Printer) {
	if dep.AvailableFeatures == nil {
		return
	}
	for _, f := range dep.Features {
		// `dep/feat` activations are checked against the dependency name only.
		name := f
		if i := strings.IndexByte(f, '/'); i >= 0 {
			name = f[:i]
		}
		if _, ok := dep.AvailableFeatures[name]; !ok {
			pr.Warn(fmt.Sprintf("unrecognized feature for crate %s: %s", dep.Name, f))
		}
	}
}
