// Package dependency models a single manifest dependency entry and its
// conversion to and from the TOML document form.
package dependency

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cargoctl/cargoctl/internal/core/tomledit"
)

// Source is the closed set of places a dependency can come from.
type Source interface {
	source()
}

// Registry is a dependency fetched from a package registry.
type Registry struct {
	VersionReq string
	Registry   string // "" means the default registry
}

// Path is a dependency at a local filesystem path. The path is always held
// absolute in memory and rendered relative to the manifest's directory.
type Path struct {
	Path       string
	VersionReq string
	Registry   string
}

// Git is a dependency fetched from a git repository. At most one of Branch,
// Tag, Rev is set.
type Git struct {
	URL    string
	Branch string
	Tag    string
	Rev    string
}

func (Registry) source() {}
func (Path) source()     {}
func (Git) source()      {}

// InvalidEntryError reports a manifest dependency entry whose shape cannot be
// classified.
type InvalidEntryError struct {
	Key string
}

func (e *InvalidEntryError) Error() string {
	return fmt.Sprintf("invalid dependency entry `%s`", e.Key)
}

// Dependency is the in-memory record of one dependency. The tri-state flags
// distinguish "leave the manifest as-is" (nil) from an explicit setting.
type Dependency struct {
	Name   string
	Rename string
	Source Source

	Optional        *bool
	DefaultFeatures *bool
	Features        []string

	// AvailableFeatures is informational only and never written back.
	AvailableFeatures map[string][]string
}

// TomlKey is the key the dependency occupies in its table.
func (d *Dependency) TomlKey() string {
	if d.Rename != "" {
		return d.Rename
	}
	return d.Name
}

// VersionReq returns the recorded version requirement, if any.
func (d *Dependency) VersionReq() string {
	switch s := d.Source.(type) {
	case Registry:
		return s.VersionReq
	case Path:
		return s.VersionReq
	}
	return ""
}

// FromToml reads a dependency from a manifest item. crateRoot is the
// directory of the manifest, used to absolutize path entries.
func FromToml(crateRoot, key string, item *tomledit.Item) (*Dependency, error) {
	d := &Dependency{Name: key}

	if item.Value != nil {
		if req, ok := item.Value.AsString(); ok {
			d.Source = Registry{VersionReq: req}
			return d, nil
		}
	}
	tbl := item.AsTableLike()
	if tbl == nil {
		return nil, &InvalidEntryError{Key: key}
	}

	getString := func(name string) (string, bool) {
		if v := tbl.Get(name); v != nil {
			return v.AsString()
		}
		return "", false
	}

	switch {
	case has(tbl, "git"):
		url, ok := getString("git")
		if !ok {
			return nil, &InvalidEntryError{Key: key}
		}
		src := Git{URL: url}
		src.Branch, _ = getString("branch")
		src.Tag, _ = getString("tag")
		src.Rev, _ = getString("rev")
		d.Source = src
	case has(tbl, "path"):
		rel, ok := getString("path")
		if !ok {
			return nil, &InvalidEntryError{Key: key}
		}
		abs := rel
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(crateRoot, filepath.FromSlash(rel))
		}
		src := Path{Path: filepath.Clean(abs)}
		src.VersionReq, _ = getString("version")
		src.Registry, _ = getString("registry")
		d.Source = src
	case has(tbl, "version"):
		req, ok := getString("version")
		if !ok {
			return nil, &InvalidEntryError{Key: key}
		}
		src := Registry{VersionReq: req}
		src.Registry, _ = getString("registry")
		d.Source = src
	default:
		return nil, &InvalidEntryError{Key: key}
	}

	if v := tbl.Get("default-features"); v != nil {
		b, ok := v.AsBool()
		if !ok {
			return nil, &InvalidEntryError{Key: key}
		}
		d.DefaultFeatures = &b
	}
	if v := tbl.Get("optional"); v != nil {
		b, ok := v.AsBool()
		if !ok {
			return nil, &InvalidEntryError{Key: key}
		}
		d.Optional = &b
	}
	if v := tbl.Get("features"); v != nil {
		arr := v.AsArray()
		if arr == nil {
			return nil, &InvalidEntryError{Key: key}
		}
		feats := make([]string, 0, arr.Len())
		for i := 0; i < arr.Len(); i++ {
			f, ok := arr.At(i).AsString()
			if !ok {
				return nil, &InvalidEntryError{Key: key}
			}
			feats = append(feats, f)
		}
		d.Features = feats
	}
	if pkg, ok := getString("package"); ok {
		d.Name = pkg
		d.Rename = key
	}
	return d, nil
}

func has(tbl tomledit.TableLike, key string) bool {
	return tbl.Get(key) != nil
}

// shortForm reports whether the dependency renders as a bare version string.
func (d *Dependency) shortForm() bool {
	reg, ok := d.Source.(Registry)
	if !ok || reg.Registry != "" || d.Rename != "" || len(d.Features) > 0 {
		return false
	}
	if d.DefaultFeatures != nil && !*d.DefaultFeatures {
		return false
	}
	if d.Optional != nil && *d.Optional {
		return false
	}
	return true
}

// ToToml renders the dependency as a fresh manifest value: a bare version
// string when possible, an inline table otherwise.
func (d *Dependency) ToToml(crateRoot string) (*tomledit.Value, error) {
	if d.shortForm() {
		return tomledit.String(d.Source.(Registry).VersionReq), nil
	}
	v := tomledit.NewInlineTable()
	tbl := v.AsInlineTable()
	if err := d.writeSource(crateRoot, tbl); err != nil {
		return nil, err
	}
	if d.DefaultFeatures != nil && !*d.DefaultFeatures {
		tbl.Set("default-features", tomledit.Bool(false))
	}
	if len(d.Features) > 0 {
		feats := tomledit.NewArray()
		for _, f := range d.Features {
			feats.AsArray().Append(tomledit.String(f))
		}
		tbl.Set("features", feats)
	}
	if d.Optional != nil && *d.Optional {
		tbl.Set("optional", tomledit.Bool(true))
	}
	if d.Rename != "" {
		tbl.Set("package", tomledit.String(d.Name))
	}
	return v, nil
}

func (d *Dependency) writeSource(crateRoot string, tbl tomledit.TableLike) error {
	switch s := d.Source.(type) {
	case Registry:
		if s.VersionReq != "" {
			tbl.Set("version", tomledit.String(s.VersionReq))
		}
		if s.Registry != "" {
			tbl.Set("registry", tomledit.String(s.Registry))
		}
	case Path:
		if s.VersionReq != "" {
			tbl.Set("version", tomledit.String(s.VersionReq))
		}
		rel, err := relativePath(crateRoot, s.Path)
		if err != nil {
			return err
		}
		tbl.Set("path", tomledit.String(rel))
		if s.Registry != "" {
			tbl.Set("registry", tomledit.String(s.Registry))
		}
	case Git:
		tbl.Set("git", tomledit.String(s.URL))
		if s.Branch != "" {
			tbl.Set("branch", tomledit.String(s.Branch))
		}
		if s.Tag != "" {
			tbl.Set("tag", tomledit.String(s.Tag))
		}
		if s.Rev != "" {
			tbl.Set("rev", tomledit.String(s.Rev))
		}
	default:
		return fmt.Errorf("dependency `%s` has no source", d.Name)
	}
	return nil
}

func relativePath(crateRoot, target string) (string, error) {
	if !filepath.IsAbs(target) {
		return "", fmt.Errorf("path dependency `%s` is not absolute", target)
	}
	rel, err := filepath.Rel(crateRoot, target)
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(rel, string(filepath.Separator), "/"), nil
}

// UpdateToml merges the dependency into an existing table entry, preserving
// keys it does not govern and dropping keys stale for the new source.
func (d *Dependency) UpdateToml(crateRoot string, tbl tomledit.TableLike) error {
	switch d.Source.(type) {
	case Registry:
		for _, k := range []string{"path", "git", "branch", "tag", "rev"} {
			tbl.Remove(k)
		}
	case Path:
		for _, k := range []string{"git", "branch", "tag", "rev"} {
			tbl.Remove(k)
		}
	case Git:
		for _, k := range []string{"version", "path", "registry"} {
			tbl.Remove(k)
		}
		s := d.Source.(Git)
		if s.Branch == "" {
			tbl.Remove("branch")
		}
		if s.Tag == "" {
			tbl.Remove("tag")
		}
		if s.Rev == "" {
			tbl.Remove("rev")
		}
	}
	if err := d.writeSource(crateRoot, tbl); err != nil {
		return err
	}

	if d.DefaultFeatures != nil {
		if *d.DefaultFeatures {
			tbl.Remove("default-features")
		} else {
			tbl.Set("default-features", tomledit.Bool(false))
		}
	}
	if d.Features != nil {
		feats := tomledit.NewArray()
		for _, f := range d.Features {
			feats.AsArray().Append(tomledit.String(f))
		}
		tbl.Set("features", feats)
	}
	if d.Optional != nil {
		if *d.Optional {
			tbl.Set("optional", tomledit.Bool(true))
		} else {
			tbl.Remove("optional")
		}
	}
	if d.Rename != "" {
		tbl.Set("package", tomledit.String(d.Name))
	} else {
		tbl.Remove("package")
	}
	return nil
}
