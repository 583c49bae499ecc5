package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/cargoctl/cargoctl/internal/core/dependency"
	"github.com/cargoctl/cargoctl/internal/core/printer"
	"github.com/cargoctl/cargoctl/internal/core/tomledit"
	"github.com/cargoctl/cargoctl/internal/core/version"
)

// MissingPackageError reports a write on a manifest without a package.
type MissingPackageError struct{}

func (e *MissingPackageError) Error() string {
	return "manifest has no `package` (or legacy `project`) table"
}

// VirtualWorkspaceError reports a write on a virtual workspace root, which
// has a `workspace` table but no package of its own.
type VirtualWorkspaceError struct{}

func (e *VirtualWorkspaceError) Error() string {
	return "found virtual workspace manifest: the operation needs a package, not a workspace root"
}

// NonExistentDependencyError reports a dependency missing from a table.
type NonExistentDependencyError struct {
	Name  string
	Table string
}

func (e *NonExistentDependencyError) Error() string {
	return fmt.Sprintf("the dependency `%s` could not be found in `%s`", e.Name, e.Table)
}

// LocalManifest is a manifest bound to a file on disk. All mutations happen
// in memory; only Write touches the file.
type LocalManifest struct {
	Manifest
	Path string
}

// TryNew opens and parses the manifest file at path.
func TryNew(path string) (*LocalManifest, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", abs, err)
	}
	return &LocalManifest{Manifest: *m, Path: abs}, nil
}

// Dir returns the directory containing the manifest.
func (m *LocalManifest) Dir() string { return filepath.Dir(m.Path) }

// Write renders the document and replaces the file in a single write. It
// refuses to write a manifest that has no package.
func (m *LocalManifest) Write() error {
	if m.packageTable() == nil {
		if m.doc.Root().Sub("workspace") != nil {
			return &VirtualWorkspaceError{}
		}
		return &MissingPackageError{}
	}
	return m.WriteRaw()
}

// WriteRaw writes the document without the package check. Workspace version
// propagation uses it to edit virtual workspace roots.
func (m *LocalManifest) WriteRaw() error {
	return os.WriteFile(m.Path, m.doc.Bytes(), 0644)
}

// InsertIntoTable adds dep to the table at tablePath, merging with an
// existing entry of the same key. A table that was sorted stays sorted.
func (m *LocalManifest) InsertIntoTable(tablePath []string, dep *dependency.Dependency) error {
	tbl := m.doc.GetOrInsertTable(tablePath)
	wasSorted := tbl.IsSorted()
	key := dep.TomlKey()

	if item := tbl.Item(key); item != nil {
		if like := item.AsTableLike(); like != nil {
			if err := dep.UpdateToml(m.Dir(), like); err != nil {
				return err
			}
			m.normalizeEntry(tbl, key)
		} else {
			v, err := dep.ToToml(m.Dir())
			if err != nil {
				return err
			}
			tbl.Set(key, v)
		}
	} else {
		v, err := dep.ToToml(m.Dir())
		if err != nil {
			return err
		}
		tbl.Set(key, v)
	}
	if wasSorted {
		tbl.Sort()
	}
	return nil
}

// normalizeEntry collapses an inline-table entry back to the short form when
// only a version remains.
func (m *LocalManifest) normalizeEntry(tbl *tomledit.Table, key string) {
	v := tbl.Get(key)
	it := v.AsInlineTable()
	if it == nil {
		return
	}
	if it.Len() == 1 {
		if req, ok := it.Get("version").AsString(); ok {
			tbl.Set(key, tomledit.String(req))
		}
	}
}

// RemoveFromTable deletes the named entry; an emptied table is dropped.
func (m *LocalManifest) RemoveFromTable(tablePath []string, key string) error {
	notFound := &NonExistentDependencyError{Name: key, Table: strings.Join(tablePath, ".")}
	tbl, err := m.doc.GetTable(tablePath)
	if err != nil {
		return notFound
	}
	if !tbl.RemoveItem(key) {
		return notFound
	}
	if tbl.IsEmpty() {
		parent, err := m.doc.GetTable(tablePath[:len(tablePath)-1])
		if err == nil {
			parent.RemoveSub(tablePath[len(tablePath)-1])
		}
	}
	return nil
}

// depState classifies what is left of a dependency after a mutation.
type depState int

const (
	depGone     depState = iota // not present in any section
	depRequired                 // present, never optional
	depOptional                 // still optional somewhere
)

func (m *LocalManifest) stateOf(key string) depState {
	state := depGone
	for _, sec := range m.GetSections() {
		item := sec.Table.Item(key)
		if item == nil {
			continue
		}
		if tbl := item.AsTableLike(); tbl != nil {
			if opt, _ := tbl.Get("optional").AsBool(); opt {
				return depOptional
			}
		}
		state = depRequired
	}
	return state
}

// GcDep removes stale references to a removed or de-optionalized dependency
// from the `features` table activation arrays.
func (m *LocalManifest) GcDep(key string) {
	feats := m.doc.Root().Sub("features")
	if feats == nil {
		return
	}
	state := m.stateOf(key)
	if state == depOptional {
		return
	}
	for _, entry := range feats.Entries() {
		arr := entry.Value().AsArray()
		if arr == nil {
			continue
		}
		// Highest to lowest so indices stay valid.
		for i := arr.Len() - 1; i >= 0; i-- {
			s, ok := arr.At(i).AsString()
			if !ok {
				continue
			}
			switch state {
			case depGone:
				if s == key || strings.HasPrefix(s, key+"/") {
					arr.Remove(i)
				}
			case depRequired:
				// The implicit feature is gone, transitive features remain.
				if s == key {
					arr.Remove(i)
				}
			}
		}
	}
}

// Upgrade rewrites the version requirement of every entry matching dep's
// crate name. The caller decides when to write.
func (m *LocalManifest) Upgrade(dep *dependency.Dependency, pr printer.Printer, skipCompatible bool) error {
	newReq := dep.VersionReq()
	newVersion, versionErr := semver.NewVersion(newReq)
	for _, sec := range m.GetSections() {
		for _, item := range sec.Table.Items() {
			existing, err := dependency.FromToml(m.Dir(), item.Key, item)
			if err != nil {
				continue
			}
			if existing.Name != dep.Name {
				continue
			}
			if _, isGit := existing.Source.(dependency.Git); isGit {
				continue
			}
			old := existing.VersionReq()
			if old == newReq || old == "" {
				continue
			}
			if skipCompatible && versionErr == nil && admits(old, newVersion) {
				continue
			}
			pr.Status("Upgrading", fmt.Sprintf("%s v%s → v%s", dep.Name, old, newReq))
			if like := item.AsTableLike(); like != nil {
				like.Set("version", tomledit.String(newReq))
			} else {
				sec.Table.Set(item.Key, tomledit.String(newReq))
			}
		}
	}
	return nil
}

func admits(req string, v *semver.Version) bool {
	r, err := version.ParseReq(req)
	if err != nil {
		return false
	}
	return r.Matches(v)
}

// SetPackageVersion rewrites `package.version`.
func (m *LocalManifest) SetPackageVersion(v *semver.Version) error {
	pkg := m.packageTable()
	if pkg == nil {
		return &InvalidManifestError{Msg: "no `package` table"}
	}
	pkg.Set("version", tomledit.String(v.String()))
	return nil
}

// SetWorkspaceVersion rewrites `workspace.package.version` on a workspace
// root manifest.
func (m *LocalManifest) SetWorkspaceVersion(v *semver.Version) {
	tbl := m.doc.GetOrInsertTable([]string{"workspace", "package"})
	tbl.Set("version", tomledit.String(v.String()))
}

// UpgradePathDeps rewrites the version requirement of every path dependency
// resolving to depRoot so it admits newVersion. It reports whether the
// document changed.
func (m *LocalManifest) UpgradePathDeps(depRoot string, newVersion *semver.Version) (bool, error) {
	changed := false
	for _, sec := range m.GetSections() {
		for _, item := range sec.Table.Items() {
			tbl := item.AsTableLike()
			if tbl == nil {
				continue
			}
			rel, ok := tbl.Get("path").AsString()
			if !ok {
				continue
			}
			old, ok := tbl.Get("version").AsString()
			if !ok {
				continue
			}
			abs := filepath.Clean(filepath.Join(m.Dir(), filepath.FromSlash(rel)))
			if abs != filepath.Clean(depRoot) {
				continue
			}
			rewritten, err := version.UpgradeRequirement(old, newVersion)
			if err != nil {
				return changed, err
			}
			if rewritten == "" {
				continue
			}
			tbl.Set("version", tomledit.String(rewritten))
			changed = true
		}
	}
	return changed, nil
}
