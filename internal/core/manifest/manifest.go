// Package manifest provides read and write access to Cargo.toml documents
// while preserving their formatting.
package manifest

import (
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/cargoctl/cargoctl/internal/core/tomledit"
)

// DepTableNames are the three dependency table kinds, in priority order.
var DepTableNames = []string{"dependencies", "dev-dependencies", "build-dependencies"}

// InvalidManifestError reports a manifest missing required package metadata.
type InvalidManifestError struct {
	Msg string
}

func (e *InvalidManifestError) Error() string {
	return fmt.Sprintf("invalid manifest: %s", e.Msg)
}

// Manifest is a read-only view over a parsed manifest document.
type Manifest struct {
	doc *tomledit.Document
}

// Parse reads a manifest from TOML bytes.
func Parse(data []byte) (*Manifest, error) {
	doc, err := tomledit.Parse(data)
	if err != nil {
		return nil, err
	}
	return &Manifest{doc: doc}, nil
}

// Document exposes the underlying document.
func (m *Manifest) Document() *tomledit.Document { return m.doc }

// packageTable returns the `package` table, falling back to the legacy
// `project` spelling, or nil.
func (m *Manifest) packageTable() *tomledit.Table {
	if t := m.doc.Root().Sub("package"); t != nil {
		return t
	}
	return m.doc.Root().Sub("project")
}

// PackageName returns `package.name`.
func (m *Manifest) PackageName() (string, error) {
	pkg := m.packageTable()
	if pkg == nil {
		return "", &InvalidManifestError{Msg: "no `package` table"}
	}
	name, ok := pkg.Get("name").AsString()
	if !ok {
		return "", &InvalidManifestError{Msg: "no `package.name`"}
	}
	return name, nil
}

// PackageVersion returns `package.version` parsed as a semantic version.
func (m *Manifest) PackageVersion() (*semver.Version, error) {
	pkg := m.packageTable()
	if pkg == nil {
		return nil, &InvalidManifestError{Msg: "no `package` table"}
	}
	raw, ok := pkg.Get("version").AsString()
	if !ok {
		return nil, &InvalidManifestError{Msg: "no `package.version`"}
	}
	v, err := semver.NewVersion(raw)
	if err != nil {
		return nil, &InvalidManifestError{Msg: fmt.Sprintf("package.version `%s`: %v", raw, err)}
	}
	return v, nil
}

// VersionInheritsWorkspace reports whether `package.version` is declared as
// `{ workspace = true }`.
func (m *Manifest) VersionInheritsWorkspace() bool {
	pkg := m.packageTable()
	if pkg == nil {
		return false
	}
	it := pkg.Get("version").AsInlineTable()
	if it == nil {
		return false
	}
	b, _ := it.Get("workspace").AsBool()
	return b
}

// Section is one dependency table together with its document path.
type Section struct {
	Path  []string
	Table *tomledit.Table
}

// Kind returns the dependency table name, e.g. `dev-dependencies`.
func (s Section) Kind() string { return s.Path[len(s.Path)-1] }

// GetSections yields every dependency table present in the manifest,
// including empty ones and per-target tables.
func (m *Manifest) GetSections() []Section {
	var sections []Section
	root := m.doc.Root()
	for _, name := range DepTableNames {
		if t := root.Sub(name); t != nil {
			sections = append(sections, Section{Path: []string{name}, Table: t})
		}
	}
	if target := root.Sub("target"); target != nil {
		for _, triple := range target.Subs() {
			for _, name := range DepTableNames {
				if t := triple.Sub(name); t != nil {
					sections = append(sections, Section{
						Path:  []string{"target", triple.Key(), name},
						Table: t,
					})
				}
			}
		}
	}
	return sections
}

// Features returns the feature table as a name-to-activations map. Optional
// dependencies contribute their implicit feature with no activations.
func (m *Manifest) Features() map[string][]string {
	features := map[string][]string{}
	if feats := m.doc.Root().Sub("features"); feats != nil {
		for _, e := range feats.Entries() {
			var acts []string
			if arr := e.Value().AsArray(); arr != nil {
				for i := 0; i < arr.Len(); i++ {
					if s, ok := arr.At(i).AsString(); ok {
						acts = append(acts, s)
					}
				}
			}
			features[e.Key()] = acts
		}
	}
	for _, sec := range m.GetSections() {
		for _, item := range sec.Table.Items() {
			tbl := item.AsTableLike()
			if tbl == nil {
				continue
			}
			if opt, _ := tbl.Get("optional").AsBool(); opt {
				if _, exists := features[item.Key]; !exists {
					features[item.Key] = nil
				}
			}
		}
	}
	return features
}
