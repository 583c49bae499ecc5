// Package workspace discovers the Cargo workspace surrounding a manifest and
// enumerates its member packages.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"

	"github.com/cargoctl/cargoctl/internal/core/resolve"
)

// rawManifest is the lossy view of a manifest used during discovery, where
// formatting does not matter.
type rawManifest struct {
	Package   *rawPackage   `toml:"package"`
	Project   *rawPackage   `toml:"project"`
	Workspace *rawWorkspace `toml:"workspace"`
}

type rawPackage struct {
	Name    string         `toml:"name"`
	Version toml.Primitive `toml:"version"`
}

type rawWorkspace struct {
	Members []string `toml:"members"`
	Exclude []string `toml:"exclude"`
	Package *struct {
		Version string `toml:"version"`
	} `toml:"package"`
}

func (m *rawManifest) pkg() *rawPackage {
	if m.Package != nil {
		return m.Package
	}
	return m.Project
}

func readRaw(path string) (*rawManifest, *toml.MetaData, error) {
	var m rawManifest
	md, err := toml.DecodeFile(path, &m)
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return &m, &md, nil
}

// Workspace is a discovered workspace: the root manifest plus the expanded
// member list. A package outside any workspace is a workspace of one.
type Workspace struct {
	// RootManifest is the path to the root Cargo.toml.
	RootManifest string
	members      []resolve.WorkspacePackage
}

// Root returns the workspace root directory.
func (w *Workspace) Root() string { return filepath.Dir(w.RootManifest) }

// Packages returns the member packages. Implements resolve.WorkspaceView.
func (w *Workspace) Packages() ([]resolve.WorkspacePackage, error) {
	return w.members, nil
}

// Discover walks up from manifestPath looking for a `[workspace]` root that
// does not exclude the starting package, then expands its member globs.
func Discover(manifestPath string) (*Workspace, error) {
	abs, err := filepath.Abs(manifestPath)
	if err != nil {
		return nil, err
	}
	startDir := filepath.Dir(abs)

	for dir := startDir; ; dir = filepath.Dir(dir) {
		candidate := filepath.Join(dir, "Cargo.toml")
		if _, err := os.Stat(candidate); err == nil {
			raw, _, err := readRaw(candidate)
			if err != nil {
				return nil, err
			}
			if raw.Workspace != nil && !excludes(dir, raw.Workspace.Exclude, startDir) {
				return expand(candidate, raw)
			}
		}
		if dir == filepath.Dir(dir) {
			break
		}
	}

	// Standalone package.
	raw, _, err := readRaw(abs)
	if err != nil {
		return nil, err
	}
	return expand(abs, raw)
}

// excludes reports whether the workspace at rootDir excludes memberDir.
func excludes(rootDir string, exclude []string, memberDir string) bool {
	for _, e := range exclude {
		p := filepath.Clean(filepath.Join(rootDir, filepath.FromSlash(e)))
		if memberDir == p || strings.HasPrefix(memberDir, p+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func expand(rootManifest string, raw *rawManifest) (*Workspace, error) {
	ws := &Workspace{RootManifest: rootManifest}
	rootDir := filepath.Dir(rootManifest)

	dirs := map[string]bool{}
	if raw.pkg() != nil {
		dirs[rootDir] = true
	}
	if raw.Workspace != nil {
		for _, pattern := range raw.Workspace.Members {
			matches, err := filepath.Glob(filepath.Join(rootDir, filepath.FromSlash(pattern)))
			if err != nil {
				return nil, fmt.Errorf("workspace member pattern %q: %w", pattern, err)
			}
			for _, match := range matches {
				if excludes(rootDir, raw.Workspace.Exclude, match) {
					continue
				}
				if _, err := os.Stat(filepath.Join(match, "Cargo.toml")); err == nil {
					dirs[match] = true
				}
			}
		}
	}

	var inherited *semver.Version
	if raw.Workspace != nil && raw.Workspace.Package != nil {
		inherited, _ = semver.NewVersion(raw.Workspace.Package.Version)
	}

	for dir := range dirs {
		member, err := loadMember(filepath.Join(dir, "Cargo.toml"), inherited)
		if err != nil {
			return nil, err
		}
		if member != nil {
			ws.members = append(ws.members, *member)
		}
	}
	sort.Slice(ws.members, func(i, j int) bool {
		return ws.members[i].ManifestPath < ws.members[j].ManifestPath
	})
	return ws, nil
}

// loadMember reads one member manifest. A version declared as
// `{ workspace = true }` inherits the workspace version.
func loadMember(path string, inherited *semver.Version) (*resolve.WorkspacePackage, error) {
	raw, md, err := readRaw(path)
	if err != nil {
		return nil, err
	}
	pkg := raw.pkg()
	if pkg == nil {
		// Virtual workspace root, not a package.
		return nil, nil
	}
	member := &resolve.WorkspacePackage{Name: pkg.Name, ManifestPath: path}

	var versionStr string
	if err := md.PrimitiveDecode(pkg.Version, &versionStr); err == nil {
		member.Version, _ = semver.NewVersion(versionStr)
	} else {
		var ref struct {
			Workspace bool `toml:"workspace"`
		}
		if err := md.PrimitiveDecode(pkg.Version, &ref); err == nil && ref.Workspace {
			member.Version = inherited
		}
	}
	return member, nil
}
