// Package setversion implements the `set-version` command, which rewrites
// package versions and propagates them through workspace path dependencies.
package setversion

import (
	"fmt"
	"path/filepath"

	"github.com/Masterminds/semver/v3"
	"github.com/urfave/cli/v2"

	"github.com/cargoctl/cargoctl/internal/cli/cmdutil"
	"github.com/cargoctl/cargoctl/internal/core/manifest"
	"github.com/cargoctl/cargoctl/internal/core/printer"
	"github.com/cargoctl/cargoctl/internal/core/resolve"
	"github.com/cargoctl/cargoctl/internal/core/version"
	"github.com/cargoctl/cargoctl/internal/core/workspace"
)

// NewSetVersionCommand creates the `set-version` command.
func NewSetVersionCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{Name: "bump", Usage: "Bump by one of: major, minor, patch, release, rc, beta, alpha"},
		&cli.StringFlag{Name: "metadata", Usage: "Build metadata to append to the new version"},
		&cli.StringFlag{Name: "package", Aliases: []string{"p"}, Usage: "Only change the named workspace package"},
		&cli.BoolFlag{Name: "workspace", Usage: "Change every workspace package"},
		cmdutil.ManifestFlag,
		cmdutil.DryRunFlag,
	}

	return &cli.Command{
		Name:      "set-version",
		Usage:     "Set or bump the version in a Cargo.toml manifest",
		ArgsUsage: "[<version>]",
		Flags:     flags,
		Action: func(c *cli.Context) error {
			if err := run(c); err != nil {
				return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
			}
			return nil
		},
	}
}

func parseTarget(c *cli.Context) (version.Target, error) {
	hasArg := c.NArg() > 0
	hasBump := c.String("bump") != ""
	switch {
	case hasArg && hasBump:
		return version.Target{}, fmt.Errorf("cannot combine a version argument with --bump")
	case hasArg:
		v, err := semver.NewVersion(c.Args().First())
		if err != nil {
			return version.Target{}, fmt.Errorf("invalid version `%s`: %w", c.Args().First(), err)
		}
		return version.Target{Absolute: v}, nil
	case hasBump:
		level, err := version.ParseLevel(c.String("bump"))
		if err != nil {
			return version.Target{}, err
		}
		return version.Target{Relative: level}, nil
	default:
		return version.Target{}, fmt.Errorf("expected a version argument or --bump")
	}
}

// session caches open manifests so every edit lands in one document per
// file, then flushes them together.
type session struct {
	manifests map[string]*manifest.LocalManifest
}

func (s *session) open(path string) (*manifest.LocalManifest, error) {
	if m, ok := s.manifests[path]; ok {
		return m, nil
	}
	m, err := manifest.TryNew(path)
	if err != nil {
		return nil, err
	}
	s.manifests[path] = m
	return m, nil
}

func (s *session) flush() error {
	for _, m := range s.manifests {
		if err := m.WriteRaw(); err != nil {
			return err
		}
	}
	return nil
}

func run(c *cli.Context) error {
	target, err := parseTarget(c)
	if err != nil {
		return err
	}
	path, err := cmdutil.ManifestPath(c)
	if err != nil {
		return err
	}
	ws, err := workspace.Discover(path)
	if err != nil {
		return err
	}
	members, err := ws.Packages()
	if err != nil {
		return err
	}

	selected, err := selectPackages(c, path, members)
	if err != nil {
		return err
	}

	pr := printer.NewConsole()
	s := &session{manifests: map[string]*manifest.LocalManifest{}}

	for _, pkg := range selected {
		if err := setOne(s, ws, members, pkg, target, c.String("metadata"), pr); err != nil {
			return err
		}
	}

	if c.Bool("dry-run") {
		pr.Warn("aborting set-version due to dry run")
		return nil
	}
	return s.flush()
}

func selectPackages(c *cli.Context, manifestPath string, members []resolve.WorkspacePackage) ([]resolve.WorkspacePackage, error) {
	switch {
	case c.Bool("workspace"):
		return members, nil
	case c.String("package") != "":
		name := c.String("package")
		for _, m := range members {
			if m.Name == name {
				return []resolve.WorkspacePackage{m}, nil
			}
		}
		return nil, fmt.Errorf("no workspace package named `%s`", name)
	default:
		for _, m := range members {
			if m.ManifestPath == manifestPath {
				return []resolve.WorkspacePackage{m}, nil
			}
		}
		return nil, &manifest.VirtualWorkspaceError{}
	}
}

func setOne(s *session, ws *workspace.Workspace, members []resolve.WorkspacePackage, pkg resolve.WorkspacePackage, target version.Target, metadata string, pr printer.Printer) error {
	m, err := s.open(pkg.ManifestPath)
	if err != nil {
		return err
	}

	current := pkg.Version
	if current == nil {
		current, err = m.PackageVersion()
		if err != nil {
			return err
		}
	}

	next, err := version.Bump(current, target, metadata)
	if err != nil {
		return err
	}
	if next == nil {
		pr.Note(fmt.Sprintf("%s is already at version %s", pkg.Name, current))
		return nil
	}
	pr.Status("Upgrading", fmt.Sprintf("%s from %s to %s", pkg.Name, current, next))

	if m.VersionInheritsWorkspace() {
		root, err := s.open(ws.RootManifest)
		if err != nil {
			return err
		}
		root.SetWorkspaceVersion(next)
	} else if err := m.SetPackageVersion(next); err != nil {
		return err
	}

	// Keep sibling path dependencies admitting the new version.
	pkgRoot := filepath.Dir(pkg.ManifestPath)
	for _, member := range members {
		sm, err := s.open(member.ManifestPath)
		if err != nil {
			return err
		}
		changed, err := sm.UpgradePathDeps(pkgRoot, next)
		if err != nil {
			return err
		}
		if changed {
			pr.Status("Updating", fmt.Sprintf("%s's dependency on %s to %s", member.Name, pkg.Name, next))
		}
	}
	return nil
}
