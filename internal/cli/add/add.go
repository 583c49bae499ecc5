// Package add implements the `add` command, which inserts or updates
// dependencies in a Cargo.toml.
package add

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/cargoctl/cargoctl/internal/cli/cmdutil"
	"github.com/cargoctl/cargoctl/internal/core/printer"
	"github.com/cargoctl/cargoctl/internal/core/registry"
	"github.com/cargoctl/cargoctl/internal/core/resolve"
	"github.com/cargoctl/cargoctl/internal/core/spec"
	"github.com/cargoctl/cargoctl/internal/core/workspace"
)

// NewAddCommand creates the `add` command. A nil resolver means the sparse
// index resolver built from the user's cargo config; tests inject a fake.
func NewAddCommand(resolver resolve.SourceResolver) *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{Name: "rename", Usage: "Use a different key for the dependency in the manifest"},
		&cli.StringSliceFlag{Name: "features", Aliases: []string{"F"}, Usage: "Comma-separated features to enable"},
		&cli.BoolFlag{Name: "optional", Usage: "Mark the dependency optional (or required with --optional=false)"},
		&cli.BoolFlag{Name: "no-default-features", Usage: "Disable the dependency's default features"},
		&cli.BoolFlag{Name: "default-features", Usage: "Re-enable the dependency's default features"},
		&cli.StringFlag{Name: "registry", Usage: "Registry to resolve the crate against"},
		&cli.StringFlag{Name: "git", Usage: "Git repository URL to use as the source"},
		&cli.StringFlag{Name: "branch", Usage: "Branch for a git source"},
		&cli.StringFlag{Name: "tag", Usage: "Tag for a git source"},
		&cli.StringFlag{Name: "rev", Usage: "Revision for a git source"},
		&cli.StringFlag{Name: "path", Usage: "Filesystem path to a local crate"},
		cmdutil.ManifestFlag,
		cmdutil.DryRunFlag,
	}
	flags = append(flags, cmdutil.SectionFlags...)

	return &cli.Command{
		Name:      "add",
		Usage:     "Add a dependency to a Cargo.toml manifest",
		ArgsUsage: "<crate>[@<version>]...",
		Flags:     flags,
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return cli.Exit("Error: Missing crate argument.", 1)
			}
			if err := run(c, resolver); err != nil {
				return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
			}
			return nil
		},
	}
}

func run(c *cli.Context, resolver resolve.SourceResolver) error {
	m, err := cmdutil.OpenManifest(c)
	if err != nil {
		return err
	}
	ws, err := workspace.Discover(m.Path)
	if err != nil {
		return err
	}
	if resolver == nil {
		cfg, err := registry.LoadConfig("")
		if err != nil {
			return err
		}
		resolver = registry.NewHTTPResolver(cfg)
	}

	pr := printer.NewConsole()
	section := cmdutil.Section(c)

	for _, arg := range c.Args().Slice() {
		crateSpec, err := spec.Parse(arg)
		if err != nil {
			return err
		}
		req := resolve.DepRequest{
			Spec:     crateSpec,
			Section:  section,
			Rename:   c.String("rename"),
			Features: c.StringSlice("features"),
			Registry: c.String("registry"),
			Git:      c.String("git"),
			Branch:   c.String("branch"),
			Tag:      c.String("tag"),
			Rev:      c.String("rev"),
			Path:     c.String("path"),
		}
		if c.IsSet("optional") {
			v := c.Bool("optional")
			req.Optional = &v
		}
		if c.Bool("no-default-features") {
			v := false
			req.DefaultFeatures = &v
		} else if c.Bool("default-features") {
			v := true
			req.DefaultFeatures = &v
		}

		dep, err := resolve.Dependency(m, req, ws, resolver, pr)
		if err != nil {
			return err
		}

		msg := dep.Name
		if v := dep.VersionReq(); v != "" {
			msg = fmt.Sprintf("%s v%s", dep.Name, v)
		}
		pr.Status("Adding", fmt.Sprintf("%s to %s", msg, cmdutil.SectionName(section)))

		if err := m.InsertIntoTable(section, dep); err != nil {
			return err
		}
		if dep.Optional != nil && !*dep.Optional {
			// De-optionalizing invalidates the implicit feature of the
			// same name, like removal does.
			m.GcDep(dep.TomlKey())
		}
	}

	if c.Bool("dry-run") {
		pr.Warn("aborting add due to dry run")
		return nil
	}
	return m.Write()
}
