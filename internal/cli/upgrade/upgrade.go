// Package upgrade implements the `upgrade` command, which rewrites version
// requirements to the latest published versions.
package upgrade

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/cargoctl/cargoctl/internal/cli/cmdutil"
	"github.com/cargoctl/cargoctl/internal/core/dependency"
	"github.com/cargoctl/cargoctl/internal/core/manifest"
	"github.com/cargoctl/cargoctl/internal/core/printer"
	"github.com/cargoctl/cargoctl/internal/core/registry"
	"github.com/cargoctl/cargoctl/internal/core/resolve"
)

// NewUpgradeCommand creates the `upgrade` command. A nil resolver means the
// sparse index resolver built from the user's cargo config.
func NewUpgradeCommand(resolver resolve.SourceResolver) *cli.Command {
	return &cli.Command{
		Name:      "upgrade",
		Usage:     "Upgrade dependency version requirements to the latest published versions",
		ArgsUsage: "[crate...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "skip-compatible", Usage: "Leave requirements alone when they already admit the latest version"},
			cmdutil.ManifestFlag,
			cmdutil.DryRunFlag,
		},
		Action: func(c *cli.Context) error {
			if err := run(c, resolver); err != nil {
				return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
			}
			return nil
		},
	}
}

// candidate is one registry dependency eligible for an upgrade.
type candidate struct {
	name     string
	registry string
}

func run(c *cli.Context, resolver resolve.SourceResolver) error {
	m, err := cmdutil.OpenManifest(c)
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
	only := map[string]bool{}
	for _, name := range c.Args().Slice() {
		only[name] = true
	}

	for _, cand := range candidates(m, only) {
		meta, err := resolver.Latest(cand.name, "", cand.registry)
		if err != nil {
			return err
		}
		dep := &dependency.Dependency{
			Name:   cand.name,
			Source: dependency.Registry{VersionReq: meta.Version.String(), Registry: cand.registry},
		}
		if err := m.Upgrade(dep, pr, c.Bool("skip-compatible")); err != nil {
			return err
		}
	}

	if c.Bool("dry-run") {
		pr.Warn("aborting upgrade due to dry run")
		return nil
	}
	return m.Write()
}

// candidates collects the distinct registry dependencies of the manifest,
// optionally filtered to the named crates. Path and git sources never
// upgrade from the registry.
func candidates(m *manifest.LocalManifest, only map[string]bool) []candidate {
	var out []candidate
	seen := map[string]bool{}
	for _, sec := range m.GetSections() {
		for _, item := range sec.Table.Items() {
			dep, err := dependency.FromToml(m.Dir(), item.Key, item)
			if err != nil {
				continue
			}
			src, ok := dep.Source.(dependency.Registry)
			if !ok || seen[dep.Name] {
				continue
			}
			if len(only) > 0 && !only[dep.Name] {
				continue
			}
			seen[dep.Name] = true
			out = append(out, candidate{name: dep.Name, registry: src.Registry})
		}
	}
	return out
}
