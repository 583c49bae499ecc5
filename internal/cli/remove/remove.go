// Package remove implements the `rm` command, which deletes dependencies
// from a Cargo.toml and garbage-collects stale feature references.
package remove

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/cargoctl/cargoctl/internal/cli/cmdutil"
	"github.com/cargoctl/cargoctl/internal/core/printer"
)

// NewRemoveCommand creates the `rm` command.
func NewRemoveCommand() *cli.Command {
	flags := []cli.Flag{
		cmdutil.ManifestFlag,
		cmdutil.DryRunFlag,
	}
	flags = append(flags, cmdutil.SectionFlags...)

	return &cli.Command{
		Name:      "rm",
		Aliases:   []string{"remove"},
		Usage:     "Remove dependencies from a Cargo.toml manifest",
		ArgsUsage: "<crate>...",
		Flags:     flags,
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return cli.Exit("Error: Missing crate argument.", 1)
			}
			if err := run(c); err != nil {
				return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
			}
			return nil
		},
	}
}

func run(c *cli.Context) error {
	m, err := cmdutil.OpenManifest(c)
	if err != nil {
		return err
	}

	pr := printer.NewConsole()
	section := cmdutil.Section(c)

	for _, name := range c.Args().Slice() {
		pr.Status("Removing", fmt.Sprintf("%s from %s", name, cmdutil.SectionName(section)))
		if err := m.RemoveFromTable(section, name); err != nil {
			return err
		}
		m.GcDep(name)
	}

	if c.Bool("dry-run") {
		pr.Warn("aborting remove due to dry run")
		return nil
	}
	return m.Write()
}
