// Package cmdutil holds the flags and lookups shared by every manifest
// editing command.
package cmdutil

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/cargoctl/cargoctl/internal/core/manifest"
)

// ManifestFlag selects the manifest file to edit.
var ManifestFlag = &cli.StringFlag{
	Name:  "manifest-path",
	Usage: "Path to the Cargo.toml to edit",
}

// DryRunFlag previews the edit without writing the file.
var DryRunFlag = &cli.BoolFlag{
	Name:  "dry-run",
	Usage: "Print what would change without writing the manifest",
}

// SectionFlags pick the dependency table an edit applies to.
var SectionFlags = []cli.Flag{
	&cli.BoolFlag{Name: "dev", Aliases: []string{"D"}, Usage: "Edit dev-dependencies"},
	&cli.BoolFlag{Name: "build", Aliases: []string{"B"}, Usage: "Edit build-dependencies"},
	&cli.StringFlag{Name: "target", Usage: "Edit the dependency table for the given target triple"},
}

// ManifestPath resolves the --manifest-path flag, defaulting to Cargo.toml
// in the working directory.
func ManifestPath(c *cli.Context) (string, error) {
	path := c.String("manifest-path")
	if path == "" {
		path = "Cargo.toml"
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(abs); err != nil {
		return "", fmt.Errorf("no manifest at %s", abs)
	}
	return abs, nil
}

// OpenManifest loads the manifest the command should edit.
func OpenManifest(c *cli.Context) (*manifest.LocalManifest, error) {
	path, err := ManifestPath(c)
	if err != nil {
		return nil, err
	}
	return manifest.TryNew(path)
}

// Section translates the section flags into a dependency table path.
func Section(c *cli.Context) []string {
	kind := "dependencies"
	switch {
	case c.Bool("dev"):
		kind = "dev-dependencies"
	case c.Bool("build"):
		kind = "build-dependencies"
	}
	if t := c.String("target"); t != "" {
		return []string{"target", t, kind}
	}
	return []string{kind}
}

// SectionName renders a table path for status messages.
func SectionName(path []string) string {
	if len(path) == 3 {
		return fmt.Sprintf("%s for target `%s`", path[2], path[1])
	}
	return path[0]
}
