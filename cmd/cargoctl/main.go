package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/cargoctl/cargoctl/internal/cli/add"
	"github.com/cargoctl/cargoctl/internal/cli/remove"
	"github.com/cargoctl/cargoctl/internal/cli/selfcmd"
	"github.com/cargoctl/cargoctl/internal/cli/setversion"
	"github.com/cargoctl/cargoctl/internal/cli/upgrade"
)

// version is set at build time via -ldflags.
var version = "v0.1.0"

func main() {
	app := &cli.App{
		Name:    "cargoctl",
		Usage:   "Edit Cargo.toml dependencies from the command line",
		Version: version,
		Action: func(c *cli.Context) error {
			_ = cli.ShowAppHelp(c)
			return nil
		},
		Commands: []*cli.Command{
			add.NewAddCommand(nil),
			remove.NewRemoveCommand(),
			upgrade.NewUpgradeCommand(nil),
			setversion.NewSetVersionCommand(),
			selfcmd.NewSelfCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
