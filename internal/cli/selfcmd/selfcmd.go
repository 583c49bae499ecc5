// Package selfcmd manages the cargoctl binary itself.
package selfcmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/creativeprojects/go-selfupdate"
	"github.com/urfave/cli/v2"
)

const defaultRepo = "cargoctl/cargoctl"

// NewSelfCommand creates the `self` command group.
func NewSelfCommand() *cli.Command {
	return &cli.Command{
		Name:  "self",
		Usage: "Manage the cargoctl binary itself",
		Subcommands: []*cli.Command{
			{
				Name:  "update",
				Usage: "Update cargoctl to the latest released version",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "Skip the confirmation prompt"},
					&cli.BoolFlag{Name: "check", Usage: "Only check whether an update is available"},
					&cli.StringFlag{Name: "source", Usage: "GitHub source as 'owner/repo'"},
				},
				Action: updateAction,
			},
		},
	}
}

func updateAction(c *cli.Context) error {
	current, err := semver.NewVersion(strings.TrimPrefix(c.App.Version, "v"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: cannot parse current version %q: %v", c.App.Version, err), 1)
	}

	repo := defaultRepo
	if src := c.String("source"); src != "" {
		parts := strings.Split(src, "/")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return cli.Exit(fmt.Sprintf("Error: --source expects 'owner/repo', got %q", src), 1)
		}
		repo = src
	}

	ghSource, err := selfupdate.NewGitHubSource(selfupdate.GitHubConfig{})
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: creating GitHub source: %v", err), 1)
	}
	updater, err := selfupdate.NewUpdater(selfupdate.Config{Source: ghSource})
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: initializing updater: %v", err), 1)
	}

	latest, found, err := updater.DetectLatest(c.Context, selfupdate.ParseSlug(repo))
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: detecting latest version: %v", err), 1)
	}
	if !found || !latest.GreaterThan(current.String()) {
		fmt.Printf("cargoctl %s is already the latest version.\n", c.App.Version)
		return nil
	}

	fmt.Printf("New version available: %s (current: %s)\n", latest.Version(), c.App.Version)
	if c.Bool("check") {
		return nil
	}

	if !c.Bool("yes") {
		fmt.Print("Do you want to update? (y/N): ")
		input, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		if strings.TrimSpace(strings.ToLower(input)) != "y" {
			fmt.Println("Update cancelled.")
			return nil
		}
	}

	execPath, err := os.Executable()
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: locating executable: %v", err), 1)
	}
	if err := updater.UpdateTo(c.Context, latest, execPath); err != nil {
		return cli.Exit(fmt.Sprintf("Error: update failed: %v", err), 1)
	}
	fmt.Printf("Successfully updated to %s.\n", latest.Version())
	return nil
}
